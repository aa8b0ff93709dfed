package httpadapter

import (
	"context"
	"log/slog"
	"strings"

	application "lexcontrib/contexts/lexeme-contribution/contribution-engine/application"
	"lexcontrib/contexts/lexeme-contribution/contribution-engine/application/commands"
	"lexcontrib/contexts/lexeme-contribution/contribution-engine/application/queries"
	"lexcontrib/contexts/lexeme-contribution/contribution-engine/domain/entities"
	domainerrors "lexcontrib/contexts/lexeme-contribution/contribution-engine/domain/errors"
	"lexcontrib/contexts/lexeme-contribution/contribution-engine/domain/services"
	httptransport "lexcontrib/contexts/lexeme-contribution/contribution-engine/transport/http"
)

const timestampLayout = "2006-01-02T15:04:05Z"

type Handler struct {
	StartSession      commands.StartSessionUseCase
	UpdateItem        commands.UpdateItemUseCase
	EndSession        commands.EndSessionUseCase
	GetItemDetail     queries.GetItemDetailUseCase
	GetCurrentSession queries.GetCurrentSessionUseCase
	ListLanguages     queries.ListLanguagesUseCase
	Logger            *slog.Logger
}

// StartSessionHandler godoc
// @Summary Start or resume a contribution session
// @Description Resumes the caller's pending session for the activity or allocates a fresh batch of work items.
// @Tags contributions
// @Accept json
// @Produce json
// @Param X-User-Id header string true "Internal user id"
// @Param X-External-User-Id header string false "Corpus account name"
// @Param X-Display-Language header string false "Display language code"
// @Param request body httptransport.StartSessionRequest true "Session request"
// @Success 200 {object} httptransport.StartSessionResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 401 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 422 {object} httptransport.ErrorResponse
// @Failure 503 {object} httptransport.ErrorResponse
// @Router /contributions/start [post]
func (h Handler) StartSessionHandler(
	ctx context.Context,
	contributor entities.Contributor,
	req httptransport.StartSessionRequest,
) (httptransport.StartSessionResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	activity, ok := entities.ParseActivityKind(req.Activity)
	if !ok {
		return httptransport.StartSessionResponse{}, domainerrors.ErrInvalidRequest
	}
	logger.Info("start session request received",
		"event", "http_start_session_received",
		"module", application.ModuleName,
		"layer", "transport",
		"user_id", contributor.UserID,
		"activity", activity,
	)

	result, err := h.StartSession.Execute(ctx, commands.StartSessionCommand{
		Contributor:  contributor,
		Activity:     activity,
		LanguageCode: strings.TrimSpace(req.LanguageCode),
	})
	if err != nil {
		return httptransport.StartSessionResponse{}, err
	}
	return httptransport.StartSessionResponse{
		SessionID:    result.Session.SessionID,
		Activity:     string(result.Session.Activity),
		LanguageCode: result.Session.LanguageCode,
		VariantCode:  result.Session.VariantCode,
		Resumed:      result.Resumed,
		Items:        mapItems(result.Items),
	}, nil
}

// GetItemHandler godoc
// @Summary Get an enriched work item
// @Description Returns the item with its lexeme and every referenced entity resolved to a label.
// @Tags contributions
// @Produce json
// @Param X-User-Id header string true "Internal user id"
// @Param session_id path string true "Session id"
// @Param kind path string true "Activity: connect, script or hyphenation"
// @Param item_id path string true "Item id"
// @Success 200 {object} httptransport.ItemDetailResponse
// @Failure 401 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 502 {object} httptransport.ErrorResponse
// @Router /contributions/{session_id}/{kind}/{item_id} [get]
func (h Handler) GetItemHandler(
	ctx context.Context,
	contributor entities.Contributor,
	sessionID string,
	kind string,
	itemID string,
) (httptransport.ItemDetailResponse, error) {
	activity, ok := entities.ParseActivityKind(kind)
	if !ok {
		return httptransport.ItemDetailResponse{}, domainerrors.ErrItemNotFound
	}
	detail, err := h.GetItemDetail.Execute(ctx, queries.GetItemDetailQuery{
		Contributor: contributor,
		SessionID:   sessionID,
		Activity:    activity,
		ItemID:      itemID,
	})
	if err != nil {
		return httptransport.ItemDetailResponse{}, err
	}
	return httptransport.ItemDetailResponse{
		Item:   mapItem(detail.Item),
		Lexeme: mapLexeme(detail.Lexeme),
	}, nil
}

// UpdateItemHandler godoc
// @Summary Resolve a work item
// @Description Applies add, no_item or skip. add writes to the corpus with the caller's access token before the item is completed.
// @Tags contributions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param X-User-Id header string true "Internal user id"
// @Param X-External-User-Id header string false "Corpus account name"
// @Param session_id path string true "Session id"
// @Param kind path string true "Activity: connect, script or hyphenation"
// @Param item_id path string true "Item id"
// @Param request body httptransport.UpdateItemRequest true "Action and payload"
// @Success 200 {object} httptransport.UpdateItemResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 401 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 502 {object} httptransport.ErrorResponse
// @Router /contributions/{session_id}/{kind}/{item_id} [put]
func (h Handler) UpdateItemHandler(
	ctx context.Context,
	contributor entities.Contributor,
	sessionID string,
	kind string,
	itemID string,
	req httptransport.UpdateItemRequest,
) (httptransport.UpdateItemResponse, error) {
	activity, ok := entities.ParseActivityKind(kind)
	if !ok {
		return httptransport.UpdateItemResponse{}, domainerrors.ErrItemNotFound
	}
	item, err := h.UpdateItem.Execute(ctx, commands.UpdateItemCommand{
		Contributor: contributor,
		SessionID:   sessionID,
		Activity:    activity,
		ItemID:      itemID,
		Action:      services.ParseItemAction(req.Action),
		Payload: commands.ItemPayload{
			ExternalItemID: req.Payload.ItemID,
			Text:           req.Payload.Text,
			Segments:       req.Payload.Segments,
		},
	})
	if err != nil {
		return httptransport.UpdateItemResponse{}, err
	}
	return httptransport.UpdateItemResponse{Item: mapItem(item)}, nil
}

// EndSessionHandler godoc
// @Summary End the current session
// @Description Deletes every item of the caller's pending session and ends it.
// @Tags contributions
// @Produce json
// @Param X-User-Id header string true "Internal user id"
// @Success 200 {object} httptransport.EndSessionResponse
// @Failure 401 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Router /contributions/end [post]
func (h Handler) EndSessionHandler(ctx context.Context, userID string) (httptransport.EndSessionResponse, error) {
	if _, err := h.EndSession.Execute(ctx, commands.EndSessionCommand{
		UserID: userID,
		Reason: commands.EndReasonUser,
	}); err != nil {
		return httptransport.EndSessionResponse{}, err
	}
	return httptransport.EndSessionResponse{}, nil
}

// CurrentSessionHandler godoc
// @Summary Get the current session
// @Tags contributions
// @Produce json
// @Param X-User-Id header string true "Internal user id"
// @Success 200 {object} httptransport.CurrentSessionResponse
// @Failure 401 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Router /contributions/current [get]
func (h Handler) CurrentSessionHandler(ctx context.Context, userID string) (httptransport.CurrentSessionResponse, error) {
	current, err := h.GetCurrentSession.Execute(ctx, queries.GetCurrentSessionQuery{UserID: userID})
	if err != nil {
		return httptransport.CurrentSessionResponse{}, err
	}
	return httptransport.CurrentSessionResponse{
		SessionID:      current.Session.SessionID,
		Activity:       string(current.Session.Activity),
		LanguageCode:   current.Session.LanguageCode,
		VariantCode:    current.Session.VariantCode,
		ItemCount:      current.ItemCount,
		PendingCount:   current.PendingCount,
		ActiveActivity: string(current.ActiveActivity),
		StartedAt:      current.Session.StartedAt.UTC().Format(timestampLayout),
	}, nil
}

// ListLanguagesHandler godoc
// @Summary List contribution languages
// @Tags contributions
// @Produce json
// @Success 200 {object} httptransport.ListLanguagesResponse
// @Router /contributions/languages [get]
func (h Handler) ListLanguagesHandler(ctx context.Context) (httptransport.ListLanguagesResponse, error) {
	languages, err := h.ListLanguages.Execute(ctx)
	if err != nil {
		return httptransport.ListLanguagesResponse{}, err
	}
	items := make([]httptransport.LanguageDTO, 0, len(languages))
	for _, language := range languages {
		activities := make([]httptransport.LanguageActivityDTO, 0, len(language.Activities))
		for _, activity := range language.Activities {
			activities = append(activities, httptransport.LanguageActivityDTO{
				Activity:    string(activity.Activity),
				VariantCode: activity.VariantCode,
			})
		}
		items = append(items, httptransport.LanguageDTO{
			Code:       language.Code,
			QID:        language.QID,
			Name:       language.Name,
			Activities: activities,
		})
	}
	return httptransport.ListLanguagesResponse{Items: items}, nil
}

func mapItems(items []entities.Item) []httptransport.ItemDTO {
	out := make([]httptransport.ItemDTO, 0, len(items))
	for _, item := range items {
		out = append(out, mapItem(item))
	}
	return out
}

func mapItem(item entities.Item) httptransport.ItemDTO {
	return httptransport.ItemDTO{
		ItemID:        item.ItemID,
		SessionID:     item.SessionID,
		Activity:      string(item.Activity),
		LexemeID:      item.LexemeID,
		SenseID:       item.SenseID,
		FormID:        item.FormID,
		SubID:         item.SubID,
		CategoryQID:   item.CategoryQID,
		CategoryLabel: item.CategoryLabel,
		Lemma:         item.Lemma,
		Gloss:         item.Gloss,
		Images:        item.Images,
		Status:        string(item.Status),
		Ordinal:       item.Ordinal,
		Result:        item.Result,
	}
}

func mapLexeme(lexeme queries.LexemeDetail) httptransport.LexemeDTO {
	dto := httptransport.LexemeDTO{
		LexemeID:        lexeme.LexemeID,
		Lemma:           lexeme.Lemma,
		Lemmas:          lexeme.Lemmas,
		Language:        mapRef(lexeme.Language),
		Category:        mapRef(lexeme.Category),
		Characteristics: mapRefs(lexeme.Characteristics),
		CombinesLexemes: mapRefs(lexeme.CombinesLexemes),
	}
	for _, example := range lexeme.UsageExamples {
		item := httptransport.UsageExampleDTO{Text: example.Text, Language: example.Language}
		if example.DemonstratesSense.ID != "" {
			ref := mapRef(example.DemonstratesSense)
			item.DemonstratesSense = &ref
		}
		if example.DemonstratesForm.ID != "" {
			ref := mapRef(example.DemonstratesForm)
			item.DemonstratesForm = &ref
		}
		dto.UsageExamples = append(dto.UsageExamples, item)
	}
	for _, sense := range lexeme.Senses {
		dto.Senses = append(dto.Senses, httptransport.SenseDTO{
			SenseID:        sense.SenseID,
			Gloss:          sense.Gloss,
			ItemsForSense:  mapRefs(sense.ItemsForSense),
			LanguageStyles: mapRefs(sense.LanguageStyles),
			FieldsOfUsage:  mapRefs(sense.FieldsOfUsage),
			Locations:      mapRefs(sense.Locations),
			Genders:        mapRefs(sense.Genders),
			Antonyms:       mapRefs(sense.Antonyms),
			Synonyms:       mapRefs(sense.Synonyms),
			GlossQuotes:    sense.GlossQuotes,
			Images:         sense.Images,
		})
	}
	for _, form := range lexeme.Forms {
		dto.Forms = append(dto.Forms, httptransport.FormDTO{
			FormID:              form.FormID,
			Representation:      form.Representation,
			GrammaticalFeatures: mapRefs(form.GrammaticalFeatures),
			Hyphenations:        form.Hyphenations,
		})
	}
	return dto
}

func mapRef(ref queries.EntityRef) httptransport.EntityRefDTO {
	return httptransport.EntityRefDTO{ID: ref.ID, Label: ref.Label}
}

func mapRefs(refs []queries.EntityRef) []httptransport.EntityRefDTO {
	if len(refs) == 0 {
		return nil
	}
	out := make([]httptransport.EntityRefDTO, 0, len(refs))
	for _, ref := range refs {
		out = append(out, mapRef(ref))
	}
	return out
}
