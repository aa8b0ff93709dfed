package corpus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"lexcontrib/contexts/lexeme-contribution/contribution-engine/ports"

	"github.com/tidwall/gjson"
)

func (c *Client) GetEntity(ctx context.Context, request ports.EntityRequest) (ports.EntityDocument, error) {
	if !entityIDPattern.MatchString(request.EntityID) {
		return ports.EntityDocument{}, fmt.Errorf("%w: %q", ErrInvalidID, request.EntityID)
	}
	params := url.Values{}
	params.Set("action", "wbgetentities")
	params.Set("ids", request.EntityID)
	if languages := requestLanguages(request); languages != "" {
		params.Set("languages", languages)
		params.Set("languagefallback", "1")
	}
	if request.UseLang != "" {
		params.Set("uselang", request.UseLang)
	}
	if len(request.Props) > 0 {
		params.Set("props", strings.Join(request.Props, "|"))
	}

	body, err := c.apiGet(ctx, params, "")
	if err != nil {
		return ports.EntityDocument{}, err
	}
	entity := body.Get("entities." + gjsonEscape(request.EntityID))
	if !entity.Exists() || entity.Get("missing").Exists() {
		return ports.EntityDocument{}, fmt.Errorf("%w: %s", ErrEntityMissing, request.EntityID)
	}
	return parseEntity(entity), nil
}

// GetWriteToken fetches a fresh CSRF token on behalf of the OAuth access token.
func (c *Client) GetWriteToken(ctx context.Context, accessToken string) (string, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("meta", "tokens")
	params.Set("type", "csrf")

	body, err := c.apiGet(ctx, params, accessToken)
	if err != nil {
		return "", err
	}
	token := body.Get("query.tokens.csrftoken").String()
	if token == "" || token == `+\` {
		return "", ErrAnonymousToken
	}
	return token, nil
}

func (c *Client) SubmitClaim(ctx context.Context, write ports.ClaimWrite) error {
	if !entityIDPattern.MatchString(write.TargetID) {
		return fmt.Errorf("%w: %q", ErrInvalidID, write.TargetID)
	}
	value, err := claimValue(write.Value)
	if err != nil {
		return err
	}
	params := url.Values{}
	params.Set("action", "wbcreateclaim")
	params.Set("entity", write.TargetID)
	params.Set("property", write.Property)
	params.Set("snaktype", "value")
	params.Set("value", value)
	params.Set("token", write.Token)
	if write.Summary != "" {
		params.Set("summary", write.Summary)
	}

	body, err := c.apiPost(ctx, params, write.AccessToken)
	if err != nil {
		return err
	}
	if body.Get("success").Int() != 1 {
		return fmt.Errorf("corpus wbcreateclaim on %s not acknowledged", write.TargetID)
	}
	return nil
}

func (c *Client) SubmitEdit(ctx context.Context, edit ports.EntityEdit) error {
	if !entityIDPattern.MatchString(edit.TargetID) {
		return fmt.Errorf("%w: %q", ErrInvalidID, edit.TargetID)
	}
	lemmas := make(map[string]map[string]string, len(edit.Lemmas))
	for language, value := range edit.Lemmas {
		lemmas[language] = map[string]string{"language": language, "value": value}
	}
	data, err := json.Marshal(map[string]any{"lemmas": lemmas})
	if err != nil {
		return err
	}
	params := url.Values{}
	params.Set("action", "wbeditentity")
	params.Set("id", edit.TargetID)
	params.Set("data", string(data))
	params.Set("token", edit.Token)
	if edit.Summary != "" {
		params.Set("summary", edit.Summary)
	}

	body, err := c.apiPost(ctx, params, edit.AccessToken)
	if err != nil {
		return err
	}
	if body.Get("success").Int() != 1 {
		return fmt.Errorf("corpus wbeditentity on %s not acknowledged", edit.TargetID)
	}
	return nil
}

func claimValue(value ports.StatementValue) (string, error) {
	if value.EntityID != "" {
		if !entityIDPattern.MatchString(value.EntityID) || !strings.HasPrefix(value.EntityID, "Q") {
			return "", fmt.Errorf("%w: %q", ErrInvalidID, value.EntityID)
		}
		numeric, err := strconv.Atoi(strings.TrimPrefix(value.EntityID, "Q"))
		if err != nil {
			return "", err
		}
		raw, err := json.Marshal(map[string]any{
			"entity-type": "item",
			"numeric-id":  numeric,
			"id":          value.EntityID,
		})
		return string(raw), err
	}
	raw, err := json.Marshal(value.Text)
	return string(raw), err
}

func requestLanguages(request ports.EntityRequest) string {
	var languages []string
	seen := make(map[string]struct{})
	for _, language := range []string{request.Language, request.UseLang, "en"} {
		if language == "" {
			continue
		}
		if _, ok := seen[language]; ok {
			continue
		}
		seen[language] = struct{}{}
		languages = append(languages, language)
	}
	return strings.Join(languages, "|")
}

func gjsonEscape(path string) string {
	return strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`).Replace(path)
}

func parseEntity(entity gjson.Result) ports.EntityDocument {
	document := ports.EntityDocument{
		ID:                  entity.Get("id").String(),
		Type:                entity.Get("type").String(),
		Labels:              termMap(entity.Get("labels")),
		Descriptions:        termMap(entity.Get("descriptions")),
		Aliases:             aliasMap(entity.Get("aliases")),
		Lemmas:              termMap(entity.Get("lemmas")),
		Glosses:             termMap(entity.Get("glosses")),
		Representations:     termMap(entity.Get("representations")),
		LexicalCategory:     entity.Get("lexicalCategory").String(),
		Language:            entity.Get("language").String(),
		GrammaticalFeatures: stringList(entity.Get("grammaticalFeatures")),
		Claims:              claimMap(entity.Get("claims")),
	}
	entity.Get("senses").ForEach(func(_, sense gjson.Result) bool {
		document.Senses = append(document.Senses, ports.SenseDocument{
			ID:      sense.Get("id").String(),
			Glosses: termMap(sense.Get("glosses")),
			Claims:  claimMap(sense.Get("claims")),
		})
		return true
	})
	entity.Get("forms").ForEach(func(_, form gjson.Result) bool {
		document.Forms = append(document.Forms, ports.FormDocument{
			ID:                  form.Get("id").String(),
			Representations:     termMap(form.Get("representations")),
			GrammaticalFeatures: stringList(form.Get("grammaticalFeatures")),
			Claims:              claimMap(form.Get("claims")),
		})
		return true
	})
	return document
}

func termMap(terms gjson.Result) map[string]string {
	values := make(map[string]string)
	terms.ForEach(func(key, term gjson.Result) bool {
		if value := term.Get("value").String(); value != "" {
			values[key.String()] = value
		}
		return true
	})
	return values
}

func aliasMap(aliases gjson.Result) map[string][]string {
	values := make(map[string][]string)
	aliases.ForEach(func(key, list gjson.Result) bool {
		list.ForEach(func(_, alias gjson.Result) bool {
			values[key.String()] = append(values[key.String()], alias.Get("value").String())
			return true
		})
		return true
	})
	return values
}

func stringList(list gjson.Result) []string {
	var values []string
	list.ForEach(func(_, value gjson.Result) bool {
		values = append(values, value.String())
		return true
	})
	return values
}

func claimMap(claims gjson.Result) map[string][]ports.Statement {
	statements := make(map[string][]ports.Statement)
	claims.ForEach(func(property, list gjson.Result) bool {
		list.ForEach(func(_, statement gjson.Result) bool {
			mainsnak := statement.Get("mainsnak")
			if mainsnak.Get("snaktype").String() != "value" {
				return true
			}
			parsed := ports.Statement{
				Property:   property.String(),
				Value:      snakValue(mainsnak),
				Qualifiers: make(map[string][]ports.StatementValue),
			}
			statement.Get("qualifiers").ForEach(func(qualifier, snaks gjson.Result) bool {
				snaks.ForEach(func(_, snak gjson.Result) bool {
					if snak.Get("snaktype").String() == "value" {
						parsed.Qualifiers[qualifier.String()] = append(parsed.Qualifiers[qualifier.String()], snakValue(snak))
					}
					return true
				})
				return true
			})
			statements[parsed.Property] = append(statements[parsed.Property], parsed)
			return true
		})
		return true
	})
	return statements
}

func snakValue(snak gjson.Result) ports.StatementValue {
	datavalue := snak.Get("datavalue")
	switch datavalue.Get("type").String() {
	case "wikibase-entityid":
		return ports.StatementValue{EntityID: datavalue.Get("value.id").String()}
	case "monolingualtext":
		return ports.StatementValue{
			Text:     datavalue.Get("value.text").String(),
			Language: datavalue.Get("value.language").String(),
		}
	default:
		return ports.StatementValue{Text: datavalue.Get("value").String()}
	}
}
