package postgresadapter

import (
	"time"

	"lexcontrib/contexts/lexeme-contribution/contribution-engine/domain/entities"
	"lexcontrib/contexts/lexeme-contribution/contribution-engine/ports"
	contractsv1 "lexcontrib/contracts/gen/events/v1"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type languageModel struct {
	LanguageID string    `gorm:"column:language_id;primaryKey"`
	QID        string    `gorm:"column:qid;not null"`
	Code       string    `gorm:"column:code;not null;uniqueIndex:languages_code_key"`
	Name       string    `gorm:"column:name"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (languageModel) TableName() string {
	return "languages"
}

func (m languageModel) toEntity(activities []languageActivityModel) entities.Language {
	language := entities.Language{
		LanguageID: m.LanguageID,
		QID:        m.QID,
		Code:       m.Code,
		Name:       m.Name,
		Activities: make([]entities.LanguageActivity, 0, len(activities)),
	}
	for _, activity := range activities {
		language.Activities = append(language.Activities, entities.LanguageActivity{
			LanguageID:  activity.LanguageID,
			Activity:    entities.ActivityKind(activity.Activity),
			VariantCode: activity.VariantCode,
		})
	}
	return language
}

// languageActivityModel rows double as the allocation scope lock.
type languageActivityModel struct {
	LanguageID  string    `gorm:"column:language_id;primaryKey"`
	Activity    string    `gorm:"column:activity;primaryKey"`
	VariantCode string    `gorm:"column:variant_code"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (languageActivityModel) TableName() string {
	return "language_activities"
}

type sessionModel struct {
	SessionID       string         `gorm:"column:session_id;primaryKey"`
	UserID          string         `gorm:"column:user_id;not null;uniqueIndex:contribution_sessions_one_pending_per_user,where:status = 'pending' AND deleted_at IS NULL"`
	ExternalUserID  string         `gorm:"column:external_user_id"`
	Activity        string         `gorm:"column:activity;not null"`
	LanguageID      string         `gorm:"column:language_id;not null"`
	LanguageQID     string         `gorm:"column:language_qid"`
	LanguageCode    string         `gorm:"column:language_code"`
	VariantCode     string         `gorm:"column:variant_code"`
	DisplayLanguage string         `gorm:"column:display_language"`
	Status          string         `gorm:"column:status;not null;index:contribution_sessions_status_started"`
	StartedAt       time.Time      `gorm:"column:started_at;index:contribution_sessions_status_started"`
	UpdatedAt       time.Time      `gorm:"column:updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

func (sessionModel) TableName() string {
	return "contribution_sessions"
}

func sessionModelFromEntity(session entities.Session) sessionModel {
	return sessionModel{
		SessionID:       session.SessionID,
		UserID:          session.UserID,
		ExternalUserID:  session.ExternalUserID,
		Activity:        string(session.Activity),
		LanguageID:      session.LanguageID,
		LanguageQID:     session.LanguageQID,
		LanguageCode:    session.LanguageCode,
		VariantCode:     session.VariantCode,
		DisplayLanguage: session.DisplayLanguage,
		Status:          string(session.Status),
		StartedAt:       session.StartedAt.UTC(),
		UpdatedAt:       session.UpdatedAt.UTC(),
	}
}

func (m sessionModel) toEntity() entities.Session {
	return entities.Session{
		SessionID:       m.SessionID,
		UserID:          m.UserID,
		ExternalUserID:  m.ExternalUserID,
		Activity:        entities.ActivityKind(m.Activity),
		LanguageID:      m.LanguageID,
		LanguageQID:     m.LanguageQID,
		LanguageCode:    m.LanguageCode,
		VariantCode:     m.VariantCode,
		DisplayLanguage: m.DisplayLanguage,
		Status:          entities.SessionStatus(m.Status),
		StartedAt:       m.StartedAt.UTC(),
		UpdatedAt:       m.UpdatedAt.UTC(),
	}
}

type itemModel struct {
	ItemID         string                      `gorm:"column:item_id;primaryKey"`
	SessionID      string                      `gorm:"column:session_id;not null;index"`
	Activity       string                      `gorm:"column:activity;not null;uniqueIndex:contribution_items_pending_sub,where:status = 'pending';index:contribution_items_scope"`
	UserID         string                      `gorm:"column:user_id"`
	ExternalUserID string                      `gorm:"column:external_user_id"`
	LexemeID       string                      `gorm:"column:lexeme_id;not null"`
	SenseID        string                      `gorm:"column:sense_id"`
	FormID         string                      `gorm:"column:form_id"`
	SubID          string                      `gorm:"column:sub_id;not null;uniqueIndex:contribution_items_pending_sub"`
	LanguageQID    string                      `gorm:"column:language_qid;index:contribution_items_scope"`
	CategoryQID    string                      `gorm:"column:category_qid"`
	Lemma          string                      `gorm:"column:lemma"`
	CategoryLabel  string                      `gorm:"column:category_label"`
	Gloss          string                      `gorm:"column:gloss"`
	Images         datatypes.JSONSlice[string] `gorm:"column:images;type:jsonb"`
	Status         string                      `gorm:"column:status;not null;index:contribution_items_scope"`
	Ordinal        int                         `gorm:"column:ordinal"`
	Result         string                      `gorm:"column:result"`
	CreatedAt      time.Time                   `gorm:"column:created_at"`
	UpdatedAt      time.Time                   `gorm:"column:updated_at"`
}

func (itemModel) TableName() string {
	return "contribution_items"
}

func itemModelFromEntity(item entities.Item) itemModel {
	return itemModel{
		ItemID:         item.ItemID,
		SessionID:      item.SessionID,
		Activity:       string(item.Activity),
		UserID:         item.UserID,
		ExternalUserID: item.ExternalUserID,
		LexemeID:       item.LexemeID,
		SenseID:        item.SenseID,
		FormID:         item.FormID,
		SubID:          item.SubID,
		LanguageQID:    item.LanguageQID,
		CategoryQID:    item.CategoryQID,
		Lemma:          item.Lemma,
		CategoryLabel:  item.CategoryLabel,
		Gloss:          item.Gloss,
		Images:         datatypes.NewJSONSlice(append([]string(nil), item.Images...)),
		Status:         string(item.Status),
		Ordinal:        item.Ordinal,
		Result:         item.Result,
		CreatedAt:      item.CreatedAt.UTC(),
		UpdatedAt:      item.UpdatedAt.UTC(),
	}
}

func (m itemModel) toEntity() entities.Item {
	return entities.Item{
		ItemID:         m.ItemID,
		SessionID:      m.SessionID,
		Activity:       entities.ActivityKind(m.Activity),
		UserID:         m.UserID,
		ExternalUserID: m.ExternalUserID,
		LexemeID:       m.LexemeID,
		SenseID:        m.SenseID,
		FormID:         m.FormID,
		SubID:          m.SubID,
		LanguageQID:    m.LanguageQID,
		CategoryQID:    m.CategoryQID,
		Lemma:          m.Lemma,
		CategoryLabel:  m.CategoryLabel,
		Gloss:          m.Gloss,
		Images:         append([]string(nil), m.Images...),
		Status:         entities.ItemStatus(m.Status),
		Ordinal:        m.Ordinal,
		Result:         m.Result,
		CreatedAt:      m.CreatedAt.UTC(),
		UpdatedAt:      m.UpdatedAt.UTC(),
	}
}

type preferenceModel struct {
	UserID          string    `gorm:"column:user_id;primaryKey"`
	LanguageID      string    `gorm:"column:language_id"`
	LanguageCode    string    `gorm:"column:language_code"`
	ActiveActivity  string    `gorm:"column:active_activity"`
	DisplayLanguage string    `gorm:"column:display_language"`
	UpdatedAt       time.Time `gorm:"column:updated_at"`
}

func (preferenceModel) TableName() string {
	return "contribution_preferences"
}

func (m preferenceModel) toEntity() entities.Preference {
	return entities.Preference{
		UserID:          m.UserID,
		LanguageID:      m.LanguageID,
		LanguageCode:    m.LanguageCode,
		ActiveActivity:  entities.ActivityKind(m.ActiveActivity),
		DisplayLanguage: m.DisplayLanguage,
	}
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status;index"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	SentAt       *time.Time `gorm:"column:sent_at"`
}

func (outboxModel) TableName() string {
	return "contribution_outbox"
}

func (m outboxModel) toPort() ports.OutboxMessage {
	return ports.OutboxMessage{
		OutboxID:     m.OutboxID,
		EventType:    m.EventType,
		PartitionKey: m.PartitionKey,
		Payload:      append([]byte(nil), m.Payload...),
		CreatedAt:    m.CreatedAt.UTC(),
	}
}

func newEnvelope(event ports.ContributionEvent, partitionKeyPath string, data map[string]any) (ports.EventEnvelope, error) {
	return contractsv1.NewEnvelope(
		event.EventID,
		event.EventType,
		sourceService,
		partitionKeyPath,
		event.PartitionKey,
		event.OccurredAt,
		data,
	)
}
