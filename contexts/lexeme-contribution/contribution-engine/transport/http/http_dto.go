package httptransport

type StartSessionRequest struct {
	LanguageCode string `json:"language_code"`
	Activity     string `json:"activity"`
}

type ItemDTO struct {
	ItemID        string   `json:"item_id"`
	SessionID     string   `json:"session_id"`
	Activity      string   `json:"activity"`
	LexemeID      string   `json:"lexeme_id"`
	SenseID       string   `json:"sense_id,omitempty"`
	FormID        string   `json:"form_id,omitempty"`
	SubID         string   `json:"sub_id"`
	CategoryQID   string   `json:"category_qid,omitempty"`
	CategoryLabel string   `json:"category_label,omitempty"`
	Lemma         string   `json:"lemma"`
	Gloss         string   `json:"gloss,omitempty"`
	Images        []string `json:"images,omitempty"`
	Status        string   `json:"status"`
	Ordinal       int      `json:"ordinal"`
	Result        string   `json:"result,omitempty"`
}

type StartSessionResponse struct {
	SessionID    string    `json:"session_id"`
	Activity     string    `json:"activity"`
	LanguageCode string    `json:"language_code"`
	VariantCode  string    `json:"variant_code,omitempty"`
	Resumed      bool      `json:"resumed"`
	Items        []ItemDTO `json:"items"`
}

type ItemPayloadDTO struct {
	ItemID   string   `json:"item_id,omitempty"`
	Text     string   `json:"text,omitempty"`
	Segments []string `json:"segments,omitempty"`
}

type UpdateItemRequest struct {
	Action  string         `json:"action"`
	Payload ItemPayloadDTO `json:"payload"`
}

type UpdateItemResponse struct {
	Item ItemDTO `json:"item"`
}

type EntityRefDTO struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type UsageExampleDTO struct {
	Text              string        `json:"text"`
	Language          string        `json:"language,omitempty"`
	DemonstratesSense *EntityRefDTO `json:"demonstrates_sense,omitempty"`
	DemonstratesForm  *EntityRefDTO `json:"demonstrates_form,omitempty"`
}

type SenseDTO struct {
	SenseID        string         `json:"sense_id"`
	Gloss          string         `json:"gloss"`
	ItemsForSense  []EntityRefDTO `json:"items_for_sense,omitempty"`
	LanguageStyles []EntityRefDTO `json:"language_styles,omitempty"`
	FieldsOfUsage  []EntityRefDTO `json:"fields_of_usage,omitempty"`
	Locations      []EntityRefDTO `json:"locations,omitempty"`
	Genders        []EntityRefDTO `json:"genders,omitempty"`
	Antonyms       []EntityRefDTO `json:"antonyms,omitempty"`
	Synonyms       []EntityRefDTO `json:"synonyms,omitempty"`
	GlossQuotes    []string       `json:"gloss_quotes,omitempty"`
	Images         []string       `json:"images,omitempty"`
}

type FormDTO struct {
	FormID              string         `json:"form_id"`
	Representation      string         `json:"representation"`
	GrammaticalFeatures []EntityRefDTO `json:"grammatical_features,omitempty"`
	Hyphenations        []string       `json:"hyphenations,omitempty"`
}

type LexemeDTO struct {
	LexemeID        string            `json:"lexeme_id"`
	Lemma           string            `json:"lemma"`
	Lemmas          map[string]string `json:"lemmas,omitempty"`
	Language        EntityRefDTO      `json:"language"`
	Category        EntityRefDTO      `json:"category"`
	Characteristics []EntityRefDTO    `json:"characteristics,omitempty"`
	UsageExamples   []UsageExampleDTO `json:"usage_examples,omitempty"`
	CombinesLexemes []EntityRefDTO    `json:"combines_lexemes,omitempty"`
	Senses          []SenseDTO        `json:"senses,omitempty"`
	Forms           []FormDTO         `json:"forms,omitempty"`
}

type ItemDetailResponse struct {
	Item   ItemDTO   `json:"item"`
	Lexeme LexemeDTO `json:"lexeme"`
}

type EndSessionResponse struct{}

type CurrentSessionResponse struct {
	SessionID      string `json:"session_id"`
	Activity       string `json:"activity"`
	LanguageCode   string `json:"language_code"`
	VariantCode    string `json:"variant_code,omitempty"`
	ItemCount      int    `json:"item_count"`
	PendingCount   int    `json:"pending_count"`
	ActiveActivity string `json:"active_activity,omitempty"`
	StartedAt      string `json:"started_at"`
}

type LanguageActivityDTO struct {
	Activity    string `json:"activity"`
	VariantCode string `json:"variant_code,omitempty"`
}

type LanguageDTO struct {
	Code       string                `json:"code"`
	QID        string                `json:"qid"`
	Name       string                `json:"name"`
	Activities []LanguageActivityDTO `json:"activities"`
}

type ListLanguagesResponse struct {
	Items []LanguageDTO `json:"items"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
