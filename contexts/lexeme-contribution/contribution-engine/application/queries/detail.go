package queries

import "lexcontrib/contexts/lexeme-contribution/contribution-engine/domain/entities"

// EntityRef is a cross-referenced corpus id with its resolved label. Label is
// empty when the referenced entity could not be loaded.
type EntityRef struct {
	ID    string
	Label string
}

type UsageExample struct {
	Text              string
	Language          string
	DemonstratesSense EntityRef
	DemonstratesForm  EntityRef
}

type SenseDetail struct {
	SenseID        string
	Gloss          string
	ItemsForSense  []EntityRef
	LanguageStyles []EntityRef
	FieldsOfUsage  []EntityRef
	Locations      []EntityRef
	Genders        []EntityRef
	Antonyms       []EntityRef
	Synonyms       []EntityRef
	GlossQuotes    []string
	Images         []string
}

type FormDetail struct {
	FormID              string
	Representation      string
	GrammaticalFeatures []EntityRef
	Hyphenations        []string
}

type LexemeDetail struct {
	LexemeID        string
	Lemma           string
	Lemmas          map[string]string
	Language        EntityRef
	Category        EntityRef
	Characteristics []EntityRef
	UsageExamples   []UsageExample
	CombinesLexemes []EntityRef
	Senses          []SenseDetail
	Forms           []FormDetail
}

// ItemDetail is the enriched view of one allocated item.
type ItemDetail struct {
	Item   entities.Item
	Lexeme LexemeDetail
}
