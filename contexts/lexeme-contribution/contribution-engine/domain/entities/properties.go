package entities

// Corpus property ids read by detail enrichment and written by contributions.
const (
	PropertyInstanceOf           = "P31"
	PropertyImage                = "P18"
	PropertyItemForSense         = "P5137"
	PropertyGrammaticalGender    = "P5185"
	PropertyCombinesLexemes      = "P5238"
	PropertyHyphenation          = "P5279"
	PropertyDemonstratesForm     = "P5830"
	PropertyUsageExample         = "P5831"
	PropertySynonym              = "P5973"
	PropertyAntonym              = "P5974"
	PropertyLocationOfSenseUsage = "P6084"
	PropertyDemonstratesSense    = "P6072"
	PropertyLanguageStyle        = "P6191"
	PropertyGlossQuote           = "P8394"
	PropertyFieldOfUsage         = "P9488"
)
