package corpus

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"lexcontrib/contexts/lexeme-contribution/contribution-engine/domain/entities"
	"lexcontrib/contexts/lexeme-contribution/contribution-engine/ports"

	"github.com/tidwall/gjson"
)

var (
	entityIDPattern     = regexp.MustCompile(`^[LQP][1-9][0-9]*(-[SF][1-9][0-9]*)?$`)
	languageCodePattern = regexp.MustCompile(`^[a-zA-Z]{2,3}(-[a-zA-Z0-9]+)*$`)
)

// Query placeholders: {{language}} language item, {{code}} contribution
// language code, {{display}} display language, {{select}} candidate filter or
// VALUES list.
const connectQuery = `SELECT ?lexeme ?sub ?category
  (SAMPLE(?categoryLabel) AS ?categoryLabel)
  (SAMPLE(?lemma) AS ?lemma)
  (SAMPLE(?gloss) AS ?gloss)
  (GROUP_CONCAT(DISTINCT STR(?image); separator="|") AS ?images)
WHERE {
  ?lexeme dct:language wd:{{language}} ;
          wikibase:lexicalCategory ?category ;
          wikibase:lemma ?lemma ;
          ontolex:sense ?sub .
  ?sub skos:definition ?gloss .
  FILTER(LANG(?gloss) IN ("{{code}}", "{{display}}"))
  {{select}}
  OPTIONAL { ?sub wdt:P18 ?image . }
  OPTIONAL { ?category rdfs:label ?categoryLabel . FILTER(LANG(?categoryLabel) = "{{display}}") }
}
GROUP BY ?lexeme ?sub ?category`

const scriptQuery = `SELECT ?lexeme ?sub ?category
  (SAMPLE(?categoryLabel) AS ?categoryLabel)
  (SAMPLE(?lemma) AS ?lemma)
  ("" AS ?gloss)
  (GROUP_CONCAT(DISTINCT STR(?image); separator="|") AS ?images)
WHERE {
  ?sub dct:language wd:{{language}} ;
       wikibase:lexicalCategory ?category ;
       wikibase:lemma ?lemma .
  BIND(?sub AS ?lexeme)
  {{select}}
  OPTIONAL { ?sub ontolex:sense/wdt:P18 ?image . }
  OPTIONAL { ?category rdfs:label ?categoryLabel . FILTER(LANG(?categoryLabel) = "{{display}}") }
}
GROUP BY ?lexeme ?sub ?category`

const hyphenationQuery = `SELECT ?lexeme ?sub ?category
  (SAMPLE(?categoryLabel) AS ?categoryLabel)
  (SAMPLE(?lemma) AS ?lemma)
  (SAMPLE(?representation) AS ?gloss)
  (GROUP_CONCAT(DISTINCT STR(?image); separator="|") AS ?images)
WHERE {
  ?lexeme dct:language wd:{{language}} ;
          wikibase:lexicalCategory ?category ;
          wikibase:lemma ?lemma ;
          ontolex:lexicalForm ?sub .
  ?sub ontolex:representation ?representation .
  {{select}}
  OPTIONAL { ?lexeme ontolex:sense/wdt:P18 ?image . }
  OPTIONAL { ?category rdfs:label ?categoryLabel . FILTER(LANG(?categoryLabel) = "{{display}}") }
}
GROUP BY ?lexeme ?sub ?category`

// Filters that keep only work still to be done.
var openWorkFilters = map[entities.ActivityKind]string{
	entities.ActivityConnect:     `FILTER NOT EXISTS { ?sub wdt:P5137 ?linked . }`,
	entities.ActivityScript:      `FILTER NOT EXISTS { ?sub wikibase:lemma ?variant . FILTER(LANG(?variant) = "{{code}}") }`,
	entities.ActivityHyphenation: `FILTER NOT EXISTS { ?sub wdt:P5279 ?hyphenation . }`,
}

var queryTemplates = map[entities.ActivityKind]string{
	entities.ActivityConnect:     connectQuery,
	entities.ActivityScript:      scriptQuery,
	entities.ActivityHyphenation: hyphenationQuery,
}

// FetchCandidates returns one randomized batch of open work, skipping
// ExcludeIDs. The order is stable for one seed so a batch reads consistently.
func (c *Client) FetchCandidates(ctx context.Context, query ports.CandidateQuery) ([]entities.Candidate, error) {
	filter, ok := openWorkFilters[query.Activity]
	if !ok {
		return nil, fmt.Errorf("unsupported activity %q", query.Activity)
	}
	excluded, err := entityList(query.ExcludeIDs)
	if err != nil {
		return nil, err
	}
	if excluded != "" {
		filter += "\n  FILTER(?sub NOT IN (" + excluded + "))"
	}
	limit := query.Limit
	if limit <= 0 {
		limit = 10
	}

	text, err := renderQuery(query.Activity, query.LanguageQID, contributionCode(query.LanguageCode, query.VariantCode), query.DisplayLanguage, filter)
	if err != nil {
		return nil, err
	}
	text += fmt.Sprintf("\nORDER BY MD5(CONCAT(STR(?sub), %s))\nLIMIT %d", strconv.Quote(c.seed()), limit)

	result, err := c.sparql(ctx, text)
	if err != nil {
		return nil, err
	}
	return parseCandidates(result), nil
}

// FetchByIDs re-reads known sub-identifiers regardless of whether their work
// is still open.
func (c *Client) FetchByIDs(ctx context.Context, query ports.LookupQuery) ([]entities.Candidate, error) {
	if len(query.IncludeIDs) == 0 {
		return nil, nil
	}
	if _, ok := queryTemplates[query.Activity]; !ok {
		return nil, fmt.Errorf("unsupported activity %q", query.Activity)
	}
	included, err := entityList(query.IncludeIDs)
	if err != nil {
		return nil, err
	}
	values := "VALUES ?sub { " + strings.ReplaceAll(included, ", ", " ") + " }"

	text, err := renderQuery(query.Activity, query.LanguageQID, contributionCode(query.LanguageCode, query.VariantCode), query.DisplayLanguage, values)
	if err != nil {
		return nil, err
	}
	result, err := c.sparql(ctx, text)
	if err != nil {
		return nil, err
	}
	return parseCandidates(result), nil
}

func renderQuery(activity entities.ActivityKind, languageQID string, code string, display string, selection string) (string, error) {
	template, ok := queryTemplates[activity]
	if !ok {
		return "", fmt.Errorf("unsupported activity %q", activity)
	}
	if !entityIDPattern.MatchString(languageQID) {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, languageQID)
	}
	if display == "" {
		display = entities.DefaultDisplayLanguage
	}
	for _, value := range []string{code, display} {
		if !languageCodePattern.MatchString(value) {
			return "", fmt.Errorf("%w: language code %q", ErrInvalidID, value)
		}
	}
	replacer := strings.NewReplacer(
		"{{select}}", selection,
		"{{language}}", languageQID,
		"{{code}}", code,
		"{{display}}", display,
	)
	// selection may itself carry {{code}}.
	return replacer.Replace(replacer.Replace(template)), nil
}

func contributionCode(languageCode string, variantCode string) string {
	if variantCode != "" {
		return variantCode
	}
	return languageCode
}

func entityList(ids []string) (string, error) {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		if !entityIDPattern.MatchString(id) {
			return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
		}
		parts = append(parts, "wd:"+id)
	}
	return strings.Join(parts, ", "), nil
}

func parseCandidates(result gjson.Result) []entities.Candidate {
	var candidates []entities.Candidate
	result.Get("results.bindings").ForEach(func(_, binding gjson.Result) bool {
		lexemeID := entityIDFromURI(binding.Get("lexeme.value").String())
		subID := entityIDFromURI(binding.Get("sub.value").String())
		if lexemeID == "" || subID == "" {
			return true
		}
		candidate := entities.Candidate{
			LexemeID:      lexemeID,
			CategoryQID:   entityIDFromURI(binding.Get("category.value").String()),
			CategoryLabel: binding.Get("categoryLabel.value").String(),
			Lemma:         binding.Get("lemma.value").String(),
			Gloss:         binding.Get("gloss.value").String(),
			Images:        splitImages(binding.Get("images.value").String()),
		}
		switch {
		case strings.Contains(subID, "-S"):
			candidate.SenseID = subID
		case strings.Contains(subID, "-F"):
			candidate.FormID = subID
		}
		candidates = append(candidates, candidate)
		return true
	})
	return candidates
}

func entityIDFromURI(uri string) string {
	if uri == "" {
		return ""
	}
	id := uri[strings.LastIndex(uri, "/")+1:]
	if !entityIDPattern.MatchString(id) {
		return ""
	}
	return id
}

func splitImages(raw string) []string {
	var images []string
	for _, image := range strings.Split(raw, "|") {
		image = strings.TrimSpace(image)
		if image != "" {
			images = append(images, image)
		}
	}
	return images
}
