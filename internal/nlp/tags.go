package nlp

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/jdkato/prose/v2"
)

// MaxTags caps the number of tags generated for one document
const MaxTags = 5

// EntityExtractor finds named entities (people, places, organisations) in text
type EntityExtractor interface {
	Entities(text string) ([]string, error)
}

// ProseEntities implements EntityExtractor with prose's averaged perceptron NER
type ProseEntities struct{}

// Entities returns entity texts in order of appearance
func (ProseEntities) Entities(text string) ([]string, error) {
	doc, err := prose.NewDocument(text, prose.WithSegmentation(false))
	if err != nil {
		return nil, fmt.Errorf("analyzing text: %w", err)
	}
	ents := doc.Entities()
	out := make([]string, 0, len(ents))
	for _, ent := range ents {
		out = append(out, ent.Text)
	}
	return out, nil
}

type keywordRule struct {
	tag     string
	pattern *regexp.Regexp
}

// keywordRules map trigger words onto canonical tags. "id" must stand alone
// so that words such as "paid" do not trigger it.
var keywordRules = []keywordRule{
	{tag: "invoice", pattern: regexp.MustCompile(`invoice|bill`)},
	{tag: "receipt", pattern: regexp.MustCompile(`receipt`)},
	{tag: "contract", pattern: regexp.MustCompile(`contract|agreement`)},
	{tag: "identification", pattern: regexp.MustCompile(`\bid\b|passport|license`)},
}

// Tagger derives up to MaxTags tags from keyword triggers and named entities
type Tagger struct {
	entities EntityExtractor
}

// NewTagger creates a Tagger. A nil extractor disables entity tags.
func NewTagger(entities EntityExtractor) *Tagger {
	return &Tagger{entities: entities}
}

// Tags returns keyword tags first, then lower-cased entities longer than one
// character, without duplicates and capped at MaxTags
func (t *Tagger) Tags(text string) []string {
	tags := make([]string, 0, MaxTags)
	seen := make(map[string]struct{})
	add := func(tag string) {
		if len(tags) == MaxTags {
			return
		}
		if _, ok := seen[tag]; ok {
			return
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}

	lower := strings.ToLower(text)
	for _, rule := range keywordRules {
		if rule.pattern.MatchString(lower) {
			add(rule.tag)
		}
	}

	if t.entities == nil || strings.TrimSpace(text) == "" {
		return tags
	}
	entities, err := t.entities.Entities(text)
	if err != nil {
		slog.Warn("Failed to extract entities", "error", err)
		return tags
	}
	for _, entity := range entities {
		entity = strings.ToLower(strings.TrimSpace(entity))
		if utf8.RuneCountInString(entity) > 1 {
			add(entity)
		}
	}
	return tags
}
