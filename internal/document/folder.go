package document

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// RuleKind names the comparison a FilterRule performs
type RuleKind string

const (
	RuleContains   RuleKind = "contains"
	RuleStartsWith RuleKind = "starts_with"
	RuleEndsWith   RuleKind = "ends_with"
	RuleHasAmount  RuleKind = "has_amount"
	RuleHasDate    RuleKind = "has_date"
)

// FilterRule is one condition of a smart folder. Value is ignored by
// RuleHasAmount and RuleHasDate.
type FilterRule struct {
	Kind  RuleKind `json:"kind"`
	Value string   `json:"value,omitempty"`
}

// Contains builds a RuleContains rule
func Contains(value string) FilterRule { return FilterRule{Kind: RuleContains, Value: value} }

// StartsWith builds a RuleStartsWith rule
func StartsWith(value string) FilterRule { return FilterRule{Kind: RuleStartsWith, Value: value} }

// EndsWith builds a RuleEndsWith rule
func EndsWith(value string) FilterRule { return FilterRule{Kind: RuleEndsWith, Value: value} }

// HasAmount builds a RuleHasAmount rule
func HasAmount() FilterRule { return FilterRule{Kind: RuleHasAmount} }

// HasDate builds a RuleHasDate rule
func HasDate() FilterRule { return FilterRule{Kind: RuleHasDate} }

// Validate checks that the rule kind is known
func (r FilterRule) Validate() error {
	switch r.Kind {
	case RuleContains, RuleStartsWith, RuleEndsWith, RuleHasAmount, RuleHasDate:
		return nil
	default:
		return fmt.Errorf("unknown rule kind: %q", r.Kind)
	}
}

// Matches evaluates the rule against doc, ignoring case
func (r FilterRule) Matches(doc *Document) bool {
	text := strings.ToLower(doc.Text)
	value := strings.ToLower(r.Value)
	switch r.Kind {
	case RuleContains:
		return strings.Contains(text, value)
	case RuleStartsWith:
		return strings.HasPrefix(strings.TrimSpace(text), value)
	case RuleEndsWith:
		return strings.HasSuffix(strings.TrimSpace(text), value)
	case RuleHasAmount:
		return doc.Fields.HasTotal()
	case RuleHasDate:
		return doc.Fields.HasDate()
	default:
		return false
	}
}

// SmartFolder is a named set of rules that must all match
type SmartFolder struct {
	ID    string       `json:"id"`
	Name  string       `json:"name"`
	Icon  string       `json:"icon"`
	Color string       `json:"color"`
	Rules []FilterRule `json:"rules"`
}

// NewSmartFolder creates a folder with a fresh id
func NewSmartFolder(name, icon, color string, rules ...FilterRule) (*SmartFolder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("folder name is required")
	}
	for _, rule := range rules {
		if err := rule.Validate(); err != nil {
			return nil, err
		}
	}
	if rules == nil {
		rules = []FilterRule{}
	}
	return &SmartFolder{
		ID:    uuid.NewString(),
		Name:  name,
		Icon:  icon,
		Color: color,
		Rules: rules,
	}, nil
}

// Matches reports whether doc satisfies every rule. A folder without rules
// matches everything.
func (f *SmartFolder) Matches(doc *Document) bool {
	for _, rule := range f.Rules {
		if !rule.Matches(doc) {
			return false
		}
	}
	return true
}

// MatchingFolders returns the folders doc belongs to
func MatchingFolders(folders []SmartFolder, doc *Document) []SmartFolder {
	var out []SmartFolder
	for i := range folders {
		if folders[i].Matches(doc) {
			out = append(out, folders[i])
		}
	}
	return out
}
