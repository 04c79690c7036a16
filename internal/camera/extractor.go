package camera

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var rulesYAML []byte

// Rule maps keyword phrases to a fixed intent. Axis values are constants
// chosen per rule, never scaled by adjective intensity.
type Rule struct {
	Phrases []string `yaml:"phrases"`
	Intent  Intent   `yaml:"intent"`
}

type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// Extractor infers camera intents from prompt text using an ordered rule
// table. The table itself is data (rules.yaml) so the precedence order stays
// test-visible instead of buried in control flow.
type Extractor struct {
	rules []Rule
}

// NewExtractor parses the embedded rule table. Rules are validated at
// construction so a malformed table fails fast rather than at inference time.
func NewExtractor() (*Extractor, error) {
	var f ruleFile
	if err := yaml.Unmarshal(rulesYAML, &f); err != nil {
		return nil, fmt.Errorf("camera: parse rules: %w", err)
	}
	if len(f.Rules) == 0 {
		return nil, fmt.Errorf("camera: empty rule table")
	}
	for idx, r := range f.Rules {
		if len(r.Phrases) == 0 {
			return nil, fmt.Errorf("camera: rule %d has no phrases", idx)
		}
		if err := r.Intent.Clamp().Validate(); err != nil {
			return nil, fmt.Errorf("camera: rule %d: %w", idx, err)
		}
	}
	return &Extractor{rules: f.Rules}, nil
}

// Rules exposes the table for inspection and tests.
func (e *Extractor) Rules() []Rule {
	return e.rules
}

// Infer returns the intent of the first matching rule, clamped, or nil when
// no rule matches (the provider then infers motion itself). Evaluation stops
// at the first match; multiple matches are never blended.
func (e *Extractor) Infer(prompt string) *Intent {
	text := strings.ToLower(prompt)
	for _, rule := range e.rules {
		for _, phrase := range rule.Phrases {
			if strings.Contains(text, phrase) {
				intent := rule.Intent.Clamp()
				return &intent
			}
		}
	}
	return nil
}
