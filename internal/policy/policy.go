// Package policy holds the clinical wording and escalation rules that feed the stage prompts
package policy

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/jkim999/primary-care-consultant/pkg/redflag"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Question is one of the questions history taking must cover
type Question struct {
	Field    string `yaml:"field"`
	Question string `yaml:"question"`
}

// Timeframe maps an urgency level to the action the patient should take
type Timeframe struct {
	Level  string `yaml:"level"`
	Action string `yaml:"action"`
}

// Replacement swaps one phrase for a plainer or kinder one
type Replacement struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Empathy is an opener suited to a patient's situation
type Empathy struct {
	Situation string `yaml:"situation"`
	Phrase    string `yaml:"phrase"`
}

// SelfCare lists home-care steps for a minor condition
type SelfCare struct {
	Condition string   `yaml:"condition"`
	Steps     []string `yaml:"steps"`
}

// Policy is the full clinical policy
type Policy struct {
	ConservativeMode     bool               `yaml:"conservative_mode"`
	MaxResponseWords     int                `yaml:"max_response_words"`
	RequiredPhrases      []string           `yaml:"required_phrases"`
	RequiredQuestions    []Question         `yaml:"required_questions"`
	EscalationTimeframes []Timeframe        `yaml:"escalation_timeframes"`
	Replacements         []Replacement      `yaml:"replacements"`
	EmpathyPhrases       []Empathy          `yaml:"empathy_phrases"`
	SelfCare             []SelfCare         `yaml:"self_care"`
	RedFlags             []redflag.Category `yaml:"red_flags"`
}

// Default returns the embedded policy
func Default() *Policy {
	p, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("policy: embedded default is invalid: %v", err))
	}
	return p
}

// Parse decodes and validates a policy document
func Parse(data []byte) (*Policy, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("policy: document is empty")
	}

	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("policy: decode: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	return &p, nil
}

// Load reads a policy file. An empty path returns the embedded default.
func Load(path string) (*Policy, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policy: read %s: %w", path, err)
	}

	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("policy: %s: %w", path, err)
	}
	return p, nil
}

// Validate checks the fields every stage relies on
func (p *Policy) Validate() error {
	if len(p.RequiredPhrases) == 0 {
		return fmt.Errorf("policy: required_phrases must not be empty")
	}
	for i, phrase := range p.RequiredPhrases {
		if strings.TrimSpace(phrase) == "" {
			return fmt.Errorf("policy: required_phrases[%d] is blank", i)
		}
	}
	if len(p.RequiredQuestions) == 0 {
		return fmt.Errorf("policy: required_questions must not be empty")
	}
	for _, t := range p.EscalationTimeframes {
		if t.Level == "" || t.Action == "" {
			return fmt.Errorf("policy: escalation timeframe needs level and action")
		}
	}
	if p.MaxResponseWords < 0 {
		return fmt.Errorf("policy: max_response_words must not be negative")
	}
	return nil
}

// Detector builds a red flag detector from the policy, falling back to the built-in list
func (p *Policy) Detector() *redflag.Detector {
	if len(p.RedFlags) == 0 {
		return redflag.Default()
	}
	return redflag.New(p.RedFlags)
}

// Timeframe returns the action for an urgency level
func (p *Policy) Timeframe(level string) (string, bool) {
	for _, t := range p.EscalationTimeframes {
		if t.Level == level {
			return t.Action, true
		}
	}
	return "", false
}

// SelfCareFor returns the self-care steps for a condition
func (p *Policy) SelfCareFor(condition string) []string {
	for _, s := range p.SelfCare {
		if s.Condition == condition {
			return s.Steps
		}
	}
	return nil
}
