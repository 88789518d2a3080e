// Package redflag detects emergency symptoms in patient text independently of any generator
package redflag

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// Category groups red flag phrases by clinical area
type Category struct {
	Name    string   `json:"name" yaml:"name"`
	Phrases []string `json:"phrases" yaml:"phrases"`
}

// DefaultCategories is the built-in red flag list
var DefaultCategories = []Category{
	{Name: "cardiac", Phrases: []string{
		"chest pain", "chest pressure", "chest tightness", "heart attack",
		"irregular heartbeat", "rapid heartbeat",
	}},
	{Name: "respiratory", Phrases: []string{
		"difficulty breathing", "shortness of breath", "can't breathe",
		"choking", "severe wheezing",
	}},
	{Name: "neurological", Phrases: []string{
		"severe headache", "worst headache", "sudden severe headache",
		"confusion", "slurred speech", "one-sided weakness",
		"seizure", "loss of consciousness", "fainting",
		"vision loss", "double vision",
	}},
	{Name: "bleeding", Phrases: []string{
		"heavy bleeding", "uncontrolled bleeding", "vomiting blood",
		"blood in stool", "coughing blood",
	}},
	{Name: "mental_health", Phrases: []string{
		"suicidal", "suicide", "want to die", "harm myself",
		"harm others", "homicidal",
	}},
	{Name: "severe_pain", Phrases: []string{
		"severe pain", "unbearable pain", "10 out of 10 pain",
		"8 out of 10 pain", "9 out of 10 pain",
	}},
	{Name: "other", Phrases: []string{
		"overdose", "poisoning", "severe allergic reaction",
		"anaphylaxis", "severe burn", "severe injury",
	}},
}

// SeverityCategory is the category reported for labels synthesized from the pain scale pattern
const SeverityCategory = "severe_pain"

// severityPattern matches a standalone 8, 9 or 10 with an optional "/10" or "out of 10"
var severityPattern = regexp.MustCompile(`\b([89]|10)\s*(?:/10|out of 10)?\b`)

// Detector matches a fixed phrase list plus the severity pattern
type Detector struct {
	phrases    []string
	categoryOf map[string]string
}

// New creates a detector over the given categories. Phrases are matched case-insensitively
// in category order; duplicates are ignored.
func New(categories []Category) *Detector {
	d := &Detector{categoryOf: make(map[string]string)}

	for _, c := range categories {
		for _, p := range c.Phrases {
			p = strings.ToLower(strings.TrimSpace(p))
			if p == "" {
				continue
			}
			if _, seen := d.categoryOf[p]; seen {
				continue
			}
			d.phrases = append(d.phrases, p)
			d.categoryOf[p] = c.Name
		}
	}

	return d
}

// Default creates a detector over DefaultCategories
func Default() *Detector {
	return New(DefaultCategories)
}

// Phrases returns the configured phrases in match order
func (d *Detector) Phrases() []string {
	return slices.Clone(d.phrases)
}

// Detect returns the labels of every red flag found in text, in a stable order. It never fails.
func (d *Detector) Detect(text string) []string {
	lower := strings.ToLower(text)

	var found []string
	for _, p := range d.phrases {
		if strings.Contains(lower, p) {
			found = append(found, p)
		}
	}

	// a denominator counts too, "3/10" flags as 10
	if match := severityPattern.FindString(lower); match != "" {
		found = append(found, SeverityLabel(match))
	}

	return found
}

// SeverityLabel is the label synthesized for a pain-scale match
func SeverityLabel(match string) string {
	return fmt.Sprintf("severe pain (%s)", match)
}

// Categories groups labels by category name. Synthesized severity labels are reported under
// SeverityCategory and unknown labels under "other".
func (d *Detector) Categories(labels []string) map[string][]string {
	out := make(map[string][]string)
	for _, label := range labels {
		name, ok := d.categoryOf[label]
		switch {
		case ok:
		case strings.HasPrefix(label, "severe pain ("):
			name = SeverityCategory
		default:
			name = "other"
		}
		out[name] = append(out[name], label)
	}
	return out
}
