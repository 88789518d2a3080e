package consultation

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// HandoffStatus is the outcome the history stage hands to the decision stage
type HandoffStatus string

const (
	// StatusEmergency means a red flag was found and the patient must be escalated immediately
	StatusEmergency HandoffStatus = "EMERGENCY"

	// StatusComplete means all required history was gathered
	StatusComplete HandoffStatus = "COMPLETE"

	// StatusIncomplete means history gathering ended without the required information
	StatusIncomplete HandoffStatus = "INCOMPLETE"
)

// ParseHandoffStatus converts a raw status string into a HandoffStatus
func ParseHandoffStatus(raw string) (HandoffStatus, error) {
	switch HandoffStatus(strings.ToUpper(strings.TrimSpace(raw))) {
	case StatusEmergency:
		return StatusEmergency, nil
	case StatusComplete:
		return StatusComplete, nil
	case StatusIncomplete:
		return StatusIncomplete, nil
	default:
		return "", fmt.Errorf("unknown handoff status %q", raw)
	}
}

// Trend describes how a symptom has changed since it started
type Trend string

const (
	TrendBetter Trend = "better"
	TrendWorse  Trend = "worse"
	TrendStable Trend = "stable"
)

// ParseTrend converts a raw trend string into a Trend. An empty value is treated as stable
func ParseTrend(raw string) (Trend, error) {
	switch Trend(strings.ToLower(strings.TrimSpace(raw))) {
	case TrendBetter:
		return TrendBetter, nil
	case TrendWorse:
		return TrendWorse, nil
	case TrendStable, "":
		return TrendStable, nil
	default:
		return "", fmt.Errorf("unknown trend %q", raw)
	}
}

// CoerceTrend maps free text such as "improving" or "getting worse" onto a Trend. Anything
// it cannot place is stable. ok is false when the value was not one of the closed values.
func CoerceTrend(raw string) (trend Trend, ok bool) {
	if t, err := ParseTrend(raw); err == nil {
		return t, true
	}

	lower := strings.ToLower(raw)
	switch {
	case containsAny(lower, "wors", "deteriorat", "increas", "escalat", "spreading"):
		return TrendWorse, false
	case containsAny(lower, "better", "improv", "resolv", "decreas", "easing", "subsid"):
		return TrendBetter, false
	default:
		return TrendStable, false
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

const (
	// MinSeverity and MaxSeverity bound the 1-10 discomfort scale
	MinSeverity = 1
	MaxSeverity = 10

	// DefaultSeverity is used whenever the severity could not be established
	DefaultSeverity = 5

	// ComplaintExcerptLength is the maximum length of a complaint copied into a synthesized record
	ComplaintExcerptLength = 100
)

// Timeline holds when a symptom started and where it is heading
type Timeline struct {
	Started string `json:"started"`
	Trend   Trend  `json:"trend"`
}

// RedFlags lists the emergency indicators found and excluded during history taking
type RedFlags struct {
	Present  []string `json:"present"`
	RuledOut []string `json:"ruled_out"`
}

// Record is the structured handoff payload passed from the history stage downstream
type Record struct {
	HandoffStatus      HandoffStatus     `json:"handoff_status"`
	ExchangeCount      int               `json:"exchange_count"`
	ChiefComplaint     string            `json:"chief_complaint"`
	Severity           int               `json:"severity"`
	Timeline           Timeline          `json:"timeline"`
	SymptomDetails     map[string]string `json:"symptom_details"`
	AssociatedSymptoms []string          `json:"associated_symptoms"`
	RedFlags           RedFlags          `json:"red_flags"`
	PatientConcern     string            `json:"patient_concern"`
	RelevantHistory    string            `json:"relevant_history"`
}

// IsEmergency reports whether the record demands immediate escalation
func (r *Record) IsEmergency() bool {
	return r != nil && r.HandoffStatus == StatusEmergency
}

// ApplyRedFlags adds every detected flag missing from the record and forces an emergency
// status when any were detected. Flags are only ever added, never removed.
func (r *Record) ApplyRedFlags(detected []string) bool {
	if len(detected) == 0 {
		return false
	}

	changed := false
	for _, flag := range detected {
		if !slices.Contains(r.RedFlags.Present, flag) {
			r.RedFlags.Present = append(r.RedFlags.Present, flag)
			changed = true
		}
	}

	if r.HandoffStatus != StatusEmergency {
		r.HandoffStatus = StatusEmergency
		changed = true
	}

	return changed
}

// Clone returns a deep copy of the record
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}

	out := *r
	out.SymptomDetails = maps.Clone(r.SymptomDetails)
	out.AssociatedSymptoms = slices.Clone(r.AssociatedSymptoms)
	out.RedFlags.Present = slices.Clone(r.RedFlags.Present)
	out.RedFlags.RuledOut = slices.Clone(r.RedFlags.RuledOut)
	return &out
}

// JSON renders the record as indented JSON for prompts and logs
func (r *Record) JSON() string {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

// normalize fills nil collections so the record always serializes to the full schema
func (r *Record) normalize() {
	if r.SymptomDetails == nil {
		r.SymptomDetails = map[string]string{}
	}
	if r.AssociatedSymptoms == nil {
		r.AssociatedSymptoms = []string{}
	}
	if r.RedFlags.Present == nil {
		r.RedFlags.Present = []string{}
	}
	if r.RedFlags.RuledOut == nil {
		r.RedFlags.RuledOut = []string{}
	}
	if r.Timeline.Trend == "" {
		r.Timeline.Trend = TrendStable
	}
}

// Excerpt truncates text to at most n characters (runes)
func Excerpt(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}

// NewRecoveredRecord builds the minimal record used when generator output could not be decoded
func NewRecoveredRecord(exchange int, rawText string, detected []string) *Record {
	r := &Record{
		HandoffStatus:  StatusIncomplete,
		ExchangeCount:  exchange,
		ChiefComplaint: Excerpt(rawText, ComplaintExcerptLength),
		Severity:       DefaultSeverity,
		PatientConcern: "Unable to parse complete history",
		RedFlags: RedFlags{
			Present: slices.Clone(detected),
		},
	}
	r.normalize()
	return r
}

// NewForcedRecord builds the record used when the exchange ceiling is reached without a handoff
func NewForcedRecord(exchange int, complaint string) *Record {
	r := &Record{
		HandoffStatus:  StatusIncomplete,
		ExchangeCount:  exchange,
		ChiefComplaint: Excerpt(complaint, ComplaintExcerptLength),
		Severity:       DefaultSeverity,
		Timeline: Timeline{
			Started: "unknown",
			Trend:   TrendStable,
		},
		PatientConcern: "Unable to complete assessment",
	}
	r.normalize()
	return r
}
