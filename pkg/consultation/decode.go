package consultation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode"
)

// wireRecord mirrors the handoff JSON schema loosely so generator quirks can be validated
// at the boundary instead of failing the whole decode
type wireRecord struct {
	HandoffStatus      string         `json:"handoff_status"`
	ExchangeCount      looseInt       `json:"exchange_count"`
	ChiefComplaint     string         `json:"chief_complaint"`
	Severity           looseInt       `json:"severity"`
	Timeline           wireTimeline   `json:"timeline"`
	SymptomDetails     map[string]any `json:"symptom_details"`
	AssociatedSymptoms []any          `json:"associated_symptoms"`
	RedFlags           wireRedFlags   `json:"red_flags"`
	PatientConcern     string         `json:"patient_concern"`
	RelevantHistory    string         `json:"relevant_history"`
}

type wireTimeline struct {
	Started string `json:"started"`
	Trend   string `json:"trend"`
}

type wireRedFlags struct {
	Present  []string `json:"present"`
	RuledOut []string `json:"ruled_out"`
}

// looseInt accepts JSON numbers as well as strings such as "7" or "7/10"
type looseInt struct {
	value int
	set   bool
}

func (l *looseInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		// clamp first: converting an out of range float to int is platform dependent
		l.value, l.set = int(math.Round(min(max(f, math.MinInt32), math.MaxInt32))), true
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// Objects and arrays are left unset rather than failing the record
		return nil
	}

	digits := strings.TrimLeftFunc(s, func(r rune) bool { return !unicode.IsDigit(r) })
	end := strings.IndexFunc(digits, func(r rune) bool { return !unicode.IsDigit(r) })
	if end >= 0 {
		digits = digits[:end]
	}
	if n, err := strconv.Atoi(digits); err == nil {
		l.value, l.set = n, true
	}
	return nil
}

// DecodeRecord decodes and validates a handoff JSON object. The exchange argument is the
// exchange the handoff happened on and always wins over the generator's own count.
// Fields that had to be coerced into the schema are described in the returned notes.
func DecodeRecord(data []byte, exchange int) (*Record, []string, error) {
	var wire wireRecord
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, nil, fmt.Errorf("decode handoff record: %w", err)
	}

	status, err := ParseHandoffStatus(wire.HandoffStatus)
	if err != nil {
		return nil, nil, fmt.Errorf("decode handoff record: %w", err)
	}

	var notes []string
	trend, ok := CoerceTrend(wire.Timeline.Trend)
	if !ok {
		notes = append(notes, fmt.Sprintf("trend %q read as %s", wire.Timeline.Trend, trend))
	}

	severity := DefaultSeverity
	if wire.Severity.set {
		severity = min(max(wire.Severity.value, MinSeverity), MaxSeverity)
	}

	record := &Record{
		HandoffStatus:      status,
		ExchangeCount:      exchange,
		ChiefComplaint:     strings.TrimSpace(wire.ChiefComplaint),
		Severity:           severity,
		Timeline:           Timeline{Started: strings.TrimSpace(wire.Timeline.Started), Trend: trend},
		SymptomDetails:     stringifyDetails(wire.SymptomDetails),
		AssociatedSymptoms: uniqueStrings(wire.AssociatedSymptoms),
		RedFlags: RedFlags{
			Present:  compact(wire.RedFlags.Present),
			RuledOut: compact(wire.RedFlags.RuledOut),
		},
		PatientConcern:  strings.TrimSpace(wire.PatientConcern),
		RelevantHistory: strings.TrimSpace(wire.RelevantHistory),
	}
	record.normalize()

	return record, notes, nil
}

// stringifyDetails flattens free-form detail values into text
func stringifyDetails(in map[string]any) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			out[k] = val
		default:
			b, err := json.Marshal(val)
			if err != nil {
				out[k] = fmt.Sprint(val)
				continue
			}
			out[k] = string(b)
		}
	}
	return out
}

// uniqueStrings converts a JSON array into a deduplicated list of non-empty strings
func uniqueStrings(in []any) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == nil {
			continue
		}
		s := strings.TrimSpace(fmt.Sprint(v))
		if s == "" || slices.Contains(out, s) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// compact trims entries and drops empty ones while keeping order
func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
