package history

import (
	"errors"
	"strings"

	"github.com/jkim999/primary-care-consultant/pkg/consultation"
)

// HandoffMarker precedes the JSON record when the generator decides history taking is done
const HandoffMarker = "JSON_HANDOFF:"

// Outcome says what ParseHandoff found in a generator reply
type Outcome int

const (
	// OutcomeQuestion means the reply is a follow-up question
	OutcomeQuestion Outcome = iota

	// OutcomeHandoff means the reply carried a record that decoded cleanly
	OutcomeHandoff

	// OutcomeRecovered means the reply had the marker but the record could not be decoded,
	// so a minimal INCOMPLETE record was synthesized
	OutcomeRecovered
)

func (o Outcome) String() string {
	switch o {
	case OutcomeQuestion:
		return "question"
	case OutcomeHandoff:
		return "handoff"
	case OutcomeRecovered:
		return "recovered"
	default:
		return "unknown"
	}
}

// HandoffResult holds exactly one of Question or Record
type HandoffResult struct {
	Outcome  Outcome
	Question string
	Record   *consultation.Record

	// DecodeErr is why decoding failed, set only for OutcomeRecovered
	DecodeErr error

	// Notes lists fields coerced into the schema, ex: a trend of "improving"
	Notes []string
}

// HasRecord reports whether the result ends history taking
func (r HandoffResult) HasRecord() bool {
	return r.Record != nil
}

var errNoObject = errors.New("no JSON object after handoff marker")

// ParseHandoff interprets one generator reply. It never fails: malformed records
// become OutcomeRecovered. Detected red flags are merged into any record and force EMERGENCY.
//
// The record is located by taking the first '{' and the last '}' in the whole reply, so stray
// braces in surrounding prose can mis-locate it; that case lands in OutcomeRecovered.
func ParseHandoff(output string, exchange int, detected []string, rawPatientText string) HandoffResult {
	if !strings.Contains(output, HandoffMarker) {
		return HandoffResult{
			Outcome:  OutcomeQuestion,
			Question: strings.TrimSpace(output),
		}
	}

	record, notes, err := decodeSpan(output, exchange)
	if err != nil {
		record = consultation.NewRecoveredRecord(exchange, rawPatientText, detected)
		record.ApplyRedFlags(detected)
		return HandoffResult{
			Outcome:   OutcomeRecovered,
			Record:    record,
			DecodeErr: err,
		}
	}

	if strings.TrimSpace(record.ChiefComplaint) == "" {
		record.ChiefComplaint = consultation.Excerpt(strings.TrimSpace(rawPatientText), consultation.ComplaintExcerptLength)
	}
	record.ApplyRedFlags(detected)

	return HandoffResult{
		Outcome: OutcomeHandoff,
		Record:  record,
		Notes:   notes,
	}
}

func decodeSpan(output string, exchange int) (*consultation.Record, []string, error) {
	start := strings.Index(output, "{")
	end := strings.LastIndex(output, "}")
	if start < 0 || end < start {
		return nil, nil, errNoObject
	}
	return consultation.DecodeRecord([]byte(output[start:end+1]), exchange)
}
