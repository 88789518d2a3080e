package consultation

import (
	"context"
	"time"
)

// LogEntry is what gets persisted for one completed consultation
type LogEntry struct {
	ID          string
	Timestamp   time.Time
	Record      *Record
	Transcript  []Entry
	FinalText   string
	IsEmergency bool
}

// Summary is the short form of a logged consultation shown in history views
type Summary struct {
	ID             string        `json:"id"`
	Timestamp      time.Time     `json:"timestamp"`
	ChiefComplaint string        `json:"chief_complaint"`
	Severity       int           `json:"severity"`
	Status         HandoffStatus `json:"status"`
	IsEmergency    bool          `json:"is_emergency"`
}

// Summary returns the history view of the entry
func (e *LogEntry) Summary() Summary {
	s := Summary{
		ID:          e.ID,
		Timestamp:   e.Timestamp,
		IsEmergency: e.IsEmergency,
	}
	if e.Record != nil {
		s.ChiefComplaint = e.Record.ChiefComplaint
		s.Severity = e.Record.Severity
		s.Status = e.Record.HandoffStatus
	}
	return s
}

// Logger receives every completed consultation. Implementations append; they never rewrite.
type Logger interface {
	LogConsultation(ctx context.Context, entry *LogEntry) error
}

// HistoryReader lists past consultations. ListRecent returns at most limit summaries,
// oldest first; a limit of zero or less returns everything.
type HistoryReader interface {
	ListRecent(ctx context.Context, limit int) ([]Summary, error)
}

// Store is both sides of the consultation log
type Store interface {
	Logger
	HistoryReader
	Close() error
}

// RenderLines formats transcript entries as "Speaker: text" lines
func RenderLines(entries []Entry) []string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, e.Speaker.Label()+": "+e.Text)
	}
	return lines
}
