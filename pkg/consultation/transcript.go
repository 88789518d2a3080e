package consultation

import (
	"slices"
	"strings"
	"time"
)

// Speaker identifies who produced a transcript entry
type Speaker string

const (
	SpeakerPatient   Speaker = "patient"
	SpeakerAssistant Speaker = "assistant"
)

// Label returns the display label used when rendering the transcript for the generator
func (s Speaker) Label() string {
	switch s {
	case SpeakerPatient:
		return "Patient"
	case SpeakerAssistant:
		return "Assistant"
	default:
		return string(s)
	}
}

// Entry is a single turn in the transcript
type Entry struct {
	Speaker Speaker   `json:"speaker"`
	Text    string    `json:"text"`
	At      time.Time `json:"at"`
}

// TranscriptView is the read-only side of a transcript handed to downstream stages
type TranscriptView interface {
	Entries() []Entry
	Len() int
	Render() string
}

// Transcript is the ordered conversation of one consultation. It is not safe for concurrent
// use; each consultation owns exactly one.
type Transcript struct {
	entries []Entry
	now     func() time.Time
}

// NewTranscript creates an empty transcript
func NewTranscript() *Transcript {
	return &Transcript{now: time.Now}
}

// Append adds a turn to the end of the transcript
func (t *Transcript) Append(speaker Speaker, text string) {
	now := t.now
	if now == nil {
		now = time.Now
	}
	t.entries = append(t.entries, Entry{
		Speaker: speaker,
		Text:    text,
		At:      now().UTC(),
	})
}

// Reset clears the transcript for a new consultation
func (t *Transcript) Reset() {
	t.entries = nil
}

// Entries returns a copy of all turns
func (t *Transcript) Entries() []Entry {
	return slices.Clone(t.entries)
}

// Len returns the number of turns
func (t *Transcript) Len() int {
	return len(t.entries)
}

// Render formats the transcript as "Speaker: text" lines
func (t *Transcript) Render() string {
	return renderEntries(t.entries)
}

// RenderBefore formats the first n turns only
func (t *Transcript) RenderBefore(n int) string {
	n = min(max(n, 0), len(t.entries))
	return renderEntries(t.entries[:n])
}

func renderEntries(entries []Entry) string {
	return strings.Join(RenderLines(entries), "\n")
}
