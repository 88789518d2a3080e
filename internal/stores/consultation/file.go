package consultation

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jkim999/primary-care-consultant/pkg/consultation"
	"github.com/sirupsen/logrus"
)

// maxLineSize bounds a single log line; final responses are a few KB at most
const maxLineSize = 1 << 20

// fileEntry is one line of the consultation log
type fileEntry struct {
	ID                  string               `json:"id"`
	Timestamp           time.Time            `json:"timestamp"`
	PatientData         *consultation.Record `json:"patient_data"`
	ConversationHistory []string             `json:"conversation_history"`
	FinalResponse       string               `json:"final_response"`
	IsEmergency         bool                 `json:"is_emergency"`
}

// FileStore appends consultations to a JSON-lines file
type FileStore struct {
	path string
	mu   sync.Mutex
	log  logrus.FieldLogger
}

// NewFileStore creates a store over path. The file is created on first write.
func NewFileStore(path string, log logrus.FieldLogger) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("log file path cannot be empty")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &FileStore{
		path: path,
		log:  log.WithField("component", "file-store"),
	}, nil
}

// Path returns the log file location
func (s *FileStore) Path() string {
	return s.path
}

// LogConsultation appends one line to the log file
func (s *FileStore) LogConsultation(ctx context.Context, entry *consultation.LogEntry) error {
	if err := validate(entry); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	line, err := json.Marshal(fileEntry{
		ID:                  entry.ID,
		Timestamp:           entry.Timestamp.UTC(),
		PatientData:         entry.Record,
		ConversationHistory: consultation.RenderLines(entry.Transcript),
		FinalResponse:       entry.FinalText,
		IsEmergency:         entry.IsEmergency,
	})
	if err != nil {
		return consultation.E(consultation.CodePersistence, "FileStore.LogConsultation", "failed to encode consultation", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return consultation.E(consultation.CodePersistence, "FileStore.LogConsultation", "failed to create log directory", err)
		}
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return consultation.E(consultation.CodePersistence, "FileStore.LogConsultation", "failed to open log file", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return consultation.E(consultation.CodePersistence, "FileStore.LogConsultation", "failed to write log file", err)
	}

	return nil
}

// ListRecent reads the log file back. A missing file is an empty history; malformed lines
// are skipped.
func (s *FileStore) ListRecent(ctx context.Context, limit int) ([]consultation.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []consultation.Summary{}, nil
		}
		return nil, consultation.E(consultation.CodePersistence, "FileStore.ListRecent", "failed to open log file", err)
	}
	defer f.Close()

	summaries := []consultation.Summary{}
	skipped := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var fe fileEntry
		if err := json.Unmarshal(line, &fe); err != nil {
			skipped++
			continue
		}

		entry := consultation.LogEntry{
			ID:          fe.ID,
			Timestamp:   fe.Timestamp,
			Record:      fe.PatientData,
			IsEmergency: fe.IsEmergency || fe.PatientData.IsEmergency(),
		}
		summaries = append(summaries, entry.Summary())
	}
	if err := scanner.Err(); err != nil {
		return nil, consultation.E(consultation.CodePersistence, "FileStore.ListRecent", "failed to read log file", err)
	}

	if skipped > 0 {
		s.log.WithField("skipped", skipped).Warn("skipped malformed consultation log lines")
	}

	return recent(summaries, limit), nil
}

// Close is a no-op; the file is opened per write
func (s *FileStore) Close() error {
	return nil
}
