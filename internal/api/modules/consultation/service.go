package consultation_module

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jkim999/primary-care-consultant/internal/consultation"
	"github.com/jkim999/primary-care-consultant/internal/logger"
	model "github.com/jkim999/primary-care-consultant/pkg/consultation"
	"github.com/jkim999/primary-care-consultant/pkg/sdk"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// DefaultHistoryLimit is used when a history request names no limit
const DefaultHistoryLimit = 5

// Service keeps the consultations running over HTTP. Each session is guarded by its own
// mutex so one slow generator call never blocks other patients.
type Service struct {
	orchestrator *consultation.Orchestrator
	history      model.HistoryReader
	idleTimeout  time.Duration

	sessions map[string]*entry
	mutex    sync.RWMutex

	cron *cron.Cron
	log  logrus.FieldLogger
	now  func() time.Time
}

type entry struct {
	mu      sync.Mutex
	session *consultation.Session
}

// NewService creates the consultation service. history may be nil when no store is configured.
func NewService(orchestrator *consultation.Orchestrator, history model.HistoryReader, idleTimeout time.Duration, log logrus.FieldLogger) *Service {
	return &Service{
		orchestrator: orchestrator,
		history:      history,
		idleTimeout:  idleTimeout,
		sessions:     make(map[string]*entry),
		cron:         cron.New(),
		log:          logger.Component(log, "consultation-service"),
		now:          time.Now,
	}
}

// Start schedules the idle session sweep
func (s *Service) Start(schedule string) error {
	if s.idleTimeout <= 0 {
		s.log.Info("session idle timeout disabled, not sweeping")
		return nil
	}

	if _, err := s.cron.AddFunc(schedule, func() { s.Sweep() }); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	s.cron.Start()

	s.log.WithFields(logrus.Fields{
		"schedule":     schedule,
		"idle_timeout": s.idleTimeout,
	}).Info("session sweeper started")
	return nil
}

// Stop halts the sweeper and waits for a running sweep to finish
func (s *Service) Stop() {
	<-s.cron.Stop().Done()
}

// Begin starts a consultation
func (s *Service) Begin(ctx context.Context, complaint string) (sdk.Consultation, error) {
	session, _, err := s.orchestrator.Begin(ctx, complaint)
	if err != nil {
		return sdk.Consultation{}, err
	}

	s.mutex.Lock()
	s.sessions[session.ID()] = &entry{session: session}
	s.mutex.Unlock()

	return s.toSDK(session), nil
}

// Get returns the current state of a consultation
func (s *Service) Get(id string) (sdk.Consultation, error) {
	e, err := s.lookup(id)
	if err != nil {
		return sdk.Consultation{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return s.toSDK(e.session), nil
}

// Answer forwards the patient's reply
func (s *Service) Answer(ctx context.Context, id, text string) (sdk.Consultation, error) {
	e, err := s.lookup(id)
	if err != nil {
		return sdk.Consultation{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.session.Answer(ctx, text); err != nil {
		return s.toSDK(e.session), err
	}
	return s.toSDK(e.session), nil
}

// Cancel ends a consultation without a record
func (s *Service) Cancel(id string) (sdk.Consultation, error) {
	e, err := s.lookup(id)
	if err != nil {
		return sdk.Consultation{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.session.Cancel()
	return s.toSDK(e.session), nil
}

// History lists past consultations, oldest first
func (s *Service) History(ctx context.Context, limit int) (sdk.HistoryResponse, error) {
	if s.history == nil {
		return sdk.HistoryResponse{Consultations: []model.Summary{}}, nil
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	summaries, err := s.history.ListRecent(ctx, limit)
	if err != nil {
		return sdk.HistoryResponse{}, err
	}
	return sdk.HistoryResponse{Consultations: summaries, Count: len(summaries)}, nil
}

// Active returns the number of sessions held in memory
func (s *Service) Active() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.sessions)
}

// Sweep drops sessions idle for longer than the timeout, cancelling unfinished ones.
// Sessions busy with a request are skipped until the next sweep.
func (s *Service) Sweep() int {
	cutoff := s.now().Add(-s.idleTimeout)

	s.mutex.Lock()
	defer s.mutex.Unlock()

	removed := 0
	for id, e := range s.sessions {
		if !e.mu.TryLock() {
			continue
		}
		if e.session.LastActivity().Before(cutoff) {
			if !e.session.Done() {
				e.session.Cancel()
			}
			delete(s.sessions, id)
			removed++
		}
		e.mu.Unlock()
	}

	if removed > 0 {
		s.log.WithFields(logrus.Fields{
			"removed":   removed,
			"remaining": len(s.sessions),
		}).Info("swept idle sessions")
	}
	return removed
}

func (s *Service) lookup(id string) (*entry, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	e, ok := s.sessions[id]
	if !ok {
		return nil, model.E(model.CodeNotFound, "Service.lookup", fmt.Sprintf("consultation %q not found", id), nil)
	}
	return e, nil
}

// toSDK converts a session to its API form; the caller holds the session lock
func (s *Service) toSDK(session *consultation.Session) sdk.Consultation {
	step := session.Step()

	out := sdk.Consultation{
		ID:           session.ID(),
		State:        sdk.StateAsking,
		Question:     step.Question,
		Exchange:     step.Exchange,
		MaxExchanges: s.orchestrator.MaxExchanges(),
		RedFlags:     step.RedFlags,
		StartedAt:    session.StartedAt(),
	}
	if out.RedFlags == nil {
		out.RedFlags = []string{}
	}

	switch result := session.Result(); {
	case session.Failed():
		out.State = sdk.StateFailed
	case result != nil:
		out.State = sdk.StateCompleted
		if result.Cancelled {
			out.State = sdk.StateCancelled
		}
		out.Result = &sdk.ConsultationResult{
			FinalText:   result.FinalText,
			IsEmergency: result.IsEmergency,
			Cancelled:   result.Cancelled,
			Forced:      result.Forced,
			Record:      result.Record,
			Transcript:  result.Transcript,
			Warnings:    result.Warnings,
			CompletedAt: result.CompletedAt,
		}
	}

	return out
}
