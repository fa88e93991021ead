package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/irt-tools/cat-service/internal/cache"
	"github.com/irt-tools/cat-service/internal/config"
	"github.com/irt-tools/cat-service/internal/engine"
	"github.com/irt-tools/cat-service/internal/events"
	"github.com/irt-tools/cat-service/internal/irt"
	"github.com/irt-tools/cat-service/internal/models"
	"github.com/irt-tools/cat-service/internal/repositories"
	"github.com/irt-tools/cat-service/internal/utils"
)

const eventSource = "cat-service"

type SessionService interface {
	// Start begins a new session, or resumes the respondent's unfinished one
	// when there is one. Starting is idempotent per (study, respondent).
	Start(ctx context.Context, req *StartSessionRequest) (*SessionStep, error)
	Answer(ctx context.Context, sessionID string, req *AnswerRequest) (*SessionStep, error)
	Pause(ctx context.Context, sessionID string) error
	Resume(ctx context.Context, sessionID string) (*SessionStep, error)
	Abandon(ctx context.Context, sessionID string) error
	GetByID(ctx context.Context, sessionID string) (*models.Session, error)
	ListByStudy(ctx context.Context, studyID uint, filters repositories.SessionFilters) ([]*models.Session, int64, error)
}

type StartSessionRequest struct {
	StudyID      uint              `json:"study_id" validate:"required"`
	RespondentID string            `json:"respondent_id" validate:"required,min=1,max=100"`
	Demographics map[string]string `json:"demographics"`
}

type AnswerRequest struct {
	ItemID         string `json:"item_id" validate:"required"`
	Score          int    `json:"score" validate:"min=0"`
	ResponseTimeMs int64  `json:"response_time_ms" validate:"min=0"`
}

// SessionStep is what the front end needs after any lifecycle call: the
// session's status, the item to render next (nil when terminal), and the
// current scores.
type SessionStep struct {
	SessionID  string               `json:"session_id"`
	Status     models.SessionStatus `json:"status"`
	NextItem   *models.Item         `json:"next_item,omitempty"`
	Theta      float64              `json:"theta"`
	SE         float64              `json:"se"`
	ItemsGiven int                  `json:"items_given"`
}

type sessionService struct {
	repo      repositories.Repository
	studies   StudyService
	cache     cache.SessionCache
	publisher events.EventPublisher
	logger    utils.Logger
	validator *utils.Validator
}

func NewSessionService(repo repositories.Repository, studies StudyService, sessionCache cache.SessionCache, publisher events.EventPublisher, logger utils.Logger, validator *utils.Validator) SessionService {
	return &sessionService{
		repo:      repo,
		studies:   studies,
		cache:     sessionCache,
		publisher: publisher,
		logger:    logger,
		validator: validator,
	}
}

// checkpointStore bridges the engine's checkpoints to the database and the
// snapshot cache. The database write is the one that matters; a cache miss
// only costs a slower resume.
type checkpointStore struct {
	repo   repositories.SessionRepository
	cache  cache.SessionCache
	logger utils.Logger
}

func (s *checkpointStore) Save(ctx context.Context, session *models.Session) error {
	if err := s.repo.Update(ctx, session); err != nil {
		return err
	}
	if err := s.cache.SaveSnapshot(ctx, session); err != nil {
		s.logger.Warn("failed to cache session snapshot", "session_id", session.ID, "error", err)
	}
	return nil
}

func (s *sessionService) Start(ctx context.Context, req *StartSessionRequest) (*SessionStep, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	study, err := s.studies.GetByIDWithBank(ctx, req.StudyID)
	if err != nil {
		return nil, err
	}
	if study.Status != models.StudyActive {
		return nil, ErrStudyNotActive
	}
	cfg := study.Config.Data()
	if err := checkDemographics(&cfg, req.Demographics); err != nil {
		return nil, err
	}

	// A respondent returning mid-test resumes their unfinished session
	// instead of starting over.
	existing, err := s.repo.Session().GetActiveByRespondent(ctx, req.StudyID, req.RespondentID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up existing session: %w", err)
	}
	if existing != nil {
		s.logger.Info("Resuming existing session on start",
			"session_id", existing.ID, "study_id", req.StudyID, "respondent_id", req.RespondentID)
		return s.resume(ctx, study, existing)
	}

	eng, err := s.engineFor(ctx, study, &cfg)
	if err != nil {
		return nil, err
	}

	session := &models.Session{
		ID:            uuid.NewString(),
		StudyID:       study.ID,
		RespondentID:  req.RespondentID,
		Status:        models.SessionActive,
		Demographics:  datatypes.NewJSONType(req.Demographics),
		SelectionSeed: time.Now().UnixNano(),
	}
	if err := s.repo.Session().Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	first, err := eng.Begin(ctx, session)
	if err != nil {
		return nil, mapEngineError(err)
	}

	s.logger.Info("Session started",
		"session_id", session.ID, "study_id", study.ID, "respondent_id", req.RespondentID)
	s.publish(ctx, events.EventSessionStarted, &events.SessionStartedEvent{
		SessionID:    session.ID,
		StudyID:      study.ID,
		RespondentID: session.RespondentID,
		StartedAt:    session.StartedAt,
	})
	if session.Status.Terminal() {
		s.finish(ctx, session)
	}

	return stepOf(session, first), nil
}

func (s *sessionService) Answer(ctx context.Context, sessionID string, req *AnswerRequest) (*SessionStep, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	session, _, eng, err := s.loadForStep(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	result, err := eng.Step(ctx, session, engine.Answer{
		ItemID:         req.ItemID,
		Score:          req.Score,
		ResponseTimeMs: req.ResponseTimeMs,
	})
	if err != nil {
		s.logger.Warn("Session step rejected", "session_id", sessionID, "error", err)
		return nil, mapEngineError(err)
	}

	if result.Status.Terminal() {
		s.finish(ctx, session)
	}
	return stepOf(session, result.NextItem), nil
}

func (s *sessionService) Pause(ctx context.Context, sessionID string) error {
	session, _, eng, err := s.loadForStep(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := eng.Pause(ctx, session); err != nil {
		return mapEngineError(err)
	}
	s.logger.Info("Session paused", "session_id", sessionID, "items_given", session.ItemCount())
	s.publish(ctx, events.EventSessionPaused, map[string]interface{}{
		"session_id": session.ID,
		"study_id":   session.StudyID,
	})
	return nil
}

func (s *sessionService) Resume(ctx context.Context, sessionID string) (*SessionStep, error) {
	session, study, _, err := s.loadForStep(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.resume(ctx, study, session)
}

func (s *sessionService) Abandon(ctx context.Context, sessionID string) error {
	session, _, eng, err := s.loadForStep(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := eng.Abandon(ctx, session); err != nil {
		return mapEngineError(err)
	}
	s.logger.Info("Session abandoned", "session_id", sessionID, "items_given", session.ItemCount())
	s.finish(ctx, session)
	return nil
}

func (s *sessionService) GetByID(ctx context.Context, sessionID string) (*models.Session, error) {
	return s.loadSession(ctx, sessionID)
}

func (s *sessionService) ListByStudy(ctx context.Context, studyID uint, filters repositories.SessionFilters) ([]*models.Session, int64, error) {
	if _, err := s.studies.GetByID(ctx, studyID); err != nil {
		return nil, 0, err
	}
	sessions, total, err := s.repo.Session().GetByStudy(ctx, studyID, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, total, nil
}

// resume reactivates a session through the engine, which re-derives the
// pending item from history when the checkpoint predates the last selection.
func (s *sessionService) resume(ctx context.Context, study *models.Study, session *models.Session) (*SessionStep, error) {
	cfg := study.Config.Data()
	eng, err := s.engineFor(ctx, study, &cfg)
	if err != nil {
		return nil, err
	}

	item, err := eng.Resume(ctx, session)
	if err != nil {
		return nil, mapEngineError(err)
	}

	if session.Status.Terminal() {
		s.finish(ctx, session)
	} else {
		s.publish(ctx, events.EventSessionResumed, map[string]interface{}{
			"session_id": session.ID,
			"study_id":   session.StudyID,
		})
	}
	return stepOf(session, item), nil
}

// engineFor builds the engine for one study. Engines are cheap to construct
// relative to a respondent interaction, so there is no engine cache to
// invalidate when a study changes.
func (s *sessionService) engineFor(ctx context.Context, study *models.Study, cfg *config.StudyConfig) (*engine.Engine, error) {
	if study.Bank == nil {
		bank, err := s.repo.Bank().GetByIDWithItems(ctx, study.BankID)
		if err != nil {
			return nil, fmt.Errorf("failed to load item bank: %w", err)
		}
		study.Bank = bank
	}

	estimator := irt.NewEAPEstimator()
	estimator.Range = cfg.ThetaRange()

	store := &checkpointStore{repo: s.repo.Session(), cache: s.cache, logger: s.logger}
	eng, err := engine.New(study.Bank, *cfg, estimator, store, s.logger)
	if err != nil {
		if errors.Is(err, engine.ErrBankEmpty) {
			return nil, ErrBankEmpty
		}
		return nil, fmt.Errorf("failed to build session engine: %w", err)
	}

	if cfg.MaxExposureRate > 0 {
		counts, total, err := s.repo.Session().ExposureCounts(ctx, study.ID)
		if err != nil {
			// Exposure balancing is an optimization; run without it rather
			// than block the respondent.
			s.logger.Warn("exposure counts unavailable, continuing without exposure balancing",
				"study_id", study.ID, "error", err)
		} else {
			eng.SetExposureStats(counts, total)
		}
	}
	return eng, nil
}

// loadForStep resolves the session (cache first), its study and the engine
// for one lifecycle call.
func (s *sessionService) loadForStep(ctx context.Context, sessionID string) (*models.Session, *models.Study, *engine.Engine, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, nil, nil, err
	}

	study, err := s.studies.GetByIDWithBank(ctx, session.StudyID)
	if err != nil {
		return nil, nil, nil, err
	}

	cfg := study.Config.Data()
	eng, err := s.engineFor(ctx, study, &cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	return session, study, eng, nil
}

func (s *sessionService) loadSession(ctx context.Context, sessionID string) (*models.Session, error) {
	snapshot, err := s.cache.GetSnapshot(ctx, sessionID)
	if err != nil {
		s.logger.Warn("session snapshot read failed, falling back to database",
			"session_id", sessionID, "error", err)
	}
	if snapshot != nil {
		return snapshot, nil
	}

	session, err := s.repo.Session().GetByID(ctx, sessionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// finish publishes the terminal event and drops the snapshot. Both are
// best-effort; the database row is already terminal.
func (s *sessionService) finish(ctx context.Context, session *models.Session) {
	finishedAt := time.Now()
	if session.CompletedAt != nil {
		finishedAt = *session.CompletedAt
	}
	s.logger.Info("Session finished",
		"session_id", session.ID, "status", session.Status,
		"items_given", session.ItemCount(), "theta", session.Theta, "se", session.SE)

	s.publish(ctx, events.TerminalEventType(session.Status), &events.SessionFinishedEvent{
		SessionID:    session.ID,
		StudyID:      session.StudyID,
		RespondentID: session.RespondentID,
		Status:       session.Status,
		Theta:        session.Theta,
		SE:           session.SE,
		ItemsGiven:   session.ItemCount(),
		FinishedAt:   finishedAt,
	})

	if err := s.cache.Delete(ctx, session.ID); err != nil {
		s.logger.Warn("failed to drop session snapshot", "session_id", session.ID, "error", err)
	}
}

func (s *sessionService) publish(ctx context.Context, eventType events.EventType, data interface{}) {
	if s.publisher == nil {
		return
	}
	event := &events.SessionEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now(),
		Source:    eventSource,
		Version:   "1.0",
		Data:      data,
	}
	if err := s.publisher.PublishSessionEvent(ctx, event); err != nil {
		s.logger.Warn("failed to publish session event", "event_type", eventType, "error", err)
	}
}

func stepOf(session *models.Session, item *models.Item) *SessionStep {
	return &SessionStep{
		SessionID:  session.ID,
		Status:     session.Status,
		NextItem:   item,
		Theta:      session.Theta,
		SE:         session.SE,
		ItemsGiven: session.ItemCount(),
	}
}

// checkDemographics enforces the study's required demographic answers.
func checkDemographics(cfg *config.StudyConfig, values map[string]string) error {
	var errs ValidationErrors
	for _, field := range cfg.Demographics {
		if !field.Required {
			continue
		}
		if values[field.Name] == "" {
			errs = append(errs, ValidationError{
				Field:   "demographics." + field.Name,
				Message: "is required",
				Rule:    "required",
			})
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// mapEngineError translates engine sentinels into the service error space.
func mapEngineError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, engine.ErrSessionTerminal):
		return ErrSessionTerminal
	case errors.Is(err, engine.ErrSessionNotActive):
		return ErrSessionNotActive
	case errors.Is(err, engine.ErrAlreadyStarted):
		return ErrConflict
	case errors.Is(err, engine.ErrItemMismatch):
		return ErrSessionItemMismatch
	case errors.Is(err, engine.ErrInvalidScore):
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	case errors.Is(err, engine.ErrBankEmpty):
		return ErrBankEmpty
	default:
		return fmt.Errorf("session engine failure: %w", err)
	}
}
