// Package engine owns the adaptive session lifecycle: it sequences item
// selection, response scoring, ability estimation and the stopping rule,
// and checkpoints session state after every response.
//
// All decisions are pure functions of (item bank, study config, response
// history), so a session restored from a checkpoint continues with exactly
// the item sequence an uninterrupted run would have produced.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/irt-tools/cat-service/internal/config"
	"github.com/irt-tools/cat-service/internal/irt"
	"github.com/irt-tools/cat-service/internal/models"
	"github.com/irt-tools/cat-service/internal/selector"
	"github.com/irt-tools/cat-service/internal/utils"
)

var (
	ErrBankEmpty        = errors.New("item bank is empty")
	ErrModelMismatch    = errors.New("item bank model does not match study config")
	ErrSessionTerminal  = errors.New("session has already terminated")
	ErrSessionNotActive = errors.New("session is not active")
	ErrAlreadyStarted   = errors.New("session already has responses")
	ErrItemMismatch     = errors.New("answer does not match the presented item")
	ErrInvalidScore     = errors.New("score outside the item's category range")
)

// CheckpointStore persists session state at the engine's checkpoints. A
// failing store degrades the session to in-memory continuation; it never
// aborts the respondent's progress.
type CheckpointStore interface {
	Save(ctx context.Context, session *models.Session) error
}

// Answer is one respondent response to the currently presented item.
type Answer struct {
	ItemID         string
	Score          int
	ResponseTimeMs int64
}

// StepResult reports the outcome of one lifecycle step.
type StepResult struct {
	Status     models.SessionStatus
	NextItem   *models.Item
	Theta      float64
	SE         float64
	ItemsGiven int
}

// Engine runs adaptive sessions against one bank/config pair. It is
// stateless between calls apart from the immutable bank and config, so one
// engine is safely shared by all sessions of a study.
type Engine struct {
	items       []models.Item
	byID        map[string]*models.Item
	cfg         config.StudyConfig
	estimator   irt.Estimator
	store       CheckpointStore
	constraints *selector.Constraints
	logger      utils.Logger
}

// New builds an engine for the given bank and config. The bank must be
// non-empty, match the configured model, and have validated parameters.
func New(bank *models.ItemBank, cfg config.StudyConfig, est irt.Estimator, store CheckpointStore, logger utils.Logger) (*Engine, error) {
	if len(bank.Items) == 0 {
		return nil, ErrBankEmpty
	}
	if bank.Model != cfg.Model {
		return nil, fmt.Errorf("%w: bank %q vs config %q", ErrModelMismatch, bank.Model, cfg.Model)
	}

	// Work on a copy sorted by bank position; selection tie-breaks depend
	// on this order.
	items := make([]models.Item, len(bank.Items))
	copy(items, bank.Items)
	sort.Slice(items, func(i, j int) bool { return items[i].Position < items[j].Position })

	byID := make(map[string]*models.Item, len(items))
	for i := range items {
		byID[items[i].ExternalID] = &items[i]
	}

	var constraints *selector.Constraints
	if len(cfg.MaxPerCategory) > 0 || cfg.MaxExposureRate > 0 {
		constraints = &selector.Constraints{
			MaxPerCategory:  cfg.MaxPerCategory,
			MaxExposureRate: cfg.MaxExposureRate,
		}
	}

	return &Engine{
		items:       items,
		byID:        byID,
		cfg:         cfg,
		estimator:   irt.NewClampedEstimator(est, cfg.ThetaRange(), logger),
		store:       store,
		constraints: constraints,
		logger:      logger,
	}, nil
}

// SetExposureStats feeds study-wide administration counts into the exposure
// filter. Optional; without it exposure balancing is disabled.
func (e *Engine) SetExposureStats(administrations map[string]int, totalSessions int) {
	if e.constraints == nil {
		e.constraints = &selector.Constraints{MaxExposureRate: e.cfg.MaxExposureRate}
	}
	e.constraints.Administrations = administrations
	e.constraints.TotalSessions = totalSessions
}

// Item returns the bank item with the given external id.
func (e *Engine) Item(externalID string) (*models.Item, bool) {
	item, ok := e.byID[externalID]
	return item, ok
}

// Begin initializes a fresh session: prior ability, first item, first
// checkpoint. On an exhausted-at-start bank (all items filtered) the session
// terminates with the exhausted status rather than an error.
func (e *Engine) Begin(ctx context.Context, session *models.Session) (*models.Item, error) {
	if session.Status.Terminal() {
		return nil, ErrSessionTerminal
	}
	if len(session.Responses) > 0 || session.CurrentItemID != "" {
		return nil, ErrAlreadyStarted
	}

	_, se, err := e.estimator.Estimate(ctx, nil, e.cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to compute prior ability: %w", err)
	}
	session.Status = models.SessionActive
	session.Theta = e.cfg.ThetaRange().Clamp(e.cfg.StartTheta)
	session.SE = se
	session.StartedAt = time.Now()

	next, ok := e.selectNext(session)
	if !ok {
		e.terminate(session, models.SessionExhausted)
		e.checkpoint(ctx, session)
		return nil, nil
	}

	session.CurrentItemID = next.ExternalID
	e.checkpoint(ctx, session)
	return next, nil
}

// Step records one response, re-estimates ability, applies the stopping
// rule and selects the next item. It checkpoints the session whatever the
// outcome.
func (e *Engine) Step(ctx context.Context, session *models.Session, ans Answer) (*StepResult, error) {
	if session.Status.Terminal() {
		return nil, ErrSessionTerminal
	}
	if session.Status != models.SessionActive {
		return nil, ErrSessionNotActive
	}
	if session.CurrentItemID == "" || ans.ItemID != session.CurrentItemID {
		return nil, fmt.Errorf("%w: expected %q, got %q", ErrItemMismatch, session.CurrentItemID, ans.ItemID)
	}

	item, ok := e.byID[ans.ItemID]
	if !ok {
		return nil, fmt.Errorf("%w: item %q not in bank", ErrItemMismatch, ans.ItemID)
	}
	if ans.Score < 0 || ans.Score >= item.Params().Categories(e.cfg.Model) {
		return nil, fmt.Errorf("%w: score %d for item %q", ErrInvalidScore, ans.Score, ans.ItemID)
	}

	record := models.ResponseRecord{
		ItemID:         ans.ItemID,
		Score:          ans.Score,
		ResponseTimeMs: ans.ResponseTimeMs,
		AnsweredAt:     time.Now(),
	}
	session.Responses = append(session.Responses, record)
	session.CurrentItemID = ""

	theta, se, err := e.estimator.Estimate(ctx, e.scoredHistory(session), e.cfg.Model)
	if err != nil {
		// Estimation failures never abort an active session; carry the
		// previous estimate forward and keep going.
		e.logger.Warn("ability estimation failed, keeping previous estimate",
			"session_id", session.ID, "items_given", session.ItemCount(), "error", err)
		theta, se = session.Theta, session.SE
	}
	session.Theta = theta
	session.SE = se
	session.Responses[len(session.Responses)-1].Theta = theta
	session.Responses[len(session.Responses)-1].SE = se

	result := &StepResult{Theta: theta, SE: se, ItemsGiven: session.ItemCount()}

	status := evaluateStopping(&e.cfg, session.ItemCount(), se)
	if status == models.SessionCompleted {
		e.terminate(session, models.SessionCompleted)
		result.Status = session.Status
		e.checkpoint(ctx, session)
		return result, nil
	}

	next, ok := e.selectNext(session)
	if !ok {
		e.terminate(session, models.SessionExhausted)
		result.Status = session.Status
		e.checkpoint(ctx, session)
		return result, nil
	}

	session.CurrentItemID = next.ExternalID
	result.Status = models.SessionActive
	result.NextItem = next
	e.checkpoint(ctx, session)
	return result, nil
}

// Pause checkpoints an active session and marks it paused.
func (e *Engine) Pause(ctx context.Context, session *models.Session) error {
	if session.Status.Terminal() {
		return ErrSessionTerminal
	}
	session.Status = models.SessionPaused
	e.checkpoint(ctx, session)
	return nil
}

// Resume reactivates a paused session and returns the pending item. The
// pending item is re-derived from history when the checkpoint predates the
// last selection, which yields the same item an uninterrupted run would
// have presented.
func (e *Engine) Resume(ctx context.Context, session *models.Session) (*models.Item, error) {
	if session.Status.Terminal() {
		return nil, ErrSessionTerminal
	}
	session.Status = models.SessionActive

	if session.CurrentItemID == "" {
		next, ok := e.selectNext(session)
		if !ok {
			e.terminate(session, models.SessionExhausted)
			e.checkpoint(ctx, session)
			return nil, nil
		}
		session.CurrentItemID = next.ExternalID
	}

	e.checkpoint(ctx, session)
	item := e.byID[session.CurrentItemID]
	return item, nil
}

// Abandon terminates a session the respondent exited without finishing.
func (e *Engine) Abandon(ctx context.Context, session *models.Session) error {
	if session.Status.Terminal() {
		return ErrSessionTerminal
	}
	e.terminate(session, models.SessionAbandoned)
	e.checkpoint(ctx, session)
	return nil
}

func (e *Engine) selectNext(session *models.Session) (*models.Item, bool) {
	administered := session.AdministeredIDs()

	switch e.cfg.SelectionCriterion {
	case config.SelectionRandom:
		// Seed by position in the sequence so a resumed session repeats the
		// same draw for the same decision point.
		rng := rand.New(rand.NewSource(session.SelectionSeed + int64(len(session.Responses))))
		return selector.Random(rng, administered, e.items, e.constraints)
	default:
		return selector.MaxInfo(session.Theta, administered, e.items, e.cfg.Model, e.constraints)
	}
}

func (e *Engine) terminate(session *models.Session, status models.SessionStatus) {
	now := time.Now()
	session.Status = status
	session.CurrentItemID = ""
	session.CompletedAt = &now
}

// checkpoint persists the session, degrading to in-memory continuation on
// failure. The next checkpoint retries with the full state.
func (e *Engine) checkpoint(ctx context.Context, session *models.Session) {
	if e.store == nil {
		return
	}
	if err := e.store.Save(ctx, session); err != nil {
		e.logger.Warn("session checkpoint failed, continuing in memory",
			"session_id", session.ID, "status", session.Status, "error", err)
	}
}

func (e *Engine) scoredHistory(session *models.Session) []irt.ScoredResponse {
	history := make([]irt.ScoredResponse, 0, len(session.Responses))
	for _, r := range session.Responses {
		item, ok := e.byID[r.ItemID]
		if !ok {
			continue
		}
		history = append(history, irt.ScoredResponse{Params: item.Params(), Score: r.Score})
	}
	return history
}
