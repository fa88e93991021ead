package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irt-tools/cat-service/internal/config"
	"github.com/irt-tools/cat-service/internal/irt"
	"github.com/irt-tools/cat-service/internal/models"
	"github.com/irt-tools/cat-service/internal/utils"
)

func testBank(n int) *models.ItemBank {
	bank := &models.ItemBank{Name: "test bank", Model: irt.Model2PL}
	for i := 0; i < n; i++ {
		bank.Items = append(bank.Items, models.Item{
			ExternalID:     fmt.Sprintf("item-%d", i),
			Position:       i,
			Content:        fmt.Sprintf("Question %d", i),
			Discrimination: 1 + 0.1*float64(i),
			Difficulty:     -2 + float64(i)*0.5,
		})
	}
	return bank
}

func testConfig() config.StudyConfig {
	cfg := config.StudyConfig{
		Name:        "test study",
		Model:       irt.Model2PL,
		MinItems:    2,
		MaxItems:    5,
		SEThreshold: 0.3,
		ThetaMin:    -4,
		ThetaMax:    4,
	}
	cfg.ApplyDefaults()
	return cfg
}

// scriptedEstimator returns a fixed SE per response count so stopping rule
// paths can be driven exactly.
type scriptedEstimator struct {
	seByCount map[int]float64
	defaultSE float64
	err       error
}

func (s *scriptedEstimator) Estimate(_ context.Context, responses []irt.ScoredResponse, _ irt.Model) (float64, float64, error) {
	if s.err != nil {
		return 0, 0, s.err
	}
	if se, ok := s.seByCount[len(responses)]; ok {
		return 0.1 * float64(len(responses)), se, nil
	}
	return 0.1 * float64(len(responses)), s.defaultSE, nil
}

// recordingStore counts checkpoint writes; failingStore rejects all of them.
type recordingStore struct {
	saves int
}

func (s *recordingStore) Save(context.Context, *models.Session) error {
	s.saves++
	return nil
}

type failingStore struct{}

func (failingStore) Save(context.Context, *models.Session) error {
	return errors.New("connection refused")
}

func newTestEngine(t *testing.T, bank *models.ItemBank, cfg config.StudyConfig, est irt.Estimator, store CheckpointStore) *Engine {
	t.Helper()
	eng, err := New(bank, cfg, est, store, utils.NewDevelopmentLogger())
	require.NoError(t, err)
	return eng
}

func TestNew_RejectsEmptyBank(t *testing.T) {
	_, err := New(&models.ItemBank{Model: irt.Model2PL}, testConfig(), irt.NewEAPEstimator(), nil, utils.NewDevelopmentLogger())
	assert.ErrorIs(t, err, ErrBankEmpty)
}

func TestNew_RejectsModelMismatch(t *testing.T) {
	bank := testBank(3)
	bank.Model = irt.ModelGRM

	_, err := New(bank, testConfig(), irt.NewEAPEstimator(), nil, utils.NewDevelopmentLogger())
	assert.ErrorIs(t, err, ErrModelMismatch)
}

func TestBegin_PresentsFirstItemAndCheckpoints(t *testing.T) {
	store := &recordingStore{}
	eng := newTestEngine(t, testBank(5), testConfig(), irt.NewEAPEstimator(), store)
	session := &models.Session{ID: "s1"}

	item, err := eng.Begin(context.Background(), session)
	require.NoError(t, err)
	require.NotNil(t, item)

	assert.Equal(t, models.SessionActive, session.Status)
	assert.Equal(t, item.ExternalID, session.CurrentItemID)
	assert.False(t, session.StartedAt.IsZero())
	assert.Equal(t, 1, store.saves)
}

func TestBegin_RejectsSecondCall(t *testing.T) {
	eng := newTestEngine(t, testBank(5), testConfig(), irt.NewEAPEstimator(), nil)
	session := &models.Session{ID: "s1"}

	_, err := eng.Begin(context.Background(), session)
	require.NoError(t, err)

	_, err = eng.Begin(context.Background(), session)
	assert.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestStep_RejectsWrongItemAndScore(t *testing.T) {
	eng := newTestEngine(t, testBank(5), testConfig(), irt.NewEAPEstimator(), nil)
	session := &models.Session{ID: "s1"}

	item, err := eng.Begin(context.Background(), session)
	require.NoError(t, err)

	_, err = eng.Step(context.Background(), session, Answer{ItemID: "not-the-item", Score: 1})
	assert.ErrorIs(t, err, ErrItemMismatch)

	_, err = eng.Step(context.Background(), session, Answer{ItemID: item.ExternalID, Score: 2})
	assert.ErrorIs(t, err, ErrInvalidScore)

	_, err = eng.Step(context.Background(), session, Answer{ItemID: item.ExternalID, Score: -1})
	assert.ErrorIs(t, err, ErrInvalidScore)
}

func TestStep_CompletesAtMaxItems(t *testing.T) {
	// SE never reaches the threshold, so only the item cap can stop this run.
	est := &scriptedEstimator{defaultSE: 1.5}
	eng := newTestEngine(t, testBank(10), testConfig(), est, nil)
	session := &models.Session{ID: "s1"}

	item, err := eng.Begin(context.Background(), session)
	require.NoError(t, err)

	for item != nil {
		result, err := eng.Step(context.Background(), session, Answer{ItemID: item.ExternalID, Score: 1})
		require.NoError(t, err)
		item = result.NextItem
	}

	assert.Equal(t, models.SessionCompleted, session.Status)
	assert.Equal(t, 5, session.ItemCount())
	assert.Empty(t, session.CurrentItemID)
	assert.NotNil(t, session.CompletedAt)
}

func TestStep_PrecisionBelowThresholdWaitsForMinimum(t *testing.T) {
	// The SE drops to 0.28 after four items, under the 0.3 threshold, but the
	// minimum of five items keeps the session going for one more.
	cfg := testConfig()
	cfg.MinItems = 5
	cfg.MaxItems = 10
	est := &scriptedEstimator{
		seByCount: map[int]float64{1: 0.9, 2: 0.7, 3: 0.5, 4: 0.28, 5: 0.28},
		defaultSE: 0.28,
	}
	eng := newTestEngine(t, testBank(10), cfg, est, nil)
	session := &models.Session{ID: "s1"}

	item, err := eng.Begin(context.Background(), session)
	require.NoError(t, err)

	var statuses []models.SessionStatus
	for item != nil {
		result, err := eng.Step(context.Background(), session, Answer{ItemID: item.ExternalID, Score: 1})
		require.NoError(t, err)
		statuses = append(statuses, result.Status)
		item = result.NextItem
	}

	assert.Equal(t, models.SessionCompleted, session.Status)
	assert.Equal(t, 5, session.ItemCount())
	// After the fourth item the session was still active.
	assert.Equal(t, models.SessionActive, statuses[3])
}

func TestStep_ExhaustsSmallBank(t *testing.T) {
	// Five items, a cap of ten, and an SE that never satisfies the threshold:
	// the session ends exhausted after the last item.
	cfg := testConfig()
	cfg.MinItems = 1
	cfg.MaxItems = 10
	est := &scriptedEstimator{defaultSE: 2}
	eng := newTestEngine(t, testBank(5), cfg, est, nil)
	session := &models.Session{ID: "s1"}

	item, err := eng.Begin(context.Background(), session)
	require.NoError(t, err)

	for item != nil {
		result, err := eng.Step(context.Background(), session, Answer{ItemID: item.ExternalID, Score: 0})
		require.NoError(t, err)
		item = result.NextItem
	}

	assert.Equal(t, models.SessionExhausted, session.Status)
	assert.Equal(t, 5, session.ItemCount())
	assert.NotNil(t, session.CompletedAt)
}

func TestStep_NeverRepeatsAnItem(t *testing.T) {
	est := &scriptedEstimator{defaultSE: 2}
	cfg := testConfig()
	cfg.MaxItems = 8
	eng := newTestEngine(t, testBank(8), cfg, est, nil)
	session := &models.Session{ID: "s1"}

	item, err := eng.Begin(context.Background(), session)
	require.NoError(t, err)

	seen := map[string]bool{}
	for item != nil {
		assert.False(t, seen[item.ExternalID], "item %s repeated", item.ExternalID)
		seen[item.ExternalID] = true

		result, err := eng.Step(context.Background(), session, Answer{ItemID: item.ExternalID, Score: session.ItemCount() % 2})
		require.NoError(t, err)
		item = result.NextItem
	}
}

func TestStep_TerminalSessionRejected(t *testing.T) {
	session := &models.Session{ID: "s1", Status: models.SessionCompleted}
	eng := newTestEngine(t, testBank(5), testConfig(), irt.NewEAPEstimator(), nil)

	_, err := eng.Step(context.Background(), session, Answer{ItemID: "item-0", Score: 1})
	assert.ErrorIs(t, err, ErrSessionTerminal)
}

func TestStep_EstimationFailureKeepsPreviousEstimate(t *testing.T) {
	// The estimator starts working, then fails; the session must carry the
	// last good estimate instead of aborting.
	cfg := testConfig()
	cfg.MaxItems = 3
	est := &scriptedEstimator{defaultSE: 0.8}
	eng := newTestEngine(t, testBank(5), cfg, est, nil)
	session := &models.Session{ID: "s1"}

	item, err := eng.Begin(context.Background(), session)
	require.NoError(t, err)

	result, err := eng.Step(context.Background(), session, Answer{ItemID: item.ExternalID, Score: 1})
	require.NoError(t, err)
	prevTheta, prevSE := session.Theta, session.SE

	est.err = errors.New("delegate crashed")
	result, err = eng.Step(context.Background(), session, Answer{ItemID: result.NextItem.ExternalID, Score: 1})
	require.NoError(t, err)

	assert.Equal(t, prevTheta, session.Theta)
	assert.Equal(t, prevSE, session.SE)
	assert.Equal(t, models.SessionActive, result.Status)
}

func TestPauseResume_ContinuesWhereLeftOff(t *testing.T) {
	est := &scriptedEstimator{defaultSE: 2}
	eng := newTestEngine(t, testBank(6), testConfig(), est, nil)
	session := &models.Session{ID: "s1"}

	item, err := eng.Begin(context.Background(), session)
	require.NoError(t, err)
	result, err := eng.Step(context.Background(), session, Answer{ItemID: item.ExternalID, Score: 1})
	require.NoError(t, err)
	pending := result.NextItem.ExternalID

	require.NoError(t, eng.Pause(context.Background(), session))
	assert.Equal(t, models.SessionPaused, session.Status)

	resumed, err := eng.Resume(context.Background(), session)
	require.NoError(t, err)
	assert.Equal(t, models.SessionActive, session.Status)
	assert.Equal(t, pending, resumed.ExternalID)
}

func TestResume_RederivesPendingItemFromHistory(t *testing.T) {
	// A checkpoint written before the last selection has no pending item; the
	// engine must re-derive the same item an uninterrupted run would present.
	est := &scriptedEstimator{defaultSE: 2}
	eng := newTestEngine(t, testBank(6), testConfig(), est, nil)
	session := &models.Session{ID: "s1"}

	item, err := eng.Begin(context.Background(), session)
	require.NoError(t, err)
	result, err := eng.Step(context.Background(), session, Answer{ItemID: item.ExternalID, Score: 1})
	require.NoError(t, err)
	expected := result.NextItem.ExternalID

	session.Status = models.SessionPaused
	session.CurrentItemID = ""

	resumed, err := eng.Resume(context.Background(), session)
	require.NoError(t, err)
	assert.Equal(t, expected, resumed.ExternalID)
}

func TestResumedSessionMatchesUninterruptedRun(t *testing.T) {
	est := &scriptedEstimator{defaultSE: 2}
	cfg := testConfig()
	cfg.MaxItems = 6

	// Responses depend only on the item, so both runs see the same scores.
	score := func(id string) int {
		return len(id) % 2
	}

	run := func(interrupted bool) []string {
		eng := newTestEngine(t, testBank(8), cfg, est, nil)
		session := &models.Session{ID: "s1", SelectionSeed: 99}

		var sequence []string
		item, err := eng.Begin(context.Background(), session)
		require.NoError(t, err)

		for item != nil {
			sequence = append(sequence, item.ExternalID)

			if interrupted && session.ItemCount() == 2 {
				// Rebuild the engine from scratch, as a process restart would.
				require.NoError(t, eng.Pause(context.Background(), session))
				eng = newTestEngine(t, testBank(8), cfg, est, nil)
				resumed, err := eng.Resume(context.Background(), session)
				require.NoError(t, err)
				require.Equal(t, item.ExternalID, resumed.ExternalID)
			}

			result, err := eng.Step(context.Background(), session, Answer{ItemID: item.ExternalID, Score: score(item.ExternalID)})
			require.NoError(t, err)
			item = result.NextItem
		}
		return sequence
	}

	assert.Equal(t, run(false), run(true))
}

func TestCheckpointFailureDoesNotAbortSession(t *testing.T) {
	est := &scriptedEstimator{defaultSE: 2}
	eng := newTestEngine(t, testBank(5), testConfig(), est, failingStore{})
	session := &models.Session{ID: "s1"}

	item, err := eng.Begin(context.Background(), session)
	require.NoError(t, err)
	require.NotNil(t, item)

	result, err := eng.Step(context.Background(), session, Answer{ItemID: item.ExternalID, Score: 1})
	require.NoError(t, err)
	assert.Equal(t, models.SessionActive, result.Status)
	assert.NotNil(t, result.NextItem)
}

func TestAbandon_TerminatesSession(t *testing.T) {
	eng := newTestEngine(t, testBank(5), testConfig(), irt.NewEAPEstimator(), nil)
	session := &models.Session{ID: "s1"}

	_, err := eng.Begin(context.Background(), session)
	require.NoError(t, err)

	require.NoError(t, eng.Abandon(context.Background(), session))
	assert.Equal(t, models.SessionAbandoned, session.Status)
	assert.NotNil(t, session.CompletedAt)

	assert.ErrorIs(t, eng.Abandon(context.Background(), session), ErrSessionTerminal)
}

func TestRandomSelection_ReproducibleFromSeed(t *testing.T) {
	cfg := testConfig()
	cfg.SelectionCriterion = config.SelectionRandom
	cfg.MaxItems = 4
	est := &scriptedEstimator{defaultSE: 2}

	run := func() []string {
		eng := newTestEngine(t, testBank(8), cfg, est, nil)
		session := &models.Session{ID: "s1", SelectionSeed: 1234}

		var sequence []string
		item, err := eng.Begin(context.Background(), session)
		require.NoError(t, err)
		for item != nil {
			sequence = append(sequence, item.ExternalID)
			result, err := eng.Step(context.Background(), session, Answer{ItemID: item.ExternalID, Score: 1})
			require.NoError(t, err)
			item = result.NextItem
		}
		return sequence
	}

	assert.Equal(t, run(), run())
}

func TestEvaluateStopping(t *testing.T) {
	cfg := testConfig()
	cfg.MinItems = 5
	cfg.MaxItems = 10
	cfg.SEThreshold = 0.3

	tests := []struct {
		name       string
		itemsGiven int
		se         float64
		expected   models.SessionStatus
	}{
		{"precise but under minimum", 4, 0.28, models.SessionActive},
		{"precise at minimum", 5, 0.28, models.SessionCompleted},
		{"imprecise under maximum", 9, 0.8, models.SessionActive},
		{"forced at maximum", 10, 0.8, models.SessionCompleted},
		{"threshold met exactly", 5, 0.3, models.SessionCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, evaluateStopping(&cfg, tt.itemsGiven, tt.se))
		})
	}
}
