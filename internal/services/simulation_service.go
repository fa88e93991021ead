package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"golang.org/x/sync/errgroup"

	"github.com/irt-tools/cat-service/internal/engine"
	"github.com/irt-tools/cat-service/internal/irt"
	"github.com/irt-tools/cat-service/internal/models"
	"github.com/irt-tools/cat-service/internal/utils"
)

const defaultSimWorkers = 8

type SimulationService interface {
	// Run simulates a batch of respondents against a study's bank and
	// configuration. Respondents are independent and run concurrently; one
	// failing respondent fails the batch, and cancelling the context stops
	// the whole fan-out.
	Run(ctx context.Context, req *SimulationRequest) (*SimulationSummary, error)
}

type SimulationRequest struct {
	StudyID     uint    `json:"study_id" validate:"required"`
	Respondents int     `json:"respondents" validate:"required,min=1,max=100000"`
	ThetaMean   float64 `json:"theta_mean"`
	ThetaSD     float64 `json:"theta_sd" validate:"omitempty,gt=0"`
	Seed        int64   `json:"seed"`
	Workers     int     `json:"workers" validate:"omitempty,min=1,max=256"`
}

// SimulatedSession is one simulated respondent's outcome, paired with the
// true ability the responses were drawn from.
type SimulatedSession struct {
	TrueTheta  float64              `json:"true_theta"`
	Theta      float64              `json:"theta"`
	SE         float64              `json:"se"`
	ItemsGiven int                  `json:"items_given"`
	Status     models.SessionStatus `json:"status"`
}

// SimulationSummary aggregates recovery quality over the batch. Bias and
// RMSE compare the final estimate against the generating ability.
type SimulationSummary struct {
	StudyID     uint                         `json:"study_id"`
	Respondents int                          `json:"respondents"`
	StatusCount map[models.SessionStatus]int `json:"status_count"`
	MeanItems   float64                      `json:"mean_items"`
	MeanSE      float64                      `json:"mean_se"`
	Bias        float64                      `json:"bias"`
	RMSE        float64                      `json:"rmse"`
	Sessions    []SimulatedSession           `json:"sessions"`
}

type simulationService struct {
	studies   StudyService
	logger    utils.Logger
	validator *utils.Validator
}

func NewSimulationService(studies StudyService, logger utils.Logger, validator *utils.Validator) SimulationService {
	return &simulationService{
		studies:   studies,
		logger:    logger,
		validator: validator,
	}
}

func (s *simulationService) Run(ctx context.Context, req *SimulationRequest) (*SimulationSummary, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	study, err := s.studies.GetByIDWithBank(ctx, req.StudyID)
	if err != nil {
		return nil, err
	}
	if study.Bank == nil || len(study.Bank.Items) == 0 {
		return nil, ErrBankEmpty
	}
	cfg := study.Config.Data()

	// Simulated sessions never touch the database; the engine runs with no
	// checkpoint store.
	estimator := irt.NewEAPEstimator()
	estimator.Range = cfg.ThetaRange()
	eng, err := engine.New(study.Bank, cfg, estimator, nil, s.logger)
	if err != nil {
		return nil, mapEngineError(err)
	}

	sd := req.ThetaSD
	if sd == 0 {
		sd = 1
	}
	workers := req.Workers
	if workers == 0 {
		workers = defaultSimWorkers
	}

	s.logger.Info("Starting simulation batch",
		"study_id", req.StudyID, "respondents", req.Respondents, "workers", workers, "seed", req.Seed)

	results := make([]SimulatedSession, req.Respondents)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < req.Respondents; i++ {
		g.Go(func() error {
			// Each respondent gets an independent stream so results are
			// reproducible for a fixed seed regardless of scheduling.
			rng := rand.New(rand.NewSource(req.Seed + int64(i)))
			trueTheta := req.ThetaMean + sd*rng.NormFloat64()

			outcome, err := s.simulateRespondent(gctx, eng, cfg.Model, rng, trueTheta, i)
			if err != nil {
				return err
			}
			results[i] = *outcome
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrSimulationCancelled, err)
		}
		return nil, err
	}

	summary := summarize(req.StudyID, results)
	s.logger.Info("Simulation batch finished",
		"study_id", req.StudyID, "respondents", req.Respondents,
		"mean_items", summary.MeanItems, "mean_se", summary.MeanSE,
		"bias", summary.Bias, "rmse", summary.RMSE)
	return summary, nil
}

func (s *simulationService) simulateRespondent(ctx context.Context, eng *engine.Engine, model irt.Model, rng *rand.Rand, trueTheta float64, index int) (*SimulatedSession, error) {
	session := &models.Session{
		ID:            fmt.Sprintf("sim-%d", index),
		SelectionSeed: rng.Int63(),
	}

	item, err := eng.Begin(ctx, session)
	if err != nil {
		return nil, mapEngineError(err)
	}

	for item != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		score := drawScore(rng, trueTheta, item.Params(), model)
		result, err := eng.Step(ctx, session, engine.Answer{ItemID: item.ExternalID, Score: score})
		if err != nil {
			return nil, mapEngineError(err)
		}
		item = result.NextItem
	}

	return &SimulatedSession{
		TrueTheta:  trueTheta,
		Theta:      session.Theta,
		SE:         session.SE,
		ItemsGiven: session.ItemCount(),
		Status:     session.Status,
	}, nil
}

// drawScore samples a response from the item's category distribution at the
// true ability.
func drawScore(rng *rand.Rand, theta float64, params irt.ItemParams, model irt.Model) int {
	probs := irt.CategoryProbabilities(theta, params, model)
	u := rng.Float64()
	var cum float64
	for k, p := range probs {
		cum += p
		if u < cum {
			return k
		}
	}
	return len(probs) - 1
}

func summarize(studyID uint, results []SimulatedSession) *SimulationSummary {
	summary := &SimulationSummary{
		StudyID:     studyID,
		Respondents: len(results),
		StatusCount: make(map[models.SessionStatus]int),
		Sessions:    results,
	}
	if len(results) == 0 {
		return summary
	}

	var items, se, bias, sq float64
	for _, r := range results {
		summary.StatusCount[r.Status]++
		items += float64(r.ItemsGiven)
		se += r.SE
		d := r.Theta - r.TrueTheta
		bias += d
		sq += d * d
	}
	n := float64(len(results))
	summary.MeanItems = items / n
	summary.MeanSE = se / n
	summary.Bias = bias / n
	summary.RMSE = math.Sqrt(sq / n)
	return summary
}
