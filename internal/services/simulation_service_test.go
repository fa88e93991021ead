package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newSimulationService(repo *MockRepository) SimulationService {
	logger := testLogger()
	validator := testValidator()
	banks := NewBankService(repo, logger, validator)
	studies := NewStudyService(repo, banks, logger, validator)
	return NewSimulationService(studies, logger, validator)
}

func TestSimulationService_Run(t *testing.T) {
	repo := newMockRepository()
	study := fixtureStudy(fixtureBank(10), fixtureStudyConfig())
	repo.studyRepo.On("GetByIDWithBank", mock.Anything, uint(1)).Return(study, nil)

	summary, err := newSimulationService(repo).Run(context.Background(), &SimulationRequest{
		StudyID:     1,
		Respondents: 5,
		Seed:        42,
		Workers:     2,
	})
	require.NoError(t, err)

	assert.Equal(t, uint(1), summary.StudyID)
	assert.Equal(t, 5, summary.Respondents)
	require.Len(t, summary.Sessions, 5)

	// Every simulated respondent finishes in a terminal state within the
	// study's item limits.
	for _, sess := range summary.Sessions {
		assert.True(t, sess.Status.Terminal())
		assert.GreaterOrEqual(t, sess.ItemsGiven, 1)
		assert.LessOrEqual(t, sess.ItemsGiven, 3)
		assert.Greater(t, sess.SE, 0.0)
	}
	assert.GreaterOrEqual(t, summary.MeanItems, 1.0)
	assert.LessOrEqual(t, summary.MeanItems, 3.0)
	assert.Greater(t, summary.MeanSE, 0.0)
	assert.GreaterOrEqual(t, summary.RMSE, 0.0)
}

func TestSimulationService_Run_Deterministic(t *testing.T) {
	repo := newMockRepository()
	study := fixtureStudy(fixtureBank(10), fixtureStudyConfig())
	repo.studyRepo.On("GetByIDWithBank", mock.Anything, uint(1)).Return(study, nil)

	svc := newSimulationService(repo)
	req := &SimulationRequest{StudyID: 1, Respondents: 8, Seed: 1234, Workers: 4}

	first, err := svc.Run(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.Sessions, second.Sessions)
	assert.Equal(t, first.RMSE, second.RMSE)
}

func TestSimulationService_Run_EmptyBank(t *testing.T) {
	repo := newMockRepository()
	study := fixtureStudy(fixtureBank(0), fixtureStudyConfig())
	repo.studyRepo.On("GetByIDWithBank", mock.Anything, uint(1)).Return(study, nil)

	_, err := newSimulationService(repo).Run(context.Background(), &SimulationRequest{
		StudyID:     1,
		Respondents: 3,
	})
	assert.ErrorIs(t, err, ErrBankEmpty)
}

func TestSimulationService_Run_Cancelled(t *testing.T) {
	repo := newMockRepository()
	study := fixtureStudy(fixtureBank(10), fixtureStudyConfig())
	repo.studyRepo.On("GetByIDWithBank", mock.Anything, uint(1)).Return(study, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newSimulationService(repo).Run(ctx, &SimulationRequest{
		StudyID:     1,
		Respondents: 100,
		Workers:     2,
	})
	assert.ErrorIs(t, err, ErrSimulationCancelled)
}

func TestSimulationService_Run_InvalidRequest(t *testing.T) {
	_, err := newSimulationService(newMockRepository()).Run(context.Background(), &SimulationRequest{
		StudyID:     1,
		Respondents: 0,
	})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}
