package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/mock"
	"gorm.io/datatypes"

	"github.com/irt-tools/cat-service/internal/config"
	"github.com/irt-tools/cat-service/internal/irt"
	"github.com/irt-tools/cat-service/internal/models"
	"github.com/irt-tools/cat-service/internal/repositories"
	"github.com/irt-tools/cat-service/internal/utils"
)

// ===== REPOSITORY MOCKS =====

type MockBankRepository struct {
	mock.Mock
}

func (m *MockBankRepository) Create(ctx context.Context, bank *models.ItemBank) error {
	args := m.Called(ctx, bank)
	return args.Error(0)
}

func (m *MockBankRepository) GetByID(ctx context.Context, id uint) (*models.ItemBank, error) {
	args := m.Called(ctx, id)
	if bank := args.Get(0); bank != nil {
		return bank.(*models.ItemBank), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBankRepository) GetByIDWithItems(ctx context.Context, id uint) (*models.ItemBank, error) {
	args := m.Called(ctx, id)
	if bank := args.Get(0); bank != nil {
		return bank.(*models.ItemBank), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBankRepository) Update(ctx context.Context, bank *models.ItemBank) error {
	args := m.Called(ctx, bank)
	return args.Error(0)
}

func (m *MockBankRepository) Delete(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockBankRepository) List(ctx context.Context, filters repositories.BankFilters) ([]*models.ItemBank, int64, error) {
	args := m.Called(ctx, filters)
	return args.Get(0).([]*models.ItemBank), args.Get(1).(int64), args.Error(2)
}

type MockStudyRepository struct {
	mock.Mock
}

func (m *MockStudyRepository) Create(ctx context.Context, study *models.Study) error {
	args := m.Called(ctx, study)
	return args.Error(0)
}

func (m *MockStudyRepository) GetByID(ctx context.Context, id uint) (*models.Study, error) {
	args := m.Called(ctx, id)
	if study := args.Get(0); study != nil {
		return study.(*models.Study), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStudyRepository) GetByIDWithBank(ctx context.Context, id uint) (*models.Study, error) {
	args := m.Called(ctx, id)
	if study := args.Get(0); study != nil {
		return study.(*models.Study), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStudyRepository) Update(ctx context.Context, study *models.Study) error {
	args := m.Called(ctx, study)
	return args.Error(0)
}

func (m *MockStudyRepository) List(ctx context.Context, filters repositories.StudyFilters) ([]*models.Study, int64, error) {
	args := m.Called(ctx, filters)
	return args.Get(0).([]*models.Study), args.Get(1).(int64), args.Error(2)
}

type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) Create(ctx context.Context, session *models.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	args := m.Called(ctx, id)
	if session := args.Get(0); session != nil {
		return session.(*models.Session), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSessionRepository) Update(ctx context.Context, session *models.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionRepository) GetByStudy(ctx context.Context, studyID uint, filters repositories.SessionFilters) ([]*models.Session, int64, error) {
	args := m.Called(ctx, studyID, filters)
	return args.Get(0).([]*models.Session), args.Get(1).(int64), args.Error(2)
}

func (m *MockSessionRepository) GetActiveByRespondent(ctx context.Context, studyID uint, respondentID string) (*models.Session, error) {
	args := m.Called(ctx, studyID, respondentID)
	if session := args.Get(0); session != nil {
		return session.(*models.Session), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSessionRepository) ExposureCounts(ctx context.Context, studyID uint) (map[string]int, int, error) {
	args := m.Called(ctx, studyID)
	return args.Get(0).(map[string]int), args.Int(1), args.Error(2)
}

func (m *MockSessionRepository) GetStudyStats(ctx context.Context, studyID uint) (*repositories.StudyStats, error) {
	args := m.Called(ctx, studyID)
	if stats := args.Get(0); stats != nil {
		return stats.(*repositories.StudyStats), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockRepository is the aggregate used by the service tests.
type MockRepository struct {
	bankRepo    *MockBankRepository
	studyRepo   *MockStudyRepository
	sessionRepo *MockSessionRepository
}

func newMockRepository() *MockRepository {
	return &MockRepository{
		bankRepo:    &MockBankRepository{},
		studyRepo:   &MockStudyRepository{},
		sessionRepo: &MockSessionRepository{},
	}
}

func (m *MockRepository) Bank() repositories.BankRepository       { return m.bankRepo }
func (m *MockRepository) Study() repositories.StudyRepository     { return m.studyRepo }
func (m *MockRepository) Session() repositories.SessionRepository { return m.sessionRepo }
func (m *MockRepository) Ping(ctx context.Context) error          { return nil }
func (m *MockRepository) Close() error                            { return nil }

func (m *MockRepository) assertExpectations(t *testing.T) {
	m.bankRepo.AssertExpectations(t)
	m.studyRepo.AssertExpectations(t)
	m.sessionRepo.AssertExpectations(t)
}

// ===== SHARED FIXTURES =====

func testLogger() utils.Logger {
	return utils.NewDevelopmentLogger()
}

func testValidator() *utils.Validator {
	return utils.NewValidator()
}

func fixtureBank(n int) *models.ItemBank {
	bank := &models.ItemBank{ID: 1, Name: "Fixture Bank", Model: irt.Model2PL}
	for i := 0; i < n; i++ {
		bank.Items = append(bank.Items, models.Item{
			ID:             uint(i + 1),
			BankID:         1,
			ExternalID:     fmt.Sprintf("item-%d", i),
			Position:       i,
			Content:        fmt.Sprintf("Question %d", i),
			Discrimination: 1 + 0.1*float64(i),
			Difficulty:     -2 + 0.5*float64(i),
		})
	}
	return bank
}

func fixtureStudyConfig() config.StudyConfig {
	cfg := config.StudyConfig{
		Name:        "Fixture Study",
		Model:       irt.Model2PL,
		MinItems:    1,
		MaxItems:    3,
		SEThreshold: 0.3,
		ThetaMin:    -4,
		ThetaMax:    4,
	}
	cfg.ApplyDefaults()
	return cfg
}

func fixtureStudy(bank *models.ItemBank, cfg config.StudyConfig) *models.Study {
	return &models.Study{
		ID:     1,
		Name:   cfg.Name,
		BankID: bank.ID,
		Status: models.StudyActive,
		Config: datatypes.NewJSONType(cfg),
		Bank:   bank,
	}
}
