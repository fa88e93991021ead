package services

import (
	"context"
	"fmt"

	"gorm.io/datatypes"

	"github.com/irt-tools/cat-service/internal/config"
	"github.com/irt-tools/cat-service/internal/models"
	"github.com/irt-tools/cat-service/internal/repositories"
	"github.com/irt-tools/cat-service/internal/utils"
)

type StudyService interface {
	Create(ctx context.Context, req *CreateStudyRequest) (*models.Study, error)
	GetByID(ctx context.Context, id uint) (*models.Study, error)
	GetByIDWithBank(ctx context.Context, id uint) (*models.Study, error)
	List(ctx context.Context, filters repositories.StudyFilters) ([]*models.Study, int64, error)
	Activate(ctx context.Context, id uint) (*models.Study, error)
	Archive(ctx context.Context, id uint) (*models.Study, error)
	GetStats(ctx context.Context, id uint) (*repositories.StudyStats, error)
}

type CreateStudyRequest struct {
	Name   string             `json:"name" validate:"required,min=1,max=200"`
	BankID uint               `json:"bank_id" validate:"required"`
	Config config.StudyConfig `json:"config"`
}

type studyService struct {
	repo      repositories.Repository
	banks     BankService
	logger    utils.Logger
	validator *utils.Validator
}

func NewStudyService(repo repositories.Repository, banks BankService, logger utils.Logger, validator *utils.Validator) StudyService {
	return &studyService{
		repo:      repo,
		banks:     banks,
		logger:    logger,
		validator: validator,
	}
}

// Create validates the study configuration and the bank it points at. Both
// are fatal before launch: a study with a bad config or a bad bank never
// reaches a respondent.
func (s *studyService) Create(ctx context.Context, req *CreateStudyRequest) (*models.Study, error) {
	s.logger.Info("Creating study", "name", req.Name, "bank_id", req.BankID)

	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	cfg := req.Config
	cfg.ApplyDefaults()
	if cfg.Name == "" {
		cfg.Name = req.Name
	}
	if err := s.validator.ValidateStudyConfig(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStudyConfigBad, err)
	}

	bank, err := s.banks.GetByIDWithItems(ctx, req.BankID)
	if err != nil {
		return nil, err
	}
	if bank.Model != cfg.Model {
		return nil, fmt.Errorf("%w: bank %q vs config %q", ErrStudyModelMatch, bank.Model, cfg.Model)
	}
	if issues := s.banks.ValidateItems(bank); len(issues) > 0 {
		details := make([]ItemIssueDetail, len(issues))
		for i, issue := range issues {
			details[i] = ItemIssueDetail(issue)
		}
		return nil, &BankValidationError{BankName: bank.Name, Issues: details}
	}

	study := &models.Study{
		Name:   req.Name,
		BankID: req.BankID,
		Status: models.StudyDraft,
		Config: datatypes.NewJSONType(cfg),
	}

	if err := s.repo.Study().Create(ctx, study); err != nil {
		return nil, fmt.Errorf("failed to create study: %w", err)
	}

	s.logger.Info("Study created", "study_id", study.ID)
	return study, nil
}

func (s *studyService) GetByID(ctx context.Context, id uint) (*models.Study, error) {
	study, err := s.repo.Study().GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrStudyNotFound
		}
		return nil, fmt.Errorf("failed to get study: %w", err)
	}
	return study, nil
}

func (s *studyService) GetByIDWithBank(ctx context.Context, id uint) (*models.Study, error) {
	study, err := s.repo.Study().GetByIDWithBank(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrStudyNotFound
		}
		return nil, fmt.Errorf("failed to get study with bank: %w", err)
	}
	return study, nil
}

func (s *studyService) List(ctx context.Context, filters repositories.StudyFilters) ([]*models.Study, int64, error) {
	studies, total, err := s.repo.Study().List(ctx, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list studies: %w", err)
	}
	return studies, total, nil
}

func (s *studyService) Activate(ctx context.Context, id uint) (*models.Study, error) {
	return s.setStatus(ctx, id, models.StudyActive)
}

func (s *studyService) Archive(ctx context.Context, id uint) (*models.Study, error) {
	return s.setStatus(ctx, id, models.StudyArchived)
}

func (s *studyService) setStatus(ctx context.Context, id uint, status models.StudyStatus) (*models.Study, error) {
	study, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	study.Status = status
	if err := s.repo.Study().Update(ctx, study); err != nil {
		return nil, fmt.Errorf("failed to update study status: %w", err)
	}

	s.logger.Info("Study status updated", "study_id", id, "status", status)
	return study, nil
}

func (s *studyService) GetStats(ctx context.Context, id uint) (*repositories.StudyStats, error) {
	if _, err := s.GetByID(ctx, id); err != nil {
		return nil, err
	}

	stats, err := s.repo.Session().GetStudyStats(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get study stats: %w", err)
	}
	return stats, nil
}
