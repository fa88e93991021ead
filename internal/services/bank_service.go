package services

import (
	"context"
	"fmt"

	"gorm.io/datatypes"

	"github.com/irt-tools/cat-service/internal/irt"
	"github.com/irt-tools/cat-service/internal/models"
	"github.com/irt-tools/cat-service/internal/repositories"
	"github.com/irt-tools/cat-service/internal/utils"
)

type BankService interface {
	Create(ctx context.Context, req *CreateBankRequest) (*models.ItemBank, error)
	GetByID(ctx context.Context, id uint) (*models.ItemBank, error)
	GetByIDWithItems(ctx context.Context, id uint) (*models.ItemBank, error)
	List(ctx context.Context, filters repositories.BankFilters) ([]*models.ItemBank, int64, error)
	Delete(ctx context.Context, id uint) error
	// ValidateItems reports every malformed item in the bank against its
	// configured model. An empty result means the bank may serve sessions.
	ValidateItems(bank *models.ItemBank) []models.ItemIssue
}

type CreateBankRequest struct {
	Name        string              `json:"name" validate:"required,min=1,max=200"`
	Description *string             `json:"description" validate:"omitempty,max=1000"`
	Model       irt.Model           `json:"model" validate:"required,irt_model"`
	Items       []CreateItemRequest `json:"items" validate:"required,min=1,dive"`
}

type CreateItemRequest struct {
	ExternalID     string    `json:"external_id" validate:"required,min=1,max=100"`
	Content        string    `json:"content" validate:"required"`
	Category       string    `json:"category" validate:"omitempty,max=100"`
	Discrimination float64   `json:"discrimination"`
	Difficulty     float64   `json:"difficulty"`
	Guessing       float64   `json:"guessing"`
	Thresholds     []float64 `json:"thresholds,omitempty"`
}

type bankService struct {
	repo      repositories.Repository
	logger    utils.Logger
	validator *utils.Validator
}

func NewBankService(repo repositories.Repository, logger utils.Logger, validator *utils.Validator) BankService {
	return &bankService{
		repo:      repo,
		logger:    logger,
		validator: validator,
	}
}

func (s *bankService) Create(ctx context.Context, req *CreateBankRequest) (*models.ItemBank, error) {
	s.logger.Info("Creating item bank", "name", req.Name, "model", req.Model, "items", len(req.Items))

	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	bank := &models.ItemBank{
		Name:        req.Name,
		Description: req.Description,
		Model:       req.Model,
	}

	seen := make(map[string]bool, len(req.Items))
	for i, item := range req.Items {
		if seen[item.ExternalID] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateItemID, item.ExternalID)
		}
		seen[item.ExternalID] = true

		bank.Items = append(bank.Items, models.Item{
			ExternalID:     item.ExternalID,
			Position:       i,
			Content:        item.Content,
			Category:       item.Category,
			Discrimination: item.Discrimination,
			Difficulty:     item.Difficulty,
			Guessing:       item.Guessing,
			Thresholds:     datatypes.JSONSlice[float64](item.Thresholds),
		})
	}

	// Parameter problems block creation; report every bad item at once.
	if issues := s.ValidateItems(bank); len(issues) > 0 {
		details := make([]ItemIssueDetail, len(issues))
		for i, issue := range issues {
			details[i] = ItemIssueDetail(issue)
		}
		return nil, &BankValidationError{BankName: req.Name, Issues: details}
	}

	if err := s.repo.Bank().Create(ctx, bank); err != nil {
		return nil, fmt.Errorf("failed to create item bank: %w", err)
	}

	s.logger.Info("Item bank created", "bank_id", bank.ID, "items", len(bank.Items))
	return bank, nil
}

func (s *bankService) GetByID(ctx context.Context, id uint) (*models.ItemBank, error) {
	bank, err := s.repo.Bank().GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrBankNotFound
		}
		return nil, fmt.Errorf("failed to get item bank: %w", err)
	}
	return bank, nil
}

func (s *bankService) GetByIDWithItems(ctx context.Context, id uint) (*models.ItemBank, error) {
	bank, err := s.repo.Bank().GetByIDWithItems(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrBankNotFound
		}
		return nil, fmt.Errorf("failed to get item bank with items: %w", err)
	}
	return bank, nil
}

func (s *bankService) List(ctx context.Context, filters repositories.BankFilters) ([]*models.ItemBank, int64, error) {
	banks, total, err := s.repo.Bank().List(ctx, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list item banks: %w", err)
	}
	return banks, total, nil
}

func (s *bankService) Delete(ctx context.Context, id uint) error {
	studies, _, err := s.repo.Study().List(ctx, repositories.StudyFilters{BankID: &id})
	if err != nil {
		return fmt.Errorf("failed to check bank usage: %w", err)
	}
	if len(studies) > 0 {
		return ErrBankInUse
	}

	if err := s.repo.Bank().Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete item bank: %w", err)
	}
	return nil
}

func (s *bankService) ValidateItems(bank *models.ItemBank) []models.ItemIssue {
	var issues []models.ItemIssue
	for i := range bank.Items {
		item := &bank.Items[i]
		if err := item.Params().Validate(bank.Model); err != nil {
			issues = append(issues, models.ItemIssue{
				ExternalID: item.ExternalID,
				Position:   item.Position,
				Message:    err.Error(),
			})
		}
	}
	return issues
}
