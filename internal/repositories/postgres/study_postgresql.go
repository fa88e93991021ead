package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/irt-tools/cat-service/internal/models"
	"github.com/irt-tools/cat-service/internal/repositories"
)

type StudyPostgreSQL struct {
	db *gorm.DB
}

func NewStudyPostgreSQL(db *gorm.DB) repositories.StudyRepository {
	return &StudyPostgreSQL{db: db}
}

func (s *StudyPostgreSQL) Create(ctx context.Context, study *models.Study) error {
	return s.db.WithContext(ctx).Create(study).Error
}

func (s *StudyPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Study, error) {
	var study models.Study
	if err := s.db.WithContext(ctx).First(&study, id).Error; err != nil {
		return nil, err
	}
	return &study, nil
}

func (s *StudyPostgreSQL) GetByIDWithBank(ctx context.Context, id uint) (*models.Study, error) {
	var study models.Study
	if err := s.db.WithContext(ctx).
		Preload("Bank.Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Bank").
		First(&study, id).Error; err != nil {
		return nil, err
	}
	return &study, nil
}

func (s *StudyPostgreSQL) Update(ctx context.Context, study *models.Study) error {
	return s.db.WithContext(ctx).Save(study).Error
}

func (s *StudyPostgreSQL) List(ctx context.Context, filters repositories.StudyFilters) ([]*models.Study, int64, error) {
	var studies []*models.Study
	var total int64

	query := s.db.WithContext(ctx).Model(&models.Study{})
	if filters.Status != "" {
		query = query.Where("status = ?", filters.Status)
	}
	if filters.BankID != nil {
		query = query.Where("bank_id = ?", *filters.BankID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPaginationAndSort(query, filters.Limit, filters.Offset, filters.SortBy, filters.SortOrder)
	if err := query.Find(&studies).Error; err != nil {
		return nil, 0, err
	}

	return studies, total, nil
}
