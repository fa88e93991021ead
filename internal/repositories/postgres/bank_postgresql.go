package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/irt-tools/cat-service/internal/models"
	"github.com/irt-tools/cat-service/internal/repositories"
)

type BankPostgreSQL struct {
	db *gorm.DB
}

func NewBankPostgreSQL(db *gorm.DB) repositories.BankRepository {
	return &BankPostgreSQL{db: db}
}

func (b *BankPostgreSQL) Create(ctx context.Context, bank *models.ItemBank) error {
	return b.db.WithContext(ctx).Create(bank).Error
}

func (b *BankPostgreSQL) GetByID(ctx context.Context, id uint) (*models.ItemBank, error) {
	var bank models.ItemBank
	if err := b.db.WithContext(ctx).First(&bank, id).Error; err != nil {
		return nil, err
	}
	return &bank, nil
}

func (b *BankPostgreSQL) GetByIDWithItems(ctx context.Context, id uint) (*models.ItemBank, error) {
	var bank models.ItemBank
	if err := b.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&bank, id).Error; err != nil {
		return nil, err
	}
	return &bank, nil
}

func (b *BankPostgreSQL) Update(ctx context.Context, bank *models.ItemBank) error {
	return b.db.WithContext(ctx).Save(bank).Error
}

func (b *BankPostgreSQL) Delete(ctx context.Context, id uint) error {
	return b.db.WithContext(ctx).Delete(&models.ItemBank{}, id).Error
}

func (b *BankPostgreSQL) List(ctx context.Context, filters repositories.BankFilters) ([]*models.ItemBank, int64, error) {
	var banks []*models.ItemBank
	var total int64

	query := b.db.WithContext(ctx).Model(&models.ItemBank{})
	if filters.Model != nil {
		query = query.Where("model = ?", *filters.Model)
	}
	if filters.DateFrom != nil {
		query = query.Where("created_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("created_at <= ?", *filters.DateTo)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPaginationAndSort(query, filters.Limit, filters.Offset, filters.SortBy, filters.SortOrder)
	if err := query.Find(&banks).Error; err != nil {
		return nil, 0, err
	}

	return banks, total, nil
}

// applyPaginationAndSort is shared by the list queries in this package.
func applyPaginationAndSort(query *gorm.DB, limit, offset int, sortBy, sortOrder string) *gorm.DB {
	if sortBy == "" {
		sortBy = "created_at"
	}
	if sortOrder != "asc" {
		sortOrder = "desc"
	}
	query = query.Order(sortBy + " " + sortOrder)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	return query
}
