package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/irt-tools/cat-service/internal/models"
	"github.com/irt-tools/cat-service/internal/repositories"
)

type Repository struct {
	db      *gorm.DB
	bank    repositories.BankRepository
	study   repositories.StudyRepository
	session repositories.SessionRepository
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:      db,
		bank:    NewBankPostgreSQL(db),
		study:   NewStudyPostgreSQL(db),
		session: NewSessionPostgreSQL(db),
	}
}

func (r *Repository) Bank() repositories.BankRepository       { return r.bank }
func (r *Repository) Study() repositories.StudyRepository     { return r.study }
func (r *Repository) Session() repositories.SessionRepository { return r.session }

func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AutoMigrate creates or updates the schema for all domain tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.ItemBank{},
		&models.Item{},
		&models.Study{},
		&models.Session{},
	)
}
