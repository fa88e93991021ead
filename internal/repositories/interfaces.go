package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/irt-tools/cat-service/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type BankFilters struct {
	Model     *string    `json:"model"`
	DateFrom  *time.Time `json:"date_from"`
	DateTo    *time.Time `json:"date_to"`
	Limit     int        `json:"limit"`
	Offset    int        `json:"offset"`
	SortBy    string     `json:"sort_by"`    // "created_at", "name"
	SortOrder string     `json:"sort_order"` // "asc", "desc"
}

type SessionFilters struct {
	Status       models.SessionStatus `json:"status"`
	RespondentID *string              `json:"respondent_id"`
	DateFrom     *time.Time           `json:"date_from"`
	DateTo       *time.Time           `json:"date_to"`
	Limit        int                  `json:"limit"`
	Offset       int                  `json:"offset"`
	SortBy       string               `json:"sort_by"`
	SortOrder    string               `json:"sort_order"`
}

type StudyFilters struct {
	Status    models.StudyStatus `json:"status"`
	BankID    *uint              `json:"bank_id"`
	Limit     int                `json:"limit"`
	Offset    int                `json:"offset"`
	SortBy    string             `json:"sort_by"`
	SortOrder string             `json:"sort_order"`
}

// ===== STATISTICS STRUCTS =====

// StudyStats summarizes completed work within one study.
type StudyStats struct {
	TotalSessions     int     `json:"total_sessions"`
	CompletedSessions int     `json:"completed_sessions"`
	ExhaustedSessions int     `json:"exhausted_sessions"`
	AbandonedSessions int     `json:"abandoned_sessions"`
	MeanItemsGiven    float64 `json:"mean_items_given"`
	MeanSE            float64 `json:"mean_se"`
}

// ===== REPOSITORY INTERFACES =====

type BankRepository interface {
	Create(ctx context.Context, bank *models.ItemBank) error
	GetByID(ctx context.Context, id uint) (*models.ItemBank, error)
	GetByIDWithItems(ctx context.Context, id uint) (*models.ItemBank, error)
	Update(ctx context.Context, bank *models.ItemBank) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, filters BankFilters) ([]*models.ItemBank, int64, error)
}

type StudyRepository interface {
	Create(ctx context.Context, study *models.Study) error
	GetByID(ctx context.Context, id uint) (*models.Study, error)
	GetByIDWithBank(ctx context.Context, id uint) (*models.Study, error)
	Update(ctx context.Context, study *models.Study) error
	List(ctx context.Context, filters StudyFilters) ([]*models.Study, int64, error)
}

type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	Update(ctx context.Context, session *models.Session) error
	GetByStudy(ctx context.Context, studyID uint, filters SessionFilters) ([]*models.Session, int64, error)
	GetActiveByRespondent(ctx context.Context, studyID uint, respondentID string) (*models.Session, error)
	// ExposureCounts returns per-item administration counts and the total
	// session count across a study, for the exposure-balancing filter.
	ExposureCounts(ctx context.Context, studyID uint) (map[string]int, int, error)
	GetStudyStats(ctx context.Context, studyID uint) (*StudyStats, error)
}

// Repository is the aggregate access point the services depend on.
type Repository interface {
	Bank() BankRepository
	Study() StudyRepository
	Session() SessionRepository
	Ping(ctx context.Context) error
	Close() error
}

// IsNotFoundError reports whether err is the storage layer's not-found.
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
