package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/irt-tools/cat-service/internal/models"
	"github.com/irt-tools/cat-service/internal/repositories"
)

type SessionPostgreSQL struct {
	db *gorm.DB
}

func NewSessionPostgreSQL(db *gorm.DB) repositories.SessionRepository {
	return &SessionPostgreSQL{db: db}
}

func (s *SessionPostgreSQL) Create(ctx context.Context, session *models.Session) error {
	return s.db.WithContext(ctx).Create(session).Error
}

func (s *SessionPostgreSQL) GetByID(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	if err := s.db.WithContext(ctx).First(&session, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *SessionPostgreSQL) Update(ctx context.Context, session *models.Session) error {
	return s.db.WithContext(ctx).Save(session).Error
}

func (s *SessionPostgreSQL) GetByStudy(ctx context.Context, studyID uint, filters repositories.SessionFilters) ([]*models.Session, int64, error) {
	var sessions []*models.Session
	var total int64

	query := s.db.WithContext(ctx).Model(&models.Session{}).Where("study_id = ?", studyID)
	if filters.Status != "" {
		query = query.Where("status = ?", filters.Status)
	}
	if filters.RespondentID != nil {
		query = query.Where("respondent_id = ?", *filters.RespondentID)
	}
	if filters.DateFrom != nil {
		query = query.Where("started_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("started_at <= ?", *filters.DateTo)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPaginationAndSort(query, filters.Limit, filters.Offset, filters.SortBy, filters.SortOrder)
	if err := query.Find(&sessions).Error; err != nil {
		return nil, 0, err
	}

	return sessions, total, nil
}

func (s *SessionPostgreSQL) GetActiveByRespondent(ctx context.Context, studyID uint, respondentID string) (*models.Session, error) {
	var session models.Session
	err := s.db.WithContext(ctx).
		Where("study_id = ? AND respondent_id = ? AND status IN ?",
			studyID, respondentID, []models.SessionStatus{models.SessionActive, models.SessionPaused}).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

// ExposureCounts aggregates per-item administration counts in Go rather
// than with jsonb queries; study sizes stay small enough that loading the
// response histories is cheaper than maintaining a counter table.
func (s *SessionPostgreSQL) ExposureCounts(ctx context.Context, studyID uint) (map[string]int, int, error) {
	var sessions []*models.Session
	if err := s.db.WithContext(ctx).
		Select("id", "responses").
		Where("study_id = ?", studyID).
		Find(&sessions).Error; err != nil {
		return nil, 0, err
	}

	counts := make(map[string]int)
	for _, session := range sessions {
		for _, r := range session.Responses {
			counts[r.ItemID]++
		}
	}
	return counts, len(sessions), nil
}

func (s *SessionPostgreSQL) GetStudyStats(ctx context.Context, studyID uint) (*repositories.StudyStats, error) {
	var sessions []*models.Session
	if err := s.db.WithContext(ctx).
		Select("id", "status", "responses", "se").
		Where("study_id = ?", studyID).
		Find(&sessions).Error; err != nil {
		return nil, err
	}

	stats := &repositories.StudyStats{TotalSessions: len(sessions)}
	var itemSum, seSum float64
	var finished int
	for _, session := range sessions {
		switch session.Status {
		case models.SessionCompleted:
			stats.CompletedSessions++
		case models.SessionExhausted:
			stats.ExhaustedSessions++
		case models.SessionAbandoned:
			stats.AbandonedSessions++
		}
		if session.Status == models.SessionCompleted || session.Status == models.SessionExhausted {
			itemSum += float64(len(session.Responses))
			seSum += session.SE
			finished++
		}
	}
	if finished > 0 {
		stats.MeanItemsGiven = itemSum / float64(finished)
		stats.MeanSE = seSum / float64(finished)
	}
	return stats, nil
}
