package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/irt-tools/cat-service/internal/models"
	"github.com/irt-tools/cat-service/internal/repositories"
	"github.com/irt-tools/cat-service/internal/storage"
	"github.com/irt-tools/cat-service/internal/utils"
)

// Export formats for study results.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

const resultSheet = "Results"

type ExportService interface {
	// SessionResult flattens one finished session. Unfinished sessions have
	// no final scores yet and are rejected.
	SessionResult(ctx context.Context, sessionID string) (*models.ResultRow, error)
	StudyResults(ctx context.Context, studyID uint) ([]models.ResultRow, error)
	ExportCSV(ctx context.Context, studyID uint) (string, []byte, error)
	ExportXLSX(ctx context.Context, studyID uint) (string, []byte, error)
	// ArchiveResults renders the study's results in the given format and
	// pushes the file to the study's configured result store.
	ArchiveResults(ctx context.Context, studyID uint, format string) (string, error)
}

type exportService struct {
	repo       repositories.Repository
	studies    StudyService
	logger     utils.Logger
	resultsDir string
}

func NewExportService(repo repositories.Repository, studies StudyService, logger utils.Logger, resultsDir string) ExportService {
	return &exportService{
		repo:       repo,
		studies:    studies,
		logger:     logger,
		resultsDir: resultsDir,
	}
}

func (s *exportService) SessionResult(ctx context.Context, sessionID string) (*models.ResultRow, error) {
	session, err := s.repo.Session().GetByID(ctx, sessionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if !session.Status.Terminal() {
		return nil, ErrSessionNotTerminal
	}
	row := buildResultRow(session)
	return &row, nil
}

func (s *exportService) StudyResults(ctx context.Context, studyID uint) ([]models.ResultRow, error) {
	if _, err := s.studies.GetByID(ctx, studyID); err != nil {
		return nil, err
	}

	sessions, _, err := s.repo.Session().GetByStudy(ctx, studyID, repositories.SessionFilters{
		SortBy:    "started_at",
		SortOrder: "asc",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load study sessions: %w", err)
	}

	rows := make([]models.ResultRow, 0, len(sessions))
	for _, session := range sessions {
		if !session.Status.Terminal() {
			continue
		}
		rows = append(rows, buildResultRow(session))
	}
	return rows, nil
}

func (s *exportService) ExportCSV(ctx context.Context, studyID uint) (string, []byte, error) {
	header, records, err := s.buildTable(ctx, studyID)
	if err != nil {
		return "", nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return "", nil, fmt.Errorf("failed to write csv header: %w", err)
	}
	if err := w.WriteAll(records); err != nil {
		return "", nil, fmt.Errorf("failed to write csv rows: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", nil, fmt.Errorf("failed to flush csv: %w", err)
	}

	return exportFileName(studyID, FormatCSV), buf.Bytes(), nil
}

func (s *exportService) ExportXLSX(ctx context.Context, studyID uint) (string, []byte, error) {
	header, records, err := s.buildTable(ctx, studyID)
	if err != nil {
		return "", nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(resultSheet)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create result sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return "", nil, fmt.Errorf("failed to drop default sheet: %w", err)
	}

	if err := setStringRow(f, 1, header); err != nil {
		return "", nil, err
	}
	for i, record := range records {
		if err := setStringRow(f, i+2, record); err != nil {
			return "", nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return "", nil, fmt.Errorf("failed to render workbook: %w", err)
	}
	return exportFileName(studyID, FormatXLSX), buf.Bytes(), nil
}

func (s *exportService) ArchiveResults(ctx context.Context, studyID uint, format string) (string, error) {
	study, err := s.studies.GetByID(ctx, studyID)
	if err != nil {
		return "", err
	}

	var (
		name string
		data []byte
	)
	switch format {
	case FormatXLSX:
		name, data, err = s.ExportXLSX(ctx, studyID)
	case FormatCSV, "":
		name, data, err = s.ExportCSV(ctx, studyID)
	default:
		return "", fmt.Errorf("%w: unknown export format %q", ErrBadRequest, format)
	}
	if err != nil {
		return "", err
	}

	cfg := study.Config.Data()
	store, err := storage.New(cfg.Storage, s.resultsDir)
	if err != nil {
		return "", fmt.Errorf("failed to build result store: %w", err)
	}
	if err := store.Store(ctx, name, data); err != nil {
		return "", fmt.Errorf("failed to archive results: %w", err)
	}

	s.logger.Info("Study results archived",
		"study_id", studyID, "file", name, "destination", cfg.Storage.Destination, "bytes", len(data))
	return name, nil
}

// buildTable renders the wide result table: one row per finished session,
// demographic columns in config order, one score column per bank item in
// position order. Items a session never saw stay blank.
func (s *exportService) buildTable(ctx context.Context, studyID uint) ([]string, [][]string, error) {
	study, err := s.studies.GetByIDWithBank(ctx, studyID)
	if err != nil {
		return nil, nil, err
	}
	cfg := study.Config.Data()

	var items []models.Item
	if study.Bank != nil {
		items = make([]models.Item, len(study.Bank.Items))
		copy(items, study.Bank.Items)
		sort.Slice(items, func(i, j int) bool { return items[i].Position < items[j].Position })
	}

	rows, err := s.StudyResults(ctx, studyID)
	if err != nil {
		return nil, nil, err
	}

	header := []string{"session_id", "respondent_id", "status"}
	for _, field := range cfg.Demographics {
		header = append(header, "demo_"+field.Name)
	}
	header = append(header, "theta", "se", "items_given", "total_time_ms", "started_at", "completed_at", "item_order")
	for _, item := range items {
		header = append(header, "score_"+item.ExternalID)
	}

	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		record := []string{row.SessionID, row.RespondentID, string(row.Status)}
		for _, field := range cfg.Demographics {
			record = append(record, row.Demographics[field.Name])
		}
		record = append(record,
			formatFloat(row.Theta),
			formatFloat(row.SE),
			strconv.Itoa(row.ItemsGiven),
			strconv.FormatInt(row.TotalTimeMs, 10),
			row.StartedAt.Format(time.RFC3339),
			formatTimePtr(row.CompletedAt),
			joinOrder(row.ItemOrder),
		)
		for _, item := range items {
			if score, ok := row.ItemScores[item.ExternalID]; ok {
				record = append(record, strconv.Itoa(score))
			} else {
				record = append(record, "")
			}
		}
		records = append(records, record)
	}
	return header, records, nil
}

func buildResultRow(session *models.Session) models.ResultRow {
	row := models.ResultRow{
		SessionID:    session.ID,
		RespondentID: session.RespondentID,
		Status:       session.Status,
		Demographics: session.Demographics.Data(),
		ItemScores:   make(map[string]int, len(session.Responses)),
		Theta:        session.Theta,
		SE:           session.SE,
		ItemsGiven:   session.ItemCount(),
		StartedAt:    session.StartedAt,
		CompletedAt:  session.CompletedAt,
	}
	for _, r := range session.Responses {
		row.ItemOrder = append(row.ItemOrder, r.ItemID)
		row.ItemScores[r.ItemID] = r.Score
		row.TotalTimeMs += r.ResponseTimeMs
	}
	return row
}

func exportFileName(studyID uint, format string) string {
	return fmt.Sprintf("study_%d_results_%s.%s", studyID, time.Now().Format("20060102_150405"), format)
}

func setStringRow(f *excelize.File, rowNum int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return fmt.Errorf("failed to address row %d: %w", rowNum, err)
	}
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	if err := f.SetSheetRow(resultSheet, cell, &row); err != nil {
		return fmt.Errorf("failed to write row %d: %w", rowNum, err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func joinOrder(ids []string) string {
	return strings.Join(ids, ";")
}
