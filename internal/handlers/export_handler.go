package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/irt-tools/cat-service/internal/services"
	"github.com/irt-tools/cat-service/internal/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ExportHandler struct {
	BaseHandler
	exportService services.ExportService
}

func NewExportHandler(exportService services.ExportService, logger utils.Logger) *ExportHandler {
	return &ExportHandler{
		BaseHandler:   NewBaseHandler(logger),
		exportService: exportService,
	}
}

// GetSessionResult returns one finished session's flattened result
// @Summary Get session result
// @Tags export
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} models.ResultRow
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /sessions/{id}/result [get]
func (h *ExportHandler) GetSessionResult(c *gin.Context) {
	id := parseStringIDParam(c, "id")
	if id == "" {
		return
	}

	row, err := h.exportService.SessionResult(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, row)
}

// GetStudyResults returns the flattened results of all finished sessions
// @Summary Get study results
// @Tags export
// @Produce json
// @Param id path uint true "Study ID"
// @Success 200 {object} ListResponse
// @Failure 404 {object} ErrorResponse
// @Router /studies/{id}/results [get]
func (h *ExportHandler) GetStudyResults(c *gin.Context) {
	studyID := parseUintParam(c, "id")
	if studyID == 0 {
		return
	}

	rows, err := h.exportService.StudyResults(c.Request.Context(), studyID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, ListResponse{Data: rows, Total: int64(len(rows))})
}

// DownloadStudyResults streams the study's results as a CSV or XLSX file
// @Summary Download study results
// @Tags export
// @Produce octet-stream
// @Param id path uint true "Study ID"
// @Param format query string false "csv or xlsx" default(csv)
// @Success 200 {file} binary
// @Failure 404 {object} ErrorResponse
// @Router /studies/{id}/results/download [get]
func (h *ExportHandler) DownloadStudyResults(c *gin.Context) {
	studyID := parseUintParam(c, "id")
	if studyID == 0 {
		return
	}

	h.LogRequest(c, "Downloading study results", "study_id", studyID)

	var (
		name        string
		data        []byte
		contentType string
		err         error
	)
	switch c.DefaultQuery("format", services.FormatCSV) {
	case services.FormatXLSX:
		name, data, err = h.exportService.ExportXLSX(c.Request.Context(), studyID)
		contentType = xlsxContentType
	default:
		name, data, err = h.exportService.ExportCSV(c.Request.Context(), studyID)
		contentType = "text/csv"
	}
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, contentType, data)
}

// ArchiveStudyResults pushes the study's results to its configured store
// @Summary Archive study results
// @Tags export
// @Produce json
// @Param id path uint true "Study ID"
// @Param format query string false "csv or xlsx" default(csv)
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Router /studies/{id}/results/archive [post]
func (h *ExportHandler) ArchiveStudyResults(c *gin.Context) {
	studyID := parseUintParam(c, "id")
	if studyID == 0 {
		return
	}

	h.LogRequest(c, "Archiving study results", "study_id", studyID)

	name, err := h.exportService.ArchiveResults(c.Request.Context(), studyID, c.Query("format"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Study results archived",
		Data:    gin.H{"file": name},
	})
}
