package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/irt-tools/cat-service/internal/models"
	"github.com/irt-tools/cat-service/internal/repositories"
	"github.com/irt-tools/cat-service/internal/services"
	"github.com/irt-tools/cat-service/internal/utils"
)

type StudyHandler struct {
	BaseHandler
	studyService services.StudyService
	validator    *utils.Validator
}

func NewStudyHandler(studyService services.StudyService, validator *utils.Validator, logger utils.Logger) *StudyHandler {
	return &StudyHandler{
		BaseHandler:  NewBaseHandler(logger),
		studyService: studyService,
		validator:    validator,
	}
}

// CreateStudy creates a study from a bank and a study configuration
// @Summary Create study
// @Tags studies
// @Accept json
// @Produce json
// @Param study body services.CreateStudyRequest true "Study data"
// @Success 201 {object} models.Study
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /studies [post]
func (h *StudyHandler) CreateStudy(c *gin.Context) {
	h.LogRequest(c, "Creating study")

	var req services.CreateStudyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	study, err := h.studyService.Create(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, study)
}

// GetStudy returns a study
// @Summary Get study
// @Tags studies
// @Produce json
// @Param id path uint true "Study ID"
// @Success 200 {object} models.Study
// @Failure 404 {object} ErrorResponse
// @Router /studies/{id} [get]
func (h *StudyHandler) GetStudy(c *gin.Context) {
	id := parseUintParam(c, "id")
	if id == 0 {
		return
	}

	study, err := h.studyService.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, study)
}

// ListStudies lists studies
// @Summary List studies
// @Tags studies
// @Produce json
// @Success 200 {object} ListResponse
// @Router /studies [get]
func (h *StudyHandler) ListStudies(c *gin.Context) {
	limit, offset := parsePagination(c)
	filters := repositories.StudyFilters{
		Status:    models.StudyStatus(c.Query("status")),
		Limit:     limit,
		Offset:    offset,
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}

	studies, total, err := h.studyService.List(c.Request.Context(), filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, ListResponse{Data: studies, Total: total})
}

// ActivateStudy opens a study for respondents
// @Summary Activate study
// @Tags studies
// @Produce json
// @Param id path uint true "Study ID"
// @Success 200 {object} models.Study
// @Failure 404 {object} ErrorResponse
// @Router /studies/{id}/activate [post]
func (h *StudyHandler) ActivateStudy(c *gin.Context) {
	id := parseUintParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Activating study", "study_id", id)

	study, err := h.studyService.Activate(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, study)
}

// ArchiveStudy closes a study for new sessions
// @Summary Archive study
// @Tags studies
// @Produce json
// @Param id path uint true "Study ID"
// @Success 200 {object} models.Study
// @Failure 404 {object} ErrorResponse
// @Router /studies/{id}/archive [post]
func (h *StudyHandler) ArchiveStudy(c *gin.Context) {
	id := parseUintParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Archiving study", "study_id", id)

	study, err := h.studyService.Archive(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, study)
}

// GetStudyStats returns session counts and score summaries for a study
// @Summary Get study statistics
// @Tags studies
// @Produce json
// @Param id path uint true "Study ID"
// @Success 200 {object} repositories.StudyStats
// @Failure 404 {object} ErrorResponse
// @Router /studies/{id}/stats [get]
func (h *StudyHandler) GetStudyStats(c *gin.Context) {
	id := parseUintParam(c, "id")
	if id == 0 {
		return
	}

	stats, err := h.studyService.GetStats(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
