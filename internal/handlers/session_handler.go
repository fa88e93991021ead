package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/irt-tools/cat-service/internal/models"
	"github.com/irt-tools/cat-service/internal/repositories"
	"github.com/irt-tools/cat-service/internal/services"
	"github.com/irt-tools/cat-service/internal/utils"
)

type SessionHandler struct {
	BaseHandler
	sessionService services.SessionService
	validator      *utils.Validator
}

func NewSessionHandler(sessionService services.SessionService, validator *utils.Validator, logger utils.Logger) *SessionHandler {
	return &SessionHandler{
		BaseHandler:    NewBaseHandler(logger),
		sessionService: sessionService,
		validator:      validator,
	}
}

// StartSession starts a new session, or resumes the respondent's unfinished one
// @Summary Start session
// @Tags sessions
// @Accept json
// @Produce json
// @Param session body services.StartSessionRequest true "Session data"
// @Success 201 {object} services.SessionStep
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /sessions/start [post]
func (h *SessionHandler) StartSession(c *gin.Context) {
	h.LogRequest(c, "Starting session")

	var req services.StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	step, err := h.sessionService.Start(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, step)
}

// SubmitAnswer records a response and returns the next item
// @Summary Submit answer
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param answer body services.AnswerRequest true "Answer data"
// @Success 200 {object} services.SessionStep
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /sessions/{id}/answer [post]
func (h *SessionHandler) SubmitAnswer(c *gin.Context) {
	id := parseStringIDParam(c, "id")
	if id == "" {
		return
	}

	var req services.AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	step, err := h.sessionService.Answer(c.Request.Context(), id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, step)
}

// PauseSession pauses an active session
// @Summary Pause session
// @Tags sessions
// @Param id path string true "Session ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /sessions/{id}/pause [post]
func (h *SessionHandler) PauseSession(c *gin.Context) {
	id := parseStringIDParam(c, "id")
	if id == "" {
		return
	}

	h.LogRequest(c, "Pausing session", "session_id", id)

	if err := h.sessionService.Pause(c.Request.Context(), id); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Session paused"})
}

// ResumeSession reactivates a paused session and returns the pending item
// @Summary Resume session
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} services.SessionStep
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /sessions/{id}/resume [post]
func (h *SessionHandler) ResumeSession(c *gin.Context) {
	id := parseStringIDParam(c, "id")
	if id == "" {
		return
	}

	h.LogRequest(c, "Resuming session", "session_id", id)

	step, err := h.sessionService.Resume(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, step)
}

// AbandonSession terminates a session the respondent will not finish
// @Summary Abandon session
// @Tags sessions
// @Param id path string true "Session ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /sessions/{id}/abandon [post]
func (h *SessionHandler) AbandonSession(c *gin.Context) {
	id := parseStringIDParam(c, "id")
	if id == "" {
		return
	}

	h.LogRequest(c, "Abandoning session", "session_id", id)

	if err := h.sessionService.Abandon(c.Request.Context(), id); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Session abandoned"})
}

// GetSession returns the full session record
// @Summary Get session
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} models.Session
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id} [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	id := parseStringIDParam(c, "id")
	if id == "" {
		return
	}

	session, err := h.sessionService.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// ListStudySessions lists a study's sessions
// @Summary List study sessions
// @Tags sessions
// @Produce json
// @Param id path uint true "Study ID"
// @Success 200 {object} ListResponse
// @Failure 404 {object} ErrorResponse
// @Router /studies/{id}/sessions [get]
func (h *SessionHandler) ListStudySessions(c *gin.Context) {
	studyID := parseUintParam(c, "id")
	if studyID == 0 {
		return
	}

	limit, offset := parsePagination(c)
	filters := repositories.SessionFilters{
		Status:    models.SessionStatus(c.Query("status")),
		Limit:     limit,
		Offset:    offset,
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if respondent := c.Query("respondent_id"); respondent != "" {
		filters.RespondentID = &respondent
	}

	sessions, total, err := h.sessionService.ListByStudy(c.Request.Context(), studyID, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, ListResponse{Data: sessions, Total: total})
}
