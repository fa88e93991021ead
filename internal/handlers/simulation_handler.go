package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/irt-tools/cat-service/internal/services"
	"github.com/irt-tools/cat-service/internal/utils"
)

type SimulationHandler struct {
	BaseHandler
	simulationService services.SimulationService
}

func NewSimulationHandler(simulationService services.SimulationService, logger utils.Logger) *SimulationHandler {
	return &SimulationHandler{
		BaseHandler:       NewBaseHandler(logger),
		simulationService: simulationService,
	}
}

// RunSimulation simulates a batch of respondents against a study
// @Summary Run simulation batch
// @Tags simulation
// @Accept json
// @Produce json
// @Param simulation body services.SimulationRequest true "Simulation parameters"
// @Success 200 {object} services.SimulationSummary
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /simulations [post]
func (h *SimulationHandler) RunSimulation(c *gin.Context) {
	h.LogRequest(c, "Running simulation batch")

	var req services.SimulationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	summary, err := h.simulationService.Run(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}
