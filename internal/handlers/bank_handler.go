package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/irt-tools/cat-service/internal/repositories"
	"github.com/irt-tools/cat-service/internal/services"
	"github.com/irt-tools/cat-service/internal/utils"
)

type BankHandler struct {
	BaseHandler
	bankService services.BankService
	validator   *utils.Validator
}

func NewBankHandler(bankService services.BankService, validator *utils.Validator, logger utils.Logger) *BankHandler {
	return &BankHandler{
		BaseHandler: NewBaseHandler(logger),
		bankService: bankService,
		validator:   validator,
	}
}

// CreateBank creates an item bank with its calibrated items
// @Summary Create item bank
// @Tags banks
// @Accept json
// @Produce json
// @Param bank body services.CreateBankRequest true "Bank data"
// @Success 201 {object} models.ItemBank
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /banks [post]
func (h *BankHandler) CreateBank(c *gin.Context) {
	h.LogRequest(c, "Creating item bank")

	var req services.CreateBankRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	bank, err := h.bankService.Create(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, bank)
}

// GetBank returns an item bank without its items
// @Summary Get item bank
// @Tags banks
// @Produce json
// @Param id path uint true "Bank ID"
// @Success 200 {object} models.ItemBank
// @Failure 404 {object} ErrorResponse
// @Router /banks/{id} [get]
func (h *BankHandler) GetBank(c *gin.Context) {
	id := parseUintParam(c, "id")
	if id == 0 {
		return
	}

	bank, err := h.bankService.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, bank)
}

// GetBankWithItems returns an item bank including its items
// @Summary Get item bank with items
// @Tags banks
// @Produce json
// @Param id path uint true "Bank ID"
// @Success 200 {object} models.ItemBank
// @Failure 404 {object} ErrorResponse
// @Router /banks/{id}/items [get]
func (h *BankHandler) GetBankWithItems(c *gin.Context) {
	id := parseUintParam(c, "id")
	if id == 0 {
		return
	}

	bank, err := h.bankService.GetByIDWithItems(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, bank)
}

// ListBanks lists item banks
// @Summary List item banks
// @Tags banks
// @Produce json
// @Success 200 {object} ListResponse
// @Router /banks [get]
func (h *BankHandler) ListBanks(c *gin.Context) {
	limit, offset := parsePagination(c)
	filters := repositories.BankFilters{
		Limit:     limit,
		Offset:    offset,
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if model := c.Query("model"); model != "" {
		filters.Model = &model
	}

	banks, total, err := h.bankService.List(c.Request.Context(), filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, ListResponse{Data: banks, Total: total})
}

// ValidateBank re-runs item parameter validation on a stored bank
// @Summary Validate item bank
// @Tags banks
// @Produce json
// @Param id path uint true "Bank ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Router /banks/{id}/validate [post]
func (h *BankHandler) ValidateBank(c *gin.Context) {
	id := parseUintParam(c, "id")
	if id == 0 {
		return
	}

	bank, err := h.bankService.GetByIDWithItems(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	issues := h.bankService.ValidateItems(bank)
	if len(issues) > 0 {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: "Item bank has invalid items",
			Details: issues,
		})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Item bank is valid"})
}

// DeleteBank deletes an unused item bank
// @Summary Delete item bank
// @Tags banks
// @Param id path uint true "Bank ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /banks/{id} [delete]
func (h *BankHandler) DeleteBank(c *gin.Context) {
	id := parseUintParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Deleting item bank", "bank_id", id)

	if err := h.bankService.Delete(c.Request.Context(), id); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
