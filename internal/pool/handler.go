package pool

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/richxcame/pool-matching/pkg/common"
	"github.com/richxcame/pool-matching/pkg/validation"
)

// Handler handles HTTP requests for ride pooling
type Handler struct {
	coordinator *Coordinator
}

// NewHandler creates a new pool handler
func NewHandler(coordinator *Coordinator) *Handler {
	return &Handler{coordinator: coordinator}
}

// RegisterRoutes attaches the pool endpoints to the router
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/requests", h.SubmitRequest)
	r.GET("/requests/:id", h.GetRequest)
	r.POST("/requests/:id/cancel", h.CancelRequest)
	r.POST("/requests/:id/confirm", h.ConfirmRequest)
	r.POST("/quote", h.Quote)
	r.GET("/pools/:id", h.GetPool)
}

// bindError reports binding failures with field-level detail when the
// payload failed validation rather than parsing
func bindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		common.ErrorResponse(c, http.StatusBadRequest, validation.NewValidationError(verrs).Error())
		return
	}
	common.ErrorResponse(c, http.StatusBadRequest, "invalid request body")
}

// SubmitRequest submits a ride request and assigns it to a pool
// POST /api/v1/pool/requests
func (h *Handler) SubmitRequest(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	result, err := h.coordinator.Submit(c.Request.Context(), &req)
	if err != nil {
		if appErr, ok := err.(*common.AppError); ok {
			common.AppErrorResponse(c, appErr)
			return
		}
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to submit ride request")
		return
	}

	common.CreatedResponse(c, result)
}

// GetRequest returns a ride request with its pricing history
// GET /api/v1/pool/requests/:id
func (h *Handler) GetRequest(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid request id")
		return
	}

	request, history, err := h.coordinator.Request(c.Request.Context(), id)
	if err != nil {
		if appErr, ok := err.(*common.AppError); ok {
			common.AppErrorResponse(c, appErr)
			return
		}
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to fetch ride request")
		return
	}

	common.SuccessResponse(c, gin.H{
		"request":         request,
		"pricing_history": history,
	})
}

// CancelRequest cancels a ride request; repeating a cancel is idempotent
// POST /api/v1/pool/requests/:id/cancel
func (h *Handler) CancelRequest(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid request id")
		return
	}

	result, err := h.coordinator.Cancel(c.Request.Context(), id)
	if err != nil {
		if appErr, ok := err.(*common.AppError); ok {
			common.AppErrorResponse(c, appErr)
			return
		}
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to cancel ride request")
		return
	}

	common.SuccessResponse(c, result)
}

// ConfirmRequest confirms a matched ride request
// POST /api/v1/pool/requests/:id/confirm
func (h *Handler) ConfirmRequest(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid request id")
		return
	}

	result, err := h.coordinator.Confirm(c.Request.Context(), id)
	if err != nil {
		if appErr, ok := err.(*common.AppError); ok {
			common.AppErrorResponse(c, appErr)
			return
		}
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to confirm ride request")
		return
	}

	common.SuccessResponse(c, result)
}

// Quote prices a trip without creating any state
// POST /api/v1/pool/quote
func (h *Handler) Quote(c *gin.Context) {
	var req QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	quote, err := h.coordinator.Quote(c.Request.Context(), &req)
	if err != nil {
		if appErr, ok := err.(*common.AppError); ok {
			common.AppErrorResponse(c, appErr)
			return
		}
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to price trip")
		return
	}

	common.SuccessResponse(c, quote)
}

// GetPool returns a pool with its current membership
// GET /api/v1/pool/pools/:id
func (h *Handler) GetPool(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid pool id")
		return
	}

	snapshot, err := h.coordinator.PoolSnapshot(c.Request.Context(), id)
	if err != nil {
		if appErr, ok := err.(*common.AppError); ok {
			common.AppErrorResponse(c, appErr)
			return
		}
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to fetch pool")
		return
	}

	common.SuccessResponse(c, snapshot)
}
