package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/depix/seem_server/internal/api/middleware"
	"github.com/depix/seem_server/internal/model/dto"
	"github.com/depix/seem_server/internal/pkg/response"
	"github.com/depix/seem_server/internal/pkg/sl"
	"github.com/depix/seem_server/internal/service"
)

type CreditsHandler struct {
	creditService *service.CreditService
	log           *slog.Logger
}

func NewCreditsHandler(creditService *service.CreditService, log *slog.Logger) *CreditsHandler {
	return &CreditsHandler{
		creditService: creditService,
		log:           log,
	}
}

// Options 可选参数和计费规则
// GET /api/v1/generate/options
func (h *CreditsHandler) Options(c *gin.Context) {
	response.Success(c, h.creditService.Options())
}

// Estimate 预估积分
// GET /api/v1/credits/estimate?numImages=2&renderingSpeed=QUALITY&hasReference=true
func (h *CreditsHandler) Estimate(c *gin.Context) {
	var req dto.EstimateRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.ValidationError(c, bindErrors(c, &req, err))
		return
	}

	response.Success(c, h.creditService.Estimate(&req))
}

// Transactions 积分流水
// GET /api/v1/credits/transactions
func (h *CreditsHandler) Transactions(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req dto.PageRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.ValidationError(c, bindErrors(c, &req, err))
		return
	}
	req.Normalize()

	items, total, err := h.creditService.Transactions(userID, req.Page, req.PageSize)
	if err != nil {
		h.log.Error("list credit transactions failed", slog.String("user_id", userID), sl.Err(err))
		response.ServerError(c, "")
		return
	}

	response.SuccessPage(c, total, req.Page, req.PageSize, items)
}
