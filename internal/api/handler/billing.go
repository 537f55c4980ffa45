package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/depix/seem_server/internal/api/middleware"
	"github.com/depix/seem_server/internal/model/dto"
	"github.com/depix/seem_server/internal/pkg/response"
	"github.com/depix/seem_server/internal/pkg/sl"
	"github.com/depix/seem_server/internal/service"
)

const (
	paddleSignatureHeader = "Paddle-Signature"
	maxWebhookBody        = 1 << 20
)

type BillingHandler struct {
	billingService *service.BillingService
	log            *slog.Logger
}

func NewBillingHandler(billingService *service.BillingService, log *slog.Logger) *BillingHandler {
	return &BillingHandler{
		billingService: billingService,
		log:            log,
	}
}

// Checkout 创建 Paddle 结账
// POST /api/v1/paddle/checkout
func (h *BillingHandler) Checkout(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req dto.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, bindErrors(c, &req, err))
		return
	}

	resp, err := h.billingService.Checkout(c.Request.Context(), userID, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownPlan):
			response.ValidationError(c, []response.FieldError{{Field: "plan", Message: "is not available"}})
		case errors.Is(err, service.ErrProfileNotFound):
			response.NotFoundError(c, "profile not found")
		case errors.Is(err, service.ErrCheckoutFailed):
			response.UpstreamError(c, "could not create checkout")
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.Success(c, resp)
}

// Webhook Paddle 事件回调。非 2xx 时 Paddle 会重试
// POST /api/v1/webhooks/paddle
func (h *BillingHandler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		response.ParamError(c, "could not read body")
		return
	}

	err = h.billingService.HandleWebhook(c.Request.Context(), c.GetHeader(paddleSignatureHeader), body)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidSignature):
			h.log.Warn("rejected paddle webhook", slog.String("ip", c.ClientIP()), sl.Err(err))
			response.AuthError(c, "invalid signature")
		case errors.Is(err, service.ErrMalformedEvent), errors.Is(err, service.ErrUnresolvableEvent):
			response.ParamError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.Success(c, nil)
}
