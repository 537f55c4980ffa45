package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/depix/seem_server/config"
	"github.com/depix/seem_server/internal/model"
	"github.com/depix/seem_server/internal/model/dto"
	"github.com/depix/seem_server/internal/pkg/metrics"
	"github.com/depix/seem_server/internal/pkg/paddle"
	"github.com/depix/seem_server/internal/pkg/sl"
	"github.com/depix/seem_server/internal/repository"
)

var (
	ErrUnknownPlan       = errors.New("unknown plan")
	ErrCheckoutFailed    = errors.New("could not create checkout")
	ErrInvalidSignature  = errors.New("invalid webhook signature")
	ErrMalformedEvent    = errors.New("malformed webhook event")
	ErrUnresolvableEvent = errors.New("webhook event does not reference a known user or plan")
)

// Paddle custom_data 中的键
const (
	customDataUserID = "user_id"
	customDataPlan   = "plan"
)

// webhook 处理结果，用作指标标签
const (
	webhookProcessed = "processed"
	webhookDuplicate = "duplicate"
	webhookIgnored   = "ignored"
	webhookRejected  = "rejected"
	webhookFailed    = "failed"
)

// CheckoutCreator 创建 Paddle 交易
type CheckoutCreator interface {
	CreateTransaction(ctx context.Context, req paddle.CreateTransactionRequest) (*paddle.Transaction, error)
}

// SignatureVerifier 校验 webhook 签名
type SignatureVerifier interface {
	Verify(header string, body []byte) error
}

// PlanMailer 套餐开通通知
type PlanMailer interface {
	Enabled() bool
	SendPlanActivated(to, planName string, credits int) error
}

type BillingService struct {
	db            *gorm.DB
	cfg           *config.Config
	checkout      CheckoutCreator
	verifier      SignatureVerifier
	profileRepo   *repository.ProfileRepository
	eventRepo     *repository.PaymentEventRepository
	creditService *CreditService
	mailer        PlanMailer
	metrics       *metrics.Metrics
	log           *slog.Logger
}

func NewBillingService(
	db *gorm.DB,
	cfg *config.Config,
	checkout CheckoutCreator,
	verifier SignatureVerifier,
	profileRepo *repository.ProfileRepository,
	eventRepo *repository.PaymentEventRepository,
	creditService *CreditService,
	mailer PlanMailer,
	m *metrics.Metrics,
	log *slog.Logger,
) *BillingService {
	return &BillingService{
		db:            db,
		cfg:           cfg,
		checkout:      checkout,
		verifier:      verifier,
		profileRepo:   profileRepo,
		eventRepo:     eventRepo,
		creditService: creditService,
		mailer:        mailer,
		metrics:       m,
		log:           log,
	}
}

// Checkout 为套餐创建一笔 Paddle 交易
func (s *BillingService) Checkout(ctx context.Context, userID string, req *dto.CheckoutRequest) (*dto.CheckoutResponse, error) {
	plan, ok := s.cfg.Plans[req.Plan]
	if !ok || plan.PaddlePriceID == "" {
		return nil, ErrUnknownPlan
	}

	if _, err := s.profileRepo.GetByID(userID); err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}

	txn, err := s.checkout.CreateTransaction(ctx, paddle.CreateTransactionRequest{
		Items: []paddle.TransactionItem{{PriceID: plan.PaddlePriceID, Quantity: 1}},
		CustomData: map[string]string{
			customDataUserID: userID,
			customDataPlan:   req.Plan,
		},
	})
	if err != nil {
		s.log.Error("paddle checkout failed", slog.String("user_id", userID), slog.String("plan", req.Plan), sl.Err(err))
		return nil, fmt.Errorf("%w: %w", ErrCheckoutFailed, err)
	}

	return &dto.CheckoutResponse{
		TransactionID: txn.ID,
		CheckoutURL:   txn.CheckoutURL(),
	}, nil
}

// HandleWebhook 校验签名并处理事件。同一 event_id 只处理一次
func (s *BillingService) HandleWebhook(ctx context.Context, signature string, body []byte) error {
	if err := s.verifier.Verify(signature, body); err != nil {
		s.metrics.ObserveWebhook("unknown", webhookRejected)
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}

	event, err := paddle.ParseEvent(body)
	if err != nil {
		s.metrics.ObserveWebhook("unknown", webhookRejected)
		return fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}

	outcome, err := s.processEvent(ctx, event)
	if err != nil {
		outcome = webhookFailed
	}
	s.metrics.ObserveWebhook(event.EventType, outcome)

	log := s.log.With(slog.String("event_id", event.EventID), slog.String("event_type", event.EventType))
	if err != nil {
		log.Error("failed to process paddle event", sl.Err(err))
		return err
	}
	log.Info("paddle event handled", slog.String("outcome", outcome))
	return nil
}

func (s *BillingService) processEvent(_ context.Context, event *paddle.Event) (string, error) {
	seen, err := s.eventRepo.Exists(event.EventID)
	if err != nil {
		return "", err
	}
	if seen {
		return webhookDuplicate, nil
	}

	data, err := event.ParseData()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}

	record := &model.PaymentEvent{
		EventID:   event.EventID,
		EventType: event.EventType,
		ProfileID: data.CustomData[customDataUserID],
	}

	switch event.EventType {
	case paddle.EventTransactionCompleted:
		return s.activatePlan(record, data)
	case paddle.EventSubscriptionCanceled:
		return s.cancelPlan(record)
	default:
		// 记录下来，重放时直接跳过
		if err := s.eventRepo.Create(record); err != nil {
			return "", err
		}
		return webhookIgnored, nil
	}
}

func (s *BillingService) activatePlan(record *model.PaymentEvent, data *paddle.EventData) (string, error) {
	planName, plan, ok := s.resolvePlan(data)
	if !ok || record.ProfileID == "" {
		return "", ErrUnresolvableEvent
	}
	record.Plan = planName

	var profile *model.Profile
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.eventRepo.WithTx(tx).Create(record); err != nil {
			return err
		}

		repo := s.profileRepo.WithTx(tx)
		before, err := repo.Balance(record.ProfileID)
		if err != nil {
			if repository.IsNotFound(err) {
				return ErrUnresolvableEvent
			}
			return err
		}
		// 套餐额度直接覆盖余额
		if err := repo.AssignPlan(record.ProfileID, planName, plan.Credits); err != nil {
			return err
		}
		if err := s.creditService.Grant(tx, record.ProfileID, plan.Credits-before, plan.Credits, "plan "+planName); err != nil {
			return err
		}

		profile, err = repo.GetByID(record.ProfileID)
		return err
	})
	if err != nil {
		return "", err
	}

	if s.mailer != nil && s.mailer.Enabled() {
		displayName := plan.DisplayName
		if displayName == "" {
			displayName = planName
		}
		go func(to string) {
			if err := s.mailer.SendPlanActivated(to, displayName, plan.Credits); err != nil {
				s.log.Warn("failed to send plan email", slog.String("user_id", record.ProfileID), sl.Err(err))
			}
		}(profile.Email)
	}
	return webhookProcessed, nil
}

func (s *BillingService) cancelPlan(record *model.PaymentEvent) (string, error) {
	if record.ProfileID == "" {
		return "", ErrUnresolvableEvent
	}
	record.Plan = model.PlanNone

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.eventRepo.WithTx(tx).Create(record); err != nil {
			return err
		}
		return s.profileRepo.WithTx(tx).ClearPlan(record.ProfileID)
	})
	if err != nil {
		return "", err
	}
	return webhookProcessed, nil
}

// resolvePlan 优先使用结账时写入的 custom_data，其次按 price id 反查
func (s *BillingService) resolvePlan(data *paddle.EventData) (string, config.PlanConfig, bool) {
	if name := data.CustomData[customDataPlan]; name != "" {
		if plan, ok := s.cfg.Plans[name]; ok && model.ValidPlan(name) {
			return name, plan, true
		}
	}
	for _, priceID := range data.PriceIDs() {
		if name, plan, ok := s.cfg.PlanByPriceID(priceID); ok && model.ValidPlan(name) {
			return name, plan, true
		}
	}
	return "", config.PlanConfig{}, false
}
