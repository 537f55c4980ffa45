package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/depix/seem_server/internal/model"
	"github.com/depix/seem_server/internal/model/dto"
	"github.com/depix/seem_server/internal/pkg/credits"
	"github.com/depix/seem_server/internal/pkg/ideogram"
	"github.com/depix/seem_server/internal/pkg/metrics"
	"github.com/depix/seem_server/internal/pkg/pubsub"
	"github.com/depix/seem_server/internal/pkg/sl"
	"github.com/depix/seem_server/internal/pkg/storage"
	"github.com/depix/seem_server/internal/repository"
)

var (
	ErrGenerationNotFound   = errors.New("generation not found")
	ErrGenerationFailed     = errors.New("image generation failed")
	ErrReferenceUnavailable = errors.New("character reference image could not be loaded")
)

// 写入 generation.error_code 的内部错误
const (
	errorCodeInternal   = "internal_error"
	errorCodeSettlement = "settlement_failed"
	errorCodeTimeout    = "timeout"
)

// ImageGenerator 上游图片生成
type ImageGenerator interface {
	Generate(ctx context.Context, req ideogram.Request) (*ideogram.Result, error)
}

// StatusPublisher 推送生成状态变化
type StatusPublisher interface {
	PublishStatus(ctx context.Context, msg *pubsub.StatusMessage) error
}

// ObjectFetcher 按 URL 下载图片
type ObjectFetcher interface {
	Fetch(ctx context.Context, url string) (*storage.Object, error)
}

// ReferenceImages 随表单上传的参考图
type ReferenceImages struct {
	Image *ideogram.Image
	Mask  *ideogram.Image
}

type GenerationService struct {
	db             *gorm.DB
	generationRepo *repository.GenerationRepository
	creditService  *CreditService
	generator      ImageGenerator
	store          storage.ObjectStore
	fetcher        ObjectFetcher
	publisher      StatusPublisher
	metrics        *metrics.Metrics
	mirror         bool
	log            *slog.Logger
	now            func() time.Time
}

type GenerationOption func(*GenerationService)

// WithObjectStore 保存参考图，mirror 为 true 时同时转存生成结果
func WithObjectStore(store storage.ObjectStore, mirror bool) GenerationOption {
	return func(s *GenerationService) {
		s.store = store
		s.mirror = mirror
	}
}

func WithFetcher(f ObjectFetcher) GenerationOption {
	return func(s *GenerationService) { s.fetcher = f }
}

func WithPublisher(p StatusPublisher) GenerationOption {
	return func(s *GenerationService) { s.publisher = p }
}

func WithMetrics(m *metrics.Metrics) GenerationOption {
	return func(s *GenerationService) { s.metrics = m }
}

func NewGenerationService(
	db *gorm.DB,
	generationRepo *repository.GenerationRepository,
	creditService *CreditService,
	generator ImageGenerator,
	log *slog.Logger,
	opts ...GenerationOption,
) *GenerationService {
	s := &GenerationService{
		db:             db,
		generationRepo: generationRepo,
		creditService:  creditService,
		generator:      generator,
		log:            log,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate 执行一次完整的生成流程。
// 上游失败时记录 failed 并返回包装了 *ideogram.APIError 的 ErrGenerationFailed，积分不变。
func (s *GenerationService) Generate(ctx context.Context, userID string, req *dto.GenerateRequest, ref *ReferenceImages) (*dto.GenerationResult, error) {
	req.ApplyDefaults()
	if ref == nil {
		ref = &ReferenceImages{}
	}

	profile, err := s.creditService.Authorize(userID)
	if err != nil {
		return nil, err
	}

	hasReference := ref.Image != nil || req.CharacterReferenceURL != ""
	required := credits.Required(req.Images(), req.RenderingSpeed, hasReference)
	if err := s.creditService.Check(profile, required); err != nil {
		return nil, err
	}

	referenceURL, err := s.resolveReference(ctx, userID, req, ref)
	if err != nil {
		return nil, err
	}

	gen := &model.Generation{
		ID:             uuid.NewString(),
		UserID:         userID,
		Prompt:         req.Prompt,
		AspectRatio:    req.AspectRatio,
		StyleType:      req.StyleType,
		NumImages:      req.Images(),
		RenderingSpeed: req.RenderingSpeed,
		MagicPrompt:    *req.MagicPrompt,
		HasReference:   hasReference,
		CreditsUsed:    required,
	}
	if referenceURL != "" {
		gen.CharacterReferenceURL = &referenceURL
	}
	if err := s.generationRepo.Create(gen); err != nil {
		return nil, fmt.Errorf("create generation: %w", err)
	}
	s.publish(ctx, gen, nil)

	if err := s.generationRepo.MarkGenerating(gen.ID); err != nil {
		s.fail(ctx, gen, errorCodeInternal, "could not start generation")
		return nil, fmt.Errorf("mark generating: %w", err)
	}
	gen.Status = model.GenerationGenerating
	s.publish(ctx, gen, nil)

	// 客户端断开不应中断已经发出的付费请求，超时由 http.Client 控制
	upstreamCtx := context.WithoutCancel(ctx)
	start := s.now()
	result, err := s.generator.Generate(upstreamCtx, ideogram.Request{
		Prompt:         gen.Prompt,
		AspectRatio:    gen.AspectRatio,
		StyleType:      gen.StyleType,
		RenderingSpeed: gen.RenderingSpeed,
		NumImages:      gen.NumImages,
		MagicPrompt:    gen.MagicPrompt,
		Reference:      ref.Image,
		ReferenceMask:  ref.Mask,
	})
	s.metrics.ObserveUpstream(s.now().Sub(start))
	if err != nil {
		code := "upstream_error"
		var apiErr *ideogram.APIError
		if errors.As(err, &apiErr) {
			code = apiErr.Code()
		}
		s.log.Warn("upstream generation failed",
			slog.String("generation_id", gen.ID),
			slog.String("error_code", code),
			sl.Err(err))
		s.fail(upstreamCtx, gen, code, err.Error())
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	images := s.mirrorImages(upstreamCtx, userID, gen.ID, result.URLs())

	var remaining int
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.generationRepo.WithTx(tx).Complete(gen.ID, images); err != nil {
			return fmt.Errorf("complete generation: %w", err)
		}
		balance, err := s.creditService.Settle(tx, userID, gen.ID, required)
		if err != nil {
			return err
		}
		remaining = balance
		return nil
	})
	if err != nil {
		s.log.Error("failed to settle generation",
			slog.String("generation_id", gen.ID),
			slog.Any("images", images),
			sl.Err(err))
		s.fail(upstreamCtx, gen, errorCodeSettlement, "could not record generation result")
		return nil, err
	}

	gen.Status = model.GenerationCompleted
	gen.GeneratedImages = images
	s.metrics.ObserveGeneration(model.GenerationCompleted, "")
	s.metrics.AddCreditsCharged(required)
	s.publish(upstreamCtx, gen, &remaining)

	s.log.Info("generation completed",
		slog.String("generation_id", gen.ID),
		slog.String("user_id", userID),
		slog.Int("images", len(images)),
		slog.Int("credits_used", required),
		slog.Int("remaining_credits", remaining))

	return &dto.GenerationResult{
		ID:               gen.ID,
		Images:           images,
		CreditsUsed:      required,
		RemainingCredits: remaining,
	}, nil
}

// resolveReference 确定参考图来源。
// 上传的文件优先，有存储后端时保存并返回其 URL；否则按 characterReferenceUrl 从本存储下载。
func (s *GenerationService) resolveReference(ctx context.Context, userID string, req *dto.GenerateRequest, ref *ReferenceImages) (string, error) {
	if ref.Image != nil {
		if s.store == nil {
			return req.CharacterReferenceURL, nil
		}
		obj, err := storage.Sniff(ref.Image.Data, nil)
		if err != nil {
			return req.CharacterReferenceURL, nil
		}
		url, err := s.store.Put(ctx, storage.ReferenceKey(userID, obj.Extension), obj.Data, obj.ContentType)
		if err != nil {
			// 参考图已随请求发送，保存失败不影响生成
			s.log.Warn("failed to store reference image", slog.String("user_id", userID), sl.Err(err))
			return req.CharacterReferenceURL, nil
		}
		return url, nil
	}

	if req.CharacterReferenceURL == "" {
		return "", nil
	}
	// 只下载本存储里的参考图，其他地址一律拒绝，不发起请求
	if s.fetcher == nil || s.store == nil || !s.store.Owns(req.CharacterReferenceURL) {
		return "", ErrReferenceUnavailable
	}
	obj, err := s.fetcher.Fetch(ctx, req.CharacterReferenceURL)
	if err != nil {
		s.log.Info("failed to fetch reference image", slog.String("url", req.CharacterReferenceURL), sl.Err(err))
		return "", fmt.Errorf("%w: %w", ErrReferenceUnavailable, err)
	}
	ref.Image = &ideogram.Image{
		Filename:    "reference" + obj.Extension,
		ContentType: obj.ContentType,
		Data:        obj.Data,
	}
	return req.CharacterReferenceURL, nil
}

// mirrorImages 把上游返回的临时链接转存到自己的存储，单张失败时保留原链接
func (s *GenerationService) mirrorImages(ctx context.Context, userID, generationID string, urls []string) []string {
	if !s.mirror || s.store == nil || s.fetcher == nil {
		return urls
	}

	mirrored := make([]string, len(urls))
	for i, u := range urls {
		mirrored[i] = u
		obj, err := s.fetcher.Fetch(ctx, u)
		if err != nil {
			s.log.Warn("failed to download generated image", slog.String("generation_id", generationID), sl.Err(err))
			continue
		}
		stored, err := s.store.Put(ctx, storage.GeneratedKey(userID, generationID, i, obj.Extension), obj.Data, obj.ContentType)
		if err != nil {
			s.log.Warn("failed to mirror generated image", slog.String("generation_id", generationID), sl.Err(err))
			continue
		}
		mirrored[i] = stored
	}
	return mirrored
}

func (s *GenerationService) fail(ctx context.Context, gen *model.Generation, code, message string) {
	if err := s.generationRepo.Fail(gen.ID, code, message); err != nil {
		s.log.Error("failed to mark generation failed",
			slog.String("generation_id", gen.ID),
			sl.Err(err))
		return
	}
	gen.Status = model.GenerationFailed
	gen.ErrorCode = code
	gen.ErrorMessage = message
	s.metrics.ObserveGeneration(model.GenerationFailed, code)
	s.publish(ctx, gen, nil)
}

func (s *GenerationService) publish(ctx context.Context, gen *model.Generation, remaining *int) {
	if s.publisher == nil {
		return
	}
	msg := &pubsub.StatusMessage{
		Type:             pubsub.TypeGenerationStatus,
		UserID:           gen.UserID,
		GenerationID:     gen.ID,
		Status:           gen.Status,
		Images:           gen.GeneratedImages,
		CreditsUsed:      gen.CreditsUsed,
		RemainingCredits: remaining,
		ErrorCode:        gen.ErrorCode,
		Error:            gen.ErrorMessage,
	}
	if err := s.publisher.PublishStatus(ctx, msg); err != nil {
		s.log.Warn("failed to publish generation status",
			slog.String("generation_id", gen.ID),
			sl.Err(err))
	}
}

// Get 获取自己的生成记录
func (s *GenerationService) Get(userID, id string) (*dto.GenerationInfo, error) {
	gen, err := s.generationRepo.GetByIDAndUser(id, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrGenerationNotFound
		}
		return nil, err
	}
	return buildGenerationInfo(gen), nil
}

// List 分页获取生成历史，按创建时间倒序
func (s *GenerationService) List(userID string, req *dto.GenerationListRequest) ([]*dto.GenerationInfo, int64, error) {
	gens, total, err := s.generationRepo.ListByUser(userID, req.Status, req.Page, req.PageSize)
	if err != nil {
		return nil, 0, err
	}
	items := make([]*dto.GenerationInfo, 0, len(gens))
	for _, g := range gens {
		items = append(items, buildGenerationInfo(g))
	}
	return items, total, nil
}

// FailStale 把停留在 pending/generating 超过 staleAfter 的记录标记为超时失败
func (s *GenerationService) FailStale(ctx context.Context, staleAfter time.Duration, limit int) (int, error) {
	stale, err := s.generationRepo.ListStale(s.now().Add(-staleAfter), limit)
	if err != nil {
		return 0, err
	}

	failed := 0
	for _, gen := range stale {
		err := s.generationRepo.Fail(gen.ID, errorCodeTimeout, "generation did not finish in time")
		if errors.Is(err, repository.ErrInvalidTransition) {
			// 在查询之后完成了
			continue
		}
		if err != nil {
			return failed, fmt.Errorf("fail generation %s: %w", gen.ID, err)
		}
		gen.Status = model.GenerationFailed
		gen.ErrorCode = errorCodeTimeout
		gen.ErrorMessage = "generation did not finish in time"
		s.metrics.ObserveGeneration(model.GenerationFailed, errorCodeTimeout)
		s.publish(ctx, gen, nil)
		failed++
	}
	return failed, nil
}

func buildGenerationInfo(g *model.Generation) *dto.GenerationInfo {
	info := &dto.GenerationInfo{
		ID:             g.ID,
		Prompt:         g.Prompt,
		AspectRatio:    g.AspectRatio,
		StyleType:      g.StyleType,
		NumImages:      g.NumImages,
		RenderingSpeed: g.RenderingSpeed,
		MagicPrompt:    g.MagicPrompt,
		HasReference:   g.HasReference,
		Images:         []string(g.GeneratedImages),
		Status:         g.Status,
		CreditsUsed:    g.CreditsUsed,
		ErrorCode:      g.ErrorCode,
		ErrorMessage:   g.ErrorMessage,
		StartedAt:      g.StartedAt,
		CompletedAt:    g.CompletedAt,
		CreatedAt:      g.CreatedAt,
	}
	if info.Images == nil {
		info.Images = []string{}
	}
	if g.CharacterReferenceURL != nil {
		info.CharacterReferenceURL = *g.CharacterReferenceURL
	}
	return info
}
