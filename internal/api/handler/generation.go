package handler

import (
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/depix/seem_server/internal/api/middleware"
	"github.com/depix/seem_server/internal/model/dto"
	"github.com/depix/seem_server/internal/pkg/ideogram"
	"github.com/depix/seem_server/internal/pkg/response"
	"github.com/depix/seem_server/internal/pkg/sl"
	"github.com/depix/seem_server/internal/service"
)

const (
	fieldReferenceImage = "characterReferenceImage"
	fieldReferenceMask  = "characterReferenceMask"
)

type GenerationHandler struct {
	generationService *service.GenerationService
	uploadService     *service.UploadService
	log               *slog.Logger
}

func NewGenerationHandler(generationService *service.GenerationService, uploadService *service.UploadService, log *slog.Logger) *GenerationHandler {
	return &GenerationHandler{
		generationService: generationService,
		uploadService:     uploadService,
		log:               log,
	}
}

// Generate 生成图片
// POST /api/v1/generate
func (h *GenerationHandler) Generate(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req dto.GenerateRequest
	var errs []response.FieldError
	if err := c.ShouldBind(&req); err != nil {
		errs = bindErrors(c, &req, err)
	}

	ref := &service.ReferenceImages{}
	image, err := h.readImage(c, fieldReferenceImage)
	if err != nil {
		errs = mergeFieldErrors(errs, *err)
	}
	mask, err := h.readImage(c, fieldReferenceMask)
	if err != nil {
		errs = mergeFieldErrors(errs, *err)
	}
	if mask != nil && image == nil {
		errs = mergeFieldErrors(errs, response.FieldError{
			Field:   fieldReferenceMask,
			Message: "requires " + fieldReferenceImage,
		})
	}
	if len(errs) > 0 {
		response.ValidationError(c, errs)
		return
	}
	ref.Image = image
	ref.Mask = mask

	result, genErr := h.generationService.Generate(c.Request.Context(), userID, &req, ref)
	if genErr != nil {
		h.writeGenerateError(c, userID, genErr)
		return
	}

	response.Success(c, dto.GenerateResponse{Generation: result})
}

// readImage 读取可选的图片字段，未提交时返回 nil
func (h *GenerationHandler) readImage(c *gin.Context, field string) (*ideogram.Image, *response.FieldError) {
	fh, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, &response.FieldError{Field: field, Message: "could not read file"}
	}
	return h.openImage(fh, field)
}

func (h *GenerationHandler) openImage(fh *multipart.FileHeader, field string) (*ideogram.Image, *response.FieldError) {
	f, err := fh.Open()
	if err != nil {
		return nil, &response.FieldError{Field: field, Message: "could not read file"}
	}
	defer f.Close()

	obj, err := h.uploadService.ReadImage(f)
	if err != nil {
		return nil, &response.FieldError{Field: field, Message: uploadErrorMessage(err)}
	}
	return &ideogram.Image{
		Filename:    fh.Filename,
		ContentType: obj.ContentType,
		Data:        obj.Data,
	}, nil
}

func (h *GenerationHandler) writeGenerateError(c *gin.Context, userID string, err error) {
	var short *service.InsufficientCreditsError
	switch {
	case errors.As(err, &short):
		response.InsufficientCreditsError(c, short.Required, short.Available)
	case errors.Is(err, service.ErrProfileNotFound):
		response.NotFoundError(c, "profile not found")
	case errors.Is(err, service.ErrAccountInactive):
		response.PermissionError(c, "account is inactive")
	case errors.Is(err, service.ErrReferenceUnavailable):
		response.ValidationError(c, []response.FieldError{{
			Field:   "characterReferenceUrl",
			Message: "could not be loaded",
		}})
	case errors.Is(err, ideogram.ErrBadRequest), errors.Is(err, ideogram.ErrValidation):
		response.ParamError(c, "the image service rejected the request")
	case errors.Is(err, ideogram.ErrRateLimited):
		response.RateLimitError(c, "the image service is busy, please retry later")
	case errors.Is(err, service.ErrGenerationFailed):
		response.UpstreamError(c, "")
	default:
		h.log.Error("generate failed", slog.String("user_id", userID), sl.Err(err))
		response.ServerError(c, "")
	}
}

// List 生成历史
// GET /api/v1/generations
func (h *GenerationHandler) List(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req dto.GenerationListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.ValidationError(c, bindErrors(c, &req, err))
		return
	}
	req.Normalize()

	items, total, err := h.generationService.List(userID, &req)
	if err != nil {
		h.log.Error("list generations failed", slog.String("user_id", userID), sl.Err(err))
		response.ServerError(c, "")
		return
	}

	response.SuccessPage(c, total, req.Page, req.PageSize, items)
}

// Get 生成记录详情
// GET /api/v1/generations/:id
func (h *GenerationHandler) Get(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	info, err := h.generationService.Get(userID, c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrGenerationNotFound) {
			response.NotFoundError(c, "generation not found")
			return
		}
		response.ServerError(c, "")
		return
	}

	response.Success(c, info)
}
