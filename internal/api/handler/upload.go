package handler

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/depix/seem_server/internal/api/middleware"
	"github.com/depix/seem_server/internal/pkg/response"
	"github.com/depix/seem_server/internal/pkg/sl"
	"github.com/depix/seem_server/internal/service"
)

type UploadHandler struct {
	uploadService *service.UploadService
	log           *slog.Logger
}

func NewUploadHandler(uploadService *service.UploadService, log *slog.Logger) *UploadHandler {
	return &UploadHandler{
		uploadService: uploadService,
		log:           log,
	}
}

// Reference 上传参考图，返回的 url 用于 characterReferenceUrl
// POST /api/v1/uploads/reference
func (h *UploadHandler) Reference(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	fh, err := c.FormFile("file")
	if err != nil {
		response.ValidationError(c, []response.FieldError{{Field: "file", Message: "is required"}})
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.ValidationError(c, []response.FieldError{{Field: "file", Message: "could not read file"}})
		return
	}
	defer f.Close()

	resp, err := h.uploadService.UploadReference(c.Request.Context(), userID, f)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrFileTooLarge), errors.Is(err, service.ErrInvalidFormat):
			response.ValidationError(c, []response.FieldError{{Field: "file", Message: uploadErrorMessage(err)}})
		case errors.Is(err, service.ErrStorageDisabled):
			response.NotFoundError(c, "uploads are not enabled")
		default:
			h.log.Error("reference upload failed", slog.String("user_id", userID), sl.Err(err))
			response.ServerError(c, "upload failed")
		}
		return
	}

	response.Success(c, resp)
}

func uploadErrorMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrFileTooLarge):
		return "file is too large"
	case errors.Is(err, service.ErrInvalidFormat):
		return "must be a JPEG, PNG or WebP image"
	default:
		return "could not read file"
	}
}
