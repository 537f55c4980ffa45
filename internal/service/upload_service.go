package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/depix/seem_server/config"
	"github.com/depix/seem_server/internal/model/dto"
	"github.com/depix/seem_server/internal/pkg/sl"
	"github.com/depix/seem_server/internal/pkg/storage"
)

var (
	ErrStorageDisabled = errors.New("object storage is not configured")
	ErrFileTooLarge    = errors.New("file is too large")
	ErrInvalidFormat   = errors.New("unsupported image format")
)

type UploadService struct {
	store storage.ObjectStore
	cfg   config.UploadConfig
	log   *slog.Logger
}

// NewUploadService store 为 nil 时上传接口不可用
func NewUploadService(store storage.ObjectStore, cfg config.UploadConfig, log *slog.Logger) *UploadService {
	return &UploadService{store: store, cfg: cfg, log: log}
}

// ReadImage 读取并校验一张图片，供上传和生成请求共用
func (s *UploadService) ReadImage(r io.Reader) (*storage.Object, error) {
	data, err := storage.ReadLimited(r, s.cfg.MaxSize)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return nil, ErrFileTooLarge
		}
		return nil, err
	}
	obj, err := storage.Sniff(data, s.cfg.AllowedMimeTypes)
	if err != nil {
		return nil, ErrInvalidFormat
	}
	return obj, nil
}

// UploadReference 保存参考图，返回可在 characterReferenceUrl 中使用的地址
func (s *UploadService) UploadReference(ctx context.Context, userID string, r io.Reader) (*dto.UploadResponse, error) {
	if s.store == nil {
		return nil, ErrStorageDisabled
	}

	obj, err := s.ReadImage(r)
	if err != nil {
		return nil, err
	}

	url, err := s.store.Put(ctx, storage.ReferenceKey(userID, obj.Extension), obj.Data, obj.ContentType)
	if err != nil {
		s.log.Error("failed to store reference image", slog.String("user_id", userID), sl.Err(err))
		return nil, fmt.Errorf("store reference: %w", err)
	}

	return &dto.UploadResponse{URL: url}, nil
}
