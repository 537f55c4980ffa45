package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/depix/seem_server/internal/model"
)

var (
	ErrInvalidTransition = errors.New("invalid generation status transition")
	ErrEmptyImages       = errors.New("completed generation requires at least one image")
	ErrMissingError      = errors.New("failed generation requires an error message")
)

type GenerationRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGenerationRepository(db *gorm.DB) *GenerationRepository {
	return &GenerationRepository{db: db, now: time.Now}
}

func (r *GenerationRepository) WithTx(tx *gorm.DB) *GenerationRepository {
	return &GenerationRepository{db: tx, now: r.now}
}

// Create 新记录总是 pending
func (r *GenerationRepository) Create(gen *model.Generation) error {
	gen.Status = model.GenerationPending
	if gen.GeneratedImages == nil {
		gen.GeneratedImages = model.StringArray{}
	}
	return r.db.Create(gen).Error
}

func (r *GenerationRepository) GetByID(id string) (*model.Generation, error) {
	var gen model.Generation
	err := r.db.Where("id = ?", id).First(&gen).Error
	if err != nil {
		return nil, err
	}
	return &gen, nil
}

func (r *GenerationRepository) GetByIDAndUser(id, userID string) (*model.Generation, error) {
	var gen model.Generation
	err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&gen).Error
	if err != nil {
		return nil, err
	}
	return &gen, nil
}

func (r *GenerationRepository) ListByUser(userID, status string, page, pageSize int) ([]*model.Generation, int64, error) {
	var gens []*model.Generation
	var total int64

	query := r.db.Model(&model.Generation{}).Where("user_id = ?", userID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&gens).Error
	return gens, total, err
}

// MarkGenerating pending -> generating
func (r *GenerationRepository) MarkGenerating(id string) error {
	now := r.now()
	return r.transition(id, []string{model.GenerationPending}, map[string]interface{}{
		"status":     model.GenerationGenerating,
		"started_at": now,
		"updated_at": now,
	})
}

// Complete generating -> completed
func (r *GenerationRepository) Complete(id string, images []string) error {
	if len(images) == 0 {
		return ErrEmptyImages
	}
	now := r.now()
	return r.transition(id, []string{model.GenerationGenerating}, map[string]interface{}{
		"status":           model.GenerationCompleted,
		"generated_images": model.StringArray(images),
		"completed_at":     now,
		"updated_at":       now,
	})
}

// Fail pending/generating -> failed
func (r *GenerationRepository) Fail(id, code, message string) error {
	if message == "" {
		return ErrMissingError
	}
	now := r.now()
	return r.transition(id, []string{model.GenerationPending, model.GenerationGenerating}, map[string]interface{}{
		"status":        model.GenerationFailed,
		"error_code":    code,
		"error_message": message,
		"completed_at":  now,
		"updated_at":    now,
	})
}

// ListStale 查找在 pending/generating 停留超过 before 的记录
func (r *GenerationRepository) ListStale(before time.Time, limit int) ([]*model.Generation, error) {
	var gens []*model.Generation
	err := r.db.Where("status IN ? AND updated_at < ?",
		[]string{model.GenerationPending, model.GenerationGenerating}, before).
		Order("updated_at ASC").
		Limit(limit).
		Find(&gens).Error
	return gens, err
}

// transition 只在当前状态属于 from 时更新，保证状态只向前流转
func (r *GenerationRepository) transition(id string, from []string, fields map[string]interface{}) error {
	result := r.db.Model(&model.Generation{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.Model(&model.Generation{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return gorm.ErrRecordNotFound
		}
		return ErrInvalidTransition
	}
	return nil
}
