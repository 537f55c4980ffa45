package repository

import (
	"gorm.io/gorm"

	"github.com/depix/seem_server/internal/model"
)

type CredentialRepository struct {
	db *gorm.DB
}

func NewCredentialRepository(db *gorm.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

func (r *CredentialRepository) WithTx(tx *gorm.DB) *CredentialRepository {
	return &CredentialRepository{db: tx}
}

func (r *CredentialRepository) Create(cred *model.Credential) error {
	return r.db.Create(cred).Error
}

func (r *CredentialRepository) GetByEmail(email string) (*model.Credential, error) {
	var cred model.Credential
	err := r.db.Where("email = ?", email).First(&cred).Error
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

func (r *CredentialRepository) ExistsByEmail(email string) (bool, error) {
	var count int64
	err := r.db.Model(&model.Credential{}).Where("email = ?", email).Count(&count).Error
	return count > 0, err
}
