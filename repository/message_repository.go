package repository

import (
	"github.com/sei-platform/seibackend/models"
	"gorm.io/gorm"
)

type GormMessageRepository struct {
	db *gorm.DB
}

func NewGormMessageRepository(db *gorm.DB) MessageRepository {
	return &GormMessageRepository{db: db}
}

func (r *GormMessageRepository) Create(msg *models.Message) error {
	return r.db.Create(msg).Error
}

func (r *GormMessageRepository) GetByID(id uint) (*models.Message, error) {
	var msg models.Message
	if err := r.db.First(&msg, id).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListForResearcher returns messages sent or received by the researcher, newest first.
// counterpartID narrows the list to one conversation.
func (r *GormMessageRepository) ListForResearcher(researcherID uint, counterpartID *uint) ([]models.Message, error) {
	var msgs []models.Message
	q := r.db.Preload("Remitente").Preload("Destinatario")
	if counterpartID != nil {
		q = q.Where("(remitente_id = ? AND destinatario_id = ?) OR (remitente_id = ? AND destinatario_id = ?)",
			researcherID, *counterpartID, *counterpartID, researcherID)
	} else {
		q = q.Where("remitente_id = ? OR destinatario_id = ?", researcherID, researcherID)
	}
	err := q.Order("created_at DESC").Order("id DESC").Find(&msgs).Error
	return msgs, err
}

func (r *GormMessageRepository) MarkRead(id uint) error {
	result := r.db.Model(&models.Message{}).Where("id = ?", id).Update("leido", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormMessageRepository) CountUnread(researcherID uint) (int64, error) {
	var n int64
	err := r.db.Model(&models.Message{}).Where("destinatario_id = ? AND leido = ?", researcherID, false).Count(&n).Error
	return n, err
}

func (r *GormMessageRepository) Delete(id uint) error {
	result := r.db.Delete(&models.Message{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
