package repository

import (
	"errors"

	"github.com/sei-platform/seibackend/models"
	"gorm.io/gorm"
)

type GormConnectionRepository struct {
	db *gorm.DB
}

func NewGormConnectionRepository(db *gorm.DB) ConnectionRepository {
	return &GormConnectionRepository{db: db}
}

func (r *GormConnectionRepository) Create(conn *models.Connection) error {
	if conn.Estado == "" {
		conn.Estado = models.ConnectionPending
	}
	return r.db.Create(conn).Error
}

func (r *GormConnectionRepository) GetByID(id uint) (*models.Connection, error) {
	var conn models.Connection
	err := r.db.Preload("Solicitante").Preload("Destinatario").First(&conn, id).Error
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

// FindBetween returns the connection joining a and b in either direction, or nil when
// there is none.
func (r *GormConnectionRepository) FindBetween(a, b uint) (*models.Connection, error) {
	var conn models.Connection
	err := r.db.
		Where("(solicitante_id = ? AND destinatario_id = ?) OR (solicitante_id = ? AND destinatario_id = ?)", a, b, b, a).
		First(&conn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

// ListForResearcher lists connections where the researcher is either party, newest first.
// An empty estado lists every state.
func (r *GormConnectionRepository) ListForResearcher(researcherID uint, estado string) ([]models.Connection, error) {
	var conns []models.Connection
	q := r.db.Preload("Solicitante").Preload("Destinatario").
		Where("solicitante_id = ? OR destinatario_id = ?", researcherID, researcherID)
	if estado != "" {
		q = q.Where("estado = ?", estado)
	}
	err := q.Order("created_at DESC").Order("id DESC").Find(&conns).Error
	return conns, err
}

func (r *GormConnectionRepository) UpdateEstado(id uint, estado string) error {
	result := r.db.Model(&models.Connection{}).Where("id = ?", id).Update("estado", estado)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormConnectionRepository) Delete(id uint) error {
	result := r.db.Delete(&models.Connection{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
