package models

import "time"

// Connection states.
const (
	ConnectionPending  = "pendiente"
	ConnectionAccepted = "aceptada"
	ConnectionRejected = "rechazada"
)

// Connection is a networking request between two researchers.
type Connection struct {
	ID             uint        `json:"id" gorm:"primaryKey"`
	SolicitanteID  uint        `json:"solicitante_id" gorm:"column:solicitante_id;not null;uniqueIndex:idx_conexion_par"`
	DestinatarioID uint        `json:"destinatario_id" gorm:"column:destinatario_id;not null;uniqueIndex:idx_conexion_par;index"`
	Solicitante    *Researcher `json:"solicitante,omitempty" gorm:"foreignKey:SolicitanteID"`
	Destinatario   *Researcher `json:"destinatario,omitempty" gorm:"foreignKey:DestinatarioID"`
	Mensaje        *string     `json:"mensaje,omitempty" gorm:"column:mensaje;type:text"`
	Estado         string      `json:"estado" gorm:"column:estado;not null;default:pendiente"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// TableName explicitly sets the table name for GORM.
func (Connection) TableName() string {
	return "conexiones"
}

// Involves reports whether researcherID is either side of the connection.
func (c *Connection) Involves(researcherID uint) bool {
	return c.SolicitanteID == researcherID || c.DestinatarioID == researcherID
}

// IsValidConnectionAnswer reports whether s is a state a recipient may answer with.
func IsValidConnectionAnswer(s string) bool {
	return s == ConnectionAccepted || s == ConnectionRejected
}
