package models

import "time"

// Message is a direct message between two researchers.
type Message struct {
	ID             uint        `json:"id" gorm:"primaryKey"`
	RemitenteID    uint        `json:"remitente_id" gorm:"column:remitente_id;not null;index"`
	DestinatarioID uint        `json:"destinatario_id" gorm:"column:destinatario_id;not null;index"`
	Remitente      *Researcher `json:"remitente,omitempty" gorm:"foreignKey:RemitenteID"`
	Destinatario   *Researcher `json:"destinatario,omitempty" gorm:"foreignKey:DestinatarioID"`
	Asunto         *string     `json:"asunto,omitempty" gorm:"column:asunto"`
	Contenido      string      `json:"contenido" gorm:"column:contenido;type:text;not null"`
	Leido          bool        `json:"leido" gorm:"column:leido;not null;default:false"`
	CreatedAt      time.Time   `json:"created_at"`
}

// TableName explicitly sets the table name for GORM.
func (Message) TableName() string {
	return "mensajes"
}

// Involves reports whether researcherID sent or received the message.
func (m *Message) Involves(researcherID uint) bool {
	return m.RemitenteID == researcherID || m.DestinatarioID == researcherID
}
