package models

import "time"

// Institution status values. New institutions wait for an administrator.
const (
	InstitutionPending  = "PENDIENTE"
	InstitutionApproved = "APROBADA"
	InstitutionRejected = "RECHAZADA"
)

// Institution is a university, research center or company registered in the system.
type Institution struct {
	ID              uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Nombre          string    `gorm:"column:nombre;not null;uniqueIndex" json:"nombre"`
	Siglas          *string   `gorm:"column:siglas" json:"siglas,omitempty"`
	Tipo            string    `gorm:"column:tipo;not null" json:"tipo"`
	RFC             *string   `gorm:"column:rfc;size:13;uniqueIndex" json:"rfc,omitempty"`
	Descripcion     *string   `gorm:"column:descripcion;type:text" json:"descripcion,omitempty"`
	Ubicacion       *string   `gorm:"column:ubicacion" json:"ubicacion,omitempty"`
	Municipio       *string   `gorm:"column:municipio" json:"municipio,omitempty"`
	SitioWeb        *string   `gorm:"column:sitio_web" json:"sitio_web,omitempty"`
	Telefono        *string   `gorm:"column:telefono" json:"telefono,omitempty"`
	Correo          *string   `gorm:"column:correo" json:"correo,omitempty"`
	ImagenURL       *string   `gorm:"column:imagen_url" json:"imagen_url,omitempty"`
	ImagenMiniatura *string   `gorm:"column:imagen_miniatura" json:"imagen_miniatura,omitempty"`
	Estado          string    `gorm:"column:estado;not null;default:PENDIENTE" json:"estado"`
	CreadoPor       *uint     `gorm:"column:creado_por" json:"creado_por,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName explicitly sets the table name for GORM.
func (Institution) TableName() string {
	return "instituciones"
}

// IsValidInstitutionStatus checks if a string is a valid institution status constant
func IsValidInstitutionStatus(s string) bool {
	switch s {
	case InstitutionPending, InstitutionApproved, InstitutionRejected:
		return true
	default:
		return false
	}
}
