package models

import "time"

// Researcher is a registered investigator. Institution and area are free text, and the
// publication/project columns hold one hand-typed entry per line.
type Researcher struct {
	ID                     uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID                 *uint   `gorm:"column:user_id;uniqueIndex" json:"user_id,omitempty"`
	NombreCompleto         string  `gorm:"column:nombre_completo;not null" json:"nombre_completo"`
	Correo                 string  `gorm:"column:correo;not null;uniqueIndex" json:"correo"`
	CURP                   *string `gorm:"column:curp;size:18" json:"curp,omitempty"`
	RFC                    *string `gorm:"column:rfc;size:13" json:"rfc,omitempty"`
	Telefono               *string `gorm:"column:telefono" json:"telefono,omitempty"`
	Institucion            *string `gorm:"column:institucion" json:"institucion,omitempty"`
	Area                   *string `gorm:"column:area" json:"area,omitempty"`
	AreaInvestigacion      *string `gorm:"column:area_investigacion" json:"area_investigacion,omitempty"`
	Disciplina             *string `gorm:"column:disciplina" json:"disciplina,omitempty"`
	Especialidad           *string `gorm:"column:especialidad" json:"especialidad,omitempty"`
	LineaInvestigacion     *string `gorm:"column:linea_investigacion" json:"linea_investigacion,omitempty"`
	NivelSNI               *string `gorm:"column:nivel_sni" json:"nivel_sni,omitempty"`
	ProyectosInvestigacion *string `gorm:"column:proyectos_investigacion;type:text" json:"proyectos_investigacion,omitempty"`
	Articulos              *string `gorm:"column:articulos;type:text" json:"articulos,omitempty"`
	Libros                 *string `gorm:"column:libros;type:text" json:"libros,omitempty"`
	CapitulosLibros        *string `gorm:"column:capitulos_libros;type:text" json:"capitulos_libros,omitempty"`
	Memorias               *string `gorm:"column:memorias;type:text" json:"memorias,omitempty"`
	CVURL                  *string `gorm:"column:cv_url" json:"cv_url,omitempty"`
	FotografiaURL          *string `gorm:"column:fotografia_url" json:"fotografia_url,omitempty"`
	Activo                 bool    `gorm:"column:activo;not null;default:true" json:"activo"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName explicitly sets the table name for GORM.
func (Researcher) TableName() string {
	return "investigadores"
}

// FieldKind names one of the multi-value text columns of a researcher.
type FieldKind string

const (
	FieldProyectos FieldKind = "proyecto"
	FieldArticulos FieldKind = "articulo"
	FieldLibros    FieldKind = "libro"
	FieldCapitulos FieldKind = "capitulo"
	FieldMemorias  FieldKind = "memoria"
)

// PublicationKinds are the fields summed into a researcher's publication count.
var PublicationKinds = []FieldKind{FieldArticulos, FieldLibros, FieldCapitulos, FieldMemorias}

// Field returns the raw multi-value column for kind.
func (r *Researcher) Field(kind FieldKind) *string {
	switch kind {
	case FieldProyectos:
		return r.ProyectosInvestigacion
	case FieldArticulos:
		return r.Articulos
	case FieldLibros:
		return r.Libros
	case FieldCapitulos:
		return r.CapitulosLibros
	case FieldMemorias:
		return r.Memorias
	}
	return nil
}

// Label is the human-readable category for entries coming from kind.
func (k FieldKind) Label() string {
	switch k {
	case FieldProyectos:
		return "Proyecto de investigación"
	case FieldArticulos:
		return "Artículo"
	case FieldLibros:
		return "Libro"
	case FieldCapitulos:
		return "Capítulo de libro"
	case FieldMemorias:
		return "Memoria en extenso"
	}
	return "Otro"
}

// IsValidFieldKind reports whether s names a known multi-value column.
func IsValidFieldKind(s string) bool {
	switch FieldKind(s) {
	case FieldProyectos, FieldArticulos, FieldLibros, FieldCapitulos, FieldMemorias:
		return true
	}
	return false
}
