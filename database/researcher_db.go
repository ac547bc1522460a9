package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/sei-platform/seibackend/models"
	"github.com/sei-platform/seibackend/textfields"
)

const researchersTable = "investigadores"

var researcherColumns = []string{
	"id", "user_id", "nombre_completo", "correo", "curp", "rfc", "telefono",
	"institucion", "area", "area_investigacion", "disciplina", "especialidad",
	"linea_investigacion", "nivel_sni",
	"proyectos_investigacion", "articulos", "libros", "capitulos_libros", "memorias",
	"cv_url", "fotografia_url", "activo", "created_at", "updated_at",
}

// ResearcherWritableColumns are the columns a registration may set or change.
var ResearcherWritableColumns = map[string]bool{
	"nombre_completo":         true,
	"correo":                  true,
	"curp":                    true,
	"rfc":                     true,
	"telefono":                true,
	"institucion":             true,
	"area":                    true,
	"area_investigacion":      true,
	"disciplina":              true,
	"especialidad":            true,
	"linea_investigacion":     true,
	"nivel_sni":               true,
	"proyectos_investigacion": true,
	"articulos":               true,
	"libros":                  true,
	"capitulos_libros":        true,
	"memorias":                true,
	"fotografia_url":          true,
}

func researcherFromRow(row Row) models.Researcher {
	return models.Researcher{
		ID:                     row.Uint("id"),
		UserID:                 row.UintPtr("user_id"),
		NombreCompleto:         row.String("nombre_completo"),
		Correo:                 row.String("correo"),
		CURP:                   row.StringPtr("curp"),
		RFC:                    row.StringPtr("rfc"),
		Telefono:               row.StringPtr("telefono"),
		Institucion:            row.StringPtr("institucion"),
		Area:                   row.StringPtr("area"),
		AreaInvestigacion:      row.StringPtr("area_investigacion"),
		Disciplina:             row.StringPtr("disciplina"),
		Especialidad:           row.StringPtr("especialidad"),
		LineaInvestigacion:     row.StringPtr("linea_investigacion"),
		NivelSNI:               row.StringPtr("nivel_sni"),
		ProyectosInvestigacion: row.StringPtr("proyectos_investigacion"),
		Articulos:              row.StringPtr("articulos"),
		Libros:                 row.StringPtr("libros"),
		CapitulosLibros:        row.StringPtr("capitulos_libros"),
		Memorias:               row.StringPtr("memorias"),
		CVURL:                  row.StringPtr("cv_url"),
		FotografiaURL:          row.StringPtr("fotografia_url"),
		Activo:                 row.Bool("activo"),
		CreatedAt:              row.Time("created_at"),
		UpdatedAt:              row.Time("updated_at"),
	}
}

func (s *Store) researchers(ctx context.Context, b sq.SelectBuilder) ([]models.Researcher, error) {
	rows, err := s.FetchRows(ctx, b)
	if err != nil {
		return nil, err
	}
	out := make([]models.Researcher, 0, len(rows))
	for _, row := range rows {
		out = append(out, researcherFromRow(row))
	}
	return out, nil
}

// ListActiveResearchers returns every active researcher in id order. This is the single
// read the aggregation and search paths are built on.
func (s *Store) ListActiveResearchers(ctx context.Context) ([]models.Researcher, error) {
	b := s.sb.Select(researcherColumns...).
		From(researchersTable).
		Where(sq.Eq{"activo": true}).
		OrderBy("id ASC")
	researchers, err := s.researchers(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("ListActiveResearchers failed: %w", err)
	}
	return researchers, nil
}

// ListResearchers returns every researcher, including deactivated ones, in id order.
func (s *Store) ListResearchers(ctx context.Context) ([]models.Researcher, error) {
	b := s.sb.Select(researcherColumns...).From(researchersTable).OrderBy("id ASC")
	researchers, err := s.researchers(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("ListResearchers failed: %w", err)
	}
	return researchers, nil
}

func (s *Store) GetResearcherByID(ctx context.Context, id uint) (models.Researcher, error) {
	row, err := s.FetchOne(ctx, s.sb.Select(researcherColumns...).From(researchersTable).Where(sq.Eq{"id": id}))
	if err != nil {
		return models.Researcher{}, fmt.Errorf("GetResearcherByID failed for ID %d: %w", id, err)
	}
	return researcherFromRow(row), nil
}

func (s *Store) GetResearcherByUserID(ctx context.Context, userID uint) (models.Researcher, error) {
	row, err := s.FetchOne(ctx, s.sb.Select(researcherColumns...).From(researchersTable).Where(sq.Eq{"user_id": userID}))
	if err != nil {
		return models.Researcher{}, fmt.Errorf("GetResearcherByUserID failed for user %d: %w", userID, err)
	}
	return researcherFromRow(row), nil
}

// FindResearchersByName returns active researchers whose name contains every token of
// name, ignoring case and accents. Matching runs in Go since SQLite's LOWER only folds ASCII.
func (s *Store) FindResearchersByName(ctx context.Context, name string) ([]models.Researcher, error) {
	tokens := strings.Fields(textfields.Fold(name))
	if len(tokens) == 0 {
		return []models.Researcher{}, nil
	}
	active, err := s.ListActiveResearchers(ctx)
	if err != nil {
		return nil, fmt.Errorf("FindResearchersByName failed for '%s': %w", name, err)
	}
	out := make([]models.Researcher, 0)
	for _, r := range active {
		if containsAllTokens(r.NombreCompleto, tokens) {
			out = append(out, r)
		}
	}
	return out, nil
}

func containsAllTokens(field string, foldedTokens []string) bool {
	folded := textfields.Fold(field)
	for _, tok := range foldedTokens {
		if !strings.Contains(folded, tok) {
			return false
		}
	}
	return true
}

// CreateResearcher inserts a registration owned by userID. Only writable columns are kept.
func (s *Store) CreateResearcher(ctx context.Context, userID *uint, fields map[string]interface{}) (uint, error) {
	values := filterAllowed(fields, ResearcherWritableColumns)
	now := time.Now().UTC()
	values["user_id"] = userID
	values["activo"] = true
	values["created_at"] = now
	values["updated_at"] = now

	id, err := s.insertReturningID(ctx, s.sb.Insert(researchersTable).SetMap(values))
	if err != nil {
		return 0, fmt.Errorf("failed to execute CreateResearcher for %v: %w", values["correo"], err)
	}
	return uint(id), nil
}

// UpdateResearcher applies the allow-listed subset of fields.
func (s *Store) UpdateResearcher(ctx context.Context, id uint, fields map[string]interface{}) error {
	values := filterAllowed(fields, ResearcherWritableColumns)
	if len(values) == 0 {
		return ErrNoFields
	}
	values["updated_at"] = time.Now().UTC()
	b := s.sb.Update(researchersTable).SetMap(values).Where(sq.Eq{"id": id})
	if err := s.execAffecting(ctx, b); err != nil {
		return fmt.Errorf("failed to execute UpdateResearcher for ID %d: %w", id, err)
	}
	return nil
}

// SetResearcherActive is the soft delete (and undelete) of a registration.
func (s *Store) SetResearcherActive(ctx context.Context, id uint, active bool) error {
	b := s.sb.Update(researchersTable).
		Set("activo", active).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": id})
	if err := s.execAffecting(ctx, b); err != nil {
		return fmt.Errorf("failed to set activo=%t for researcher %d: %w", active, id, err)
	}
	return nil
}

func (s *Store) SetResearcherCV(ctx context.Context, id uint, cvURL string) error {
	b := s.sb.Update(researchersTable).
		Set("cv_url", cvURL).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": id})
	if err := s.execAffecting(ctx, b); err != nil {
		return fmt.Errorf("failed to set CV for researcher %d: %w", id, err)
	}
	return nil
}
