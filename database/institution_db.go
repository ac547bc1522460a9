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

const institutionsTable = "instituciones"

var institutionColumns = []string{
	"id", "nombre", "siglas", "tipo", "rfc", "descripcion", "ubicacion", "municipio",
	"sitio_web", "telefono", "correo", "imagen_url", "imagen_miniatura", "estado",
	"creado_por", "created_at", "updated_at",
}

// InstitutionWritableColumns is the allow-list for institution create and update.
var InstitutionWritableColumns = map[string]bool{
	"nombre":      true,
	"siglas":      true,
	"tipo":        true,
	"rfc":         true,
	"descripcion": true,
	"ubicacion":   true,
	"municipio":   true,
	"sitio_web":   true,
	"telefono":    true,
	"correo":      true,
	"imagen_url":  true,
	"estado":      true,
}

type InstitutionFilter struct {
	Estado string
	Search string
	Orden  string
}

func institutionFromRow(row Row) models.Institution {
	return models.Institution{
		ID:              row.Uint("id"),
		Nombre:          row.String("nombre"),
		Siglas:          row.StringPtr("siglas"),
		Tipo:            row.String("tipo"),
		RFC:             row.StringPtr("rfc"),
		Descripcion:     row.StringPtr("descripcion"),
		Ubicacion:       row.StringPtr("ubicacion"),
		Municipio:       row.StringPtr("municipio"),
		SitioWeb:        row.StringPtr("sitio_web"),
		Telefono:        row.StringPtr("telefono"),
		Correo:          row.StringPtr("correo"),
		ImagenURL:       row.StringPtr("imagen_url"),
		ImagenMiniatura: row.StringPtr("imagen_miniatura"),
		Estado:          row.String("estado"),
		CreadoPor:       row.UintPtr("creado_por"),
		CreatedAt:       row.Time("created_at"),
		UpdatedAt:       row.Time("updated_at"),
	}
}

func (s *Store) ListInstitutions(ctx context.Context, filter InstitutionFilter) ([]models.Institution, error) {
	if filter.Orden == "" {
		filter.Orden = DefaultSortOrder
	}
	b := s.sb.Select(institutionColumns...).From(institutionsTable).OrderBy(sortOrderClause(filter.Orden))
	if filter.Estado != "" {
		b = b.Where(sq.Eq{"estado": filter.Estado})
	}
	rows, err := s.FetchRows(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("ListInstitutions failed: %w", err)
	}
	query := textfields.Fold(strings.TrimSpace(filter.Search))
	out := make([]models.Institution, 0, len(rows))
	for _, row := range rows {
		inst := institutionFromRow(row)
		if query != "" && !institutionMatches(inst, query) {
			continue
		}
		out = append(out, inst)
	}
	if filter.Orden == SortNombreNat {
		sortInstitutionsNatural(out)
	}
	return out, nil
}

// institutionMatches is the ?search= filter over name, acronym and municipality.
func institutionMatches(inst models.Institution, foldedQuery string) bool {
	return textfields.ContainsFolded(inst.Nombre, foldedQuery) ||
		textfields.ContainsFoldedNullable(inst.Siglas, foldedQuery) ||
		textfields.ContainsFoldedNullable(inst.Municipio, foldedQuery)
}

func (s *Store) GetInstitutionByID(ctx context.Context, id uint) (models.Institution, error) {
	row, err := s.FetchOne(ctx, s.sb.Select(institutionColumns...).From(institutionsTable).Where(sq.Eq{"id": id}))
	if err != nil {
		return models.Institution{}, fmt.Errorf("GetInstitutionByID failed for ID %d: %w", id, err)
	}
	return institutionFromRow(row), nil
}

// CreateInstitution inserts the allow-listed fields. estado defaults to PENDIENTE.
func (s *Store) CreateInstitution(ctx context.Context, createdBy *uint, fields map[string]interface{}) (uint, error) {
	values := filterAllowed(fields, InstitutionWritableColumns)
	if v, ok := values["estado"]; !ok || v == nil {
		values["estado"] = models.InstitutionPending
	}
	now := time.Now().UTC()
	values["creado_por"] = createdBy
	values["created_at"] = now
	values["updated_at"] = now

	id, err := s.insertReturningID(ctx, s.sb.Insert(institutionsTable).SetMap(values))
	if err != nil {
		return 0, fmt.Errorf("failed to execute CreateInstitution for %v: %w", values["nombre"], err)
	}
	return uint(id), nil
}

func (s *Store) UpdateInstitution(ctx context.Context, id uint, fields map[string]interface{}) error {
	values := filterAllowed(fields, InstitutionWritableColumns)
	if len(values) == 0 {
		return ErrNoFields
	}
	values["updated_at"] = time.Now().UTC()
	b := s.sb.Update(institutionsTable).SetMap(values).Where(sq.Eq{"id": id})
	if err := s.execAffecting(ctx, b); err != nil {
		return fmt.Errorf("failed to execute UpdateInstitution for ID %d: %w", id, err)
	}
	return nil
}

// SetInstitutionThumbnail records the generated thumbnail path.
func (s *Store) SetInstitutionThumbnail(ctx context.Context, id uint, thumbPath string) error {
	b := s.sb.Update(institutionsTable).
		Set("imagen_miniatura", thumbPath).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": id})
	if err := s.execAffecting(ctx, b); err != nil {
		return fmt.Errorf("failed to set thumbnail for institution %d: %w", id, err)
	}
	return nil
}

func (s *Store) DeleteInstitution(ctx context.Context, id uint) error {
	if err := s.execAffecting(ctx, s.sb.Delete(institutionsTable).Where(sq.Eq{"id": id})); err != nil {
		return fmt.Errorf("failed to execute DeleteInstitution for ID %d: %w", id, err)
	}
	return nil
}
