package search

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sei-platform/seibackend/models"
	"github.com/sei-platform/seibackend/textfields"
)

// Publication is one entry of a researcher's multi-value text fields, exposed as its own
// record. It is never stored; the ID is only stable while the source text is unchanged.
type Publication struct {
	ID             string           `json:"id"`
	Titulo         string           `json:"titulo"`
	Tipo           models.FieldKind `json:"tipo"`
	Categoria      string           `json:"categoria"`
	Anio           *int             `json:"anio,omitempty"`
	InvestigadorID uint             `json:"investigador_id"`
	Autor          string           `json:"autor"`
	Institucion    string           `json:"institucion"`
	Etiquetas      []string         `json:"etiquetas"`
	Demo           bool             `json:"demo,omitempty"`
}

var yearPattern = regexp.MustCompile(`\b(19[5-9]\d|20\d{2})\b`)

// PublicationID builds the composite key of a derived entry.
func PublicationID(researcherID uint, kind models.FieldKind, index int) string {
	return fmt.Sprintf("%d_%s_%d", researcherID, kind, index)
}

// ParsePublicationID is the inverse of PublicationID.
func ParsePublicationID(id string) (researcherID uint, kind models.FieldKind, index int, err error) {
	parts := strings.Split(id, "_")
	if len(parts) != 3 {
		return 0, "", 0, fmt.Errorf("malformed publication id '%s'", id)
	}
	rid, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return 0, "", 0, fmt.Errorf("malformed researcher id in '%s': %w", id, err)
	}
	if !models.IsValidFieldKind(parts[1]) {
		return 0, "", 0, fmt.Errorf("unknown field kind in '%s'", id)
	}
	idx, err := strconv.Atoi(parts[2])
	if err != nil || idx < 0 {
		return 0, "", 0, fmt.Errorf("malformed index in '%s'", id)
	}
	return uint(rid), models.FieldKind(parts[1]), idx, nil
}

// Tags returns the distinct non-empty area, discipline and specialty values of r.
func Tags(r *models.Researcher) []string {
	tags := []string{}
	seen := map[string]bool{}
	for _, v := range []*string{r.Area, r.AreaInvestigacion, r.Disciplina, r.Especialidad} {
		s := strings.TrimSpace(textfields.Value(v))
		if s == "" {
			continue
		}
		key := textfields.Fold(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		tags = append(tags, s)
	}
	return tags
}

// Derive splits one field of r into publications, indexed from 0 in line order.
func Derive(r *models.Researcher, kind models.FieldKind) []Publication {
	lines := textfields.SplitNullable(r.Field(kind))
	out := make([]Publication, 0, len(lines))
	tags := Tags(r)
	institution := textfields.FirstNonEmpty(InstitutionFallback, r.Institucion)
	for i, line := range lines {
		out = append(out, Publication{
			ID:             PublicationID(r.ID, kind, i),
			Titulo:         line,
			Tipo:           kind,
			Categoria:      kind.Label(),
			Anio:           extractYear(line),
			InvestigadorID: r.ID,
			Autor:          r.NombreCompleto,
			Institucion:    institution,
			Etiquetas:      tags,
		})
	}
	return out
}

// DeriveAll flattens the given fields of every researcher, researcher order first, then
// field order.
func DeriveAll(researchers []models.Researcher, kinds ...models.FieldKind) []Publication {
	out := []Publication{}
	for i := range researchers {
		for _, kind := range kinds {
			out = append(out, Derive(&researchers[i], kind)...)
		}
	}
	return out
}

// InstitutionFallback names the group of researchers without an institution.
const InstitutionFallback = "Institución no especificada"

var demoEntries = []struct {
	kind   models.FieldKind
	titulo string
}{
	{models.FieldArticulos, "Nanomateriales para el almacenamiento de energía en climas cálidos (2023)"},
	{models.FieldLibros, "Métodos numéricos aplicados a la hidrología regional (2022)"},
	{models.FieldCapitulos, "Biodiversidad costera y conservación comunitaria (2021)"},
}

// DemoPublications returns the fixed example records attached to owner. They are only
// emitted when demo mode is enabled and nothing real could be derived.
func DemoPublications(owner *models.Researcher) []Publication {
	out := make([]Publication, 0, len(demoEntries))
	tags := Tags(owner)
	for i, e := range demoEntries {
		out = append(out, Publication{
			ID:             fmt.Sprintf("%d_demo_%d", owner.ID, i),
			Titulo:         e.titulo,
			Tipo:           e.kind,
			Categoria:      e.kind.Label(),
			Anio:           extractYear(e.titulo),
			InvestigadorID: owner.ID,
			Autor:          owner.NombreCompleto,
			Institucion:    textfields.FirstNonEmpty(InstitutionFallback, owner.Institucion),
			Etiquetas:      tags,
			Demo:           true,
		})
	}
	return out
}

// PublicationFilter narrows ListPublications. Empty fields match everything.
type PublicationFilter struct {
	Tipo   string
	Search string
}

// ListPublications derives the publication list served by the catalogue, falling back
// to the demo records when demo is set, nothing matched and a researcher exists.
func ListPublications(researchers []models.Researcher, filter PublicationFilter, demo bool) []Publication {
	kinds := models.PublicationKinds
	if models.IsValidFieldKind(filter.Tipo) {
		kinds = []models.FieldKind{models.FieldKind(filter.Tipo)}
	}
	q := textfields.Fold(strings.TrimSpace(filter.Search))

	out := []Publication{}
	for _, p := range DeriveAll(researchers, kinds...) {
		if q == "" || p.matches(q) {
			out = append(out, p)
		}
	}
	if len(out) == 0 && demo && len(researchers) > 0 {
		for _, p := range DemoPublications(&researchers[0]) {
			if (filter.Tipo == "" || string(p.Tipo) == filter.Tipo) && (q == "" || p.matches(q)) {
				out = append(out, p)
			}
		}
	}
	return out
}

func (p Publication) matches(foldedQuery string) bool {
	return textfields.ContainsFolded(p.Titulo, foldedQuery) || textfields.ContainsFolded(p.Autor, foldedQuery)
}

func extractYear(line string) *int {
	m := yearPattern.FindString(line)
	if m == "" {
		return nil
	}
	y, _ := strconv.Atoi(m)
	return &y
}
