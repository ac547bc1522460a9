package search

import (
	"context"
	"strings"

	"github.com/sei-platform/seibackend/models"
	"github.com/sei-platform/seibackend/textfields"
)

// Type restricts which result lists a search fills.
type Type string

const (
	TypeAll          Type = "all"
	TypeResearchers  Type = "researchers"
	TypeProjects     Type = "projects"
	TypePublications Type = "publications"
)

// ParseType maps a query parameter to a Type. Unknown values mean all.
func ParseType(s string) Type {
	switch Type(strings.ToLower(strings.TrimSpace(s))) {
	case TypeResearchers:
		return TypeResearchers
	case TypeProjects:
		return TypeProjects
	case TypePublications:
		return TypePublications
	}
	return TypeAll
}

// scannedKinds are the text fields whose lines are matched individually.
var scannedKinds = []models.FieldKind{models.FieldProyectos, models.FieldArticulos, models.FieldLibros}

func (t Type) kinds() []models.FieldKind {
	switch t {
	case TypeProjects:
		return []models.FieldKind{models.FieldProyectos}
	case TypePublications:
		return []models.FieldKind{models.FieldArticulos, models.FieldLibros}
	case TypeResearchers:
		return nil
	}
	return scannedKinds
}

// ResearcherHit is a researcher matched directly on one of its descriptive fields.
type ResearcherHit struct {
	ID          uint     `json:"id"`
	Nombre      string   `json:"nombre"`
	Institucion string   `json:"institucion"`
	Area        string   `json:"area"`
	NivelSNI    *string  `json:"nivel_sni,omitempty"`
	Etiquetas   []string `json:"etiquetas"`
}

// Result is the response of a search. Both lists are always non-nil.
type Result struct {
	Investigadores []ResearcherHit `json:"investigadores"`
	Proyectos      []Publication   `json:"proyectos"`
	Total          int             `json:"total"`
	Error          string          `json:"error,omitempty"`
}

// Empty is the result of a blank query or a failed read.
func Empty() Result {
	return Result{Investigadores: []ResearcherHit{}, Proyectos: []Publication{}}
}

// Source lists the researchers a search runs over.
type Source interface {
	ListActiveResearchers(ctx context.Context) ([]models.Researcher, error)
}

// Searcher runs case- and accent-insensitive containment searches over the active
// researchers.
type Searcher struct {
	src  Source
	demo bool
}

func NewSearcher(src Source, demo bool) *Searcher {
	return &Searcher{src: src, demo: demo}
}

// Search never fails past its boundary: a read error yields Empty() with the Error
// marker set, and the error is returned alongside for logging.
func (s *Searcher) Search(ctx context.Context, query string, typ Type) (Result, error) {
	q := textfields.Fold(strings.TrimSpace(query))
	if q == "" {
		return Empty(), nil
	}

	researchers, err := s.src.ListActiveResearchers(ctx)
	if err != nil {
		res := Empty()
		res.Error = "No se pudo completar la búsqueda"
		return res, err
	}
	return Run(researchers, q, typ, s.demo), nil
}

// Run matches an already folded, non-empty query against researchers.
func Run(researchers []models.Researcher, foldedQuery string, typ Type, demo bool) Result {
	res := Empty()

	if typ == TypeAll || typ == TypeResearchers {
		for i := range researchers {
			r := &researchers[i]
			if researcherMatches(r, foldedQuery) {
				res.Investigadores = append(res.Investigadores, HitFor(r))
			}
		}
	}

	if kinds := typ.kinds(); len(kinds) > 0 {
		for _, p := range DeriveAll(researchers, kinds...) {
			if textfields.ContainsFolded(p.Titulo, foldedQuery) {
				res.Proyectos = append(res.Proyectos, p)
			}
		}
		if len(res.Proyectos) == 0 && demo && len(researchers) > 0 {
			for _, p := range DemoPublications(&researchers[0]) {
				if textfields.ContainsFolded(p.Titulo, foldedQuery) && containsKind(kinds, p.Tipo) {
					res.Proyectos = append(res.Proyectos, p)
				}
			}
		}
	}

	res.Total = len(res.Investigadores) + len(res.Proyectos)
	return res
}

func researcherMatches(r *models.Researcher, foldedQuery string) bool {
	if textfields.ContainsFolded(r.NombreCompleto, foldedQuery) {
		return true
	}
	for _, f := range []*string{r.Institucion, r.Area, r.AreaInvestigacion, r.Disciplina, r.Especialidad, r.LineaInvestigacion} {
		if textfields.ContainsFoldedNullable(f, foldedQuery) {
			return true
		}
	}
	return false
}

// HitFor is the public summary of r used by search results and the directory.
func HitFor(r *models.Researcher) ResearcherHit {
	return ResearcherHit{
		ID:          r.ID,
		Nombre:      r.NombreCompleto,
		Institucion: textfields.FirstNonEmpty(InstitutionFallback, r.Institucion),
		Area:        textfields.FirstNonEmpty(AreaFallback, r.Area, r.AreaInvestigacion),
		NivelSNI:    r.NivelSNI,
		Etiquetas:   Tags(r),
	}
}

// AreaFallback names the group of researchers without any research area.
const AreaFallback = "Sin especificar"

func containsKind(kinds []models.FieldKind, k models.FieldKind) bool {
	for _, kind := range kinds {
		if kind == k {
			return true
		}
	}
	return false
}
