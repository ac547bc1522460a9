package aggregate

import (
	"strings"

	"github.com/sei-platform/seibackend/models"
	"github.com/sei-platform/seibackend/search"
	"github.com/sei-platform/seibackend/textfields"
)

// DefaultKeywordLimit caps the keywords shown per group.
const DefaultKeywordLimit = 6

// Record is the summary of one group of researchers.
type Record struct {
	Nombre         string   `json:"nombre"`
	Slug           string   `json:"slug"`
	Investigadores int      `json:"investigadores"`
	Proyectos      int      `json:"proyectos"`
	Publicaciones  int      `json:"publicaciones"`
	Instituciones  int      `json:"instituciones"`
	Areas          int      `json:"areas"`
	Crecimiento    int      `json:"crecimiento"`
	Tendencia      string   `json:"tendencia"`
	PalabrasClave  []string `json:"palabras_clave"`

	institutionNames []string
}

// InstitutionNames lists the distinct institutions seen in the group, first sighting
// first.
func (r Record) InstitutionNames() []string { return r.institutionNames }

// Aggregator groups researchers and scores each group.
type Aggregator struct {
	scorer       ActivityScorer
	keywordLimit int
}

func New(scorer ActivityScorer, keywordLimit int) *Aggregator {
	if scorer == nil {
		scorer = DefaultScorer()
	}
	if keywordLimit <= 0 {
		keywordLimit = DefaultKeywordLimit
	}
	return &Aggregator{scorer: scorer, keywordLimit: keywordLimit}
}

// AreaKey is the research area a researcher is grouped under.
func AreaKey(r *models.Researcher) string {
	return textfields.FirstNonEmpty(search.AreaFallback, r.Area, r.AreaInvestigacion)
}

// InstitutionKey is the institution a researcher is grouped under.
func InstitutionKey(r *models.Researcher) string {
	return textfields.FirstNonEmpty(search.InstitutionFallback, r.Institucion)
}

// ByArea groups researchers by AreaKey.
func (a *Aggregator) ByArea(researchers []models.Researcher) []Record {
	return a.group(researchers, AreaKey)
}

// ByInstitution groups researchers by InstitutionKey.
func (a *Aggregator) ByInstitution(researchers []models.Researcher) []Record {
	return a.group(researchers, InstitutionKey)
}

// accumulator keeps keyword sources apart so they can be picked by priority.
type accumulator struct {
	record       Record
	institutions orderedSet
	areas        orderedSet
	lines        orderedSet
	specialties  orderedSet
	disciplines  orderedSet
}

// group visits every researcher once. Records come out in first-sighting order.
func (a *Aggregator) group(researchers []models.Researcher, key func(*models.Researcher) string) []Record {
	byKey := map[string]*accumulator{}
	order := []*accumulator{}

	for i := range researchers {
		r := &researchers[i]
		k := key(r)
		acc, ok := byKey[k]
		if !ok {
			acc = &accumulator{record: Record{Nombre: k, Slug: textfields.Slugify(k)}}
			byKey[k] = acc
			order = append(order, acc)
		}

		acc.record.Investigadores++
		acc.record.Proyectos += textfields.Count(r.ProyectosInvestigacion)
		for _, kind := range models.PublicationKinds {
			acc.record.Publicaciones += textfields.Count(r.Field(kind))
		}

		if inst := textfields.Value(r.Institucion); strings.TrimSpace(inst) != "" {
			acc.institutions.add(inst)
		}
		acc.areas.add(AreaKey(r))
		for _, line := range textfields.SplitNullable(r.LineaInvestigacion) {
			acc.lines.add(line)
		}
		if v := strings.TrimSpace(textfields.Value(r.Especialidad)); v != "" {
			acc.specialties.add(v)
		}
		if v := strings.TrimSpace(textfields.Value(r.Disciplina)); v != "" {
			acc.disciplines.add(v)
		}
	}

	out := make([]Record, 0, len(order))
	for _, acc := range order {
		rec := acc.record
		rec.Instituciones = len(acc.institutions.items)
		rec.Areas = len(acc.areas.items)
		rec.institutionNames = acc.institutions.items
		rec.Crecimiento = a.scorer.Score(Counts{
			Researchers:  rec.Investigadores,
			Projects:     rec.Proyectos,
			Publications: rec.Publicaciones,
		})
		rec.Tendencia = a.scorer.Trend(rec.Crecimiento)
		rec.PalabrasClave = a.keywords(acc)
		out = append(out, rec)
	}
	return out
}

// keywords takes research lines, else specialties, else disciplines. Sources are never
// merged.
func (a *Aggregator) keywords(acc *accumulator) []string {
	for _, set := range []orderedSet{acc.lines, acc.specialties, acc.disciplines} {
		if len(set.items) == 0 {
			continue
		}
		n := len(set.items)
		if n > a.keywordLimit {
			n = a.keywordLimit
		}
		out := make([]string, n)
		copy(out, set.items[:n])
		return out
	}
	return []string{}
}

// orderedSet collapses duplicates by folded value, keeping the first spelling.
type orderedSet struct {
	seen  map[string]bool
	items []string
}

func (s *orderedSet) add(v string) {
	if s.seen == nil {
		s.seen = map[string]bool{}
	}
	k := textfields.Fold(strings.TrimSpace(v))
	if s.seen[k] {
		return
	}
	s.seen[k] = true
	s.items = append(s.items, strings.TrimSpace(v))
}
