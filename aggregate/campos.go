package aggregate

import (
	"net/url"
	"sort"
	"strings"

	"github.com/facette/natsort"

	"github.com/sei-platform/seibackend/models"
	"github.com/sei-platform/seibackend/search"
	"github.com/sei-platform/seibackend/textfields"
)

// Activity bands for the actividad filter.
const (
	ActivityAll    = "all"
	ActivityHigh   = "alto"
	ActivityMedium = "medio"
	ActivityLow    = "bajo"
)

// Sort keys for the orden parameter.
const (
	OrderResearchers  = "investigadores"
	OrderProjects     = "proyectos"
	OrderPublications = "publicaciones"
	OrderInstitutions = "instituciones"
	OrderName         = "nombre"
)

var (
	activityOptions = []string{ActivityAll, ActivityHigh, ActivityMedium, ActivityLow}
	orderOptions    = []string{OrderResearchers, OrderProjects, OrderPublications, OrderInstitutions, OrderName}
)

// Query holds the normalized campos list parameters.
type Query struct {
	Search      string `json:"search"`
	Institucion string `json:"institucion"`
	Actividad   string `json:"actividad"`
	Orden       string `json:"orden"`
	Direccion   string `json:"direccion"`
}

// ParseQuery reads the list parameters from values, replacing unknown options with
// the defaults: all activity, ordered by researchers, descending.
func ParseQuery(values url.Values) Query {
	q := Query{
		Search:      strings.TrimSpace(values.Get("search")),
		Institucion: strings.TrimSpace(values.Get("institucion")),
		Actividad:   strings.ToLower(strings.TrimSpace(values.Get("actividad"))),
		Orden:       strings.ToLower(strings.TrimSpace(values.Get("orden"))),
		Direccion:   strings.ToLower(strings.TrimSpace(values.Get("direccion"))),
	}
	if !contains(activityOptions, q.Actividad) {
		q.Actividad = ActivityAll
	}
	if !contains(orderOptions, q.Orden) {
		q.Orden = OrderResearchers
	}
	if q.Direccion != "asc" && q.Direccion != "desc" {
		q.Direccion = "desc"
		if q.Orden == OrderName {
			q.Direccion = "asc"
		}
	}
	return q
}

// Stats summarize the unfiltered area set.
type Stats struct {
	TotalCampos         int `json:"total_campos"`
	TotalInvestigadores int `json:"total_investigadores"`
	TotalProyectos      int `json:"total_proyectos"`
	TotalPublicaciones  int `json:"total_publicaciones"`
	TotalInstituciones  int `json:"total_instituciones"`
	PromedioActividad   int `json:"promedio_actividad"`
	CamposActivos       int `json:"campos_activos"`
}

// Filters lists the options a client can choose from.
type Filters struct {
	Instituciones []string `json:"instituciones"`
	Actividad     []string `json:"actividad"`
	Orden         []string `json:"orden"`
}

// Listing is the GET /campos response.
type Listing struct {
	Campos       []Record `json:"campos"`
	Estadisticas Stats    `json:"estadisticas"`
	Filtros      Filters  `json:"filtros"`
	Parametros   Query    `json:"parametros"`
	Error        string   `json:"error,omitempty"`
}

// EmptyListing is the degraded response used when researchers could not be read.
func EmptyListing(q Query) Listing {
	return Listing{
		Campos:     []Record{},
		Filtros:    Filters{Instituciones: []string{}, Actividad: activityOptions, Orden: orderOptions},
		Parametros: q,
	}
}

// Campos aggregates researchers by area, then filters and sorts according to q.
// Statistics and filter options are computed before filtering.
func (a *Aggregator) Campos(researchers []models.Researcher, q Query) Listing {
	records := a.ByArea(researchers)
	listing := EmptyListing(q)
	listing.Estadisticas = stats(records, researchers)
	listing.Filtros.Instituciones = institutionOptions(researchers)
	listing.Campos = sortRecords(filterRecords(records, q), q)
	return listing
}

func filterRecords(records []Record, q Query) []Record {
	search := textfields.Fold(q.Search)
	institution := textfields.Fold(q.Institucion)

	out := []Record{}
	for _, rec := range records {
		if search != "" && !recordMatches(rec, search) {
			continue
		}
		if institution != "" && !hasInstitution(rec, institution) {
			continue
		}
		if !InActivityBand(rec.Crecimiento, q.Actividad) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func recordMatches(rec Record, foldedQuery string) bool {
	if textfields.ContainsFolded(rec.Nombre, foldedQuery) {
		return true
	}
	for _, kw := range rec.PalabrasClave {
		if textfields.ContainsFolded(kw, foldedQuery) {
			return true
		}
	}
	return false
}

func hasInstitution(rec Record, foldedName string) bool {
	for _, name := range rec.institutionNames {
		if textfields.Fold(name) == foldedName {
			return true
		}
	}
	return false
}

// InActivityBand reports whether score falls in band: alto >= 70, medio 40..69,
// bajo < 40. Any other band matches everything.
func InActivityBand(score int, band string) bool {
	switch band {
	case ActivityHigh:
		return score >= 70
	case ActivityMedium:
		return score >= 40 && score < 70
	case ActivityLow:
		return score < 40
	}
	return true
}

func sortRecords(records []Record, q Query) []Record {
	desc := q.Direccion == "desc"
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if q.Orden == OrderName {
			if desc {
				return natsort.Compare(textfields.Fold(b.Nombre), textfields.Fold(a.Nombre))
			}
			return natsort.Compare(textfields.Fold(a.Nombre), textfields.Fold(b.Nombre))
		}
		va, vb := sortValue(a, q.Orden), sortValue(b, q.Orden)
		if desc {
			return va > vb
		}
		return va < vb
	})
	return records
}

func sortValue(r Record, orden string) int {
	switch orden {
	case OrderProjects:
		return r.Proyectos
	case OrderPublications:
		return r.Publicaciones
	case OrderInstitutions:
		return r.Instituciones
	}
	return r.Investigadores
}

func stats(records []Record, researchers []models.Researcher) Stats {
	s := Stats{TotalCampos: len(records)}
	sum := 0
	for _, rec := range records {
		s.TotalInvestigadores += rec.Investigadores
		s.TotalProyectos += rec.Proyectos
		s.TotalPublicaciones += rec.Publicaciones
		sum += rec.Crecimiento
		if InActivityBand(rec.Crecimiento, ActivityHigh) {
			s.CamposActivos++
		}
	}
	if len(records) > 0 {
		s.PromedioActividad = sum / len(records)
	}
	s.TotalInstituciones = len(institutionOptions(researchers))
	return s
}

// institutionOptions lists the distinct institutions in natural order.
func institutionOptions(researchers []models.Researcher) []string {
	var set orderedSet
	for i := range researchers {
		if v := strings.TrimSpace(textfields.Value(researchers[i].Institucion)); v != "" {
			set.add(v)
		}
	}
	out := append([]string{}, set.items...)
	sort.SliceStable(out, func(i, j int) bool {
		return natsort.Compare(textfields.Fold(out[i]), textfields.Fold(out[j]))
	})
	return out
}

func contains(options []string, v string) bool {
	for _, o := range options {
		if o == v {
			return true
		}
	}
	return false
}

// ResearcherSummary is a researcher listed under an area detail.
type ResearcherSummary struct {
	ID          uint    `json:"id"`
	Nombre      string  `json:"nombre"`
	Institucion string  `json:"institucion"`
	Disciplina  *string `json:"disciplina,omitempty"`
	NivelSNI    *string `json:"nivel_sni,omitempty"`
}

// Detail is one area with the researchers, projects, publications and institutions
// behind its counts.
type Detail struct {
	Record
	ListaInvestigadores []ResearcherSummary  `json:"lista_investigadores"`
	ListaProyectos      []search.Publication `json:"lista_proyectos"`
	ListaPublicaciones  []search.Publication `json:"lista_publicaciones"`
	ListaInstituciones  []string             `json:"lista_instituciones"`
}

// EmptyDetail is the degraded detail for slug when researchers could not be read.
func EmptyDetail(slug string) Detail {
	name := slug
	if decoded, err := url.PathUnescape(slug); err == nil {
		name = decoded
	}
	return Detail{
		Record:              Record{Nombre: name, Slug: textfields.Slugify(name), Tendencia: TrendDown, PalabrasClave: []string{}},
		ListaInvestigadores: []ResearcherSummary{},
		ListaProyectos:      []search.Publication{},
		ListaPublicaciones:  []search.Publication{},
		ListaInstituciones:  []string{},
	}
}

// AreaDetail returns the area whose slug (or exact, URL-decoded name) is slug. The
// boolean is false when no researcher belongs to it.
func (a *Aggregator) AreaDetail(researchers []models.Researcher, slug string) (Detail, bool) {
	name := slug
	if decoded, err := url.PathUnescape(slug); err == nil {
		name = decoded
	}
	wanted := textfields.Slugify(name)

	members := []models.Researcher{}
	for i := range researchers {
		key := AreaKey(&researchers[i])
		if key == name || textfields.Slugify(key) == wanted {
			members = append(members, researchers[i])
		}
	}
	if len(members) == 0 {
		return Detail{}, false
	}

	// spellings sharing a slug are reported as one area, named after the first one
	first := AreaKey(&members[0])
	rec := a.group(members, func(*models.Researcher) string { return first })[0]

	d := Detail{
		Record:              rec,
		ListaInvestigadores: make([]ResearcherSummary, 0, len(members)),
		ListaProyectos:      search.DeriveAll(members, models.FieldProyectos),
		ListaPublicaciones:  search.DeriveAll(members, models.PublicationKinds...),
		ListaInstituciones:  append([]string{}, rec.institutionNames...),
	}
	for i := range members {
		m := &members[i]
		d.ListaInvestigadores = append(d.ListaInvestigadores, ResearcherSummary{
			ID:          m.ID,
			Nombre:      m.NombreCompleto,
			Institucion: InstitutionKey(m),
			Disciplina:  m.Disciplina,
			NivelSNI:    m.NivelSNI,
		})
	}
	return d, true
}
