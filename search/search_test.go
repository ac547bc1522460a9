package search

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sei-platform/seibackend/models"
	"github.com/sei-platform/seibackend/textfields"
)

type fakeSource struct {
	researchers []models.Researcher
	err         error
	calls       int
}

func (f *fakeSource) ListActiveResearchers(ctx context.Context) ([]models.Researcher, error) {
	f.calls++
	return f.researchers, f.err
}

func sp(s string) *string { return &s }

func fixture() []models.Researcher {
	return []models.Researcher{
		{
			ID:                     1,
			NombreCompleto:         "Ana Martínez",
			Institucion:            sp("Universidad Autónoma de Nayarit"),
			Area:                   sp("Nanotecnología"),
			Disciplina:             sp("Física"),
			ProyectosInvestigacion: sp("Sensores de grafeno\r\nCeldas solares flexibles"),
			Articulos:              sp("Martínez, A., Pérez, L. (2021). Grafeno dopado\n\n  \nÓxidos metálicos (2019)"),
			Libros:                 sp("Introducción a la nanociencia"),
		},
		{
			ID:                 2,
			NombreCompleto:     "Luis Pérez",
			AreaInvestigacion:  sp("Química"),
			LineaInvestigacion: sp("Catálisis verde"),
			Memorias:           sp("Memoria sobre grafeno"),
		},
	}
}

func TestSearch_EmptyQueryShortCircuits(t *testing.T) {
	src := &fakeSource{researchers: fixture()}
	s := NewSearcher(src, true)

	for _, q := range []string{"", "   ", "\n"} {
		for _, typ := range []Type{TypeAll, TypeResearchers, TypeProjects, TypePublications} {
			res, err := s.Search(context.Background(), q, typ)
			require.NoError(t, err)
			assert.Equal(t, Empty(), res)
			assert.NotNil(t, res.Investigadores)
			assert.NotNil(t, res.Proyectos)
		}
	}
	assert.Zero(t, src.calls, "blank queries never reach the store")
}

func TestSearch_SubstringScenario(t *testing.T) {
	s := NewSearcher(&fakeSource{researchers: fixture()}, false)

	res, err := s.Search(context.Background(), "marti", TypeAll)
	require.NoError(t, err)
	require.Len(t, res.Investigadores, 1)
	assert.Equal(t, uint(1), res.Investigadores[0].ID)
	assert.Equal(t, "Nanotecnología", res.Investigadores[0].Area)

	res, err = s.Search(context.Background(), "xyz123", TypeAll)
	require.NoError(t, err)
	assert.Empty(t, res.Investigadores)
	assert.Empty(t, res.Proyectos)
	assert.Zero(t, res.Total)
}

func TestSearch_EveryResultContainsQuery(t *testing.T) {
	researchers := fixture()
	for _, q := range []string{"grafeno", "QUIM", "nano", "catalisis", "a"} {
		folded := textfields.Fold(q)
		res := Run(researchers, folded, TypeAll, false)
		for _, hit := range res.Investigadores {
			var r *models.Researcher
			for i := range researchers {
				if researchers[i].ID == hit.ID {
					r = &researchers[i]
				}
			}
			require.NotNil(t, r)
			assert.True(t, researcherMatches(r, folded), "researcher %d for %q", hit.ID, q)
		}
		for _, p := range res.Proyectos {
			assert.Contains(t, textfields.Fold(p.Titulo), folded)
		}
		assert.Equal(t, len(res.Investigadores)+len(res.Proyectos), res.Total)
	}
}

func TestSearch_ScansLinesWithSynthesizedIDs(t *testing.T) {
	res := Run(fixture(), "grafeno", TypeAll, false)

	ids := []string{}
	for _, p := range res.Proyectos {
		ids = append(ids, p.ID)
	}
	// memorias are not scanned by search
	assert.Equal(t, []string{"1_proyecto_0", "1_articulo_0"}, ids)
	assert.Empty(t, res.Investigadores)
	assert.Equal(t, 2, res.Total)
}

func TestSearch_TypeFilter(t *testing.T) {
	researchers := fixture()

	res := Run(researchers, "grafeno", TypeResearchers, false)
	assert.Empty(t, res.Proyectos)

	res = Run(researchers, "grafeno", TypeProjects, false)
	require.Len(t, res.Proyectos, 1)
	assert.Equal(t, models.FieldProyectos, res.Proyectos[0].Tipo)

	res = Run(researchers, "grafeno", TypePublications, false)
	require.Len(t, res.Proyectos, 1)
	assert.Equal(t, models.FieldArticulos, res.Proyectos[0].Tipo)

	res = Run(researchers, "ana", TypeProjects, false)
	assert.Empty(t, res.Investigadores)

	assert.Equal(t, TypeAll, ParseType("whatever"))
	assert.Equal(t, TypeProjects, ParseType(" Projects "))
}

func TestSearch_StoreFailureDegrades(t *testing.T) {
	s := NewSearcher(&fakeSource{err: errors.New("connection reset")}, false)
	res, err := s.Search(context.Background(), "ana", TypeAll)
	assert.Error(t, err)
	assert.NotEmpty(t, res.Error)
	assert.Empty(t, res.Investigadores)
	assert.Empty(t, res.Proyectos)
	assert.Zero(t, res.Total)
}

// The demo fallback is opt-in and still honors the query.
func TestSearch_DemoFallbackIsToggled(t *testing.T) {
	researchers := fixture()

	res := Run(researchers, "hidrologia", TypeAll, false)
	assert.Empty(t, res.Proyectos)

	res = Run(researchers, "hidrologia", TypeAll, true)
	require.Len(t, res.Proyectos, 1)
	assert.True(t, res.Proyectos[0].Demo)
	assert.Equal(t, uint(1), res.Proyectos[0].InvestigadorID)

	res = Run(nil, "hidrologia", TypeAll, true)
	assert.Empty(t, res.Proyectos)
}

func TestDerive(t *testing.T) {
	r := fixture()[0]
	pubs := Derive(&r, models.FieldArticulos)
	require.Len(t, pubs, 2)
	assert.Equal(t, "1_articulo_1", pubs[1].ID)
	assert.Equal(t, "Óxidos metálicos (2019)", pubs[1].Titulo)
	assert.Equal(t, "Artículo", pubs[1].Categoria)
	require.NotNil(t, pubs[1].Anio)
	assert.Equal(t, 2019, *pubs[1].Anio)
	assert.Equal(t, "Universidad Autónoma de Nayarit", pubs[1].Institucion)
	assert.Equal(t, []string{"Nanotecnología", "Física"}, pubs[1].Etiquetas)

	projects := Derive(&r, models.FieldProyectos)
	require.Len(t, projects, 2)
	assert.Equal(t, "Sensores de grafeno", projects[0].Titulo, "CRLF is split like LF")
	assert.Nil(t, projects[0].Anio)

	other := fixture()[1]
	assert.Empty(t, Derive(&other, models.FieldLibros))
	assert.Equal(t, InstitutionFallback, Derive(&other, models.FieldMemorias)[0].Institucion)
}

func TestPublicationID_RoundTrip(t *testing.T) {
	rid, kind, idx, err := ParsePublicationID(PublicationID(42, models.FieldCapitulos, 3))
	require.NoError(t, err)
	assert.Equal(t, uint(42), rid)
	assert.Equal(t, models.FieldCapitulos, kind)
	assert.Equal(t, 3, idx)

	for _, bad := range []string{"", "1_articulo", "x_articulo_0", "1_poema_0", "1_articulo_-1", "1_demo_0"} {
		_, _, _, err := ParsePublicationID(bad)
		assert.Error(t, err, bad)
	}
}

func TestListPublications(t *testing.T) {
	researchers := fixture()

	all := ListPublications(researchers, PublicationFilter{}, false)
	assert.Len(t, all, 4) // 2 articulos, 1 libro, 1 memoria; projects are not publications

	books := ListPublications(researchers, PublicationFilter{Tipo: "libro"}, false)
	require.Len(t, books, 1)
	assert.Equal(t, "1_libro_0", books[0].ID)

	byAuthor := ListPublications(researchers, PublicationFilter{Search: "perez"}, false)
	require.Len(t, byAuthor, 2)
	assert.Equal(t, "1_articulo_0", byAuthor[0].ID)
	assert.Equal(t, "2_memoria_0", byAuthor[1].ID)

	empty := []models.Researcher{{ID: 9, NombreCompleto: "Sin Textos"}}
	assert.Empty(t, ListPublications(empty, PublicationFilter{}, false))
	demo := ListPublications(empty, PublicationFilter{}, true)
	require.Len(t, demo, 3)
	for _, p := range demo {
		assert.True(t, p.Demo)
		assert.True(t, strings.HasPrefix(p.ID, "9_demo_"))
	}
	assert.Empty(t, ListPublications(nil, PublicationFilter{}, true))
}
