package search

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sei-platform/seibackend/models"
)

type fakeFinder struct {
	mu       sync.Mutex
	byName   map[string][]models.Researcher
	fail     string
	inFlight int32
	peak     int32
}

func (f *fakeFinder) FindResearchersByName(ctx context.Context, name string) ([]models.Researcher, error) {
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	f.mu.Lock()
	if n > f.peak {
		f.peak = n
	}
	f.mu.Unlock()
	time.Sleep(5 * time.Millisecond)

	if name == f.fail {
		return nil, errors.New("lookup failed")
	}
	return f.byName[strings.ToLower(name)], nil
}

func TestAuthorCandidates(t *testing.T) {
	assert.Equal(t,
		[]string{"Martínez", "Pérez"},
		AuthorCandidates("Martínez, A., Pérez, L. (2021). Grafeno dopado"))
	assert.Equal(t,
		[]string{"Ana Martínez", "Luis Pérez", "Rosa Díaz"},
		AuthorCandidates("Ana Martínez; Luis Pérez y Rosa Díaz. Catálisis verde en suelos"))
	assert.Empty(t, AuthorCandidates("Introducción a la nanociencia"))
	assert.Empty(t, AuthorCandidates("A., B. (2020) Título"))
}

func TestResolveAuthors(t *testing.T) {
	owner := &models.Researcher{ID: 1, NombreCompleto: "Ana Martínez", Institucion: sp("UAN")}
	finder := &fakeFinder{byName: map[string][]models.Researcher{
		"pérez": {{ID: 2, NombreCompleto: "Luis Pérez"}},
	}}
	pub := Publication{ID: "1_articulo_0", Titulo: "Martínez, A., Pérez, L., Soto, M., Díaz, R., Ruiz, J., Vega, P. (2021). Grafeno"}

	res, err := ResolveAuthors(context.Background(), finder, owner, pub)
	require.NoError(t, err)
	assert.Equal(t, uint(1), res.Principal.ID)
	assert.Equal(t, "UAN", res.Principal.Institucion)
	require.Len(t, res.Candidatos, 6)
	assert.Equal(t, "Pérez", res.Candidatos[1].Nombre)
	require.Len(t, res.Candidatos[1].Investigadores, 1)
	assert.Equal(t, uint(2), res.Candidatos[1].Investigadores[0].ID)
	assert.Empty(t, res.Candidatos[0].Investigadores)
	assert.LessOrEqual(t, finder.peak, int32(AuthorLookupLimit))
}

func TestResolveAuthors_LookupFailure(t *testing.T) {
	owner := &models.Researcher{ID: 1, NombreCompleto: "Ana Martínez"}
	finder := &fakeFinder{fail: "Pérez"}
	_, err := ResolveAuthors(context.Background(), finder, owner, Publication{Titulo: "Martínez, A., Pérez, L. (2021). X"})
	assert.Error(t, err)
}

func TestFindPublication(t *testing.T) {
	r := fixture()[0]
	p, ok := FindPublication(&r, models.FieldLibros, 0)
	require.True(t, ok)
	assert.Equal(t, "Introducción a la nanociencia", p.Titulo)
	_, ok = FindPublication(&r, models.FieldLibros, 1)
	assert.False(t, ok)
}
