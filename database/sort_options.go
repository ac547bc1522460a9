package database

import (
	"sort"

	"github.com/facette/natsort"

	"github.com/sei-platform/seibackend/models"
	"github.com/sei-platform/seibackend/textfields"
)

// Institution list orderings.
const (
	SortNombreAsc = "nombre_asc"
	SortNombreNat = "nombre_nat"
	SortRecientes = "recientes"
	SortAntiguas  = "antiguas"
)

const DefaultSortOrder = SortNombreNat

// IsValidSortOrder checks if a string is a valid sort order constant
func IsValidSortOrder(order string) bool {
	switch order {
	case SortNombreAsc, SortNombreNat, SortRecientes, SortAntiguas:
		return true
	default:
		return false
	}
}

// sortOrderClause is the SQL ordering for a sort order. Natural ordering is applied
// after the fetch, so it reads in plain name order.
func sortOrderClause(order string) string {
	switch order {
	case SortRecientes:
		return "created_at DESC, id DESC"
	case SortAntiguas:
		return "created_at ASC, id ASC"
	}
	return "nombre ASC"
}

// sortInstitutionsNatural orders names so "Instituto 2" precedes "Instituto 10",
// ignoring case and accents.
func sortInstitutionsNatural(institutions []models.Institution) {
	sort.SliceStable(institutions, func(i, j int) bool {
		return natsort.Compare(textfields.Fold(institutions[i].Nombre), textfields.Fold(institutions[j].Nombre))
	})
}
