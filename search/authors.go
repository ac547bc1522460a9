package search

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/sync/errgroup"

	"github.com/sei-platform/seibackend/models"
	"github.com/sei-platform/seibackend/textfields"
)

// AuthorLookupLimit bounds the concurrent name lookups of one resolution.
const AuthorLookupLimit = 4

// NameFinder looks researchers up by a free-text name.
type NameFinder interface {
	FindResearchersByName(ctx context.Context, name string) ([]models.Researcher, error)
}

// AuthorMatch is a researcher whose name matched an author candidate.
type AuthorMatch struct {
	ID          uint   `json:"id"`
	Nombre      string `json:"nombre"`
	Institucion string `json:"institucion"`
}

// AuthorCandidate is one name found in the citation with the researchers it may refer to.
type AuthorCandidate struct {
	Nombre         string        `json:"nombre"`
	Investigadores []AuthorMatch `json:"investigadores"`
}

// AuthorResolution is the response for a derived publication's authors. The owning
// researcher is always reported as the principal author.
type AuthorResolution struct {
	Publicacion Publication       `json:"publicacion"`
	Principal   AuthorMatch       `json:"principal"`
	Candidatos  []AuthorCandidate `json:"candidatos"`
}

var (
	authorSeparators = regexp.MustCompile(`\s*(?:;|,|&|\s+y\s+|\s+and\s+)\s*`)
	yearParen        = regexp.MustCompile(`\(\s*(?:19|20)\d{2}[a-z]?\s*\)`)
)

// AuthorCandidates extracts likely author names from a citation line: the text before
// the year in parentheses (or before the first ". "), split on common separators.
// Initials and single letters are dropped.
func AuthorCandidates(line string) []string {
	head := line
	if loc := yearParen.FindStringIndex(line); loc != nil {
		head = line[:loc[0]]
	} else if i := strings.Index(line, ". "); i > 0 {
		head = line[:i]
	} else {
		return []string{}
	}

	out := []string{}
	seen := map[string]bool{}
	for _, part := range authorSeparators.Split(head, -1) {
		name := strings.Trim(strings.TrimSpace(part), ".")
		if letterCount(name) < 3 {
			continue
		}
		key := textfields.Fold(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, name)
	}
	return out
}

func letterCount(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			n++
		}
	}
	return n
}

// ResolveAuthors matches every author candidate of pub against registered researchers,
// running at most AuthorLookupLimit lookups at a time. A failed lookup fails the whole
// resolution.
func ResolveAuthors(ctx context.Context, finder NameFinder, owner *models.Researcher, pub Publication) (AuthorResolution, error) {
	names := AuthorCandidates(pub.Titulo)
	candidates := make([]AuthorCandidate, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(AuthorLookupLimit)
	for i, name := range names {
		g.Go(func() error {
			found, err := finder.FindResearchersByName(gctx, name)
			if err != nil {
				return fmt.Errorf("failed to look up author '%s': %w", name, err)
			}
			matches := make([]AuthorMatch, 0, len(found))
			for j := range found {
				matches = append(matches, matchFor(&found[j]))
			}
			candidates[i] = AuthorCandidate{Nombre: name, Investigadores: matches}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return AuthorResolution{}, err
	}

	return AuthorResolution{
		Publicacion: pub,
		Principal:   matchFor(owner),
		Candidatos:  candidates,
	}, nil
}

func matchFor(r *models.Researcher) AuthorMatch {
	return AuthorMatch{
		ID:          r.ID,
		Nombre:      r.NombreCompleto,
		Institucion: textfields.FirstNonEmpty(InstitutionFallback, r.Institucion),
	}
}

// FindPublication returns the entry id points to within r, or false when the index is
// past the end of the field.
func FindPublication(r *models.Researcher, kind models.FieldKind, index int) (Publication, bool) {
	pubs := Derive(r, kind)
	if index < 0 || index >= len(pubs) {
		return Publication{}, false
	}
	return pubs[index], true
}
