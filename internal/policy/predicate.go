package policy

import (
	"context"
	"fmt"
	"strings"

	"sitebook/api/internal/principal"
)

// Filter is the list-time counterpart of the view decision. It is built once
// per request: project membership is pre-resolved into ProjectIDs here
// instead of being looked up per row, which is what keeps a paginated scan
// cheap. For any single document, Matches agrees with Evaluate(view).
type Filter struct {
	Principal  principal.Ref
	GrantRole  string
	ProjectIDs []string
}

// Builder translates the view rules into storage filters.
type Builder struct {
	projects MembershipResolver
}

func NewBuilder(projects MembershipResolver) *Builder {
	return &Builder{projects: projects}
}

// BuildFilter resolves the principal's project set and returns the filter for
// a paginated document scan. Caller-supplied category/tag/date/text filters
// compose with it by conjunction.
func (b *Builder) BuildFilter(ctx context.Context, p principal.Principal) (Filter, error) {
	projectIDs, err := b.projects.ProjectsFor(ctx, p)
	if err != nil {
		return Filter{}, fmt.Errorf("resolve projects for %s: %w", p, err)
	}
	return Filter{
		Principal:  p.Ref(),
		GrantRole:  p.GrantRole(),
		ProjectIDs: projectIDs,
	}, nil
}

// Matches replays the filter against one document in memory. It is the
// reference semantics for SQL and is also used to re-verify objects fetched
// outside the filtered scan (search hits).
func (f Filter) Matches(doc Document) bool {
	if doc.Owner == f.Principal {
		return true
	}
	if doc.Grant.Public {
		return true
	}
	if doc.Grant.HasRole(f.GrantRole) {
		return true
	}
	if doc.Grant.HasPrincipal(f.Principal) {
		return true
	}
	if doc.ProjectID != "" {
		for _, id := range f.ProjectIDs {
			if id == doc.ProjectID {
				return true
			}
		}
	}
	return false
}

// SQL renders the filter as a WHERE fragment over the documents table, with
// placeholders starting at $argN. Grant sets live in the access_grant JSONB
// column; ownership in owner_kind/owner_id.
func (f Filter) SQL(argN int) (string, []any) {
	args := []any{string(f.Principal.Kind), f.Principal.ID}
	clauses := []string{
		fmt.Sprintf("(owner_kind = $%d AND owner_id = $%d)", argN, argN+1),
		"(access_grant->>'isPublic')::boolean",
	}
	argN += 2

	if f.GrantRole != "" {
		clauses = append(clauses, fmt.Sprintf("access_grant->'allowedRoles' ? $%d", argN))
		args = append(args, f.GrantRole)
		argN++
	}

	clauses = append(clauses, fmt.Sprintf(
		"access_grant->'allowedPrincipals' @> jsonb_build_array(jsonb_build_object('kind', $%d::text, 'id', $%d::text))",
		argN, argN+1))
	args = append(args, string(f.Principal.Kind), f.Principal.ID)
	argN += 2

	if len(f.ProjectIDs) > 0 {
		clauses = append(clauses, fmt.Sprintf("project_id = ANY($%d)", argN))
		args = append(args, f.ProjectIDs)
	}

	return "(" + strings.Join(clauses, " OR ") + ")", args
}
