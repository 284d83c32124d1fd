package auth

import (
	"fmt"

	"actionboard/internal/config"
	"actionboard/internal/domain"
)

// ForbiddenError indicates the person's role is below the section minimum.
type ForbiddenError struct {
	PersonID string
	Section  string
	Required int
}

// SectionAdmin guards reference-data writes; only admins pass it.
const SectionAdmin = "admin"

func (e ForbiddenError) Error() string {
	switch e.Section {
	case "":
		return fmt.Sprintf("person %s is not known", e.PersonID)
	case SectionAdmin:
		return fmt.Sprintf("person %s is not an admin", e.PersonID)
	}
	return fmt.Sprintf("section %s requires role %d", e.Section, e.Required)
}

// CanView reports whether p may open section. Admins see everything.
func CanView(p domain.Person, section string, cfg *config.Config) bool {
	if p.Admin {
		return true
	}
	return p.Role >= cfg.MinRole(section)
}

// RequireSection returns a ForbiddenError when p may not open section.
func RequireSection(p domain.Person, section string, cfg *config.Config) error {
	if CanView(p, section, cfg) {
		return nil
	}
	return ForbiddenError{PersonID: p.ID, Section: section, Required: cfg.MinRole(section)}
}

// UnknownPerson is returned when a request names a person that is not stored.
func UnknownPerson(id string) error {
	return ForbiddenError{PersonID: id}
}

func RequireAdmin(p domain.Person) error {
	if p.Admin {
		return nil
	}
	return ForbiddenError{PersonID: p.ID, Section: SectionAdmin}
}

// VisiblePartners returns the slugs of partners p is authorised on.
// Admins see every partner, archived ones included.
func VisiblePartners(p domain.Person, partners []domain.Partner) map[string]bool {
	out := make(map[string]bool, len(partners))
	for _, partner := range partners {
		if p.Admin || partner.Authorizes(p.ID) {
			out[partner.Slug] = true
		}
	}
	return out
}

// FilterPartners keeps actions whose partner is in visible.
func FilterPartners(actions []domain.Action, visible map[string]bool) []domain.Action {
	out := make([]domain.Action, 0, len(actions))
	for _, a := range actions {
		if visible[a.Partner] {
			out = append(out, a)
		}
	}
	return out
}
