// Package branchscope decides which branches an admin may see and maps legacy
// store names to canonical location codes. Location codes are the only stable
// join key between Branch and User.
package branchscope

import (
	"sort"
	"strings"

	"BranchLMS/internal/domain"
)

// Wildcard in Admin.allowedLocCodes grants unrestricted visibility.
const Wildcard = "*"

// Scope is either unrestricted or a fixed set of location codes.
// The zero Scope is restricted and allows nothing.
type Scope struct {
	all   bool
	codes map[string]struct{}
}

// All returns the unrestricted scope.
func All() Scope { return Scope{all: true} }

// Restricted returns a scope limited to codes. Blank codes are ignored.
func Restricted(codes ...string) Scope {
	s := Scope{codes: make(map[string]struct{}, len(codes))}
	for _, c := range codes {
		if c = strings.TrimSpace(c); c != "" {
			s.codes[c] = struct{}{}
		}
	}
	return s
}

func (s Scope) IsAll() bool { return s.all }

// Allows reports whether a user at locCode is visible. Users without a location
// code, or with the Unknown sentinel, are visible only to the unrestricted scope.
func (s Scope) Allows(locCode string) bool {
	if s.all {
		return true
	}
	locCode = strings.TrimSpace(locCode)
	if locCode == "" || locCode == UnknownLocCode {
		return false
	}
	_, ok := s.codes[locCode]
	return ok
}

// LocCodes returns the sorted codes of a restricted scope, nil when unrestricted.
func (s Scope) LocCodes() []string {
	if s.all {
		return nil
	}
	out := make([]string, 0, len(s.codes))
	for c := range s.codes {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// String is "ALL" or the comma-joined code list.
func (s Scope) String() string {
	if s.all {
		return "ALL"
	}
	return strings.Join(s.LocCodes(), ",")
}

// ResolveAllowedLocCodes derives the visibility of admin. branches are the Branch
// documents referenced by admin.Branches; references the caller could not load are
// simply absent. super_admin, an empty allowedLocCodes list or a "*" entry yields All.
func ResolveAllowedLocCodes(admin *domain.Admin, branches []domain.Branch) (Scope, error) {
	if admin == nil {
		return Scope{}, domain.NewValidationError("admin is required")
	}
	if admin.Role == domain.RoleSuperAdmin || len(admin.AllowedLocCodes) == 0 {
		return All(), nil
	}
	for _, c := range admin.AllowedLocCodes {
		if strings.TrimSpace(c) == Wildcard {
			return All(), nil
		}
	}

	assigned := make(map[string]struct{}, len(admin.Branches))
	for _, id := range admin.Branches {
		assigned[id.Hex()] = struct{}{}
	}
	codes := make([]string, 0, len(branches)+len(admin.AllowedLocCodes))
	for _, b := range branches {
		if _, ok := assigned[b.ID.Hex()]; ok {
			codes = append(codes, b.LocCode)
		}
	}
	codes = append(codes, admin.AllowedLocCodes...)
	return Restricted(codes...), nil
}
