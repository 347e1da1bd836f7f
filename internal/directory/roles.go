package directory

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// Role is an actor's permission level.
type Role string

const (
	RoleNone        Role = ""
	RoleViewer      Role = "viewer"
	RoleContributor Role = "contributor"
	RoleReviewer    Role = "reviewer"
	RoleManager     Role = "manager"
	RoleAdmin       Role = "admin"
	// RoleSystem is held only by the automation identity used by sweeps.
	RoleSystem Role = "system"
)

var roleRanks = map[Role]int{
	RoleNone:        0,
	RoleViewer:      1,
	RoleContributor: 2,
	RoleReviewer:    3,
	RoleManager:     4,
	RoleAdmin:       5,
	RoleSystem:      6,
}

var folder = cases.Fold()

// Rank returns the position of the role in the total order. Unknown roles rank zero.
func (r Role) Rank() int {
	return roleRanks[r]
}

// AtLeast reports whether r satisfies the floor. An empty floor is always satisfied.
func (r Role) AtLeast(floor Role) bool {
	if floor == RoleNone {
		return true
	}
	return r.Rank() >= floor.Rank()
}

func (r Role) String() string {
	if r == RoleNone {
		return "none"
	}
	return string(r)
}

// ParseRole matches a role name case-insensitively. An empty value yields RoleNone.
func ParseRole(value string) (Role, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" || strings.EqualFold(trimmed, "none") {
		return RoleNone, nil
	}
	folded := folder.String(trimmed)
	for role := range roleRanks {
		if role != RoleNone && folder.String(string(role)) == folded {
			return role, nil
		}
	}
	return RoleNone, fmt.Errorf("unknown role %q", value)
}

// Roles lists the assignable roles in ascending order.
func Roles() []Role {
	return []Role{RoleViewer, RoleContributor, RoleReviewer, RoleManager, RoleAdmin}
}
