package auth

import "fmt"

// Role is the closed set of account roles.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleStudent Role = "STUDENT"
)

// ParseRole converts a stored role string; unknown values are rejected.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin, RoleStudent:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Capability is an action a role may be allowed to perform.
type Capability int

const (
	CapBrowseEvents Capability = iota
	CapRegisterInterest
	CapManageEvents
	CapExportEvents
	CapViewAnalytics
)

var grants = map[Role][]Capability{
	RoleAdmin:   {CapBrowseEvents, CapRegisterInterest, CapManageEvents, CapExportEvents, CapViewAnalytics},
	RoleStudent: {CapBrowseEvents, CapRegisterInterest},
}

// Can reports whether the role holds the capability.
func (r Role) Can(c Capability) bool {
	for _, g := range grants[r] {
		if g == c {
			return true
		}
	}
	return false
}

// Identity is the authenticated principal carried by a session and passed
// explicitly to privileged operations. The zero value is "nobody".
type Identity struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// Authenticated reports whether the identity belongs to a real user.
func (i Identity) Authenticated() bool {
	return i.UserID != 0
}

// Can reports whether the identity may perform c.
func (i Identity) Can(c Capability) bool {
	return i.Authenticated() && i.Role.Can(c)
}

// IdentityOf builds the session identity for a user.
func IdentityOf(u *User) Identity {
	if u == nil {
		return Identity{}
	}
	return Identity{UserID: u.ID, Username: u.Username, Role: u.Role}
}
