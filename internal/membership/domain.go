// internal/membership/domain.go
package membership

import (
	"strconv"
	"time"
)

// Roles a privileged account may hold.
const (
	RoleAdmin = "admin"
	RoleSuper = "super"
)

// Account is an ordinary user.
type Account struct {
	ID        int64     `json:"-"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"-"`
}

// Admin is a privileged account kept apart from ordinary users.
type Admin struct {
	ID        int64     `json:"-"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"-"`
}

// Session is returned by register and login.
type Session struct {
	Token string      `json:"token"`
	User  SessionUser `json:"user"`
}

// SessionUser is the public view of the authenticated subject.
type SessionUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role,omitempty"`
}

func newSessionUser(id int64, username, role string) SessionUser {
	return SessionUser{ID: strconv.FormatInt(id, 10), Username: username, Role: role}
}
