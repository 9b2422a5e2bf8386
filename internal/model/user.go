// Package model defines the data structures used throughout the application.
package model

// User represents a registered blog account.
//
// PasswordHash is a bcrypt hash and is never serialized. CreatedAt is kept as the
// raw stored text; it goes through timefmt before display.
type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	CreatedAt    string `json:"createdAt"`
}

// Actor is the authenticated identity performing a mutation.
//
// It is resolved by the auth layer and passed explicitly into every service call
// that writes data. The zero Actor means "nobody is logged in".
type Actor struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
}

// IsZero reports whether no user is attached.
func (a Actor) IsZero() bool {
	return a.UserID == 0
}
