// Package models defines the persisted record types of the application.
// Each model embeds *entity.Record and describes its columns with a schema.
package models

import (
	"strings"
	"time"

	"github.com/dmitrijs2005/useraccounts/internal/entity"
)

// userSchema maps the transport names used by forms and JSON onto the
// users table columns.
var userSchema = entity.MustSchema(
	entity.WithFieldMap(map[string]string{
		"userId":   "user_id",
		"emailId":  "email_id",
		"password": "password",
	}),
	entity.WithDefaults(map[string]any{
		"user_id":  nil,
		"email_id": nil,
		"password": nil,
	}),
	entity.WithMutator("email_id", normalizeEmail),
)

func normalizeEmail(r *entity.Record, value any) {
	if s, ok := value.(string); ok {
		value = strings.ToLower(strings.TrimSpace(s))
	}
	r.SetAttribute("email_id", value)
}

// User is a row of the users table.
type User struct {
	*entity.Record
}

var _ entity.Serializable = (*User)(nil)

// NewUser builds a user from form or row data. Keys may use either the
// transport (emailId) or column (email_id) names.
func NewUser(data map[string]any) *User {
	return &User{Record: entity.New(userSchema, data)}
}

// ID returns the user id, or "" for a user that was not stored yet.
func (u *User) ID() string { return stringValue(u.Get("user_id")) }

// Email returns the normalized email address.
func (u *User) Email() string { return stringValue(u.Get("email_id")) }

// PasswordHash returns the stored bcrypt hash.
func (u *User) PasswordHash() string { return stringValue(u.Get("password")) }

// SetPasswordHash replaces the password hash.
func (u *User) SetPasswordHash(hash string) { u.Set("password", hash) }

// CreatedAt returns the creation time loaded from the database.
func (u *User) CreatedAt() time.Time { return timeValue(u.Get("created_at")) }

// Public is the mapped view of the user that may leave the server.
// It never contains the password hash.
func (u *User) Public() map[string]any {
	out := u.ToArray(entity.OnlyMapped())
	delete(out, "password")
	return out
}

func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return ""
	}
}

func timeValue(v any) time.Time {
	t, _ := v.(time.Time)
	return t
}
