package domain

import "time"

type UserStatus string

const (
	UserStatusActive  UserStatus = "ACTIVE"
	UserStatusBlocked UserStatus = "BLOCKED"
)

type User struct {
	ID            string     `bson:"_id,omitempty"`
	Email         string     `bson:"email"`
	Name          string     `bson:"name"`
	Status        UserStatus `bson:"status"`
	EmailVerified bool       `bson:"email_verified"`
	CreatedAt     time.Time  `bson:"created_at"`
}

// CanOrder reports whether the user may create orders: active and verified.
func (u *User) CanOrder() bool {
	return u.Status == UserStatusActive && u.EmailVerified
}
