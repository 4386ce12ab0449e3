package entity

import (
	"time"
)

// User is the aggregate root for the identity domain.
// The phone number is the unique identity key; Password holds a bcrypt hash.
type User struct {
	ID             string
	Phone          string
	Password       string
	FirstName      string
	LastName       string
	Role           Role
	MobileVerified bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}
