package repository

import (
	"errors"

	"github.com/lumenshop/storefront/internal/domain/entity"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicatePhone is returned when a phone number is already registered.
	ErrDuplicatePhone = errors.New("phone already registered")
)

// UserRepository defines the interface for user-related database operations.
type UserRepository interface {
	Create(u *entity.User) error
	GetByID(id string) (*entity.User, error)
	GetByPhone(phone string) (*entity.User, error)
	Update(u *entity.User) error
	SetMobileVerified(id string) error
}
