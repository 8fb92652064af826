package repository

import "github.com/handwerkpro/handwerk-api/internal/domain/entity"

// UserRepository persists local accounts.
type UserRepository interface {
	Create(u *entity.User) error
	FindByEmail(email string) (*entity.User, error)
}
