package model

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// Роли учётных записей.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Account представляет учётную запись участника торгов.
type Account struct {
	ID           string
	Login        string
	FullName     string
	PasswordHash []byte
	Role         string
	Balance      decimal.Decimal
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Caller описывает вызывающего пользователя, переданного в сервис явно.
type Caller struct {
	ID    string
	Roles []string
}

// HasRole сообщает, обладает ли вызывающий указанной ролью.
func (c Caller) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

// IsAdmin сообщает, является ли вызывающий администратором.
func (c Caller) IsAdmin() bool {
	return c.HasRole(RoleAdmin)
}
