package model

import (
	"strings"
	"time"
)

// User is an account row. PasswordHash never leaves the process.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"ho_ten"`
	Phone        string    `json:"dien_thoai"`
	Address      string    `json:"dia_chi"`
	Role         Role      `json:"vai_tro"`
	Locked       bool      `json:"bi_khoa"`
	CreatedAt    time.Time `json:"ngay_tao"`
	UpdatedAt    time.Time `json:"ngay_cap_nhat"`
}

// Public returns a copy with the password hash cleared.
func (u *User) Public() *User {
	if u == nil {
		return nil
	}
	out := *u
	out.PasswordHash = ""
	return &out
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

type NewUser struct {
	Email        string
	PasswordHash string
	FullName     string
	Phone        string
	Address      string
	Role         Role
}

// UserUpdate carries a partial update; nil fields are left untouched.
type UserUpdate struct {
	FullName     *string
	Phone        *string
	Address      *string
	PasswordHash *string
	Role         *Role
	Locked       *bool
}

func (u UserUpdate) Empty() bool {
	return u.FullName == nil && u.Phone == nil && u.Address == nil &&
		u.PasswordHash == nil && u.Role == nil && u.Locked == nil
}

// NormalizeEmail is applied before every lookup and write so that uniqueness
// is case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
