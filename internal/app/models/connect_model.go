package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ConnectUserRoleUser  = "USER"
	ConnectUserRoleAdmin = "ADMIN"
)

// ConnectUser is the identity returned by the Connect service. Rewards keeps
// no account table of its own; user ids on coupons and tickets are Connect ids.
type ConnectUser struct {
	ID              uuid.UUID  `json:"id,omitempty"`
	Email           string     `json:"email,omitempty"`
	Username        string     `json:"username,omitempty"`
	FullName        string     `json:"full_name,omitempty"`
	GlobalRole      string     `json:"global_role,omitempty"`
	IsEmailVerified bool       `json:"is_email_verified,omitempty"`
	CreatedAt       *time.Time `json:"created_at,omitempty"`
}

func (u *ConnectUser) IsAdmin() bool {
	return u != nil && u.GlobalRole == ConnectUserRoleAdmin
}
