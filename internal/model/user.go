package model

import "time"

type UserRole string

const (
	RoleInfluencer UserRole = "influencer"
	RoleAdvertiser UserRole = "advertiser"
	RoleAdmin      UserRole = "admin"
)

// Valid reports whether the role is one a client may sign up with.
// Admin accounts are promoted directly in the database, never self-assigned.
func (r UserRole) Valid() bool {
	return r == RoleInfluencer || r == RoleAdvertiser
}

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

type User struct {
	ID              string         `json:"id"`
	Username        string         `json:"username"`
	Email           string         `json:"email"`
	Phone           string         `json:"phone"`
	Role            UserRole       `json:"role"`
	ApprovalStatus  ApprovalStatus `json:"approval_status"`
	RejectionReason string         `json:"-"`
	AvatarURL       string         `json:"avatar_url"`
	LastSeenAt      time.Time      `json:"last_seen_at"`
	IsOnline        bool           `json:"is_online"`
	CreatedAt       time.Time      `json:"created_at"`
	DisabledAt      *time.Time     `json:"-"` // non-null: account disabled, cannot sign in
}

type UserPublic struct {
	ID         string     `json:"id"`
	Username   string     `json:"username"`
	Email      string     `json:"email"`
	Role       UserRole   `json:"role"`
	AvatarURL  string     `json:"avatar_url"`
	IsOnline   bool       `json:"is_online"`
	LastSeenAt time.Time  `json:"last_seen_at"`
	DisabledAt *time.Time `json:"disabled_at,omitempty"`
}

func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		Role:       u.Role,
		AvatarURL:  u.AvatarURL,
		IsOnline:   u.IsOnline,
		LastSeenAt: u.LastSeenAt,
		DisabledAt: u.DisabledAt,
	}
}

// PendingUser is the admin view of a signup awaiting approval.
type PendingUser struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      UserRole  `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
