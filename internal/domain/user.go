package domain

import "time"

const (
	DefaultCredits   = 100
	SubscriptionFree = "free"
)

type User struct {
	ID                 string
	Email              string
	Name               *string
	Image              *string
	HashedPassword     *string // nil for social-login-only accounts
	PasswordChangedAt  time.Time
	IsVerified         bool
	Credits            int
	SubscriptionStatus string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// HasPassword reports whether the user can authenticate with credentials.
func (u *User) HasPassword() bool {
	return u.HashedPassword != nil && *u.HashedPassword != ""
}

// Profile is the public view of a user. It never carries the password hash.
type Profile struct {
	ID                 string  `json:"id"`
	Name               *string `json:"name"`
	Email              string  `json:"email"`
	Image              *string `json:"image"`
	Credits            int     `json:"credits"`
	SubscriptionStatus string  `json:"subscriptionStatus"`
	IsVerified         bool    `json:"isVerified"`
}

func (u *User) Profile() Profile {
	return Profile{
		ID:                 u.ID,
		Name:               u.Name,
		Email:              u.Email,
		Image:              u.Image,
		Credits:            u.Credits,
		SubscriptionStatus: u.SubscriptionStatus,
		IsVerified:         u.IsVerified,
	}
}
