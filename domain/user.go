package domain

import (
	"fmt"
	"time"

	"github.com/samber/lo"
)

// User mirrors the users table of the relational store. EnrolledChats is
// the only field mutated by the chat core: a user belongs to a chat if
// and only if the chat's id appears there.
type User struct {
	Email               string    `json:"email"`
	Handle              string    `json:"handle"`
	Password            string    `json:"password"`
	Age                 int       `json:"age"`
	Country             string    `json:"country"`
	Preferences         string    `json:"preferences"`
	Suspended           bool      `json:"suspended"`
	AgeVerified         bool      `json:"age_verified"`
	UserID              string    `json:"user_id"`
	PhoneNumber         string    `json:"phone_number"`
	Joined              time.Time `json:"joined"`
	Description         string    `json:"description"`
	LastAgent           string    `json:"last_agent"`
	LastApproxCountry   string    `json:"last_approx_country"`
	AvatarURL           string    `json:"avatar_url"`
	EmailVerified       bool      `json:"email_verified"`
	LastLogin           time.Time `json:"last_login"`
	FailedLoginAttempts int       `json:"failed_login_attempts"`
	LockedUntil         time.Time `json:"locked_until"`
	Timezone            string    `json:"timezone"`
	EnrolledChats       []string  `json:"enrolled_chats"`
}

// AvatarKey derives the object-store key of the user's avatar.
func (u User) AvatarKey() string {
	return fmt.Sprintf("/%s", u.AvatarURL)
}

// EnrolledIn reports whether the user belongs to the chat.
func (u User) EnrolledIn(chatID string) bool {
	return lo.Contains(u.EnrolledChats, chatID)
}

// Enroll adds chatID to the membership set. Idempotent.
func (u *User) Enroll(chatID string) {
	if u.EnrolledIn(chatID) {
		return
	}
	u.EnrolledChats = append(u.EnrolledChats, chatID)
}

// Withdraw removes chatID from the membership set.
func (u *User) Withdraw(chatID string) {
	u.EnrolledChats = lo.Filter(u.EnrolledChats, func(id string, _ int) bool {
		return id != chatID
	})
}
