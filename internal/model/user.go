// Package model defines the domain entities for GestorLead Studio and the
// state-transition methods that operate on them. Transitions mutate the
// struct only; persistence is the storage layer's job.
package model

import (
	"fmt"
	"time"
)

// User is a platform account with authentication identity, profile and
// a credit balance debited by task execution.
type User struct {
	ID                 int64          `json:"id"`
	Email              string         `json:"email"`
	GoogleID           *string        `json:"google_id,omitempty"`
	PasswordHash       *string        `json:"-"` // Never serialized.
	FullName           *string        `json:"full_name,omitempty"`
	AvatarURL          *string        `json:"avatar_url,omitempty"`
	CreditBalance      int            `json:"credit_balance"`
	SubscriptionTierID *int           `json:"subscription_tier_id,omitempty"`
	IsActive           bool           `json:"is_active"`
	IsAdmin            bool           `json:"is_admin"`
	Preferences        map[string]any `json:"preferences,omitempty"`
	LastLoginAt        *time.Time     `json:"last_login_at,omitempty"`
	EmailVerifiedAt    *time.Time     `json:"email_verified_at,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// IsVerified reports whether the user's email has been verified.
func (u *User) IsVerified() bool {
	return u.EmailVerifiedAt != nil
}

// HasCredits reports whether the user has any credits available.
func (u *User) HasCredits() bool {
	return u.CreditBalance > 0
}

// CanSpendCredits reports whether the balance covers amount.
func (u *User) CanSpendCredits(amount int) bool {
	return u.CreditBalance >= amount
}

// SpendCredits debits amount from the balance.
// Returns an error if the balance is insufficient.
func (u *User) SpendCredits(amount int) error {
	if !u.CanSpendCredits(amount) {
		return fmt.Errorf("model: insufficient credits: balance %d, required %d", u.CreditBalance, amount)
	}
	u.CreditBalance -= amount
	return nil
}

// AddCredits credits amount to the balance. Amount must be positive.
func (u *User) AddCredits(amount int) error {
	if amount <= 0 {
		return fmt.Errorf("model: credit amount must be positive, got %d", amount)
	}
	u.CreditBalance += amount
	return nil
}

// VerifyEmail marks the email as verified now.
func (u *User) VerifyEmail() {
	now := time.Now().UTC()
	u.EmailVerifiedAt = &now
}

// TouchLastLogin records a login now.
func (u *User) TouchLastLogin() {
	now := time.Now().UTC()
	u.LastLoginAt = &now
}

// Deactivate disables the account.
func (u *User) Deactivate() { u.IsActive = false }

// Activate enables the account.
func (u *User) Activate() { u.IsActive = true }

// ValidateEmail checks that an email address is plausibly well-formed.
// Full RFC validation is left to the mail provider; this catches the
// obviously broken inputs before they hit the unique index.
func ValidateEmail(email string) error {
	if len(email) == 0 {
		return fmt.Errorf("email is required")
	}
	if len(email) > 255 {
		return fmt.Errorf("email must be at most 255 characters")
	}
	at := -1
	for i := 0; i < len(email); i++ {
		c := email[i]
		if c == ' ' {
			return fmt.Errorf("email must not contain spaces")
		}
		if c == '@' {
			if at != -1 {
				return fmt.Errorf("email must contain exactly one @")
			}
			at = i
		}
	}
	if at <= 0 || at == len(email)-1 {
		return fmt.Errorf("email must contain a local part and a domain")
	}
	return nil
}
