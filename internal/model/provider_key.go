package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ValidationStatus is the outcome of the most recent provider-key check.
type ValidationStatus string

const (
	ValidationValid       ValidationStatus = "valid"
	ValidationInvalid     ValidationStatus = "invalid"
	ValidationExpired     ValidationStatus = "expired"
	ValidationRateLimited ValidationStatus = "rate_limited"
	ValidationUnknown     ValidationStatus = "unknown"
)

// maxKeyErrors is the error count at which a key is auto-deactivated.
const maxKeyErrors = 10

// revalidateAfter is how long a validation result stays fresh.
const revalidateAfter = 24 * time.Hour

// ProviderKey is a user's encrypted credential for an external AI
// provider. The plaintext key exists only transiently at encrypt and
// decrypt time; the row stores the ciphertext and a SHA-256 hash used
// for verification and masked display.
type ProviderKey struct {
	ID               uuid.UUID         `json:"id"`
	UserID           int64             `json:"user_id"`
	ProviderID       *int              `json:"provider_id,omitempty"`
	Provider         *string           `json:"provider,omitempty"`
	KeyName          string            `json:"key_name"`
	EncryptedKey     string            `json:"-"` // Never serialized.
	KeyHash          string            `json:"-"` // Never serialized.
	Permissions      map[string]any    `json:"permissions,omitempty"`
	UsageLimits      map[string]any    `json:"usage_limits,omitempty"`
	UsageStats       map[string]any    `json:"usage_stats,omitempty"`
	IsActive         bool              `json:"is_active"`
	IsDefault        bool              `json:"is_default"`
	ExpiresAt        *time.Time        `json:"expires_at,omitempty"`
	LastUsedAt       *time.Time        `json:"last_used_at,omitempty"`
	LastValidatedAt  *time.Time        `json:"last_validated_at,omitempty"`
	ValidationStatus *ValidationStatus `json:"validation_status,omitempty"`
	ErrorCount       int               `json:"error_count"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// ValidValidationStatus reports whether s is a known validation status.
func ValidValidationStatus(s ValidationStatus) bool {
	switch s {
	case ValidationValid, ValidationInvalid, ValidationExpired, ValidationRateLimited, ValidationUnknown:
		return true
	}
	return false
}

// IsValid reports whether the key is active, validated and not expired.
func (k *ProviderKey) IsValid() bool {
	return k.IsActive &&
		k.ValidationStatus != nil && *k.ValidationStatus == ValidationValid &&
		!k.IsExpired()
}

// IsExpired reports whether the key passed its expiration date.
func (k *ProviderKey) IsExpired() bool {
	if k.ExpiresAt == nil {
		return false
	}
	return time.Now().UTC().After(*k.ExpiresAt)
}

// HasErrors reports whether any errors have been recorded.
func (k *ProviderKey) HasErrors() bool { return k.ErrorCount > 0 }

// NeedsValidation reports whether the last validation is missing or stale.
func (k *ProviderKey) NeedsValidation() bool {
	if k.LastValidatedAt == nil {
		return true
	}
	return k.LastValidatedAt.Before(time.Now().UTC().Add(-revalidateAfter))
}

// UsageCount returns the recorded usage counter from the stats blob.
func (k *ProviderKey) UsageCount() int {
	if k.UsageStats == nil {
		return 0
	}
	switch v := k.UsageStats["usage_count"].(type) {
	case float64: // JSON numbers decode as float64.
		return int(v)
	case int:
		return v
	}
	return 0
}

// Activate enables the key.
func (k *ProviderKey) Activate() { k.IsActive = true }

// Deactivate disables the key.
func (k *ProviderKey) Deactivate() { k.IsActive = false }

// MarkUsed records a use: timestamp plus the usage counter in the stats.
func (k *ProviderKey) MarkUsed() {
	now := time.Now().UTC()
	k.LastUsedAt = &now
	if k.UsageStats == nil {
		k.UsageStats = map[string]any{}
	}
	k.UsageStats["usage_count"] = k.UsageCount() + 1
	k.UsageStats["last_used"] = now.Format(time.RFC3339)
}

// RecordError increments the error counter. At maxKeyErrors the key is
// deactivated and marked invalid.
func (k *ProviderKey) RecordError() {
	k.ErrorCount++
	if k.ErrorCount >= maxKeyErrors {
		k.Deactivate()
		s := ValidationInvalid
		k.ValidationStatus = &s
	}
}

// ResetErrors clears the error counter.
func (k *ProviderKey) ResetErrors() { k.ErrorCount = 0 }

// RecordValidation applies the outcome of a validation check. A valid
// result reactivates the key and clears errors; invalid and expired
// results count as an error and deactivate the key.
func (k *ProviderKey) RecordValidation(status ValidationStatus, errorMessage *string) error {
	if !ValidValidationStatus(status) {
		return fmt.Errorf("model: invalid validation status %q", status)
	}
	now := time.Now().UTC()
	k.ValidationStatus = &status
	k.LastValidatedAt = &now

	switch status {
	case ValidationValid:
		k.ResetErrors()
		k.Activate()
	case ValidationInvalid, ValidationExpired:
		k.RecordError()
		k.Deactivate()
	}

	if k.UsageStats == nil {
		k.UsageStats = map[string]any{}
	}
	last := map[string]any{
		"status":    string(status),
		"timestamp": now.Format(time.RFC3339),
	}
	if errorMessage != nil {
		last["error_message"] = *errorMessage
	}
	k.UsageStats["last_validation"] = last
	return nil
}

// SetExpiration sets expiry to now plus the given number of days.
func (k *ProviderKey) SetExpiration(days int) {
	t := time.Now().UTC().AddDate(0, 0, days)
	k.ExpiresAt = &t
}

// ExtendExpiration pushes the expiry out by the given number of days,
// starting from now for keys with no expiry yet.
func (k *ProviderKey) ExtendExpiration(days int) {
	if k.ExpiresAt == nil {
		k.SetExpiration(days)
		return
	}
	t := k.ExpiresAt.AddDate(0, 0, days)
	k.ExpiresAt = &t
}

// MaskedKey returns a display form of the key hash: the last four hex
// characters prefixed with asterisks.
func (k *ProviderKey) MaskedKey() string {
	if len(k.KeyHash) >= 8 {
		return "****" + k.KeyHash[len(k.KeyHash)-4:]
	}
	return "****"
}
