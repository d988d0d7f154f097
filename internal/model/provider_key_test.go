package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestorlead/studio/internal/model"
)

func validKey() *model.ProviderKey {
	s := model.ValidationValid
	return &model.ProviderKey{IsActive: true, ValidationStatus: &s}
}

func TestProviderKeyIsValid(t *testing.T) {
	t.Run("active validated unexpired", func(t *testing.T) {
		assert.True(t, validKey().IsValid())
	})

	t.Run("inactive", func(t *testing.T) {
		k := validKey()
		k.Deactivate()
		assert.False(t, k.IsValid())
	})

	t.Run("no validation result", func(t *testing.T) {
		k := &model.ProviderKey{IsActive: true}
		assert.False(t, k.IsValid())
	})

	t.Run("expired", func(t *testing.T) {
		k := validKey()
		past := time.Now().UTC().Add(-time.Hour)
		k.ExpiresAt = &past
		assert.True(t, k.IsExpired())
		assert.False(t, k.IsValid())
	})
}

func TestProviderKeyNeedsValidation(t *testing.T) {
	k := &model.ProviderKey{}
	assert.True(t, k.NeedsValidation(), "never validated")

	recent := time.Now().UTC().Add(-time.Hour)
	k.LastValidatedAt = &recent
	assert.False(t, k.NeedsValidation())

	stale := time.Now().UTC().Add(-25 * time.Hour)
	k.LastValidatedAt = &stale
	assert.True(t, k.NeedsValidation())
}

func TestProviderKeyMarkUsed(t *testing.T) {
	k := &model.ProviderKey{}
	assert.Zero(t, k.UsageCount())

	k.MarkUsed()
	k.MarkUsed()
	assert.Equal(t, 2, k.UsageCount())
	require.NotNil(t, k.LastUsedAt)
	assert.Contains(t, k.UsageStats, "last_used")
}

func TestProviderKeyUsageCount_JSONNumbers(t *testing.T) {
	// Stats round-tripped through JSON decode numbers as float64.
	k := &model.ProviderKey{UsageStats: map[string]any{"usage_count": float64(7)}}
	assert.Equal(t, 7, k.UsageCount())
}

func TestProviderKeyRecordError_AutoDeactivates(t *testing.T) {
	k := validKey()
	for i := 0; i < 9; i++ {
		k.RecordError()
	}
	assert.Equal(t, 9, k.ErrorCount)
	assert.True(t, k.IsActive, "below the threshold the key stays active")

	k.RecordError()
	assert.Equal(t, 10, k.ErrorCount)
	assert.False(t, k.IsActive)
	require.NotNil(t, k.ValidationStatus)
	assert.Equal(t, model.ValidationInvalid, *k.ValidationStatus)
}

func TestProviderKeyRecordValidation(t *testing.T) {
	t.Run("valid reactivates and clears errors", func(t *testing.T) {
		k := &model.ProviderKey{ErrorCount: 5}
		require.NoError(t, k.RecordValidation(model.ValidationValid, nil))
		assert.True(t, k.IsActive)
		assert.Zero(t, k.ErrorCount)
		require.NotNil(t, k.LastValidatedAt)
		assert.Equal(t, model.ValidationValid, *k.ValidationStatus)
		assert.Contains(t, k.UsageStats, "last_validation")
	})

	t.Run("invalid counts an error and deactivates", func(t *testing.T) {
		k := validKey()
		msg := "401 unauthorized"
		require.NoError(t, k.RecordValidation(model.ValidationInvalid, &msg))
		assert.False(t, k.IsActive)
		assert.Equal(t, 1, k.ErrorCount)

		last, ok := k.UsageStats["last_validation"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "invalid", last["status"])
		assert.Equal(t, "401 unauthorized", last["error_message"])
	})

	t.Run("rate_limited leaves activation alone", func(t *testing.T) {
		k := validKey()
		require.NoError(t, k.RecordValidation(model.ValidationRateLimited, nil))
		assert.True(t, k.IsActive)
		assert.Zero(t, k.ErrorCount)
	})

	t.Run("unknown status rejected", func(t *testing.T) {
		k := validKey()
		require.Error(t, k.RecordValidation(model.ValidationStatus("bogus"), nil))
	})
}

func TestProviderKeyExpiration(t *testing.T) {
	k := &model.ProviderKey{}
	k.SetExpiration(30)
	require.NotNil(t, k.ExpiresAt)
	first := *k.ExpiresAt

	k.ExtendExpiration(30)
	assert.Equal(t, first.AddDate(0, 0, 30), *k.ExpiresAt)

	fresh := &model.ProviderKey{}
	fresh.ExtendExpiration(7)
	require.NotNil(t, fresh.ExpiresAt, "extending with no expiry starts from now")
}

func TestProviderKeyMaskedKey(t *testing.T) {
	k := &model.ProviderKey{KeyHash: "0123456789abcdef"}
	assert.Equal(t, "****cdef", k.MaskedKey())

	short := &model.ProviderKey{KeyHash: "abc"}
	assert.Equal(t, "****", short.MaskedKey())
}
