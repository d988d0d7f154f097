package secrets_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestorlead/studio/internal/secrets"
)

func TestSealAndOpen(t *testing.T) {
	box, err := secrets.NewBox("service-secret")
	require.NoError(t, err)

	sealed, err := box.Seal("sk-test-1234567890abcdef")
	require.NoError(t, err)
	assert.NotEqual(t, "sk-test-1234567890abcdef", sealed)

	opened, err := box.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "sk-test-1234567890abcdef", opened)
}

func TestSealIsNonDeterministic(t *testing.T) {
	box, err := secrets.NewBox("service-secret")
	require.NoError(t, err)

	a, err := box.Seal("same-key")
	require.NoError(t, err)
	b, err := box.Seal("same-key")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestOpenWithWrongSecretFails(t *testing.T) {
	box, err := secrets.NewBox("secret-a")
	require.NoError(t, err)
	other, err := secrets.NewBox("secret-b")
	require.NoError(t, err)

	sealed, err := box.Seal("sk-test-key")
	require.NoError(t, err)

	_, err = other.Open(sealed)
	require.Error(t, err)
}

func TestOpenRejectsGarbage(t *testing.T) {
	box, err := secrets.NewBox("service-secret")
	require.NoError(t, err)

	_, err = box.Open("not base64 !!!")
	require.Error(t, err)

	_, err = box.Open("c2hvcnQ=")
	require.Error(t, err)
}

func TestNewBoxRejectsEmptySecret(t *testing.T) {
	_, err := secrets.NewBox("")
	require.Error(t, err)
}

func TestHashIsStable(t *testing.T) {
	assert.Equal(t, secrets.Hash("sk-abc"), secrets.Hash("sk-abc"))
	assert.NotEqual(t, secrets.Hash("sk-abc"), secrets.Hash("sk-abd"))
	assert.Len(t, secrets.Hash("sk-abc"), 64)
}

func TestMask(t *testing.T) {
	assert.Equal(t, "sk-t...cdef", secrets.Mask("sk-test-1234567890abcdef"))
	assert.Equal(t, "****", secrets.Mask("short"))
	assert.Equal(t, "****", secrets.Mask(""))
}
