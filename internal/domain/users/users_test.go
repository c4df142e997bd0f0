package users

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPassword(t *testing.T) {
	var p password
	require.NoError(t, p.Set("correct horse"))

	assert.NoError(t, p.Compare("correct horse"))
	assert.Error(t, p.Compare("battery staple"))
}

func TestFullName(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", (&User{FirstName: "Ada", LastName: "Lovelace"}).FullName())
	assert.Equal(t, "Ada", (&User{FirstName: "Ada"}).FullName())
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "ada@example.com", NormalizeEmail("  Ada@Example.COM "))
}

func TestDigestIsStableAndOpaque(t *testing.T) {
	d := digest("refresh-token")

	assert.Equal(t, d, digest("refresh-token"))
	assert.NotEqual(t, d, digest("refresh-token2"))
	assert.Len(t, d, 64)
	assert.NotContains(t, d, "refresh")
}
