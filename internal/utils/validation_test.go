package contextutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidEmail(t *testing.T) {
	assert.True(t, IsValidEmail("dev@example.com"))
	assert.True(t, IsValidEmail("qa+bugs@example.co.uk"))

	assert.False(t, IsValidEmail(""))
	assert.False(t, IsValidEmail("alice"))
	assert.False(t, IsValidEmail("@example.com"))
	assert.False(t, IsValidEmail("user name@example.com"))
}

func TestRequireText(t *testing.T) {
	assert.NoError(t, RequireText("title", "Crash on save"))

	err := RequireText("title", "  \n")
	assert.True(t, IsError(err, ErrMissingRequired))
	assert.Contains(t, err.Error(), "title must not be empty")
}

func TestMaskAPIKey(t *testing.T) {
	assert.Equal(t, "[EMPTY]", MaskAPIKey(""))
	assert.Equal(t, "*****", MaskAPIKey("abcde"))
	assert.Equal(t, "lin_****************7890", MaskAPIKey("lin_abcdefghijklmnop7890"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 100))
	assert.Equal(t, "abc...", Truncate("abcdef", 3))
	assert.Equal(t, "héé...", Truncate("hééllo", 3))
	assert.Equal(t, "abc", Truncate("abc", 0))
}
