package http

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateStringKeepsRunes(t *testing.T) {
	assert.Equal(t, "hola", TruncateString("hola", 10))
	assert.Equal(t, "ca", TruncateString("cañón", 3))
	assert.Equal(t, "cañ", TruncateString("cañón", 4))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "hola", SanitizeString("ho\x00la"))
	assert.Equal(t, "ok", SanitizeString("ok\xff"))
}

func TestValidConfigKey(t *testing.T) {
	assert.True(t, ValidConfigKey("system_prompt"))
	assert.False(t, ValidConfigKey(""))
	assert.False(t, ValidConfigKey("bad-key"))
	assert.False(t, ValidConfigKey("drop table;"))
}

func TestValidSlug(t *testing.T) {
	assert.True(t, ValidSlug("ana-lopez_2"))
	assert.False(t, ValidSlug("ana lopez"))
}
