package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHash(t *testing.T) {
	t.Run("test MakeHash", testMakeHash)
	t.Run("test MakeCacheKey", testMakeCacheKey)
}

func testMakeHash(t *testing.T) {
	hash1 := MakeHash("hello")
	hash2 := MakeHash("hello")
	assert.Equal(t, hash1, hash2)
	assert.Len(t, hash1, 40)

	hash3 := MakeHash("world")
	assert.NotEqual(t, hash1, hash3)
}

func testMakeCacheKey(t *testing.T) {
	key1 := MakeCacheKey("SELECT * FROM users WHERE id = ?", []string{"1"})
	key2 := MakeCacheKey("SELECT * FROM users WHERE id = ?", []string{"1"})
	assert.Equal(t, key1, key2)

	key3 := MakeCacheKey("SELECT * FROM users WHERE id = ?", []string{"2"})
	assert.NotEqual(t, key1, key3)

	// parameter boundaries are preserved
	key4 := MakeCacheKey("q", []string{"ab", "c"})
	key5 := MakeCacheKey("q", []string{"a", "bc"})
	assert.NotEqual(t, key4, key5)

	// no parameters differs from one empty parameter
	key6 := MakeCacheKey("q", nil)
	key7 := MakeCacheKey("q", []string{""})
	assert.NotEqual(t, key6, key7)
}
