package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCacheKeys(t *testing.T) {
	assert.Equal(t, "userStats:abc123", UserStatsCacheKey("abc123"))
	assert.Equal(t, "courses:active", CourseCacheKey("active"))
	assert.Equal(t, "courses:", CourseCacheKey(""))

	// Invalidation must cover every listing variant a reader can populate.
	keys := CourseCacheKeys()
	assert.ElementsMatch(t, []string{"courses:", "courses:active", "courses:inactive"}, keys)
}
