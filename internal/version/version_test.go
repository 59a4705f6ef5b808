package version

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShort(t *testing.T) {
	assert.Equal(t, "dev", Info{Version: "dev", GitCommit: "unknown"}.Short())
	assert.Equal(t, "dev-abcdef1", Info{Version: "dev", GitCommit: "abcdef123456"}.Short())
	assert.Equal(t, "v1.0.0 (abcdef1)", Info{Version: "v1.0.0", GitCommit: "abcdef123456"}.Short())
}

func TestString(t *testing.T) {
	info := Info{
		Version:   "v1.0.0",
		GitCommit: "abcdef123456",
		BuildTime: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		GoVersion: "go1.24.4",
		Platform:  "linux/amd64",
		Modified:  true,
	}

	assert.Equal(t, "Version: v1.0.0\nCommit: abcdef123456 (modified)\nBuilt: 2024-05-01T12:00:00Z\nGo: go1.24.4\nPlatform: linux/amd64", info.String())
}

func TestGet(t *testing.T) {
	info := Get()
	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.GoVersion)
	assert.Contains(t, info.Platform, "/")
}
