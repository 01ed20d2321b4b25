package builder

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildInfo(t *testing.T) {
	Version, Commit, Date = "v0.1.0", "abc123", "2024-01-01"
	t.Cleanup(func() { Version, Commit, Date = "unknown", "unknown", "unknown" })

	info := GetInfo()
	assert.Equal(t, "v0.1.0", info.Version)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, info.Program+" v0.1.0 (abc123 2024-01-01) "+runtime.Version(), BuildInfo())
}
