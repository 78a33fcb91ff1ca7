package version

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	tests := []struct {
		name        string
		ver         string
		commit      string
		vcs         map[string]string
		wantVersion string
		wantCommit  string
		wantRelease bool
		wantDirty   bool
	}{
		{
			name:        "ldflags win",
			ver:         "v1.2.0",
			commit:      "abcdef1234",
			vcs:         map[string]string{"vcs.revision": "ffffffffff"},
			wantVersion: "v1.2.0",
			wantCommit:  "abcdef1234",
			wantRelease: true,
		},
		{
			name:        "vcs revision fallback",
			ver:         "dev",
			commit:      "unknown",
			vcs:         map[string]string{"vcs.revision": "0123456789", "vcs.modified": "true", "main.version": "(devel)"},
			wantVersion: "dev-0123456",
			wantCommit:  "0123456789",
			wantDirty:   true,
		},
		{
			name:        "module version",
			ver:         "",
			commit:      "",
			vcs:         map[string]string{"main.version": "v0.3.1"},
			wantVersion: "v0.3.1",
			wantCommit:  "unknown",
			wantRelease: true,
		},
		{
			name:        "nothing known",
			ver:         "dev",
			commit:      "unknown",
			vcs:         map[string]string{},
			wantVersion: "dev",
			wantCommit:  "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := get(tt.ver, tt.commit, "unknown", tt.vcs)
			assert.Equal(t, tt.wantVersion, info.Version)
			assert.Equal(t, tt.wantCommit, info.GitCommit)
			assert.Equal(t, tt.wantRelease, info.Release)
			assert.Equal(t, tt.wantDirty, info.Dirty)
			assert.True(t, info.BuildTime.IsZero())
		})
	}
}

func TestInfoString(t *testing.T) {
	info := get("v1.2.0", "abcdef1234", "unknown", nil)
	assert.Equal(t, "buildlens v1.2.0 (abcdef1)", info.String())

	info = get("dev", "abcdef1234", "unknown", map[string]string{"vcs.modified": "true"})
	assert.Equal(t, "buildlens dev-abcdef1 (dirty)", info.String())
}

func TestInfoDetailed(t *testing.T) {
	info := get("v1.2.0", "abcdef1234", "2024-05-01T10:00:00Z", nil)
	detailed := info.Detailed()

	assert.True(t, strings.HasPrefix(detailed, "Version: v1.2.0\n"))
	assert.Contains(t, detailed, "Commit: abcdef1234")
	assert.Contains(t, detailed, "Built: 2024-05-01T10:00:00Z")
	assert.Contains(t, detailed, "Build type: release")
}

func TestParseBuildTime(t *testing.T) {
	want := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, want, parseBuildTime("2024-05-01T10:00:00Z"))
	assert.Equal(t, want, parseBuildTime("2024-05-01 10:00:00"))
	assert.True(t, parseBuildTime("unknown").IsZero())
	assert.True(t, parseBuildTime("yesterday").IsZero())
}
