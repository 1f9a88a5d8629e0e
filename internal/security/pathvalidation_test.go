package security

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePathWithinDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	safeDir := filepath.Join(tmpDir, "safe")
	unsafeDir := filepath.Join(tmpDir, "unsafe")
	require.NoError(t, os.MkdirAll(filepath.Join(safeDir, "session"), 0o755))
	require.NoError(t, os.MkdirAll(unsafeDir, 0o755))
	require.NoError(t, os.Symlink(unsafeDir, filepath.Join(safeDir, "evil-symlink")))

	tests := []struct {
		name      string
		filePath  string
		wantError bool
	}{
		{"existing dir", filepath.Join(safeDir, "session"), false},
		{"new file", filepath.Join(safeDir, "session", "input.mp4"), false},
		{"new nested file", filepath.Join(safeDir, "a", "b", "c.mp4"), false},
		{"root itself", safeDir, false},
		{"dot-dot escape", filepath.Join(safeDir, "..", "unsafe", "x"), true},
		{"sibling prefix", safeDir + "-other/x", true},
		{"absolute elsewhere", "/etc/passwd", true},
		{"through symlink", filepath.Join(safeDir, "evil-symlink", "new.mp4"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.filePath, safeDir)
			if tt.wantError {
				assert.ErrorIs(t, err, ErrPathTraversal)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePathWithinDirectory_MissingRoot(t *testing.T) {
	err := ValidatePathWithinDirectory("/tmp/x", filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct{ in, want string }{
		{"squat.mp4", "squat.mp4"},
		{"my squat (heavy).mov", "my_squat_heavy_.mov"},
		{"../../etc/passwd", "etc_passwd"},
		{"", "unknown"},
		{"...", "unknown"},
		{"ünïcode.avi", "n_code.avi"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeFilename(tt.in), "input %q", tt.in)
	}
	assert.LessOrEqual(t, len(SanitizeFilename(strings.Repeat("a", 500))), 128)
}
