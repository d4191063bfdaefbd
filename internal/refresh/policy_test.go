package refresh

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/competitor-intel/internal/model"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()

	assert.Equal(t, 7*24*time.Hour, p.TTLFor(model.ScanTypeWebsite))
	assert.Equal(t, 3*24*time.Hour, p.TTLFor(model.ScanTypeAds))
	assert.Equal(t, 30*24*time.Hour, p.TTLFor(model.ScanTypeResearch))

	// Unknown scan types fall back to the default window.
	assert.Equal(t, p.Default, p.TTLFor(model.ScanType("unknown")))
}

func TestTTLFor_ZeroPolicy(t *testing.T) {
	var p TTLPolicy
	assert.Equal(t, DefaultPolicy().Default, p.TTLFor(model.ScanTypeWebsite))
}

func TestLoadPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "freshness.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
freshness:
  default: 48h
  scan_ttls:
    ads: 12h
    website: 72h
`), 0o644))

	p, err := LoadPolicy(path)
	require.NoError(t, err)

	assert.Equal(t, 48*time.Hour, p.Default)
	assert.Equal(t, 12*time.Hour, p.TTLFor(model.ScanTypeAds))
	assert.Equal(t, 72*time.Hour, p.TTLFor(model.ScanTypeWebsite))
	// Types absent from the file keep the built-in windows.
	assert.Equal(t, 14*24*time.Hour, p.TTLFor(model.ScanTypeReviews))
	assert.Equal(t, 30*24*time.Hour, p.TTLFor(model.ScanTypeResearch))
}

func TestLoadPolicy_FileMissing(t *testing.T) {
	_, err := LoadPolicy(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read policy")
}

func TestLoadPolicy_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("freshness: [not a map"), 0o644))

	_, err := LoadPolicy(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse policy")
}
