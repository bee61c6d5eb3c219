package producer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadManifestParsesIntervalAndCronTasks(t *testing.T) {
	path := writeManifest(t, `
tasks:
  - path: Vehicle.Speed
    intervalMs: 500
    value: 42
  - path: Vehicle.Cabin.Door.IsOpen
    cron: "*/5 * * * * *"
    value: false
`)

	m, err := LoadManifest(path)
	require.NoError(t, err)
	require.Len(t, m.Tasks, 2)
	assert.Equal(t, "Vehicle.Speed", m.Tasks[0].Path)
	assert.Equal(t, int64(500), m.Tasks[0].IntervalMillis)
	assert.Equal(t, "Vehicle.Cabin.Door.IsOpen", m.Tasks[1].Path)
	assert.Equal(t, "*/5 * * * * *", m.Tasks[1].Cron)
}

func TestLoadManifestRejectsMissingSchedule(t *testing.T) {
	path := writeManifest(t, `
tasks:
  - path: Vehicle.Speed
    value: 1
`)
	_, err := LoadManifest(path)
	assert.Error(t, err)
}

func TestLoadManifestRejectsBothSchedules(t *testing.T) {
	path := writeManifest(t, `
tasks:
  - path: Vehicle.Speed
    intervalMs: 100
    cron: "* * * * * *"
    value: 1
`)
	_, err := LoadManifest(path)
	assert.Error(t, err)
}

func TestLoadManifestRejectsMissingPath(t *testing.T) {
	path := writeManifest(t, `
tasks:
  - intervalMs: 100
    value: 1
`)
	_, err := LoadManifest(path)
	assert.Error(t, err)
}
