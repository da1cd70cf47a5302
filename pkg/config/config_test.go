package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 1000, cfg.IterationCap)
	assert.Equal(t, 512, cfg.MaxCallDepth)
	assert.False(t, cfg.LocalAssignment)
	assert.Equal(t, FormatJSON, cfg.Format)
	assert.Equal(t, 1, cfg.Parallel)
	assert.NoError(t, cfg.Validate())
}

func TestParse_OverlaysDefaults(t *testing.T) {
	cfg, err := Parse([]byte("iterationCap: 50\nformat: table\n"))
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.IterationCap)
	assert.Equal(t, FormatTable, cfg.Format)
	assert.Equal(t, 512, cfg.MaxCallDepth, "omitted fields keep defaults")
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad yaml", "iterationCap: [1"},
		{"zero cap", "iterationCap: 0"},
		{"negative depth", "maxCallDepth: -1"},
		{"zero parallel", "parallel: 0"},
		{"unknown format", "format: xml"},
		{"unknown level", "logLevel: loud"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLevel(t *testing.T) {
	cfg := Default()
	lvl, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, zerolog.WarnLevel, lvl)

	cfg.LogLevel = "debug"
	lvl, err = cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, lvl)
}

func TestLoad_Precedence(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	project := t.TempDir()

	cfg, path, err := Load(project)
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, Default(), cfg)

	userPath := filepath.Join(home, UserDir, UserFile)
	writeFile(t, userPath, "iterationCap: 20\n")
	cfg, path, err = Load(project)
	require.NoError(t, err)
	assert.Equal(t, userPath, path)
	assert.Equal(t, 20, cfg.IterationCap)

	projectPath := filepath.Join(project, ProjectFile)
	writeFile(t, projectPath, "iterationCap: 10\nlocalAssignment: true\n")
	cfg, path, err = Load(project)
	require.NoError(t, err)
	assert.Equal(t, projectPath, path)
	assert.Equal(t, 10, cfg.IterationCap)
	assert.True(t, cfg.LocalAssignment)
}

func TestLoad_MalformedProjectFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	project := t.TempDir()
	writeFile(t, filepath.Join(project, ProjectFile), "format: csv\n")

	_, path, err := Load(project)
	assert.Error(t, err)
	assert.Equal(t, filepath.Join(project, ProjectFile), path)
}

func TestYAML_RoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Parallel = 4
	out, err := cfg.YAML()
	require.NoError(t, err)
	assert.Contains(t, out, "parallel: 4")

	back, err := Parse([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}
