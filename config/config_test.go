package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "presenter.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())

	cfg, err := c.Engine()
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.FramesInFlight)
	assert.Equal(t, 0, cfg.SwapchainImages)
	assert.Equal(t, mgl32.Vec4{0, 0, 0, 1}, cfg.ClearColor)
	assert.Equal(t, "shaders/vert.spv", cfg.Shaders.Vertex)
	assert.Equal(t, "shaders/frag.spv", cfg.Shaders.Fragment)
	assert.Zero(t, cfg.FenceTimeout)
	assert.Equal(t, 5*time.Second, cfg.StatsInterval)
	assert.False(t, cfg.Validation)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
[window]
title = "triangle"

[render]
frames_in_flight = 3
clear_color = [0.25, 0.5, 0.75, 1.0]
fence_timeout = "2s"

[debug]
validation = true
`)

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "triangle", c.Window.Title)
	assert.Equal(t, 800, c.Window.Width)
	assert.Equal(t, 3, c.Render.FramesInFlight)
	assert.Equal(t, "info", c.Debug.LogLevel)

	cfg, err := c.Engine()
	require.NoError(t, err)
	assert.Equal(t, mgl32.Vec4{0.25, 0.5, 0.75, 1}, cfg.ClearColor)
	assert.Equal(t, 2*time.Second, cfg.FenceTimeout)
	assert.True(t, cfg.Validation)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, `
[render]
frames_in_fligth = 3
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, errors.FlattenHints(err), "frames_in_fligth")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestValidate(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"zero frames":       func(c *Config) { c.Render.FramesInFlight = 0 },
		"negative images":   func(c *Config) { c.Render.SwapchainImages = -1 },
		"no width":          func(c *Config) { c.Window.Width = 0 },
		"no vertex shader":  func(c *Config) { c.Render.VertexShader = "" },
		"bad timeout":       func(c *Config) { c.Render.FenceTimeout = "soon" },
		"negative interval": func(c *Config) { c.Render.StatsInterval = "-1s" },
		"bad level":         func(c *Config) { c.Debug.LogLevel = "loud" },
		"absolute shader":   func(c *Config) { c.Render.VertexShader = "/opt/shaders/vert.spv" },
		"escaping shader":   func(c *Config) { c.Render.FragmentShader = "../frag.spv" },
	} {
		c := Default()
		mutate(&c)
		err := c.Validate()
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, ErrInvalid), name)

		_, err = c.Engine()
		assert.Error(t, err, name)
	}
}

func TestValidateNamesAbsoluteShaderPath(t *testing.T) {
	c := Default()
	c.Render.VertexShader = "/opt/shaders/vert.spv"

	err := c.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))
	assert.Contains(t, err.Error(), "render.vertex_shader")
	assert.Contains(t, errors.FlattenHints(err), "absolute")
}

func TestParseFlags(t *testing.T) {
	path := writeConfig(t, `
[window]
width = 1280
height = 720

[render]
frames_in_flight = 3
`)

	c, err := Parse("presenter", []string{"-config", path, "-frames", "1", "-height", "400", "-debug"})
	require.NoError(t, err)
	assert.Equal(t, 1280, c.Window.Width)
	assert.Equal(t, 400, c.Window.Height)
	assert.Equal(t, 1, c.Render.FramesInFlight)
	assert.True(t, c.Debug.Validation)

	level, err := c.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestParseLogLevelBeatsDebug(t *testing.T) {
	c, err := Parse("presenter", []string{"-log-level", "warn", "-debug"})
	require.NoError(t, err)
	assert.Equal(t, "warn", c.Debug.LogLevel)
	assert.True(t, c.Debug.Validation)
}

func TestParseRejectsInvalid(t *testing.T) {
	_, err := Parse("presenter", []string{"-frames", "0"})
	assert.True(t, errors.Is(err, ErrInvalid))

	_, err = Parse("presenter", []string{"-bogus"})
	assert.Error(t, err)
}
