package bindery

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDecodeConfig(t *testing.T) {
	cfg, err := DecodeConfig(strings.NewReader(`
name = "shop"
log_level = "debug"
scoped_render = true
phase_delay = "16ms"
inline_scripts = "goja"
abort_on_error = true
strict_routes = true
max_repeat = 50
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "shop" || cfg.LogLevel != "debug" || !cfg.ScopedRender || !cfg.AbortOnError || !cfg.StrictRoutes || cfg.MaxRepeat != 50 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.PhaseDelay.Duration != 16*time.Millisecond {
		t.Errorf("phase_delay = %v", cfg.PhaseDelay)
	}
	if cfg.Language != "en" {
		t.Errorf("language default lost: %q", cfg.Language)
	}
}

func TestDecodeConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		toml string
	}{
		{"unknown key", `colour = "red"`},
		{"bad duration", `phase_delay = "soon"`},
		{"negative duration", `phase_delay = "-1s"`},
		{"negative repeat cap", `max_repeat = -1`},
		{"unknown interpreter", `inline_scripts = "lua"`},
		{"syntax", `name = `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeConfig(strings.NewReader(tt.toml))
			if !IsConfigurationError(err) {
				t.Errorf("DecodeConfig(%q) = %v, want ConfigurationError", tt.toml, err)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bindery.toml")
	must(t, os.WriteFile(path, []byte(`name = "from-file"`), 0o644))

	cfg, err := LoadConfig(path)
	must(t, err)
	if cfg.Name != "from-file" {
		t.Errorf("name = %q", cfg.Name)
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml")); !IsConfigurationError(err) {
		t.Errorf("missing file = %v", err)
	}
}

func TestNewAppliesConfig(t *testing.T) {
	app, err := NewTestApp(page, Options{Config: Config{InlineScripts: "goja", Outlet: "outlet"}})
	must(t, err)
	if app.Config().Name != "bindery" {
		t.Errorf("name default = %q", app.Config().Name)
	}
	if app.listen.Script == nil {
		t.Error("goja interpreter not installed")
	}
	if out := app.Outlet(); out == nil || out.Data != "main" {
		t.Errorf("outlet = %v", out)
	}

	if _, err := NewTestApp(page, Options{Config: Config{InlineScripts: "lua"}}); !IsConfigurationError(err) {
		t.Errorf("bad interpreter = %v", err)
	}
}
