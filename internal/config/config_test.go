package config

import (
	"errors"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "offscreen.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `width: 640
height: 480
output: frame.png
format: PNG
driver: soft
clear_color: [0, 0, 1, 1]
vertex_shader: shaders/tri.vert
log_level: debug
progress: true
`)

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Width != 640 || cfg.Height != 480 {
		t.Errorf("size = %dx%d, want 640x480", cfg.Width, cfg.Height)
	}
	if cfg.Output != "frame.png" {
		t.Errorf("Output = %q, want %q", cfg.Output, "frame.png")
	}
	if cfg.Format != "png" {
		t.Errorf("Format = %q, want %q", cfg.Format, "png")
	}
	if cfg.Driver != "soft" {
		t.Errorf("Driver = %q, want %q", cfg.Driver, "soft")
	}
	if cfg.Color() != [4]float32{0, 0, 1, 1} {
		t.Errorf("Color() = %v, want blue", cfg.Color())
	}
	if cfg.VertexShader != "shaders/tri.vert" {
		t.Errorf("VertexShader = %q", cfg.VertexShader)
	}
	if !cfg.Progress {
		t.Error("Progress should be true")
	}
	if l, err := cfg.Level(); err != nil || l != slog.LevelDebug {
		t.Errorf("Level() = %v, %v; want DEBUG", l, err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	for _, path := range []string{"", filepath.Join(t.TempDir(), "missing.yaml")} {
		cfg, err := Load(path, nil)
		if err != nil {
			t.Fatalf("Load(%q) failed: %v", path, err)
		}
		if cfg.Width != DefaultWidth || cfg.Height != DefaultHeight || cfg.Output != DefaultOutput {
			t.Errorf("Load(%q) = %+v, want defaults", path, cfg)
		}
	}
}

func TestParseFillsDefaults(t *testing.T) {
	cfg, err := Parse([]byte("width: 10\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 10 || cfg.Height != DefaultHeight || cfg.LogLevel != "info" {
		t.Errorf("Parse() = %+v", cfg)
	}

	if _, err := Parse(nil); err != nil {
		t.Errorf("Parse(empty) failed: %v", err)
	}
}

func TestParseUnknownKey(t *testing.T) {
	if _, err := Parse([]byte("widht: 10\n")); err == nil {
		t.Fatal("Parse accepted an unknown key")
	}
}

func TestLoadWorldWritable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not meaningful on windows")
	}
	path := writeConfig(t, "width: 10\n")
	if err := os.Chmod(path, 0o666); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, nil); !errors.Is(err, ErrWorldWritable) {
		t.Fatalf("Load() error = %v, want ErrWorldWritable", err)
	}
}

func TestLoadTooLarge(t *testing.T) {
	path := writeConfig(t, "# "+strings.Repeat("x", maxConfigSize)+"\n")
	if _, err := Load(path, nil); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("Load() error = %v, want ErrTooLarge", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"zero width", func(c *Config) { c.Width = 0 }, false},
		{"huge height", func(c *Config) { c.Height = 1 << 20 }, false},
		{"bad format", func(c *Config) { c.Format = "gif" }, false},
		{"tiff format", func(c *Config) { c.Format = "tiff" }, true},
		{"bad driver", func(c *Config) { c.Driver = "vulkan" }, false},
		{"soft driver", func(c *Config) { c.Driver = "soft" }, true},
		{"short color", func(c *Config) { c.ClearColor = []float32{1, 0} }, false},
		{"color out of range", func(c *Config) { c.ClearColor = []float32{2, 0, 0, 1} }, false},
		{"NaN color", func(c *Config) { c.ClearColor = []float32{float32(math.NaN()), 0, 0, 1} }, false},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			err := cfg.Validate()
			if (err == nil) != tt.ok {
				t.Fatalf("Validate() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "offscreen.yaml")
	want := Default()
	want.Driver = "soft"
	want.ClearColor = []float32{0.5, 0.25, 0, 1}

	if err := Save(path, want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load after Save failed: %v", err)
	}
	if got.Driver != want.Driver || got.Color() != want.Color() || got.Width != want.Width {
		t.Errorf("Load after Save = %+v, want %+v", got, want)
	}
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("0, 0.5,1,1")
	if err != nil {
		t.Fatal(err)
	}
	if len(c) != 4 || c[1] != 0.5 {
		t.Errorf("ParseColor = %v", c)
	}
	if c, err := ParseColor(""); err != nil || c != nil {
		t.Errorf("ParseColor(\"\") = %v, %v", c, err)
	}
	for _, bad := range []string{"1,2,3", "a,b,c,d"} {
		if _, err := ParseColor(bad); err == nil {
			t.Errorf("ParseColor(%q) succeeded", bad)
		}
	}

	// Sscan accepts NaN; Validate has to catch it.
	cfg := Default()
	cfg.ClearColor, err = ParseColor("NaN,0,0,1")
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() accepted a NaN clear colour")
	}
}
