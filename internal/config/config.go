// Package config loads the offscreen YAML configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"runtime"
	"strings"

	"github.com/tinyrange/offscreen/internal/gpu/factory"
	"github.com/tinyrange/offscreen/internal/output"
	"github.com/tinyrange/offscreen/internal/render"
	"gopkg.in/yaml.v3"
)

// EnvPath names the environment variable holding the default config path.
const EnvPath = "OFFSCREEN_CONFIG"

const maxConfigSize = 1024 * 1024 // 1MB

const (
	DefaultWidth  = 1920
	DefaultHeight = 1080
	DefaultOutput = "out.bin"
)

var (
	ErrWorldWritable = errors.New("config file is world-writable")
	ErrTooLarge      = errors.New("config file too large")
)

// Config is the on-disk configuration. Zero values mean "use the default".
type Config struct {
	Width  int    `yaml:"width,omitempty"`
	Height int    `yaml:"height,omitempty"`
	Output string `yaml:"output,omitempty"`
	Format string `yaml:"format,omitempty"` // raw, png, tiff or bmp; empty picks from the output extension

	Driver      string `yaml:"driver,omitempty"`
	EGLLibrary  string `yaml:"egl_library,omitempty"`
	GLESLibrary string `yaml:"gles_library,omitempty"`

	ClearColor     []float32 `yaml:"clear_color,omitempty,flow"`
	VertexShader   string    `yaml:"vertex_shader,omitempty"`   // path to GLSL source
	FragmentShader string    `yaml:"fragment_shader,omitempty"` // path to GLSL source

	LogLevel string `yaml:"log_level,omitempty"`
	Progress bool   `yaml:"progress,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Width:    DefaultWidth,
		Height:   DefaultHeight,
		Output:   DefaultOutput,
		LogLevel: "info",
	}
}

func (c *Config) normalize() {
	def := Default()
	if c.Width == 0 {
		c.Width = def.Width
	}
	if c.Height == 0 {
		c.Height = def.Height
	}
	if c.Output == "" {
		c.Output = def.Output
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	c.Format = strings.ToLower(strings.TrimSpace(c.Format))
	c.Driver = strings.ToLower(strings.TrimSpace(c.Driver))
}

// Load reads path, or returns Default when path is empty or does not exist.
func Load(path string, log *slog.Logger) (Config, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if path == "" {
		return Default(), nil
	}

	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Debug("config file not found, using defaults", "path", path)
		return Default(), nil
	} else if err != nil {
		return Config{}, fmt.Errorf("stat config: %w", err)
	}

	// On Windows the permission bits say nothing about other users.
	if runtime.GOOS != "windows" && info.Mode().Perm()&0o002 != 0 {
		return Config{}, fmt.Errorf("%w: %s (mode %s)", ErrWorldWritable, path, info.Mode())
	}
	if info.Size() > maxConfigSize {
		return Config{}, fmt.Errorf("%w: %s is %d bytes", ErrTooLarge, path, info.Size())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}

	log.Info("loaded config", "path", path, "size", info.Size())
	return cfg, nil
}

// Parse decodes a YAML document and fills in defaults. Unknown keys are an
// error so typos do not go unnoticed.
func Parse(data []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	cfg.normalize()
	return cfg, nil
}

// Validate reports the first setting that cannot be used.
func (c Config) Validate() error {
	if err := render.CheckDimensions(c.Width, c.Height); err != nil {
		return err
	}
	if c.Format != "" {
		if _, err := output.ParseFormat(c.Format); err != nil {
			return err
		}
	}
	if !factory.Valid(c.Driver) {
		return fmt.Errorf("unknown driver %q (valid: %s)", c.Driver, strings.Join(factory.Names(), ", "))
	}
	if n := len(c.ClearColor); n != 0 && n != 4 {
		return fmt.Errorf("clear_color: want 4 components, got %d", n)
	}
	for i, v := range c.ClearColor {
		if math.IsNaN(float64(v)) || v < 0 || v > 1 {
			return fmt.Errorf("clear_color: component %d (%g) outside [0,1]", i, v)
		}
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Save writes cfg as YAML to path, replacing any existing file.
func Save(path string, cfg Config) error {
	cfg.normalize()

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create config: %w", err)
	}
	defer f.Close()

	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(&cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close config encoder: %w", err)
	}
	return f.Close()
}

// Level returns the slog level named by LogLevel.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}

// Color returns ClearColor as RGBA, transparent black when unset.
func (c Config) Color() [4]float32 {
	var rgba [4]float32
	copy(rgba[:], c.ClearColor)
	return rgba
}

// ParseColor parses "r,g,b,a" with components in [0,1].
func ParseColor(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("clear color %q: want four comma separated components", s)
	}
	out := make([]float32, 4)
	for i, p := range parts {
		var v float32
		if _, err := fmt.Sscan(strings.TrimSpace(p), &v); err != nil {
			return nil, fmt.Errorf("clear color %q: component %d: %w", s, i, err)
		}
		out[i] = v
	}
	return out, nil
}
