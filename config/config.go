// Package config holds the editor's tunables and loads them from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/wudi/pdfoverlay/layer"
)

type Config struct {
	History     History     `yaml:"history"`
	View        View        `yaml:"view"`
	Interaction Interaction `yaml:"interaction"`
	Export      Export      `yaml:"export"`
	Render      Render      `yaml:"render"`
	Log         Log         `yaml:"log"`
}

type History struct {
	Capacity int `yaml:"capacity"`
}

type View struct {
	Zoom     float64 `yaml:"zoom"`
	MinZoom  float64 `yaml:"min_zoom"`
	MaxZoom  float64 `yaml:"max_zoom"`
	ZoomStep float64 `yaml:"zoom_step"`
}

// Clamp limits z to [MinZoom, MaxZoom].
func (v View) Clamp(z float64) float64 {
	if z < v.MinZoom {
		return v.MinZoom
	}
	if z > v.MaxZoom {
		return v.MaxZoom
	}
	return z
}

type Interaction struct {
	// HandleSize is the resize handle hit box edge in device pixels.
	HandleSize float64 `yaml:"handle_size"`
	// StampSize is the edge of click-placed shapes in page units.
	StampSize   float64   `yaml:"stamp_size"`
	StrokeWidth float64   `yaml:"stroke_width"`
	Color       layer.RGB `yaml:"color"`
	Font        string    `yaml:"font"`
	FontSize    float64   `yaml:"font_size"`
	TextWidth   float64   `yaml:"text_width"`
	TextHeight  float64   `yaml:"text_height"`
	ImageWidth  float64   `yaml:"image_width"`
}

type Export struct {
	OutputDir        string  `yaml:"output_dir"`
	Suffix           string  `yaml:"suffix"`
	HighlightOpacity float64 `yaml:"highlight_opacity"`
	Flatten          bool    `yaml:"flatten"`
}

// OutputPath returns where the export of input is written: next to the input
// unless OutputDir is set.
func (e Export) OutputPath(input string) string {
	base := filepath.Base(input)
	name := strings.TrimSuffix(base, filepath.Ext(base)) + e.Suffix + ".pdf"
	if e.OutputDir == "" {
		return filepath.Join(filepath.Dir(input), name)
	}
	return filepath.Join(e.OutputDir, name)
}

type Render struct {
	FontSize float64 `yaml:"font_size"`
	// Paper is the preview background.
	Paper layer.RGB `yaml:"paper"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Default() Config {
	return Config{
		History: History{Capacity: 50},
		View:    View{Zoom: 1, MinZoom: 0.1, MaxZoom: 10, ZoomStep: 1.25},
		Interaction: Interaction{
			HandleSize:  8,
			StampSize:   30,
			StrokeWidth: 2,
			Color:       layer.Black,
			Font:        "Helvetica",
			FontSize:    14,
			TextWidth:   150,
			TextHeight:  24,
			ImageWidth:  120,
		},
		Export: Export{Suffix: "-edited", HighlightOpacity: 0.35, Flatten: true},
		Render: Render{FontSize: 14, Paper: layer.White},
		Log:    Log{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults. Unknown keys are an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(expandHome(path))
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Export.OutputDir = expandHome(cfg.Export.OutputDir)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func expandHome(p string) string {
	if !strings.HasPrefix(p, "~") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

var ErrInvalid = errors.New("invalid config")

func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
		}
	}
	check(c.History.Capacity > 1, "history.capacity %d must exceed 1", c.History.Capacity)
	check(c.View.MinZoom > 0, "view.min_zoom must be positive")
	check(c.View.MaxZoom >= c.View.MinZoom, "view.max_zoom below min_zoom")
	check(c.View.Zoom >= c.View.MinZoom && c.View.Zoom <= c.View.MaxZoom, "view.zoom %g outside [%g, %g]", c.View.Zoom, c.View.MinZoom, c.View.MaxZoom)
	check(c.View.ZoomStep > 1, "view.zoom_step must exceed 1")
	check(c.Interaction.HandleSize > 0, "interaction.handle_size must be positive")
	check(c.Interaction.StampSize >= layer.MinSize, "interaction.stamp_size below %g", layer.MinSize)
	check(c.Interaction.StrokeWidth > 0, "interaction.stroke_width must be positive")
	check(c.Interaction.FontSize > 0, "interaction.font_size must be positive")
	check(c.Interaction.TextWidth >= layer.MinSize && c.Interaction.TextHeight >= layer.MinSize, "interaction text box below %g", layer.MinSize)
	check(c.Interaction.ImageWidth >= layer.MinSize, "interaction.image_width below %g", layer.MinSize)
	check(c.Export.HighlightOpacity > 0 && c.Export.HighlightOpacity <= 1, "export.highlight_opacity must be in (0, 1]")
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		check(false, "log.format %q", c.Log.Format)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		check(false, "log.level %q", c.Log.Level)
	}
	return errors.Join(errs...)
}
