package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/rayscope/rayscope/backend-go/internal/engine"
)

type Config struct {
	Port     int    `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	RayDataSource    string        `envconfig:"RAY_DATA_SOURCE" default:"./data/ray_data.json"`
	MediumDataSource string        `envconfig:"MEDIUM_DATA_SOURCE"`
	DatasetDBURL     string        `envconfig:"DATASET_DB_URL"`
	FetchTimeout     time.Duration `envconfig:"FETCH_TIMEOUT" default:"30s"`
	StaticDir        string        `envconfig:"STATIC_DIR" default:"./static"`

	MinScale      float64 `envconfig:"MIN_SCALE" default:"1"`
	MaxScale      float64 `envconfig:"MAX_SCALE" default:"20"`
	ZoomInFactor  float64 `envconfig:"ZOOM_IN_FACTOR" default:"1.1"`
	ZoomOutFactor float64 `envconfig:"ZOOM_OUT_FACTOR" default:"0.9"`
	CanvasWidth   float64 `envconfig:"CANVAS_WIDTH" default:"800"`
	CanvasHeight  float64 `envconfig:"CANVAS_HEIGHT" default:"600"`

	JWTSecret      string `envconfig:"JWT_SECRET" default:"dev-secret-change-in-production"`
	AccessKeyHash  string `envconfig:"ACCESS_KEY_HASH"`
	FfmpegPath     string `envconfig:"FFMPEG_PATH" default:"ffmpeg"`
	AllowedOrigins string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:5173,http://localhost:3000"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Level parses LOG_LEVEL (debug, info, warn or error).
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("parse log level: %w", err)
	}
	return l, nil
}

// Engine returns the engine settings for new sessions.
func (c *Config) Engine() engine.Settings {
	return engine.Settings{
		MinScale:      c.MinScale,
		MaxScale:      c.MaxScale,
		ZoomInFactor:  c.ZoomInFactor,
		ZoomOutFactor: c.ZoomOutFactor,
		Width:         c.CanvasWidth,
		Height:        c.CanvasHeight,
	}
}

// Origins splits ALLOWED_ORIGINS into full origins for CORS.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// OriginPatterns returns the allowed origins as host patterns for websocket
// origin checks.
func (c *Config) OriginPatterns() []string {
	origins := c.Origins()
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimPrefix(o, "https://")
		o = strings.TrimPrefix(o, "http://")
		out = append(out, o)
	}
	return out
}
