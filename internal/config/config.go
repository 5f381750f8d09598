package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/genricoloni/wozplayer/internal/domain"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const (
	defaultAssetsRoot   = "./assets"
	defaultAudioExt     = "WAV"
	defaultCondition    = domain.ConditionHuman
	defaultFade         = 500 * time.Millisecond
	defaultVolume       = 0.8
	defaultHTTPAddr     = "127.0.0.1:8787"
	defaultMpvBinary    = "mpv"
	defaultRuntimeDir   = "/tmp/wozplayer"
	defaultOutputDir    = "/tmp/wozplayer/preview"
	defaultFrameRate    = 30
	defaultCanvasWidth  = 960
	defaultCanvasHeight = 540
)

// AppConfig holds application configuration
type AppConfig struct {
	logger     *zap.Logger
	assetsRoot string
	audioExt   string
	condition  domain.Condition
	fade       time.Duration
	volume     float64
	httpAddr   string
	mpvBinary  string
	runtimeDir string
	outputDir  string
	frameRate  int
	canvas     domain.ScreenResolution
	dbus       bool
}

// Load reads the .env file from the working directory into the environment.
// A missing file is not an error worth reporting; system env and defaults apply.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// NewAppConfig creates a new application configuration instance
func NewAppConfig(logger *zap.Logger) *AppConfig {
	if err := Load(); err != nil {
		logger.Debug("No .env file loaded", zap.Error(err))
	}

	condition := domain.Condition(getEnv("WOZ_CONDITION", string(defaultCondition)))
	if !condition.Valid() {
		logger.Warn("Invalid condition in environment, falling back to default",
			zap.String("condition", string(condition)))
		condition = defaultCondition
	}

	cfg := &AppConfig{
		logger:     logger,
		assetsRoot: expandPath(getEnv("WOZ_ASSETS_ROOT", defaultAssetsRoot)),
		audioExt:   getEnv("WOZ_AUDIO_EXT", defaultAudioExt),
		condition:  condition,
		fade:       time.Duration(getEnvInt("WOZ_FADE_MS", int(defaultFade/time.Millisecond))) * time.Millisecond,
		volume:     domain.ClampVolume(getEnvFloat("WOZ_VOLUME", defaultVolume)),
		httpAddr:   getEnv("WOZ_HTTP_ADDR", defaultHTTPAddr),
		mpvBinary:  getEnv("WOZ_MPV_BINARY", defaultMpvBinary),
		runtimeDir: expandPath(getEnv("WOZ_RUNTIME_DIR", defaultRuntimeDir)),
		outputDir:  expandPath(getEnv("WOZ_OUTPUT_DIR", defaultOutputDir)),
		frameRate:  getEnvInt("WOZ_FRAME_RATE", defaultFrameRate),
		canvas: domain.ScreenResolution{
			Width:  getEnvInt("WOZ_CANVAS_WIDTH", defaultCanvasWidth),
			Height: getEnvInt("WOZ_CANVAS_HEIGHT", defaultCanvasHeight),
		},
		dbus: getEnv("WOZ_DBUS", "true") != "false",
	}
	if cfg.fade < 0 {
		cfg.fade = 0
	}
	if cfg.frameRate <= 0 {
		cfg.frameRate = defaultFrameRate
	}

	logger.Info("Configuration loaded",
		zap.String("assetsRoot", cfg.assetsRoot),
		zap.String("condition", string(cfg.condition)),
		zap.Duration("fade", cfg.fade),
		zap.Float64("volume", cfg.volume),
		zap.String("httpAddr", cfg.httpAddr),
		zap.Bool("dbus", cfg.dbus))

	return cfg
}

// expandPath expands environment variables and a leading ~
func expandPath(p string) string {
	p = os.ExpandEnv(p)
	if len(p) > 0 && p[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			p = filepath.Join(home, p[1:])
		}
	}
	return p
}

func getEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if s := os.Getenv(key); s != "" {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return fallback
}

// GetAssetsRoot returns the directory holding videos/ and audio/
func (c *AppConfig) GetAssetsRoot() string {
	return c.assetsRoot
}

// GetAudioExtension returns the container extension of the audio cues
func (c *AppConfig) GetAudioExtension() string {
	return c.audioExt
}

// GetCondition returns the condition the participant view starts in
func (c *AppConfig) GetCondition() domain.Condition {
	return c.condition
}

// GetFadeDuration returns the initial crossfade duration
func (c *AppConfig) GetFadeDuration() time.Duration {
	return c.fade
}

// GetVolume returns the initial output volume
func (c *AppConfig) GetVolume() float64 {
	return c.volume
}

// GetHTTPAddr returns the listen address of the control API
func (c *AppConfig) GetHTTPAddr() string {
	return c.httpAddr
}

// GetMpvBinary returns the mpv executable used for surfaces
func (c *AppConfig) GetMpvBinary() string {
	return c.mpvBinary
}

// GetRuntimeDir returns the directory for IPC sockets
func (c *AppConfig) GetRuntimeDir() string {
	return c.runtimeDir
}

// GetOutputDir returns the directory for operator previews
func (c *AppConfig) GetOutputDir() string {
	return c.outputDir
}

// GetFrameRate returns the visualizer frame rate bound
func (c *AppConfig) GetFrameRate() int {
	return c.frameRate
}

// GetCanvasSize returns the visualizer canvas size
func (c *AppConfig) GetCanvasSize() domain.ScreenResolution {
	return c.canvas
}

// DBusEnabled reports whether the D-Bus transport should be exported
func (c *AppConfig) DBusEnabled() bool {
	return c.dbus
}
