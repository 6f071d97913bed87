package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Addr   string `env:"ATTENDANCE_ADDR"    envDefault:":6969"`
	DBPath string `env:"ATTENDANCE_DB_PATH" envDefault:"sessions.db"`

	TokenTTL           time.Duration `env:"ATTENDANCE_TOKEN_TTL"           envDefault:"3s"`
	RotateInterval     time.Duration `env:"ATTENDANCE_ROTATE_INTERVAL"     envDefault:"1s"`
	SweepInterval      time.Duration `env:"ATTENDANCE_SWEEP_INTERVAL"      envDefault:"1s"`
	RetiredRetention   time.Duration `env:"ATTENDANCE_RETIRED_RETENTION"   envDefault:"12h"`
	RequireFingerprint bool          `env:"ATTENDANCE_REQUIRE_FINGERPRINT" envDefault:"false"`
	BindDevices        bool          `env:"ATTENDANCE_BIND_DEVICES"        envDefault:"false"`
	RequirePasskey     bool          `env:"ATTENDANCE_REQUIRE_PASSKEY"     envDefault:"false"`

	AllowedOrigins []string `env:"ATTENDANCE_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,https://attendance.anuragrao.site"`

	LogLevel  string `env:"ATTENDANCE_LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"ATTENDANCE_LOG_FORMAT" envDefault:"text"`

	WebAuthn WebAuthn
}

type WebAuthn struct {
	RPID          string   `env:"ATTENDANCE_WEBAUTHN_RP_ID"           envDefault:"localhost"`
	RPDisplayName string   `env:"ATTENDANCE_WEBAUTHN_RP_DISPLAY_NAME" envDefault:"QR Attendance"`
	RPOrigins     []string `env:"ATTENDANCE_WEBAUTHN_RP_ORIGINS"      envSeparator:"," envDefault:"http://localhost:3000,https://attendance.anuragrao.site"`
}

// Load reads the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.TokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("token ttl must be positive, got %s", c.TokenTTL))
	}
	if c.RotateInterval <= 0 || c.RotateInterval >= c.TokenTTL {
		errs = append(errs, fmt.Errorf("rotate interval %s must be positive and shorter than token ttl %s", c.RotateInterval, c.TokenTTL))
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("sweep interval must be positive, got %s", c.SweepInterval))
	}
	if c.RetiredRetention < 0 {
		errs = append(errs, fmt.Errorf("retired retention must not be negative, got %s", c.RetiredRetention))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// Logger builds the process logger from LogLevel and LogFormat.
func (c Config) Logger() *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}
