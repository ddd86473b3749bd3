package logging

import (
	"fmt"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	EnvLogLevel   = "GNETRPC_LOG_LEVEL"
	EnvLogFormat  = "GNETRPC_LOG_FORMAT"
	EnvLogNoColor = "GNETRPC_LOG_NOCOLOR"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

type Config struct {
	Level     string
	Format    string
	Timestamp bool
	NoColor   bool
}

func DefaultConfig() Config {
	return Config{
		Level:     zerolog.InfoLevel.String(),
		Format:    FormatConsole,
		Timestamp: true,
	}
}

// Configure 应用环境变量覆盖后替换全局 logger
func Configure(cfg Config) error {
	ApplyEnv(&cfg)
	logger, err := New(os.Stderr, cfg)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(logger.GetLevel())
	log.Logger = logger
	return nil
}

// New 按配置构造 logger, 不修改全局状态
func New(w io.Writer, cfg Config) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("parse log level %q: %w", cfg.Level, err)
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	switch cfg.Format {
	case FormatConsole, "":
		w = zerolog.ConsoleWriter{Out: w, NoColor: cfg.NoColor, TimeFormat: time.RFC3339}
	case FormatJSON:
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format %q", cfg.Format)
	}
	ctx := zerolog.New(w).Level(level).With()
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	return ctx.Logger(), nil
}

func ApplyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Level = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Format = strings.ToLower(v)
	}
	if v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(EnvLogNoColor))); err == nil {
		cfg.NoColor = v
	}
}
