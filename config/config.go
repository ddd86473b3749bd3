package config

import (
	"fmt"
	"github.com/BurntSushi/toml"
	"github.com/bruuuces/gnet-rpc/client"
	"github.com/bruuuces/gnet-rpc/logging"
	"github.com/bruuuces/gnet-rpc/server"
	"strings"
	"time"
)

const DefaultAddr = "127.0.0.1:6542"

type Config struct {
	Server ServerConfig
	Client ClientConfig
	Log    logging.Config
}

type ServerConfig struct {
	Addr string
	TCP  server.TCPServerConfigurator
}

type ClientConfig struct {
	Addr        string
	CallTimeout time.Duration
	Connections int
	Options     client.Options
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr: DefaultAddr,
			TCP:  server.DefaultTCPServerConfigurator(),
		},
		Client: ClientConfig{
			Addr:        DefaultAddr,
			CallTimeout: 10 * time.Second,
			Connections: 1,
			Options:     client.DefaultOptions(),
		},
		Log: logging.DefaultConfig(),
	}
}

type fileConfig struct {
	Server struct {
		Addr               string `toml:"addr"`
		NoDelay            bool   `toml:"no_delay"`
		KeepAlive          bool   `toml:"keep_alive"`
		KeepAlivePeriodSec int    `toml:"keep_alive_period_sec"`
		MaxConnectionNum   int    `toml:"max_connections"`
		ReadTimeOutSec     int    `toml:"read_timeout_sec"`
		SendBufferSize     int    `toml:"send_buffer_size"`
		MaxFrameLen        int    `toml:"max_frame_len"`
	} `toml:"server"`
	Client struct {
		Addr        string `toml:"addr"`
		DialTimeout string `toml:"dial_timeout"`
		CallTimeout string `toml:"call_timeout"`
		Connections int    `toml:"connections"`
		NoDelay     bool   `toml:"no_delay"`
		MaxFrameLen int    `toml:"max_frame_len"`
	} `toml:"client"`
	Log struct {
		Level     string `toml:"level"`
		Format    string `toml:"format"`
		Timestamp bool   `toml:"timestamp"`
		NoColor   bool   `toml:"no_color"`
	} `toml:"log"`
}

// Load 读取 TOML 配置, 未定义的键保留默认值. path 为空时返回默认配置.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}
	applyServer(&cfg.Server, &raw, meta)
	if err := applyClient(&cfg.Client, &raw, meta); err != nil {
		return Config{}, err
	}
	applyLog(&cfg.Log, &raw, meta)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func applyServer(cfg *ServerConfig, raw *fileConfig, meta toml.MetaData) {
	if meta.IsDefined("server", "addr") {
		cfg.Addr = strings.TrimSpace(raw.Server.Addr)
	}
	if meta.IsDefined("server", "no_delay") {
		cfg.TCP.NoDelay = raw.Server.NoDelay
	}
	if meta.IsDefined("server", "keep_alive") {
		cfg.TCP.KeepAlive = raw.Server.KeepAlive
	}
	if meta.IsDefined("server", "keep_alive_period_sec") {
		cfg.TCP.KeepAlivePeriodSec = raw.Server.KeepAlivePeriodSec
	}
	if meta.IsDefined("server", "max_connections") {
		cfg.TCP.MaxConnectionNum = raw.Server.MaxConnectionNum
	}
	if meta.IsDefined("server", "read_timeout_sec") {
		cfg.TCP.ReadTimeOutSec = raw.Server.ReadTimeOutSec
	}
	if meta.IsDefined("server", "send_buffer_size") {
		cfg.TCP.SendBufferSize = raw.Server.SendBufferSize
	}
	if meta.IsDefined("server", "max_frame_len") {
		cfg.TCP.MaxFrameLen = raw.Server.MaxFrameLen
	}
}

func applyClient(cfg *ClientConfig, raw *fileConfig, meta toml.MetaData) error {
	if meta.IsDefined("client", "addr") {
		cfg.Addr = strings.TrimSpace(raw.Client.Addr)
	}
	if meta.IsDefined("client", "dial_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Client.DialTimeout))
		if err != nil {
			return fmt.Errorf("parse client.dial_timeout: %w", err)
		}
		cfg.Options.DialTimeout = d
	}
	if meta.IsDefined("client", "call_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Client.CallTimeout))
		if err != nil {
			return fmt.Errorf("parse client.call_timeout: %w", err)
		}
		cfg.CallTimeout = d
	}
	if meta.IsDefined("client", "connections") {
		cfg.Connections = raw.Client.Connections
	}
	if meta.IsDefined("client", "no_delay") {
		cfg.Options.NoDelay = raw.Client.NoDelay
	}
	if meta.IsDefined("client", "max_frame_len") {
		cfg.Options.MaxFrameLen = raw.Client.MaxFrameLen
	}
	return nil
}

func applyLog(cfg *logging.Config, raw *fileConfig, meta toml.MetaData) {
	if meta.IsDefined("log", "level") {
		cfg.Level = strings.TrimSpace(raw.Log.Level)
	}
	if meta.IsDefined("log", "format") {
		cfg.Format = strings.ToLower(strings.TrimSpace(raw.Log.Format))
	}
	if meta.IsDefined("log", "timestamp") {
		cfg.Timestamp = raw.Log.Timestamp
	}
	if meta.IsDefined("log", "no_color") {
		cfg.NoColor = raw.Log.NoColor
	}
}

func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	if c.Server.TCP.MaxFrameLen <= 0 {
		return fmt.Errorf("server.max_frame_len must be positive, got %d", c.Server.TCP.MaxFrameLen)
	}
	if c.Client.Addr == "" {
		return fmt.Errorf("client.addr must not be empty")
	}
	if c.Client.Connections <= 0 {
		return fmt.Errorf("client.connections must be positive, got %d", c.Client.Connections)
	}
	if c.Client.CallTimeout < 0 {
		return fmt.Errorf("client.call_timeout must not be negative")
	}
	return nil
}
