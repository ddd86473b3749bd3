package main

import (
	"flag"
	"github.com/bruuuces/gnet-rpc/config"
	"github.com/bruuuces/gnet-rpc/logging"
	"github.com/bruuuces/gnet-rpc/message"
	"github.com/bruuuces/gnet-rpc/server"
	"github.com/rs/zerolog/log"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	configPath := flag.String("config", "", "path to TOML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config error")
	}
	if err := logging.Configure(cfg.Log); err != nil {
		log.Fatal().Err(err).Msg("configure logging error")
	}

	handler := server.NewCallHandler()
	handler.Handle("ping", ping)
	handler.Handle("echo", echo)
	handler.Handle("WinList", winList)
	handler.Handle("session", sessionInfo)

	tcpServer := server.NewTCPServer(cfg.Server.Addr, cfg.Server.TCP)
	tcpServer.Handler = func() server.Handler {
		return handler
	}
	tcpServer.OnSessionOpen = func(s *server.TCPSession) {
		s.Attributes.Store("openedAt", time.Now())
		log.Info().
			Uint64("ssid", s.GetID()).
			Str("remote", s.GetRemoteAddr()).
			Msg("CONNECTED")
	}
	tcpServer.OnSessionClose = func(s *server.TCPSession) {
		log.Info().
			Uint64("ssid", s.GetID()).
			Msg("Connection closed")
	}
	if err := tcpServer.Init(); err != nil {
		log.Fatal().Err(err).Msg("tcp server init error")
	}
	go tcpServer.Start()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	tcpServer.Stop()
}

func ping(_ *server.TCPSession, _ message.Call) (message.Call, error) {
	return message.Call{Command: "pong"}, nil
}

func echo(_ *server.TCPSession, call message.Call) (message.Call, error) {
	return call, nil
}

// winList 返回固定的窗口列表: [[title, handle], ...]
func winList(_ *server.TCPSession, _ message.Call) (message.Call, error) {
	return message.NewCall("WinList", []any{
		[]any{"Program Manager", 0x10010},
		[]any{"Untitled - Notepad", 0x20344},
	})
}

func sessionInfo(s *server.TCPSession, _ message.Call) (message.Call, error) {
	uptime := 0.0
	if v, ok := s.Attributes.Load("openedAt"); ok {
		uptime = time.Since(v.(time.Time)).Seconds()
	}
	return message.NewCall("session", int64(s.GetID()), s.GetRemoteAddr(), uptime)
}
