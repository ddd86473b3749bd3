package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"github.com/bruuuces/gnet-rpc/client"
	"github.com/bruuuces/gnet-rpc/config"
	"github.com/bruuuces/gnet-rpc/logging"
	"github.com/bruuuces/gnet-rpc/message"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"os"
	"strconv"
	"strings"
)

// 用法: client [-config path] [-n connections] command [args...]
// 参数按整数, 浮点数, 字符串的顺序尝试解析
func main() {
	configPath := flag.String("config", "", "path to TOML config")
	connections := flag.Int("n", 0, "number of concurrent connections (overrides config)")
	addr := flag.String("addr", "", "server address (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config error")
	}
	if err := logging.Configure(cfg.Log); err != nil {
		log.Fatal().Err(err).Msg("configure logging error")
	}
	if *connections > 0 {
		cfg.Client.Connections = *connections
	}
	if *addr != "" {
		cfg.Client.Addr = *addr
	}

	command := "WinList"
	var args []any
	if flag.NArg() > 0 {
		command = flag.Arg(0)
		args = parseArgs(flag.Args()[1:])
	}

	var eg errgroup.Group
	for i := 0; i < cfg.Client.Connections; i++ {
		i := i
		eg.Go(func() error {
			return run(i, cfg.Client, command, args)
		})
	}
	if err := eg.Wait(); err != nil {
		log.Error().Err(err).Msg("client error")
		os.Exit(1)
	}
}

func run(id int, cfg config.ClientConfig, command string, args []any) error {
	ctx := context.Background()
	if cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.CallTimeout)
		defer cancel()
	}
	c, err := client.Dial(ctx, cfg.Addr, cfg.Options)
	if err != nil {
		return err
	}
	defer c.Close()
	log.Info().
		Int("client", id).
		Str("addr", cfg.Addr).
		Msg("CONNECTED")

	reply, err := c.Call(ctx, command, args...)
	if err != nil && !errors.Is(err, client.ErrRemote) {
		return err
	}
	fmt.Printf("DATA[%d]: %s\n", id, format(reply))
	return nil
}

func parseArgs(raw []string) []any {
	args := make([]any, 0, len(raw))
	for _, s := range raw {
		if n, err := strconv.ParseInt(s, 10, 32); err == nil {
			args = append(args, n)
		} else if f, err := strconv.ParseFloat(s, 64); err == nil {
			args = append(args, f)
		} else {
			args = append(args, s)
		}
	}
	return args
}

func format(call message.Call) string {
	if len(call.Args) == 0 {
		return call.Command
	}
	parts := make([]string, 0, len(call.Args))
	for _, arg := range call.Args {
		parts = append(parts, formatArg(arg))
	}
	return call.Command + " " + strings.Join(parts, " ")
}

func formatArg(arg message.Argument) string {
	switch v := arg.(type) {
	case message.Array:
		parts := make([]string, 0, len(v))
		for _, e := range v {
			parts = append(parts, formatArg(e))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case message.String:
		return strconv.Quote(string(v))
	case message.Int:
		return strconv.FormatInt(int64(v), 10)
	case message.Float:
		return strconv.FormatFloat(float64(v), 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}
