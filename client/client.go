package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"github.com/bruuuces/gnet-rpc/message"
	"github.com/bruuuces/gnet-rpc/server"
	"github.com/rs/zerolog/log"
	"net"
	"sync"
	"time"
)

var ErrRemote = errors.New("remote error")

type Options struct {
	DialTimeout time.Duration
	NoDelay     bool
	MaxFrameLen int
}

func DefaultOptions() Options {
	return Options{
		DialTimeout: 5 * time.Second,
		NoDelay:     true,
		MaxFrameLen: 4 * 1024 * 1024,
	}
}

// Client 通过一条 TCP 连接发送命令调用, 同一时刻只处理一个请求
type Client struct {
	mu          sync.Mutex
	conn        net.Conn
	reader      *bufio.Reader
	maxFrameLen int
}

func Dial(ctx context.Context, addr string, opts Options) (*Client, error) {
	dialer := net.Dialer{Timeout: opts.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(opts.NoDelay)
	}
	maxFrameLen := opts.MaxFrameLen
	if maxFrameLen <= 0 {
		maxFrameLen = DefaultOptions().MaxFrameLen
	}
	log.Debug().
		Str("addr", addr).
		Str("local", conn.LocalAddr().String()).
		Msg("connected")
	return &Client{
		conn:        conn,
		reader:      bufio.NewReader(conn),
		maxFrameLen: maxFrameLen,
	}, nil
}

// Call 发送命令并等待一条回复. 远端回复 error 命令时返回 ErrRemote.
func (c *Client) Call(ctx context.Context, command string, args ...any) (message.Call, error) {
	call, err := message.NewCall(command, args...)
	if err != nil {
		return message.Call{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.send(ctx, call); err != nil {
		return message.Call{}, err
	}
	msgData, err := c.readMessage(ctx)
	if err != nil {
		return message.Call{}, err
	}
	reply, err := message.DecodeMessage(msgData)
	if err != nil {
		return message.Call{}, fmt.Errorf("decode reply: %w", err)
	}
	if reply.Command == server.ReplyError {
		return reply, fmt.Errorf("%w: %s", ErrRemote, remoteReason(reply))
	}
	return reply, nil
}

// Send 只发送, 不等待回复
func (c *Client) Send(ctx context.Context, call message.Call) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.send(ctx, call)
}

// ReadMessage 读取下一个数据包的消息体
func (c *Client) ReadMessage(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readMessage(ctx)
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) send(ctx context.Context, call message.Call) error {
	packet, err := message.Encode(call)
	if err != nil {
		return err
	}
	stop, err := c.bindContext(ctx)
	if err != nil {
		return err
	}
	defer stop()
	log.Trace().
		Str("command", call.Command).
		Hex("packet", packet).
		Msg("send call")
	if _, err := c.conn.Write(packet); err != nil {
		return ctxErr(ctx, fmt.Errorf("write packet: %w", err))
	}
	return nil
}

func (c *Client) readMessage(ctx context.Context) ([]byte, error) {
	stop, err := c.bindContext(ctx)
	if err != nil {
		return nil, err
	}
	defer stop()
	msgData, err := server.ReadFrame(c.reader, c.maxFrameLen)
	if err != nil {
		return nil, ctxErr(ctx, err)
	}
	log.Trace().
		Hex("msg", msgData).
		Msg("receive message")
	return msgData, nil
}

// bindContext 将 ctx 的截止时间与取消映射到连接的读写超时
func (c *Client) bindContext(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	deadline, _ := ctx.Deadline()
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Unix(1, 0))
	})
	return func() { stop() }, nil
}

func ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func remoteReason(reply message.Call) string {
	if len(reply.Args) > 0 {
		if s, ok := reply.Args[0].(message.String); ok {
			return string(s)
		}
	}
	return "unspecified"
}
