package server

import (
	"bufio"
	"errors"
	"fmt"
	"github.com/bruuuces/gnet-rpc/message"
	"golang.org/x/sync/errgroup"
	"net"
	"reflect"
	"testing"
	"time"
)

func startTestServer(t *testing.T, config TCPServerConfigurator, handler *CallHandler) *TCPServer {
	t.Helper()
	srv := NewTCPServer("127.0.0.1:0", config)
	srv.Handler = func() Handler { return handler }
	if err := srv.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	go srv.Start()
	t.Cleanup(srv.Stop)
	return srv
}

func echoHandler() *CallHandler {
	h := NewCallHandler()
	h.Handle("echo", func(_ *TCPSession, call message.Call) (message.Call, error) {
		return call, nil
	})
	h.Handle("fail", func(_ *TCPSession, _ message.Call) (message.Call, error) {
		return message.Call{}, errors.New("window not found")
	})
	return h
}

type rawConn struct {
	conn   net.Conn
	reader *bufio.Reader
}

func dialRaw(t *testing.T, addr string) *rawConn {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
	return &rawConn{conn: conn, reader: bufio.NewReader(conn)}
}

func (c *rawConn) roundTrip(packet []byte) (message.Call, error) {
	if _, err := c.conn.Write(packet); err != nil {
		return message.Call{}, err
	}
	msgData, err := ReadFrame(c.reader, 1024)
	if err != nil {
		return message.Call{}, err
	}
	return message.DecodeMessage(msgData)
}

func TestCallHandlerEcho(t *testing.T) {
	srv := startTestServer(t, DefaultTCPServerConfigurator(), echoHandler())
	c := dialRaw(t, srv.Addr())

	call := message.Call{
		Command: "echo",
		Args: []message.Argument{
			message.Array{message.Array{message.String("a"), message.String("b")}, message.Int(3)},
			message.Float(5.5),
		},
	}
	packet, err := message.Encode(call)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	reply, err := c.roundTrip(packet)
	if err != nil {
		t.Fatalf("round trip failed: %v", err)
	}
	if !reflect.DeepEqual(reply, call) {
		t.Fatalf("got %#v, want %#v", reply, call)
	}
}

func TestCallHandlerErrorReplies(t *testing.T) {
	srv := startTestServer(t, DefaultTCPServerConfigurator(), echoHandler())
	c := dialRaw(t, srv.Addr())

	tests := []struct {
		name   string
		packet []byte
	}{
		{name: "unknown command", packet: message.EncodePacket([]byte("WinList"))},
		{name: "command error", packet: message.EncodePacket([]byte("fail"))},
		{name: "malformed arguments", packet: message.EncodePacket([]byte("echo\x1d\x02\x02str\x1fa"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply, err := c.roundTrip(tt.packet)
			if err != nil {
				t.Fatalf("round trip failed: %v", err)
			}
			if reply.Command != ReplyError || len(reply.Args) != 1 {
				t.Fatalf("unexpected reply: %#v", reply)
			}
			if _, ok := reply.Args[0].(message.String); !ok {
				t.Fatalf("reason is not a string: %#v", reply.Args[0])
			}
		})
	}
}

func TestServerConcurrentSessions(t *testing.T) {
	srv := startTestServer(t, DefaultTCPServerConfigurator(), echoHandler())

	var eg errgroup.Group
	for i := 0; i < 8; i++ {
		i := i
		eg.Go(func() error {
			conn, err := net.DialTimeout("tcp", srv.Addr(), time.Second)
			if err != nil {
				return err
			}
			defer conn.Close()
			_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
			reader := bufio.NewReader(conn)
			for j := 0; j < 5; j++ {
				want := message.Call{Command: "echo", Args: []message.Argument{message.Int(int32(i)), message.Int(int32(j))}}
				packet, err := message.Encode(want)
				if err != nil {
					return err
				}
				if _, err := conn.Write(packet); err != nil {
					return err
				}
				msgData, err := ReadFrame(reader, 1024)
				if err != nil {
					return err
				}
				got, err := message.DecodeMessage(msgData)
				if err != nil {
					return err
				}
				if !reflect.DeepEqual(got, want) {
					return fmt.Errorf("client %d call %d: got %#v", i, j, got)
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		t.Fatal(err)
	}
}

func TestServerRefusesBeyondMaxConnections(t *testing.T) {
	config := DefaultTCPServerConfigurator()
	config.MaxConnectionNum = 1
	srv := startTestServer(t, config, echoHandler())

	first := dialRaw(t, srv.Addr())
	packet, _ := message.Encode(message.Call{Command: "echo"})
	if _, err := first.roundTrip(packet); err != nil {
		t.Fatalf("first session failed: %v", err)
	}

	second := dialRaw(t, srv.Addr())
	if _, err := second.roundTrip(packet); err == nil {
		t.Fatal("expected second session to be refused")
	}
}

func TestServerStopClosesSessions(t *testing.T) {
	opened := make(chan uint64, 1)
	closed := make(chan uint64, 1)

	srv := NewTCPServer("127.0.0.1:0", DefaultTCPServerConfigurator())
	srv.Handler = func() Handler { return echoHandler() }
	srv.OnSessionOpen = func(s *TCPSession) { opened <- s.GetID() }
	srv.OnSessionClose = func(s *TCPSession) { closed <- s.GetID() }
	if err := srv.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	go srv.Start()

	c := dialRaw(t, srv.Addr())
	var ssid uint64
	select {
	case ssid = <-opened:
	case <-time.After(2 * time.Second):
		t.Fatal("session not opened")
	}
	if n := srv.SessionMgr.SessionCount(); n != 1 {
		t.Fatalf("unexpected session count: %d", n)
	}
	if _, ok := srv.SessionMgr.GetSession(ssid); !ok {
		t.Fatalf("session %d not registered", ssid)
	}

	srv.Stop()

	select {
	case got := <-closed:
		if got != ssid {
			t.Fatalf("closed session %d, want %d", got, ssid)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("session not closed")
	}
	if n := srv.SessionMgr.SessionCount(); n != 0 {
		t.Fatalf("unexpected session count after stop: %d", n)
	}
	if _, err := ReadFrame(c.reader, 1024); err == nil {
		t.Fatal("expected connection to be closed")
	}
}

func TestInitRequiresHandler(t *testing.T) {
	srv := NewTCPServer("127.0.0.1:0", DefaultTCPServerConfigurator())
	if err := srv.Init(); err == nil {
		t.Fatal("expected error without handler")
	}
	srv.Stop()
}

func TestStopWithoutInit(t *testing.T) {
	srv := NewTCPServer("127.0.0.1:0", DefaultTCPServerConfigurator())
	srv.Stop()
	if srv.Addr() != "127.0.0.1:0" {
		t.Fatalf("unexpected addr: %q", srv.Addr())
	}
}
