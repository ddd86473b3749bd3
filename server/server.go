package server

import (
	"errors"
	"fmt"
	"github.com/rs/zerolog/log"
	"net"
	"runtime/debug"
	"sync"
	"time"
)

type TCPServerConfigurator struct {
	NoDelay            bool
	KeepAlive          bool
	KeepAlivePeriodSec int
	MaxConnectionNum   int
	ReadTimeOutSec     int
	SendBufferSize     int
	MaxFrameLen        int
}

func DefaultTCPServerConfigurator() TCPServerConfigurator {
	return TCPServerConfigurator{
		NoDelay:            true,
		KeepAlive:          true,
		KeepAlivePeriodSec: int(time.Minute.Seconds()),
		MaxConnectionNum:   10000,
		ReadTimeOutSec:     10,
		SendBufferSize:     1024,
		MaxFrameLen:        4 * 1024 * 1024,
	}
}

type TCPServer struct {
	addr              string
	config            TCPServerConfigurator
	ln                *net.TCPListener
	mutexSession      sync.Mutex
	lnClosedWait      sync.WaitGroup
	sessionClosedWait sync.WaitGroup
	SessionMgr        *SessionManager
	Encoder           func() Encoder
	Decoder           func() Decoder
	Handler           func() Handler
	OnSessionOpen     func(*TCPSession)
	OnSessionClose    func(*TCPSession)
}

func NewTCPServer(addr string, config TCPServerConfigurator) *TCPServer {
	return &TCPServer{
		addr:       addr,
		config:     config,
		SessionMgr: &SessionManager{},
	}
}

// Init 监听地址并补齐默认的编解码器, Handler 必须由调用方设置
func (s *TCPServer) Init() error {
	if s.Handler == nil {
		return errors.New("tcp server handler not set")
	}
	if s.Encoder == nil {
		encoder, err := NewPacketPrepender(s.config.MaxFrameLen)
		if err != nil {
			return err
		}
		s.Encoder = func() Encoder { return encoder }
	}
	if s.Decoder == nil {
		maxFrameLen := s.config.MaxFrameLen
		if _, err := NewPacketFrameDecoder(maxFrameLen); err != nil {
			return err
		}
		s.Decoder = func() Decoder {
			decoder, _ := NewPacketFrameDecoder(maxFrameLen)
			return decoder
		}
	}
	addr, err := net.ResolveTCPAddr("tcp4", s.addr)
	if err != nil {
		return fmt.Errorf("addr resolve error, addr: %v, err: %w", s.addr, err)
	}
	ln, err := net.ListenTCP("tcp4", addr)
	if err != nil {
		return fmt.Errorf("listen error, err: %w", err)
	}
	s.ln = ln
	s.SessionMgr.Init()
	log.Info().
		Str("addr", s.Addr()).
		Msg("tcp server listened")
	return nil
}

// Addr 返回实际监听的地址
func (s *TCPServer) Addr() string {
	if s.ln == nil {
		return s.addr
	}
	return s.ln.Addr().String()
}

func (s *TCPServer) Start() {
	defer func() {
		if v := recover(); v != nil {
			log.Error().Msgf("tcp server panic %v %v", v, string(debug.Stack()))
		}
	}()
	s.lnClosedWait.Add(1)
	defer s.lnClosedWait.Done()
	for {
		conn, err := s.ln.AcceptTCP()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				log.Error().
					Err(err).
					Msg("accept error")
			}
			break
		}
		if s.config.MaxConnectionNum > 0 && s.SessionMgr.SessionCount() >= int64(s.config.MaxConnectionNum) {
			log.Warn().
				Str("remote", conn.RemoteAddr().String()).
				Int("maxConnectionNum", s.config.MaxConnectionNum).
				Msg("connection refused, too many sessions")
			_ = conn.Close()
			continue
		}
		if err := s.configureConn(conn); err != nil {
			_ = conn.Close()
			continue
		}
		session := s.bindSession(conn)
		go session.Open()
	}
}

func (s *TCPServer) configureConn(conn *net.TCPConn) error {
	err := conn.SetKeepAlive(s.config.KeepAlive)
	if err != nil {
		log.Error().
			Err(err).
			Msg("SetKeepAlive error")
		return err
	}
	if s.config.KeepAlive && s.config.KeepAlivePeriodSec > 0 {
		err = conn.SetKeepAlivePeriod(time.Duration(s.config.KeepAlivePeriodSec) * time.Second)
		if err != nil {
			log.Error().
				Err(err).
				Msg("SetKeepAlivePeriod error")
			return err
		}
	}
	err = conn.SetNoDelay(s.config.NoDelay)
	if err != nil {
		log.Error().
			Err(err).
			Msg("SetNoDelay error")
		return err
	}
	return nil
}

func (s *TCPServer) bindSession(conn *net.TCPConn) *TCPSession {
	session := NewTCPSession(conn, s)
	session.ReadTimeOut = time.Duration(s.config.ReadTimeOutSec) * time.Second
	session.SendBufferSize = s.config.SendBufferSize
	s.mutexSession.Lock()
	defer s.mutexSession.Unlock()
	s.SessionMgr.registerSession(session)
	s.sessionClosedWait.Add(1)
	log.Debug().
		Uint64("ssid", session.GetID()).
		Str("remote", session.GetRemoteAddr()).
		Msg("session opened")
	return session
}

func (s *TCPServer) Stop() {
	if s.ln == nil {
		return
	}
	err := s.ln.Close()
	if err != nil && !errors.Is(err, net.ErrClosed) {
		log.Error().
			Err(err).
			Msg("close listener error")
	}
	s.lnClosedWait.Wait()
	s.mutexSession.Lock()
	s.SessionMgr.Close()
	s.mutexSession.Unlock()
	s.sessionClosedWait.Wait()
	log.Info().
		Str("addr", s.Addr()).
		Msg("tcp server stopped")
}

func (s *TCPServer) removeSession(session *TCPSession) {
	defer s.sessionClosedWait.Done()
	err := session.Close()
	if err != nil && !errors.Is(err, net.ErrClosed) {
		log.Error().
			Err(err).
			Uint64("ssid", session.GetID()).
			Msg("close session error")
	}
	s.mutexSession.Lock()
	s.SessionMgr.unregisterSession(session)
	s.mutexSession.Unlock()
	if s.OnSessionClose != nil {
		s.OnSessionClose(session)
	}
	log.Debug().
		Uint64("ssid", session.GetID()).
		Msg("session closed")
}

type Handler interface {
	Process(*TCPSession, []byte)
}
