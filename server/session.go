package server

import (
	"bufio"
	"errors"
	"github.com/rs/zerolog/log"
	"io"
	"net"
	"sync"
	"time"
)

var ErrSessionClosed = errors.New("session closed")

type TCPSession struct {
	id        uint64
	conn      net.Conn
	reader    *bufio.Reader
	server    *TCPServer
	decoder   Decoder
	encoder   Encoder
	handler   Handler
	close     chan struct{}
	closeOnce sync.Once
	closeErr  error
	sndBuf    chan []byte
	// 读超时时间
	ReadTimeOut time.Duration
	// 业务消息发送缓冲区大小
	SendBufferSize int
	// 自定义属性
	Attributes sync.Map
}

func NewTCPSession(conn net.Conn, server *TCPServer) *TCPSession {
	session := TCPSession{
		conn:    conn,
		reader:  bufio.NewReader(conn),
		server:  server,
		decoder: server.Decoder(),
		encoder: server.Encoder(),
		handler: server.Handler(),
		close:   make(chan struct{}),
	}
	session.SendBufferSize = -1
	return &session
}

func (s *TCPSession) Open() {
	sendBufferSize := s.SendBufferSize
	if sendBufferSize <= 0 {
		sendBufferSize = 1024
	}
	s.SendBufferSize = sendBufferSize
	s.sndBuf = make(chan []byte, s.SendBufferSize)
	if s.server.OnSessionOpen != nil {
		s.server.OnSessionOpen(s)
	}
	go s.HandleRead()
	go s.HandleWrite()
}

func (s *TCPSession) HandleRead() {
	defer s.server.removeSession(s)
	for {
		readTimeOut := s.ReadTimeOut
		if readTimeOut > 0 {
			err := s.conn.SetReadDeadline(time.Now().Add(readTimeOut))
			if err != nil {
				log.Error().
					Err(err).
					Uint64("ssid", s.GetID()).
					Msgf("set read deadline error")
				return
			}
		}
		msgData, err := s.decoder.Decode(s, s.reader)
		if err != nil {
			if err != io.EOF && err != io.ErrUnexpectedEOF && !s.isClosed() {
				log.Error().
					Err(err).
					Uint64("ssid", s.GetID()).
					Msg("read message error")
			}
			return
		}
		log.Trace().
			Uint64("ssid", s.GetID()).
			Hex("msg", msgData).
			Msg("decode message")
		s.handler.Process(s, msgData)
	}
}

func (s *TCPSession) HandleWrite() {
	defer func(s *TCPSession) {
		_ = s.Close()
	}(s)
	for {
		select {
		case msgData := <-s.sndBuf:
			packet, err := s.encoder.Encode(s, msgData)
			if err != nil {
				log.Error().
					Err(err).
					Uint64("ssid", s.GetID()).
					Msg("encode message error")
				continue
			}
			log.Trace().
				Uint64("ssid", s.GetID()).
				Hex("packet", packet).
				Msg("encode message")
			writeLen, err := s.conn.Write(packet)
			if err == io.EOF {
				log.Error().
					Err(err).
					Uint64("ssid", s.GetID()).
					Msg("write message error, connection closed")
				return
			} else if err != nil {
				log.Error().
					Err(err).
					Uint64("ssid", s.GetID()).
					Int("writeLen", writeLen).
					Msg("write message error")
				return
			}
		case <-s.close:
			return
		}
	}
}

// Send 将消息体放入发送缓冲区, 会话关闭后返回 ErrSessionClosed
func (s *TCPSession) Send(msgData []byte) error {
	select {
	case <-s.close:
		return ErrSessionClosed
	default:
	}
	select {
	case s.sndBuf <- msgData:
		return nil
	case <-s.close:
		return ErrSessionClosed
	}
}

func (s *TCPSession) Close() error {
	s.closeOnce.Do(func() {
		close(s.close)
		if s.conn != nil {
			s.closeErr = s.conn.Close()
		}
	})
	return s.closeErr
}

func (s *TCPSession) isClosed() bool {
	select {
	case <-s.close:
		return true
	default:
		return false
	}
}

func (s *TCPSession) GetID() uint64 {
	return s.id
}

func (s *TCPSession) GetConn() net.Conn {
	return s.conn
}

func (s *TCPSession) GetServer() *TCPServer {
	return s.server
}

func (s *TCPSession) GetRemoteAddr() string {
	conn := s.conn
	if conn == nil {
		return ""
	}
	return conn.RemoteAddr().String()
}

func (s *TCPSession) GetLocalAddr() string {
	conn := s.conn
	if conn == nil {
		return ""
	}
	return conn.LocalAddr().String()
}
