package server

import (
	"io"
)

// Encoder 将业务消息编码为可写入连接的字节
type Encoder interface {
	Encode(*TCPSession, []byte) ([]byte, error)
}

// Decoder 从连接中读取一帧并返回业务消息
type Decoder interface {
	Decode(*TCPSession, io.Reader) ([]byte, error)
}
