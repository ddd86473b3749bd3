package server

import (
	"errors"
	"fmt"
	"github.com/bruuuces/gnet-rpc/message"
	"io"
)

// 长度前缀的最大十进制位数
const maxPrefixDigits = 10

var (
	ErrFrameTooLong  = errors.New("frame: message too long")
	ErrPrefixTooLong = errors.New("frame: length prefix too long")
	ErrMaxFrameLen   = errors.New("frame: invalid `maxFrameLen`")
)

// PacketPrepender 为消息加上十进制长度前缀
type PacketPrepender struct {
	maxFrameLen int
}

func NewPacketPrepender(maxFrameLen int) (*PacketPrepender, error) {
	if maxFrameLen <= 0 {
		return nil, ErrMaxFrameLen
	}
	return &PacketPrepender{maxFrameLen: maxFrameLen}, nil
}

func (p *PacketPrepender) Encode(_ *TCPSession, msgData []byte) ([]byte, error) {
	if len(msgData) > p.maxFrameLen {
		return nil, fmt.Errorf("%w, msgDataLen: %v, maxFrameLen: %v", ErrFrameTooLong, len(msgData), p.maxFrameLen)
	}
	return message.EncodePacket(msgData), nil
}

// PacketFrameDecoder 按长度前缀从字节流中切出一个消息体
type PacketFrameDecoder struct {
	maxFrameLen int
}

func NewPacketFrameDecoder(maxFrameLen int) (*PacketFrameDecoder, error) {
	if maxFrameLen <= 0 {
		return nil, ErrMaxFrameLen
	}
	return &PacketFrameDecoder{maxFrameLen: maxFrameLen}, nil
}

func (d *PacketFrameDecoder) Decode(_ *TCPSession, reader io.Reader) ([]byte, error) {
	return ReadFrame(reader, d.maxFrameLen)
}

// ReadFrame 读取一个数据包并返回其消息体.
// 在第一个字节之前遇到 EOF 返回 io.EOF, 帧中途 EOF 返回 io.ErrUnexpectedEOF.
func ReadFrame(reader io.Reader, maxFrameLen int) ([]byte, error) {
	msgDataLen, err := readMsgLen(reader, maxFrameLen)
	if err != nil {
		return nil, err
	}
	msgData := make([]byte, msgDataLen)
	if msgDataLen == 0 {
		return msgData, nil
	}
	readLen, err := io.ReadFull(reader, msgData)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return nil, io.ErrUnexpectedEOF
	} else if err != nil {
		return nil, fmt.Errorf("decode message data error, readLen: %v, err: %w", readLen, err)
	}
	return msgData, nil
}

func readMsgLen(reader io.Reader, maxFrameLen int) (int, error) {
	br := byteReader(reader)
	digits := make([]byte, 0, maxPrefixDigits)
	for {
		b, err := br.ReadByte()
		if err == io.EOF {
			if len(digits) == 0 {
				return 0, io.EOF
			}
			return 0, io.ErrUnexpectedEOF
		} else if err != nil {
			return 0, err
		}
		if b == message.PacketSeparator {
			break
		}
		if len(digits) == maxPrefixDigits {
			return 0, ErrPrefixTooLong
		}
		digits = append(digits, b)
	}
	msgDataLen, err := message.ParseLength(digits)
	if err != nil {
		return 0, err
	}
	if msgDataLen > maxFrameLen {
		return 0, fmt.Errorf("%w, msgDataLen: %v, maxFrameLen: %v", ErrFrameTooLong, msgDataLen, maxFrameLen)
	}
	return msgDataLen, nil
}

type singleByteReader struct {
	r   io.Reader
	buf [1]byte
}

func (s *singleByteReader) ReadByte() (byte, error) {
	if _, err := io.ReadFull(s.r, s.buf[:]); err != nil {
		return 0, err
	}
	return s.buf[0], nil
}

func byteReader(r io.Reader) io.ByteReader {
	if br, ok := r.(io.ByteReader); ok {
		return br
	}
	return &singleByteReader{r: r}
}
