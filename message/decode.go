package message

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// DecodePacket 解析一个完整的数据包. packet 必须恰好包含一个包的字节.
func DecodePacket(packet []byte) (Call, error) {
	i := bytes.IndexByte(packet, PacketSeparator)
	if i < 0 {
		return Call{}, fmt.Errorf("%w: missing packet separator", ErrMalformedPacket)
	}
	msg := packet[i+1:]
	if bytes.IndexByte(msg, PacketSeparator) >= 0 {
		return Call{}, fmt.Errorf("%w: more than one packet separator", ErrMalformedPacket)
	}
	msgLen, err := ParseLength(packet[:i])
	if err != nil {
		return Call{}, err
	}
	if msgLen != len(msg) {
		return Call{}, fmt.Errorf("%w: prefix %d, body %d", ErrLengthMismatch, msgLen, len(msg))
	}
	return DecodeMessage(msg)
}

// ParseLength 解析十进制长度前缀
func ParseLength(text []byte) (int, error) {
	n, err := strconv.ParseUint(string(text), 10, 31)
	if err != nil {
		return 0, fmt.Errorf("%w: length prefix %q", ErrMalformedPacket, text)
	}
	return int(n), nil
}

// DecodeMessage 解析消息体 (不含长度前缀)
func DecodeMessage(msg []byte) (Call, error) {
	i := bytes.IndexByte(msg, MessageSeparator)
	if i < 0 {
		return decodeCommand(msg)
	}
	if bytes.IndexByte(msg[i+1:], MessageSeparator) >= 0 {
		return Call{}, fmt.Errorf("%w: more than one message separator", ErrMalformedMessage)
	}
	call, err := decodeCommand(msg[:i])
	if err != nil {
		return Call{}, err
	}
	args, err := DecodeArguments(msg[i+1:])
	if err != nil {
		return Call{}, err
	}
	call.Args = args
	return call, nil
}

func decodeCommand(b []byte) (Call, error) {
	cmd := string(b)
	if i := indexReserved(cmd); i >= 0 {
		return Call{}, fmt.Errorf("%w: reserved byte %d in command at offset %d", ErrMalformedMessage, cmd[i], i)
	}
	return Call{Command: cmd}, nil
}

// DecodeArguments 解析一个参数块
func DecodeArguments(block []byte) ([]Argument, error) {
	p := &parser{buf: block}
	if len(block) == 0 || block[0] != BlockStart {
		return nil, p.malformed("argument block must start with block-start")
	}
	args, err := p.parseArray()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.buf) {
		return nil, p.malformed("trailing bytes after argument block")
	}
	return args, nil
}

// 参数块最大嵌套层数, 顶层参数块计为第一层
const maxDepth = 64

type parser struct {
	buf   []byte
	pos   int
	depth int
}

func (p *parser) malformed(reason string) error {
	return fmt.Errorf("%w: %s at offset %d", ErrMalformedArguments, reason, p.pos)
}

func (p *parser) parseValue() (Argument, error) {
	if p.pos >= len(p.buf) || p.buf[p.pos] != BlockStart {
		return nil, p.malformed("expected block-start")
	}
	if p.pos+1 >= len(p.buf) {
		return nil, p.malformed("unterminated block")
	}
	switch p.buf[p.pos+1] {
	case BlockStart, BlockEnd:
		return p.parseArray()
	default:
		return p.parseScalar()
	}
}

// parseArray pos 位于 block-start
func (p *parser) parseArray() (Array, error) {
	if p.depth == maxDepth {
		return nil, p.malformed("nesting too deep")
	}
	p.depth++
	defer func() { p.depth-- }()
	p.pos++
	elems := Array{}
	if p.pos < len(p.buf) && p.buf[p.pos] == BlockEnd {
		p.pos++
		return elems, nil
	}
	for {
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		elems = append(elems, v)
		if p.pos >= len(p.buf) {
			return nil, p.malformed("missing block-end")
		}
		switch p.buf[p.pos] {
		case ElementSeparator:
			p.pos++
		case BlockEnd:
			p.pos++
			return elems, nil
		default:
			return nil, p.malformed("expected element separator or block-end")
		}
	}
}

// parseScalar pos 位于 block-start
func (p *parser) parseScalar() (Argument, error) {
	p.pos++
	tagStart := p.pos
	for p.pos < len(p.buf) && !isReserved(p.buf[p.pos]) {
		p.pos++
	}
	if p.pos >= len(p.buf) || p.buf[p.pos] != FieldSeparator {
		return nil, p.malformed("missing field separator")
	}
	tag := string(p.buf[tagStart:p.pos])
	p.pos++
	litStart := p.pos
	for p.pos < len(p.buf) && !isReserved(p.buf[p.pos]) {
		p.pos++
	}
	if p.pos >= len(p.buf) || p.buf[p.pos] != BlockEnd {
		return nil, p.malformed("missing block-end")
	}
	literal := string(p.buf[litStart:p.pos])
	p.pos++
	return scalar(tag, literal)
}

func scalar(tag, literal string) (Argument, error) {
	switch tag {
	case TagInt:
		n, err := strconv.ParseInt(literal, 10, 32)
		if err != nil || strings.HasPrefix(literal, "+") {
			return nil, fmt.Errorf("%w: %s %q", ErrInvalidNumericLiteral, tag, literal)
		}
		return Int(n), nil
	case TagFloat:
		f, err := strconv.ParseFloat(literal, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s %q", ErrInvalidNumericLiteral, tag, literal)
		}
		return Float(f), nil
	case TagString:
		return String(literal), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTag, tag)
	}
}
