package message

import (
	"bytes"
	"fmt"
	"strconv"
)

// Encode 将 Call 编码为完整的数据包
func Encode(call Call) ([]byte, error) {
	msg, err := EncodeCall(call)
	if err != nil {
		return nil, err
	}
	return EncodePacket(msg), nil
}

// EncodePacket 在消息体前加上十进制长度前缀与包分隔符
func EncodePacket(msg []byte) []byte {
	prefix := strconv.Itoa(len(msg))
	packet := make([]byte, 0, len(prefix)+1+len(msg))
	packet = append(packet, prefix...)
	packet = append(packet, PacketSeparator)
	return append(packet, msg...)
}

// EncodeCall 编码消息体. 无参数时消息体即命令名.
func EncodeCall(call Call) ([]byte, error) {
	if i := indexReserved(call.Command); i >= 0 {
		return nil, fmt.Errorf("%w: command %q offset %d", ErrReservedByte, call.Command, i)
	}
	argBlock, err := EncodeArguments(call.Args)
	if err != nil {
		return nil, err
	}
	if argBlock == nil {
		return []byte(call.Command), nil
	}
	msg := make([]byte, 0, len(call.Command)+1+len(argBlock))
	msg = append(msg, call.Command...)
	msg = append(msg, MessageSeparator)
	return append(msg, argBlock...), nil
}

// EncodeArguments 编码参数块, 参数为空时返回 nil
func EncodeArguments(args []Argument) ([]byte, error) {
	if len(args) == 0 {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := writeBlock(&buf, args, 1); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeValue 编码单个参数
func EncodeValue(arg Argument) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeValue(&buf, arg, 1); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeBlock(buf *bytes.Buffer, elems []Argument, depth int) error {
	if depth > maxDepth {
		return fmt.Errorf("%w: nesting deeper than %d", ErrMalformedArguments, maxDepth)
	}
	buf.WriteByte(BlockStart)
	for i, e := range elems {
		if i > 0 {
			buf.WriteByte(ElementSeparator)
		}
		if err := writeValue(buf, e, depth+1); err != nil {
			return err
		}
	}
	buf.WriteByte(BlockEnd)
	return nil
}

// depth 为 arg 若是数组时所处的层数
func writeValue(buf *bytes.Buffer, arg Argument, depth int) error {
	switch v := arg.(type) {
	case Array:
		return writeBlock(buf, v, depth)
	case Int:
		writeScalar(buf, TagInt, strconv.FormatInt(int64(v), 10))
	case Float:
		if n, ok := integral(float64(v)); ok {
			writeScalar(buf, TagInt, strconv.FormatInt(int64(n), 10))
		} else {
			writeScalar(buf, TagFloat, strconv.FormatFloat(float64(v), 'f', -1, 64))
		}
	case String:
		if i := indexReserved(string(v)); i >= 0 {
			return fmt.Errorf("%w: string offset %d", ErrReservedByte, i)
		}
		writeScalar(buf, TagString, string(v))
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedArgumentType, arg)
	}
	return nil
}

func writeScalar(buf *bytes.Buffer, tag, literal string) {
	buf.WriteByte(BlockStart)
	buf.WriteString(tag)
	buf.WriteByte(FieldSeparator)
	buf.WriteString(literal)
	buf.WriteByte(BlockEnd)
}
