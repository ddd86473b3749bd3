package message

import "errors"

var (
	ErrMalformedPacket         = errors.New("message: malformed packet")
	ErrLengthMismatch          = errors.New("message: length mismatch")
	ErrMalformedMessage        = errors.New("message: malformed message")
	ErrMalformedArguments      = errors.New("message: malformed arguments")
	ErrUnknownTag              = errors.New("message: unknown tag")
	ErrInvalidNumericLiteral   = errors.New("message: invalid numeric literal")
	ErrUnsupportedArgumentType = errors.New("message: unsupported argument type")
	ErrReservedByte            = errors.New("message: reserved byte in payload")
)
