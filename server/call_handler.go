package server

import (
	"errors"
	"fmt"
	"github.com/bruuuces/gnet-rpc/message"
	"github.com/rs/zerolog/log"
	"sync"
)

// ReplyError 出错时回复的命令名, 唯一参数为错误描述
const ReplyError = "error"

var ErrUnknownCommand = errors.New("unknown command")

// CommandFunc 执行一条命令并返回回复
type CommandFunc func(session *TCPSession, call message.Call) (message.Call, error)

// CallHandler 解码消息体并按命令名分发
type CallHandler struct {
	mu       sync.RWMutex
	commands map[string]CommandFunc
}

func NewCallHandler() *CallHandler {
	return &CallHandler{commands: make(map[string]CommandFunc)}
}

// Handle 注册命令, 同名命令会被覆盖
func (h *CallHandler) Handle(command string, fn CommandFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.commands[command] = fn
}

func (h *CallHandler) lookup(command string) (CommandFunc, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	fn, ok := h.commands[command]
	return fn, ok
}

func (h *CallHandler) Process(session *TCPSession, msgData []byte) {
	call, err := message.DecodeMessage(msgData)
	if err != nil {
		log.Warn().
			Err(err).
			Uint64("ssid", session.GetID()).
			Msg("decode call error")
		h.reply(session, ErrorReply(err))
		return
	}
	log.Debug().
		Uint64("ssid", session.GetID()).
		Str("command", call.Command).
		Int("args", len(call.Args)).
		Msg("call received")
	fn, ok := h.lookup(call.Command)
	if !ok {
		h.reply(session, ErrorReply(fmt.Errorf("%w: %s", ErrUnknownCommand, call.Command)))
		return
	}
	reply, err := fn(session, call)
	if err != nil {
		log.Warn().
			Err(err).
			Uint64("ssid", session.GetID()).
			Str("command", call.Command).
			Msg("command error")
		reply = ErrorReply(err)
	}
	h.reply(session, reply)
}

func (h *CallHandler) reply(session *TCPSession, reply message.Call) {
	msgData, err := message.EncodeCall(reply)
	if err != nil {
		log.Error().
			Err(err).
			Uint64("ssid", session.GetID()).
			Str("command", reply.Command).
			Msg("encode reply error")
		msgData, _ = message.EncodeCall(ErrorReply(err))
	}
	if err := session.Send(msgData); err != nil {
		log.Debug().
			Err(err).
			Uint64("ssid", session.GetID()).
			Msg("reply dropped")
	}
}

// ErrorReply 构造错误回复
func ErrorReply(err error) message.Call {
	return message.Call{
		Command: ReplyError,
		Args:    []message.Argument{message.String(message.StripReserved(err.Error()))},
	}
}
