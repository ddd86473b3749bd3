package message

// 控制字符分隔符, 载荷文本中不应出现
const (
	PacketSeparator  byte = 28 // FS, 长度前缀与消息体
	MessageSeparator byte = 29 // GS, 命令名与参数块
	BlockStart       byte = 2  // STX
	BlockEnd         byte = 3  // ETX
	ElementSeparator byte = 30 // RS, 块内兄弟元素
	FieldSeparator   byte = 31 // US, 标量的类型标签与字面量
)

// 标量类型标签
const (
	TagInt    = "i32"
	TagFloat  = "num"
	TagString = "str"
)

// isReserved 判断字节是否为协议保留的分隔符
func isReserved(b byte) bool {
	switch b {
	case PacketSeparator, MessageSeparator, BlockStart, BlockEnd, ElementSeparator, FieldSeparator:
		return true
	}
	return false
}

func indexReserved(s string) int {
	for i := 0; i < len(s); i++ {
		if isReserved(s[i]) {
			return i
		}
	}
	return -1
}

// StripReserved 去除字符串中的保留分隔符
func StripReserved(s string) string {
	if indexReserved(s) < 0 {
		return s
	}
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if !isReserved(s[i]) {
			out = append(out, s[i])
		}
	}
	return string(out)
}
