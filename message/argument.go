package message

import (
	"fmt"
	"math"
)

// Argument 命令参数, 仅有 Int, Float, String, Array 四种实现
type Argument interface {
	isArgument()
}

type Int int32

type Float float64

type String string

type Array []Argument

func (Int) isArgument()    {}
func (Float) isArgument()  {}
func (String) isArgument() {}
func (Array) isArgument()  {}

// Call 一次远程命令调用
type Call struct {
	Command string
	Args    []Argument
}

// NewCall 由任意 Go 值构造 Call, 值的转换规则见 FromValue
func NewCall(command string, values ...any) (Call, error) {
	call := Call{Command: command}
	if len(values) == 0 {
		return call, nil
	}
	call.Args = make([]Argument, 0, len(values))
	for i, v := range values {
		arg, err := FromValue(v)
		if err != nil {
			return Call{}, fmt.Errorf("argument %d: %w", i, err)
		}
		call.Args = append(call.Args, arg)
	}
	return call, nil
}

// FromValue 将 Go 值转换为 Argument.
// 没有小数部分且在 int32 范围内的数值转为 Int, 其余数值转为 Float.
func FromValue(v any) (Argument, error) {
	switch x := v.(type) {
	case Argument:
		return x, nil
	case string:
		return String(x), nil
	case int:
		return fromInteger(int64(x))
	case int8:
		return Int(x), nil
	case int16:
		return Int(x), nil
	case int32:
		return Int(x), nil
	case int64:
		return fromInteger(x)
	case uint:
		return fromUnsigned(uint64(x))
	case uint8:
		return Int(x), nil
	case uint16:
		return Int(x), nil
	case uint32:
		return fromUnsigned(uint64(x))
	case uint64:
		return fromUnsigned(x)
	case float32:
		return fromFloat(float64(x)), nil
	case float64:
		return fromFloat(x), nil
	case []Argument:
		return Array(x), nil
	case []any:
		arr := make(Array, 0, len(x))
		for i, e := range x {
			arg, err := FromValue(e)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			arr = append(arr, arg)
		}
		return arr, nil
	case []string:
		arr := make(Array, 0, len(x))
		for _, e := range x {
			arr = append(arr, String(e))
		}
		return arr, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedArgumentType, v)
	}
}

func fromInteger(n int64) (Argument, error) {
	if n < math.MinInt32 || n > math.MaxInt32 {
		return Float(n), nil
	}
	return Int(n), nil
}

func fromUnsigned(n uint64) (Argument, error) {
	if n > math.MaxInt32 {
		return Float(n), nil
	}
	return Int(n), nil
}

func fromFloat(f float64) Argument {
	if n, ok := integral(f); ok {
		return Int(n)
	}
	return Float(f)
}

// integral 数值是否可无损表示为 int32
func integral(f float64) (int32, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt32 || f > math.MaxInt32 {
		return 0, false
	}
	return int32(f), true
}
