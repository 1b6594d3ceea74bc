package lbeast

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
)

// Debug 模式：换行分隔的 UTF-8 JSON 对象，便于人工抓线排障。
// 无条件绕过所有安全机制——与非 None 级别同时配置属于安全降级，
// 上层必须持续告警（见 link.Endpoint）

// debugMessage Debug 帧 JSON 结构
type debugMessage struct {
	Channel int         `json:"channel"`
	Type    string      `json:"type"`
	Value   interface{} `json:"value"`
}

// debugTypeName 类型枚举到 JSON type 字段的映射
func debugTypeName(t ValueType) string {
	switch t {
	case TypeBool:
		return "b"
	case TypeInt32:
		return "i"
	case TypeFloat:
		return "f"
	case TypeString:
		return "s"
	default:
		// Struct 无自描述 schema，降级为 bytes 传输
		return "bytes"
	}
}

// EncodeDebug 编码一条 Debug JSON 帧（含结尾换行符）
func EncodeDebug(channel uint8, v Value) ([]byte, error) {
	msg := debugMessage{Channel: int(channel), Type: debugTypeName(v.Type)}
	switch v.Type {
	case TypeBool:
		msg.Value = v.Bool
	case TypeInt32:
		msg.Value = v.Int32
	case TypeFloat:
		msg.Value = v.Float
	case TypeString:
		msg.Value = v.Str
	case TypeBytes, TypeStruct:
		msg.Value = base64.StdEncoding.EncodeToString(v.Bytes)
	default:
		return nil, ErrUnknownType
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode debug frame: %w", err)
	}
	return append(b, '\n'), nil
}

// DecodeDebug 解析一行 Debug JSON 帧
func DecodeDebug(line []byte) (*Decoded, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, ErrMalformedFrame
	}
	var msg struct {
		Channel int             `json:"channel"`
		Type    string          `json:"type"`
		Value   json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(line, &msg); err != nil {
		return nil, ErrMalformedFrame
	}
	if msg.Channel < 0 || msg.Channel > 255 {
		return nil, ErrMalformedFrame
	}

	var v Value
	switch msg.Type {
	case "b":
		var b bool
		if err := json.Unmarshal(msg.Value, &b); err != nil {
			return nil, ErrMalformedFrame
		}
		v = BoolValue(b)
	case "i":
		var n int64
		if err := json.Unmarshal(msg.Value, &n); err != nil {
			return nil, ErrMalformedFrame
		}
		if n < math.MinInt32 || n > math.MaxInt32 {
			return nil, ErrMalformedFrame
		}
		v = Int32Value(int32(n))
	case "f":
		var f float64
		if err := json.Unmarshal(msg.Value, &f); err != nil {
			return nil, ErrMalformedFrame
		}
		v = FloatValue(float32(f))
	case "s":
		var s string
		if err := json.Unmarshal(msg.Value, &s); err != nil {
			return nil, ErrMalformedFrame
		}
		if len(s) > MaxPayloadSize {
			return nil, ErrOversizePayload
		}
		v = StringValue(s)
	case "bytes":
		var s string
		if err := json.Unmarshal(msg.Value, &s); err != nil {
			return nil, ErrMalformedFrame
		}
		raw, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, ErrMalformedFrame
		}
		if len(raw) > MaxPayloadSize {
			return nil, ErrOversizePayload
		}
		v = BytesValue(raw)
	default:
		return nil, ErrUnknownType
	}

	return &Decoded{Channel: uint8(msg.Channel), Value: v}, nil
}
