package lbeast

// LBEAST 链路层帧格式常量
// 格式（多字节数值一律大端）：
//
//	None:      0xAA | type(1) | channel(1) | len(1) | payload[len] | crc8(1)
//	HMAC:      0xAA | type(1) | channel(1) | len(1) | payload[len] | hmac(8)
//	Encrypted: 0xAA | iv(4) | AES-CTR(type|channel|len|payload) | hmac(8)
const (
	// FrameMagic 帧起始字节
	FrameMagic = 0xAA

	// MaxPayloadSize 单帧载荷上限（受限RAM下的单数据报预算）
	MaxPayloadSize = 255

	// HeaderSize magic + type + channel + len
	HeaderSize = 4

	// IVSize Encrypted 帧明文前导 IV 长度
	IVSize = 4

	// TagSize HMAC-SHA1 截断后的认证标签长度
	TagSize = 8

	// CRCSize None 帧校验字节长度
	CRCSize = 1

	// minEncryptedSize magic + iv + 密文头(type|channel|len) + tag
	minEncryptedSize = 1 + IVSize + 3 + TagSize
)

// SecurityLevel 帧安全级别
type SecurityLevel uint8

const (
	// SecurityNone 仅 CRC8，抗比特错误，不抗篡改
	SecurityNone SecurityLevel = iota
	// SecurityHMAC 认证不加密
	SecurityHMAC
	// SecurityEncrypted 加密后认证（encrypt-then-MAC）
	SecurityEncrypted
)

// String 返回级别名称（配置与日志用）
func (l SecurityLevel) String() string {
	switch l {
	case SecurityNone:
		return "none"
	case SecurityHMAC:
		return "hmac"
	case SecurityEncrypted:
		return "encrypted"
	default:
		return "unknown"
	}
}

// ValueType 载荷类型枚举。线缆编号固定，不得改动（固件兼容）
type ValueType uint8

const (
	TypeBool   ValueType = 0
	TypeInt32  ValueType = 1
	TypeFloat  ValueType = 2
	TypeString ValueType = 3
	TypeBytes  ValueType = 4
	TypeStruct ValueType = 5
)

// Valid 判断类型编号是否在枚举范围内
func (t ValueType) Valid() bool { return t <= TypeStruct }

// String 返回类型名称
func (t ValueType) String() string {
	switch t {
	case TypeBool:
		return "bool"
	case TypeInt32:
		return "int32"
	case TypeFloat:
		return "float"
	case TypeString:
		return "string"
	case TypeBytes:
		return "bytes"
	case TypeStruct:
		return "struct"
	default:
		return "unknown"
	}
}

// Value 通道上传输的类型化值。Type 决定哪个字段有效；
// Bytes 同时承载 TypeBytes 与 TypeStruct（Struct 为带外约定的定长记录原始拷贝）
type Value struct {
	Type  ValueType
	Bool  bool
	Int32 int32
	Float float32
	Str   string
	Bytes []byte
}

// BoolValue 构造 Bool 值
func BoolValue(b bool) Value { return Value{Type: TypeBool, Bool: b} }

// Int32Value 构造 Int32 值
func Int32Value(i int32) Value { return Value{Type: TypeInt32, Int32: i} }

// FloatValue 构造 Float 值
func FloatValue(f float32) Value { return Value{Type: TypeFloat, Float: f} }

// StringValue 构造 String 值
func StringValue(s string) Value { return Value{Type: TypeString, Str: s} }

// BytesValue 构造 Bytes 值
func BytesValue(b []byte) Value { return Value{Type: TypeBytes, Bytes: b} }

// StructValue 构造 Struct 值（定长记录原始字节）
func StructValue(b []byte) Value { return Value{Type: TypeStruct, Bytes: b} }

// Decoded 一帧解码结果
type Decoded struct {
	Channel uint8
	Value   Value

	// Counter Encrypted 帧携带的 IV 计数（重放保护输入）
	Counter    uint32
	HasCounter bool

	// Tag HMAC/Encrypted 帧的截断认证标签（HMAC 级别去重输入）
	Tag    [TagSize]byte
	HasTag bool
}
