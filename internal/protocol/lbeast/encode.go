package lbeast

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Codec 二进制帧编解码器。一个 Codec 绑定一个会话的安全上下文；
// 编解码本身是同步且有界的（≤255字节载荷封顶最坏加解密时延），无内部挂起点
type Codec struct {
	ctx *SecurityContext
	iv  *ivSource
}

// NewCodec 按安全级别与共享密钥串构造编解码器
func NewCodec(level SecurityLevel, secret string) (*Codec, error) {
	c := &Codec{ctx: NewSecurityContext(secret, level)}
	if level == SecurityEncrypted {
		src, err := newIVSource()
		if err != nil {
			return nil, err
		}
		c.iv = src
	}
	return c, nil
}

// Level 返回编解码器的安全级别
func (c *Codec) Level() SecurityLevel { return c.ctx.Level }

// encodePayload 将类型化值编为载荷字节。数值统一大端，
// 主机与微控制器端序差异不影响互通
func encodePayload(v Value) ([]byte, error) {
	switch v.Type {
	case TypeBool:
		if v.Bool {
			return []byte{0x01}, nil
		}
		return []byte{0x00}, nil
	case TypeInt32:
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, uint32(v.Int32))
		return b, nil
	case TypeFloat:
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, math.Float32bits(v.Float))
		return b, nil
	case TypeString:
		if len(v.Str) > MaxPayloadSize {
			return nil, fmt.Errorf("%w: string %d bytes", ErrOversizePayload, len(v.Str))
		}
		return []byte(v.Str), nil
	case TypeBytes, TypeStruct:
		if len(v.Bytes) > MaxPayloadSize {
			return nil, fmt.Errorf("%w: %d bytes", ErrOversizePayload, len(v.Bytes))
		}
		return v.Bytes, nil
	default:
		return nil, ErrUnknownType
	}
}

// Encode 构造一帧线缆字节。安全级别决定帧变体：
// None 附 CRC8，HMAC 附认证标签，Encrypted 先加密再认证
func (c *Codec) Encode(channel uint8, v Value) ([]byte, error) {
	payload, err := encodePayload(v)
	if err != nil {
		return nil, err
	}

	switch c.ctx.Level {
	case SecurityNone:
		buf := make([]byte, 0, HeaderSize+len(payload)+CRCSize)
		buf = append(buf, FrameMagic, byte(v.Type), channel, byte(len(payload)))
		buf = append(buf, payload...)
		buf = append(buf, CRC8(buf))
		return buf, nil

	case SecurityHMAC:
		buf := make([]byte, 0, HeaderSize+len(payload)+TagSize)
		buf = append(buf, FrameMagic, byte(v.Type), channel, byte(len(payload)))
		buf = append(buf, payload...)
		tag := computeTag(c.ctx.HMACKey[:], buf)
		buf = append(buf, tag[:]...)
		return buf, nil

	case SecurityEncrypted:
		iv, err := c.iv.Next()
		if err != nil {
			return nil, err
		}
		plain := make([]byte, 0, 3+len(payload))
		plain = append(plain, byte(v.Type), channel, byte(len(payload)))
		plain = append(plain, payload...)
		ct, err := ctrXOR(c.ctx.AESKey[:], iv, plain)
		if err != nil {
			return nil, err
		}

		buf := make([]byte, 0, 1+IVSize+len(ct)+TagSize)
		buf = append(buf, FrameMagic)
		buf = binary.BigEndian.AppendUint32(buf, iv)
		buf = append(buf, ct...)
		// encrypt-then-MAC：标签覆盖 IV+密文
		tag := computeTag(c.ctx.HMACKey[:], buf[1:])
		buf = append(buf, tag[:]...)
		return buf, nil

	default:
		return nil, fmt.Errorf("unsupported security level %d", c.ctx.Level)
	}
}
