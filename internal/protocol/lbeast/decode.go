package lbeast

import (
	"encoding/binary"
	"math"
	"unicode/utf8"
)

// decodePayload 按声明类型解析载荷字节。
// 长度不符视为坏帧；攻击者可控输入一律返回错误，不 panic
func decodePayload(t ValueType, payload []byte) (Value, error) {
	switch t {
	case TypeBool:
		if len(payload) != 1 || payload[0] > 1 {
			return Value{}, ErrMalformedFrame
		}
		return BoolValue(payload[0] == 1), nil
	case TypeInt32:
		if len(payload) != 4 {
			return Value{}, ErrMalformedFrame
		}
		return Int32Value(int32(binary.BigEndian.Uint32(payload))), nil
	case TypeFloat:
		if len(payload) != 4 {
			return Value{}, ErrMalformedFrame
		}
		return FloatValue(math.Float32frombits(binary.BigEndian.Uint32(payload))), nil
	case TypeString:
		if !utf8.Valid(payload) {
			return Value{}, ErrMalformedFrame
		}
		return StringValue(string(payload)), nil
	case TypeBytes:
		return BytesValue(append([]byte(nil), payload...)), nil
	case TypeStruct:
		return StructValue(append([]byte(nil), payload...)), nil
	default:
		return Value{}, ErrUnknownType
	}
}

// Decode 解码一个完整帧（数据报即一帧）。
// 返回错误分类：ErrMalformedFrame / ErrChecksumMismatch /
// ErrAuthenticationFailed / ErrUnknownType
func (c *Codec) Decode(frame []byte) (*Decoded, error) {
	if len(frame) < 2 || frame[0] != FrameMagic {
		return nil, ErrMalformedFrame
	}

	switch c.ctx.Level {
	case SecurityNone:
		return c.decodePlain(frame)
	case SecurityHMAC:
		return c.decodeHMAC(frame)
	case SecurityEncrypted:
		return c.decodeEncrypted(frame)
	default:
		return nil, ErrMalformedFrame
	}
}

func (c *Codec) decodePlain(frame []byte) (*Decoded, error) {
	if len(frame) < HeaderSize+CRCSize {
		return nil, ErrMalformedFrame
	}
	n := int(frame[3])
	if len(frame) != HeaderSize+n+CRCSize {
		return nil, ErrMalformedFrame
	}
	if err := VerifyCRC8(frame); err != nil {
		return nil, err
	}
	return buildDecoded(frame[1], frame[2], frame[HeaderSize:HeaderSize+n], nil)
}

func (c *Codec) decodeHMAC(frame []byte) (*Decoded, error) {
	if len(frame) < HeaderSize+TagSize {
		return nil, ErrMalformedFrame
	}
	n := int(frame[3])
	if len(frame) != HeaderSize+n+TagSize {
		return nil, ErrMalformedFrame
	}
	body := frame[:HeaderSize+n]
	tag := frame[HeaderSize+n:]
	if !verifyTag(c.ctx.HMACKey[:], body, tag) {
		return nil, ErrAuthenticationFailed
	}
	d, err := buildDecoded(frame[1], frame[2], frame[HeaderSize:HeaderSize+n], tag)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (c *Codec) decodeEncrypted(frame []byte) (*Decoded, error) {
	if len(frame) < minEncryptedSize {
		return nil, ErrMalformedFrame
	}
	iv := binary.BigEndian.Uint32(frame[1:5])
	ct := frame[1+IVSize : len(frame)-TagSize]
	tag := frame[len(frame)-TagSize:]

	// 先验签后解密；标签覆盖 IV+密文
	if !verifyTag(c.ctx.HMACKey[:], frame[1:len(frame)-TagSize], tag) {
		return nil, ErrAuthenticationFailed
	}
	plain, err := ctrXOR(c.ctx.AESKey[:], iv, ct)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	// 解密后长度字段与实际载荷不符，与 MAC 失败合并上报
	if len(plain) < 3 || int(plain[2]) != len(plain)-3 {
		return nil, ErrAuthenticationFailed
	}

	d, err := buildDecoded(plain[0], plain[1], plain[3:], tag)
	if err != nil {
		return nil, err
	}
	d.Counter = iv
	d.HasCounter = true
	return d, nil
}

func buildDecoded(typ, channel byte, payload []byte, tag []byte) (*Decoded, error) {
	t := ValueType(typ)
	if !t.Valid() {
		return nil, ErrUnknownType
	}
	v, err := decodePayload(t, payload)
	if err != nil {
		return nil, err
	}
	d := &Decoded{Channel: channel, Value: v}
	if tag != nil {
		copy(d.Tag[:], tag)
		d.HasTag = true
	}
	return d, nil
}

// frameLen 返回以 buf 开头的候选帧总长；不足以判定时返回 0。
// Encrypted 变体的长度字段在密文内：密钥流只依赖 IV，
// 先就地解出头部 3 字节即可得知总长
func (c *Codec) frameLen(buf []byte) (int, error) {
	switch c.ctx.Level {
	case SecurityNone:
		if len(buf) < HeaderSize {
			return 0, nil
		}
		return HeaderSize + int(buf[3]) + CRCSize, nil
	case SecurityHMAC:
		if len(buf) < HeaderSize {
			return 0, nil
		}
		return HeaderSize + int(buf[3]) + TagSize, nil
	case SecurityEncrypted:
		if len(buf) < 1+IVSize+3 {
			return 0, nil
		}
		iv := binary.BigEndian.Uint32(buf[1:5])
		hdr, err := ctrXOR(c.ctx.AESKey[:], iv, buf[5:8])
		if err != nil {
			return 0, err
		}
		return 1 + IVSize + 3 + int(hdr[2]) + TagSize, nil
	default:
		return 0, ErrMalformedFrame
	}
}

// StreamDecoder 字节流切帧器（串口/蓝牙 RFCOMM 等流式传输用）。
// 按 magic 重同步：帧头错位逐字节滑动，完整候选帧解码失败则整帧丢弃。
// 丢弃原因经 onDrop 上报（指标/日志），不中断流
type StreamDecoder struct {
	codec  *Codec
	buf    []byte
	onDrop func(error)
}

// NewStreamDecoder 构造切帧器。onDrop 可为 nil
func NewStreamDecoder(codec *Codec, onDrop func(error)) *StreamDecoder {
	return &StreamDecoder{codec: codec, onDrop: onDrop}
}

// Feed 投喂原始字节，返回切出的完整解码帧
func (d *StreamDecoder) Feed(p []byte) []*Decoded {
	d.buf = append(d.buf, p...)
	var out []*Decoded
	for {
		// 丢弃 magic 之前的噪声
		for len(d.buf) > 0 && d.buf[0] != FrameMagic {
			d.buf = d.buf[1:]
		}
		if len(d.buf) == 0 {
			return out
		}

		total, err := d.codec.frameLen(d.buf)
		if err != nil {
			d.drop(err)
			d.buf = d.buf[1:]
			continue
		}
		if total == 0 || len(d.buf) < total {
			return out // 等待更多字节
		}

		dec, err := d.codec.Decode(d.buf[:total])
		d.buf = d.buf[total:]
		if err != nil {
			d.drop(err)
			continue
		}
		out = append(out, dec)
	}
}

func (d *StreamDecoder) drop(err error) {
	if d.onDrop != nil {
		d.onDrop(err)
	}
}
