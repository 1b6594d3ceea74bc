package lbeast

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"math/rand"
	"strings"
	"testing"
)

const testSecret = "VenueSecret_2025"

// valueEqual 按类型比较两个值
func valueEqual(a, b Value) bool {
	if a.Type != b.Type {
		return false
	}
	switch a.Type {
	case TypeBool:
		return a.Bool == b.Bool
	case TypeInt32:
		return a.Int32 == b.Int32
	case TypeFloat:
		return math.Float32bits(a.Float) == math.Float32bits(b.Float)
	case TypeString:
		return a.Str == b.Str
	default:
		return bytes.Equal(a.Bytes, b.Bytes)
	}
}

func TestCodecRoundTrip(t *testing.T) {
	values := []struct {
		name string
		v    Value
	}{
		{"Bool真", BoolValue(true)},
		{"Bool假", BoolValue(false)},
		{"Int32正数", Int32Value(42)},
		{"Int32负数", Int32Value(-13)},
		{"Int32边界", Int32Value(math.MinInt32)},
		{"Float常规", FloatValue(0.8)},
		{"Float负零", FloatValue(float32(math.Copysign(0, -1)))},
		{"String中文", StringValue("倾斜平台就绪")},
		{"String空串", StringValue("")},
		{"Bytes", BytesValue([]byte{0x00, 0xAA, 0xFF})},
		{"Struct定长记录", StructValue(TiltState{Pitch: 1.5, Roll: -0.25}.Encode())},
	}
	levels := []SecurityLevel{SecurityNone, SecurityHMAC, SecurityEncrypted}

	for _, level := range levels {
		t.Run(level.String(), func(t *testing.T) {
			enc, err := NewCodec(level, testSecret)
			if err != nil {
				t.Fatalf("NewCodec: %v", err)
			}
			// 独立的解码端：仅共享密钥串，不共享任何内存状态
			dec, err := NewCodec(level, testSecret)
			if err != nil {
				t.Fatalf("NewCodec: %v", err)
			}

			for _, tt := range values {
				t.Run(tt.name, func(t *testing.T) {
					frame, err := enc.Encode(7, tt.v)
					if err != nil {
						t.Fatalf("Encode: %v", err)
					}
					d, err := dec.Decode(frame)
					if err != nil {
						t.Fatalf("Decode: %v", err)
					}
					if d.Channel != 7 {
						t.Errorf("channel = %d, want 7", d.Channel)
					}
					if !valueEqual(d.Value, tt.v) {
						t.Errorf("value = %+v, want %+v", d.Value, tt.v)
					}
					if level == SecurityEncrypted && !d.HasCounter {
						t.Error("encrypted frame must carry an IV counter")
					}
					if level != SecurityNone && !d.HasTag {
						t.Error("authenticated frame must carry a tag")
					}
				})
			}
		})
	}
}

func TestCodecNoneFrameLayout(t *testing.T) {
	codec, _ := NewCodec(SecurityNone, "")

	t.Run("Bool真帧逐字节", func(t *testing.T) {
		frame, err := codec.Encode(0, BoolValue(true))
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		body := []byte{FrameMagic, 0x00, 0x00, 0x01, 0x01}
		want := append(body, CRC8(body))
		if !bytes.Equal(frame, want) {
			t.Fatalf("frame = % X, want % X", frame, want)
		}
	})

	t.Run("破坏校验字节", func(t *testing.T) {
		frame, _ := codec.Encode(0, BoolValue(true))
		frame[len(frame)-1] ^= 0xFF
		if _, err := codec.Decode(frame); !errors.Is(err, ErrChecksumMismatch) {
			t.Fatalf("Decode = %v, want ErrChecksumMismatch", err)
		}
	})

	t.Run("错误的magic", func(t *testing.T) {
		frame, _ := codec.Encode(0, BoolValue(true))
		frame[0] = 0x55
		if _, err := codec.Decode(frame); !errors.Is(err, ErrMalformedFrame) {
			t.Fatalf("Decode = %v, want ErrMalformedFrame", err)
		}
	})

	t.Run("截断帧", func(t *testing.T) {
		frame, _ := codec.Encode(0, Int32Value(1))
		if _, err := codec.Decode(frame[:3]); !errors.Is(err, ErrMalformedFrame) {
			t.Fatalf("Decode = %v, want ErrMalformedFrame", err)
		}
	})

	t.Run("未知类型编号", func(t *testing.T) {
		body := []byte{FrameMagic, 0x09, 0x00, 0x01, 0x01}
		frame := append(body, CRC8(body))
		if _, err := codec.Decode(frame); !errors.Is(err, ErrUnknownType) {
			t.Fatalf("Decode = %v, want ErrUnknownType", err)
		}
	})

	t.Run("Bool载荷越界值", func(t *testing.T) {
		body := []byte{FrameMagic, 0x00, 0x00, 0x01, 0x02}
		frame := append(body, CRC8(body))
		if _, err := codec.Decode(frame); !errors.Is(err, ErrMalformedFrame) {
			t.Fatalf("Decode = %v, want ErrMalformedFrame", err)
		}
	})
}

func TestCodecPayloadBudget(t *testing.T) {
	for _, level := range []SecurityLevel{SecurityNone, SecurityHMAC, SecurityEncrypted} {
		t.Run(level.String(), func(t *testing.T) {
			codec, _ := NewCodec(level, testSecret)

			t.Run("255字节恰好通过", func(t *testing.T) {
				s := strings.Repeat("x", MaxPayloadSize)
				frame, err := codec.Encode(1, StringValue(s))
				if err != nil {
					t.Fatalf("Encode: %v", err)
				}
				d, err := codec.Decode(frame)
				if err != nil {
					t.Fatalf("Decode: %v", err)
				}
				if d.Value.Str != s {
					t.Error("255-byte string must survive the round trip")
				}
			})

			t.Run("256字节发送前拒绝", func(t *testing.T) {
				s := strings.Repeat("x", MaxPayloadSize+1)
				if _, err := codec.Encode(1, StringValue(s)); !errors.Is(err, ErrOversizePayload) {
					t.Fatalf("Encode = %v, want ErrOversizePayload", err)
				}
			})

			t.Run("256字节Bytes同样拒绝", func(t *testing.T) {
				b := make([]byte, MaxPayloadSize+1)
				if _, err := codec.Encode(1, BytesValue(b)); !errors.Is(err, ErrOversizePayload) {
					t.Fatalf("Encode = %v, want ErrOversizePayload", err)
				}
			})
		})
	}
}

func TestCodecEncryptedScenario(t *testing.T) {
	// 典型现场配置：共享密钥串 + Encrypted 级别 + Float 指令
	enc, err := NewCodec(SecurityEncrypted, testSecret)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	dec, err := NewCodec(SecurityEncrypted, testSecret)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}

	frame, err := enc.Encode(1, FloatValue(0.8))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	t.Run("帧长固定", func(t *testing.T) {
		// magic(1) + iv(4) + ct(3+4) + tag(8)
		if want := 1 + IVSize + 3 + 4 + TagSize; len(frame) != want {
			t.Errorf("frame length = %d, want %d", len(frame), want)
		}
	})

	t.Run("密文不含明文载荷", func(t *testing.T) {
		var plain [4]byte
		binary.BigEndian.PutUint32(plain[:], math.Float32bits(0.8))
		if bytes.Contains(frame, plain[:]) {
			t.Error("plaintext float bytes leaked into the encrypted frame")
		}
	})

	t.Run("对端正确还原", func(t *testing.T) {
		d, err := dec.Decode(frame)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if d.Channel != 1 || d.Value.Type != TypeFloat || d.Value.Float != 0.8 {
			t.Errorf("decoded = %+v, want channel 1 float 0.8", d)
		}
	})

	t.Run("密钥不匹配拒绝", func(t *testing.T) {
		other, _ := NewCodec(SecurityEncrypted, "WrongSecret")
		if _, err := other.Decode(frame); !errors.Is(err, ErrAuthenticationFailed) {
			t.Fatalf("Decode = %v, want ErrAuthenticationFailed", err)
		}
	})
}

func TestCodecIVMonotonic(t *testing.T) {
	enc, _ := NewCodec(SecurityEncrypted, testSecret)
	var prev uint32
	for i := 0; i < 100; i++ {
		frame, err := enc.Encode(0, Int32Value(int32(i)))
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		iv := binary.BigEndian.Uint32(frame[1:5])
		if i > 0 && iv != prev+1 {
			t.Fatalf("iv = %d, want %d: session counter must increase strictly", iv, prev+1)
		}
		prev = iv
	}
}

func TestIVSourceExhaustion(t *testing.T) {
	src := &ivSource{next: ^uint32(0)}
	if _, err := src.Next(); !errors.Is(err, ErrIVExhausted) {
		t.Fatalf("Next = %v, want ErrIVExhausted", err)
	}
	// 耗尽后不允许回绕复用
	if _, err := src.Next(); !errors.Is(err, ErrIVExhausted) {
		t.Fatalf("Next after exhaustion = %v, want ErrIVExhausted", err)
	}
}

func TestCodecTamperResistance(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	t.Run("encrypted随机比特翻转", func(t *testing.T) {
		enc, _ := NewCodec(SecurityEncrypted, testSecret)
		dec, _ := NewCodec(SecurityEncrypted, testSecret)
		frame, err := enc.Encode(3, StringValue("fire-solenoid"))
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}

		for trial := 0; trial < 200; trial++ {
			mut := append([]byte(nil), frame...)
			pos := rng.Intn(len(mut))
			mut[pos] ^= 1 << uint(rng.Intn(8))

			_, err := dec.Decode(mut)
			if err == nil {
				t.Fatalf("trial %d: bit flip at %d accepted", trial, pos)
			}
			// magic 之外的任何比特翻转都必须归入认证失败，不泄露失败阶段
			if pos > 0 && !errors.Is(err, ErrAuthenticationFailed) {
				t.Fatalf("trial %d: flip at %d gave %v, want ErrAuthenticationFailed", trial, pos, err)
			}
		}
	})

	t.Run("hmac随机比特翻转", func(t *testing.T) {
		enc, _ := NewCodec(SecurityHMAC, testSecret)
		dec, _ := NewCodec(SecurityHMAC, testSecret)
		frame, err := enc.Encode(3, BytesValue([]byte{1, 2, 3, 4, 5, 6, 7, 8}))
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}

		for trial := 0; trial < 200; trial++ {
			mut := append([]byte(nil), frame...)
			pos := rng.Intn(len(mut))
			mut[pos] ^= 1 << uint(rng.Intn(8))
			if _, err := dec.Decode(mut); err == nil {
				t.Fatalf("trial %d: bit flip at %d accepted", trial, pos)
			}
		}
	})

	t.Run("标签整体替换", func(t *testing.T) {
		enc, _ := NewCodec(SecurityHMAC, testSecret)
		frame, _ := enc.Encode(0, BoolValue(true))
		for i := len(frame) - TagSize; i < len(frame); i++ {
			frame[i] = 0
		}
		if _, err := enc.Decode(frame); !errors.Is(err, ErrAuthenticationFailed) {
			t.Fatalf("Decode = %v, want ErrAuthenticationFailed", err)
		}
	})
}

func TestCodecLevelIsolation(t *testing.T) {
	t.Run("None帧不被HMAC解码器接受", func(t *testing.T) {
		plain, _ := NewCodec(SecurityNone, "")
		auth, _ := NewCodec(SecurityHMAC, testSecret)
		frame, _ := plain.Encode(0, Int32Value(7))
		if _, err := auth.Decode(frame); err == nil {
			t.Fatal("unauthenticated frame must not pass an HMAC decoder")
		}
	})

	t.Run("HMAC帧不被Encrypted解码器接受", func(t *testing.T) {
		auth, _ := NewCodec(SecurityHMAC, testSecret)
		sealed, _ := NewCodec(SecurityEncrypted, testSecret)
		frame, _ := auth.Encode(0, Int32Value(7))
		if _, err := sealed.Decode(frame); err == nil {
			t.Fatal("HMAC frame must not pass an encrypted decoder")
		}
	})
}
