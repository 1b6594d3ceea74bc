package lbeast

import (
	"encoding/binary"
	"math"
)

// 协作方使用的定长结构布局。字段顺序与宽度两端带外约定，
// 线缆上按原始字节拷贝传输（大端），不携带自描述 schema

// 结构载荷字节长度
const (
	TiltStateSize       = 8  // pitch f32 + roll f32
	ScissorLiftSize     = 8  // translationY f32 + translationZ f32
	GunButtonEventsSize = 12 // button0[4] + button1[4] + timestamp u32
	GunTelemetrySize    = 8  // temperature f32 + solenoid u8 + fireState u8 + rounds u16
)

// TiltState 运动平台倾斜姿态
type TiltState struct {
	Pitch float32
	Roll  float32
}

// Encode 编为 8 字节大端记录
func (s TiltState) Encode() []byte {
	b := make([]byte, TiltStateSize)
	binary.BigEndian.PutUint32(b[0:4], math.Float32bits(s.Pitch))
	binary.BigEndian.PutUint32(b[4:8], math.Float32bits(s.Roll))
	return b
}

// DecodeTiltState 从结构载荷解析倾斜姿态
func DecodeTiltState(b []byte) (TiltState, error) {
	if len(b) != TiltStateSize {
		return TiltState{}, ErrMalformedFrame
	}
	return TiltState{
		Pitch: math.Float32frombits(binary.BigEndian.Uint32(b[0:4])),
		Roll:  math.Float32frombits(binary.BigEndian.Uint32(b[4:8])),
	}, nil
}

// ScissorLift 剪式升降平台位移
type ScissorLift struct {
	TranslationY float32
	TranslationZ float32
}

// Encode 编为 8 字节大端记录
func (s ScissorLift) Encode() []byte {
	b := make([]byte, ScissorLiftSize)
	binary.BigEndian.PutUint32(b[0:4], math.Float32bits(s.TranslationY))
	binary.BigEndian.PutUint32(b[4:8], math.Float32bits(s.TranslationZ))
	return b
}

// DecodeScissorLift 从结构载荷解析升降位移
func DecodeScissorLift(b []byte) (ScissorLift, error) {
	if len(b) != ScissorLiftSize {
		return ScissorLift{}, ErrMalformedFrame
	}
	return ScissorLift{
		TranslationY: math.Float32frombits(binary.BigEndian.Uint32(b[0:4])),
		TranslationZ: math.Float32frombits(binary.BigEndian.Uint32(b[4:8])),
	}, nil
}

// GunButtonEvents 道具枪按键事件。Timestamp 为设备侧毫秒时间戳，
// 可直接喂入 ReplayGuard 的时间戳模式
type GunButtonEvents struct {
	Button0   [4]bool
	Button1   [4]bool
	Timestamp uint32
}

// Encode 编为 12 字节记录（bool 每位占 1 字节）
func (e GunButtonEvents) Encode() []byte {
	b := make([]byte, GunButtonEventsSize)
	for i, v := range e.Button0 {
		if v {
			b[i] = 1
		}
	}
	for i, v := range e.Button1 {
		if v {
			b[4+i] = 1
		}
	}
	binary.BigEndian.PutUint32(b[8:12], e.Timestamp)
	return b
}

// DecodeGunButtonEvents 从结构载荷解析按键事件
func DecodeGunButtonEvents(b []byte) (GunButtonEvents, error) {
	if len(b) != GunButtonEventsSize {
		return GunButtonEvents{}, ErrMalformedFrame
	}
	var e GunButtonEvents
	for i := 0; i < 4; i++ {
		e.Button0[i] = b[i] == 1
		e.Button1[i] = b[4+i] == 1
	}
	e.Timestamp = binary.BigEndian.Uint32(b[8:12])
	return e, nil
}

// GunTelemetry 道具枪回传遥测：温度/电磁阀占空比/击发状态/余弹
type GunTelemetry struct {
	Temperature  float32
	SolenoidDuty uint8
	FireState    uint8
	Rounds       uint16
}

// Encode 编为 8 字节大端记录
func (t GunTelemetry) Encode() []byte {
	b := make([]byte, GunTelemetrySize)
	binary.BigEndian.PutUint32(b[0:4], math.Float32bits(t.Temperature))
	b[4] = t.SolenoidDuty
	b[5] = t.FireState
	binary.BigEndian.PutUint16(b[6:8], t.Rounds)
	return b
}

// DecodeGunTelemetry 从结构载荷解析遥测
func DecodeGunTelemetry(b []byte) (GunTelemetry, error) {
	if len(b) != GunTelemetrySize {
		return GunTelemetry{}, ErrMalformedFrame
	}
	return GunTelemetry{
		Temperature:  math.Float32frombits(binary.BigEndian.Uint32(b[0:4])),
		SolenoidDuty: b[4],
		FireState:    b[5],
		Rounds:       binary.BigEndian.Uint16(b[6:8]),
	}, nil
}
