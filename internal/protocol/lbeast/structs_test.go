package lbeast

import (
	"errors"
	"testing"
)

func TestTiltState(t *testing.T) {
	in := TiltState{Pitch: 12.5, Roll: -3.75}
	b := in.Encode()
	if len(b) != TiltStateSize {
		t.Fatalf("encoded %d bytes, want %d", len(b), TiltStateSize)
	}
	out, err := DecodeTiltState(b)
	if err != nil {
		t.Fatalf("DecodeTiltState: %v", err)
	}
	if out != in {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
	if _, err := DecodeTiltState(b[:4]); !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("short record = %v, want ErrMalformedFrame", err)
	}
}

func TestScissorLift(t *testing.T) {
	in := ScissorLift{TranslationY: 0.4, TranslationZ: 1.2}
	out, err := DecodeScissorLift(in.Encode())
	if err != nil {
		t.Fatalf("DecodeScissorLift: %v", err)
	}
	if out != in {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
	if _, err := DecodeScissorLift(nil); !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("empty record = %v, want ErrMalformedFrame", err)
	}
}

func TestGunButtonEvents(t *testing.T) {
	in := GunButtonEvents{
		Button0:   [4]bool{true, false, true, false},
		Button1:   [4]bool{false, false, false, true},
		Timestamp: 123456789,
	}
	b := in.Encode()
	if len(b) != GunButtonEventsSize {
		t.Fatalf("encoded %d bytes, want %d", len(b), GunButtonEventsSize)
	}
	out, err := DecodeGunButtonEvents(b)
	if err != nil {
		t.Fatalf("DecodeGunButtonEvents: %v", err)
	}
	if out != in {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
}

func TestGunTelemetry(t *testing.T) {
	in := GunTelemetry{Temperature: 36.5, SolenoidDuty: 128, FireState: 2, Rounds: 1500}
	out, err := DecodeGunTelemetry(in.Encode())
	if err != nil {
		t.Fatalf("DecodeGunTelemetry: %v", err)
	}
	if out != in {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
	if _, err := DecodeGunTelemetry(make([]byte, 7)); !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("short record = %v, want ErrMalformedFrame", err)
	}
}

func TestStructOverWire(t *testing.T) {
	// 结构记录端到端：编码为 Struct 载荷，经 Encrypted 帧往返后还原
	enc, _ := NewCodec(SecurityEncrypted, testSecret)
	dec, _ := NewCodec(SecurityEncrypted, testSecret)

	in := GunTelemetry{Temperature: 85.0, SolenoidDuty: 200, FireState: 1, Rounds: 12}
	frame, err := enc.Encode(4, StructValue(in.Encode()))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	d, err := dec.Decode(frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if d.Value.Type != TypeStruct {
		t.Fatalf("type = %v, want struct", d.Value.Type)
	}
	out, err := DecodeGunTelemetry(d.Value.Bytes)
	if err != nil {
		t.Fatalf("DecodeGunTelemetry: %v", err)
	}
	if out != in {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
}
