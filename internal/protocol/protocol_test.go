package protocol

import (
	"math"
	"testing"
)

func TestDecodeReqSetEnginePowerRoundTrip(t *testing.T) {
	power := int8(-10)
	body := []byte{byte(power)}
	got, err := DecodeReqSetEnginePower(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.EnginePower != -10 {
		t.Fatalf("EnginePower = %v, want -10", got.EnginePower)
	}
}

func TestDecodeReqSetEnginePowerWrongSize(t *testing.T) {
	if _, err := DecodeReqSetEnginePower([]byte{1, 2}); err == nil {
		t.Fatal("expected error for oversized body")
	}
}

func TestDecodeReqTurnRoundTrip(t *testing.T) {
	encoded := EncodeHeading(math.Pi / 3) // reuse the float64 encoder via a response helper
	// res_get_heading is [id, float64]; strip the id byte to get a raw encoded double.
	got, err := DecodeReqTurn(encoded[1:])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if math.Abs(got.TurnAngle-math.Pi/3) > 1e-12 {
		t.Fatalf("TurnAngle round trip = %v, want pi/3", got.TurnAngle)
	}
}

func TestDecodeReqLookAtRoundTrip(t *testing.T) {
	var buf []byte
	for _, v := range []float64{0.5, -0.5, 1.0} {
		b := EncodeHeading(v) // [id, 8 bytes]
		buf = append(buf, b[1:]...)
	}
	got, err := DecodeReqLookAt(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.X != 0.5 || got.Y != -0.5 || got.Z != 1.0 {
		t.Fatalf("DecodeReqLookAt = %+v", got)
	}
}

func TestEncodeHPShape(t *testing.T) {
	reply := EncodeHP(42)
	if len(reply) != 2 || reply[0] != byte(ReqGetHP) || reply[1] != 42 {
		t.Fatalf("EncodeHP = %v", reply)
	}
}

func TestEncodeViewerMapLayout(t *testing.T) {
	heights := make([]float64, 16)
	for i := range heights {
		heights[i] = 2.5
	}
	reply := EncodeViewerMap(4, 16, heights)
	if reply[0] != byte(ReqViewerGetMap) {
		t.Fatalf("wrong id byte")
	}
	size := byteOrder.Uint64(reply[1:9])
	if size != 4 {
		t.Fatalf("encoded size = %v, want 4", size)
	}
	tileSize := byteOrder.Uint64(reply[9:17])
	if tileSize != 16 {
		t.Fatalf("encoded tile size = %v, want 16", tileSize)
	}
	if len(reply) != 1+8+8+16*8 {
		t.Fatalf("reply length = %d, want %d", len(reply), 1+8+8+16*8)
	}
	first := decodeFloat64(reply[17:25])
	if first != 2.5 {
		t.Fatalf("first height = %v, want 2.5", first)
	}
}

func TestEncodeLocalMapFullWindow(t *testing.T) {
	var window [ObservingRange][ObservingRange]float64
	window[0][0] = 1
	window[ObservingRange-1][ObservingRange-1] = 2
	reply := EncodeLocalMap(window)
	wantLen := 1 + ObservingRange*ObservingRange*8
	if len(reply) != wantLen {
		t.Fatalf("local map reply length = %d, want %d", len(reply), wantLen)
	}
}

func TestEncodeErrorReplyIsSingleByte(t *testing.T) {
	reply := EncodeErrorReply(ResWait)
	if len(reply) != 1 || reply[0] != byte(ResWait) {
		t.Fatalf("EncodeErrorReply = %v", reply)
	}
}
