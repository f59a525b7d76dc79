// Package protocol defines the wire format of the tank-combat UDP protocol:
// packet ids, fixed little-endian body layouts, and the encode/decode
// helpers built on encoding/binary that every packet type shares.
package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// ID identifies a datagram's purpose; it is always the first byte of the
// datagram.
type ID byte

// Requests (client/viewer -> server).
const (
	ReqHello       ID = 0x00
	ReqBye         ID = 0x01
	ReqViewerHello ID = 0x03
	ReqViewerBye   ID = 0x04

	ReqSetEnginePower ID = 0x10
	ReqTurn           ID = 0x11
	ReqLookAt         ID = 0x12
	ReqShoot          ID = 0x13

	ReqGetHeading    ID = 0x20
	ReqGetSpeed      ID = 0x21
	ReqGetHP         ID = 0x22
	ReqGetStatistics ID = 0x23

	ReqGetMap    ID = 0x30
	ReqGetNormal ID = 0x31
	ReqGetTanks  ID = 0x32

	ReqViewerGetMap   ID = 0x40
	ReqViewerGetTanks ID = 0x41
)

// Notifications (server -> client/viewer, pushed by the tick loop).
const (
	NotTankHitBound       ID = 0x80
	NotTankCollision      ID = 0x81
	NotNearShoot          ID = 0x82
	NotDeath              ID = 0x83
	NotWin                ID = 0x84
	NotHit                ID = 0x85
	NotNearExplosion      ID = 0x86
	NotExplosionDamage    ID = 0x87
	NotViewerShoot        ID = 0x88
	NotViewerExplosion    ID = 0x89
)

// Error replies.
const (
	ResBadRequest     ID = 0xf0
	ResTooManyClients ID = 0xf3
	ResWait           ID = 0xf4
	ResWaitShoot      ID = 0xf5
	ResDead           ID = 0xf6
)

// MaxDatagramSize is the largest datagram the dispatcher will accept.
const MaxDatagramSize = 32768

// ObservingRange is the tank-local map/tanks query window, fixed at 32 per
// the corrected reference constant (the conflicting 128 in the original
// source's second header is not used).
const ObservingRange = 32

var byteOrder = binary.LittleEndian

// ReqSetEnginePowerBody is the body of ReqSetEnginePower: int8 engine_power.
type ReqSetEnginePowerBody struct {
	EnginePower int8
}

func DecodeReqSetEnginePower(body []byte) (ReqSetEnginePowerBody, error) {
	if len(body) != 1 {
		return ReqSetEnginePowerBody{}, fmt.Errorf("protocol: set_engine_power body must be 1 byte, got %d", len(body))
	}
	return ReqSetEnginePowerBody{EnginePower: int8(body[0])}, nil
}

// ReqTurnBody is the body of ReqTurn: double turn_angle.
type ReqTurnBody struct {
	TurnAngle float64
}

func DecodeReqTurn(body []byte) (ReqTurnBody, error) {
	if len(body) != 8 {
		return ReqTurnBody{}, fmt.Errorf("protocol: turn body must be 8 bytes, got %d", len(body))
	}
	return ReqTurnBody{TurnAngle: decodeFloat64(body[0:8])}, nil
}

// ReqLookAtBody is the body of ReqLookAt: double x, y, z.
type ReqLookAtBody struct {
	X, Y, Z float64
}

func DecodeReqLookAt(body []byte) (ReqLookAtBody, error) {
	if len(body) != 24 {
		return ReqLookAtBody{}, fmt.Errorf("protocol: look_at body must be 24 bytes, got %d", len(body))
	}
	return ReqLookAtBody{
		X: decodeFloat64(body[0:8]),
		Y: decodeFloat64(body[8:16]),
		Z: decodeFloat64(body[16:24]),
	}, nil
}

// TankRecord is one entry of res_get_tanks / res_viewer_get_tanks.
type TankRecord struct {
	Position, Direction, Orientation Vec3
	Turret, TurretTarget             Vec3
	TurnTarget                       float64
	Speed                            float64
	Team, HP                         uint8
}

// Vec3 is the wire representation of a 3-D coordinate, kept independent of
// vecmath.Vector so this package never imports the simulation's math kernel.
type Vec3 struct{ X, Y, Z float64 }

func encodeFloat64(buf *bytes.Buffer, v float64) {
	var b [8]byte
	byteOrder.PutUint64(b[:], math.Float64bits(v))
	buf.Write(b[:])
}

func decodeFloat64(b []byte) float64 {
	return math.Float64frombits(byteOrder.Uint64(b))
}

func encodeVec3(buf *bytes.Buffer, v Vec3) {
	encodeFloat64(buf, v.X)
	encodeFloat64(buf, v.Y)
	encodeFloat64(buf, v.Z)
}

// EncodeHeading builds the res_get_heading reply.
func EncodeHeading(heading float64) []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(ReqGetHeading))
	encodeFloat64(&buf, heading)
	return buf.Bytes()
}

// EncodeSpeed builds the res_get_speed reply.
func EncodeSpeed(speed float64) []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(ReqGetSpeed))
	encodeFloat64(&buf, speed)
	return buf.Bytes()
}

// EncodeHP builds the res_get_hp reply.
func EncodeHP(hp uint8) []byte {
	return []byte{byte(ReqGetHP), hp}
}

// Statistics mirrors world.Stats for wire encoding without importing world
// (protocol stays independent of the simulation package).
type Statistics struct {
	TicksAlive    uint64
	HP            uint64
	DirectHits    uint64
	Hits          uint64
	GotDirectHits uint64
	GotHits       uint64
}

// EncodeStatistics builds the res_get_statistics reply.
func EncodeStatistics(s Statistics) []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(ReqGetStatistics))
	var b8 [8]byte
	for _, field := range []uint64{s.TicksAlive, s.HP, s.DirectHits, s.Hits, s.GotDirectHits, s.GotHits} {
		byteOrder.PutUint64(b8[:], field)
		buf.Write(b8[:])
	}
	return buf.Bytes()
}

// EncodeNormal builds the res_get_normal reply.
func EncodeNormal(x, y, z float64) []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(ReqGetNormal))
	encodeVec3(&buf, Vec3{x, y, z})
	return buf.Bytes()
}

// EncodeTanks builds a res_get_tanks / res_viewer_get_tanks reply.
func EncodeTanks(id ID, records []TankRecord) []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(id))
	buf.WriteByte(byte(len(records)))
	for _, r := range records {
		encodeVec3(&buf, r.Position)
		encodeVec3(&buf, r.Direction)
		encodeVec3(&buf, r.Orientation)
		encodeVec3(&buf, r.Turret)
		encodeVec3(&buf, r.TurretTarget)
		encodeFloat64(&buf, r.TurnTarget)
		encodeFloat64(&buf, r.Speed)
		buf.WriteByte(r.Team)
		buf.WriteByte(r.HP)
	}
	return buf.Bytes()
}

// EncodeLocalMap builds the res_get_map reply: a fixed ObservingRange^2
// window of doubles centered on the tank's tile, row-major, out-of-range
// cells zeroed. Per design notes, this iterates the full window (the
// original source's index-arithmetic bug produced a near-empty window).
func EncodeLocalMap(window [ObservingRange][ObservingRange]float64) []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(ReqGetMap))
	for row := 0; row < ObservingRange; row++ {
		for col := 0; col < ObservingRange; col++ {
			encodeFloat64(&buf, window[row][col])
		}
	}
	return buf.Bytes()
}

// EncodeViewerMap builds the res_viewer_get_map reply: the full landscape,
// row-major, preceded by its size and tile size.
func EncodeViewerMap(size int, tileSize float64, heights []float64) []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(ReqViewerGetMap))
	var b8 [8]byte
	byteOrder.PutUint64(b8[:], uint64(size))
	buf.Write(b8[:])
	byteOrder.PutUint64(b8[:], uint64(tileSize))
	buf.Write(b8[:])
	for _, h := range heights {
		encodeFloat64(&buf, h)
	}
	return buf.Bytes()
}

// EncodeViewerEvent builds a not_viewer_shoot / not_viewer_explosion
// notification.
func EncodeViewerEvent(id ID, x, y, z float64) []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(id))
	encodeVec3(&buf, Vec3{x, y, z})
	return buf.Bytes()
}

// EncodeErrorReply builds a single-byte error reply.
func EncodeErrorReply(id ID) []byte {
	return []byte{byte(id)}
}

// EncodeEcho builds the single-byte echo reply used by hello/bye handshakes
// and bodyless commands.
func EncodeEcho(id ID) []byte {
	return []byte{byte(id)}
}
