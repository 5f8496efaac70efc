package ams

// AMS/ADS frame handling

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ADS command IDs
const (
	CommandInvalid      uint16 = 0x0000
	CommandDeviceInfo   uint16 = 0x0001
	CommandRead         uint16 = 0x0002
	CommandWrite        uint16 = 0x0003
	CommandReadState    uint16 = 0x0004
	CommandWriteControl uint16 = 0x0005
	CommandReadWrite    uint16 = 0x0009
)

// State flag bits
const (
	StateFlagResponse uint16 = 0x0001
	StateFlagADSCmd   uint16 = 0x0004
)

// Index groups used by ReadWrite sub-dispatch
const (
	IndexGroupGetHandleByName uint32 = 0xF003
	IndexGroupValueByHandle   uint32 = 0xF005
	IndexGroupReleaseHandle   uint32 = 0xF006
)

// ADS result codes
const (
	ResultOK             uint32 = 0x0000
	ResultSymbolNotFound uint32 = 0x0710
)

// ADS device states
const (
	StateRun uint16 = 5
)

// HeaderSize is the fixed AMS header length in bytes.
const HeaderSize = 32

// DefaultPort is the standard AMS TCP port (0xBF02).
const DefaultPort = 48898

// NetID is a 6-byte AMS network identifier.
type NetID [6]byte

// ErrTruncated reports a buffer shorter than the fixed AMS header.
// Callers drop the buffer and send no reply.
var ErrTruncated = errors.New("ams: frame shorter than header")

// Frame represents one AMS message: the fixed 32-byte header plus payload.
type Frame struct {
	TargetNetID NetID
	TargetPort  uint16
	SourceNetID NetID
	SourcePort  uint16
	CommandID   uint16
	StateFlags  uint16
	Length      uint32
	ErrorCode   uint32
	InvokeID    uint32
	Payload     []byte
}

// DecodeFrame decodes an AMS frame from raw bytes.
//
// All bytes past the fixed header are kept as payload; the header's
// declared length is not used to truncate, since some request encodings
// rely on command-specific payload shapes instead.
func DecodeFrame(data []byte) (Frame, error) {
	if len(data) < HeaderSize {
		return Frame{}, fmt.Errorf("%w: %d bytes (minimum %d)", ErrTruncated, len(data), HeaderSize)
	}

	var f Frame

	copy(f.TargetNetID[:], data[0:6])
	f.TargetPort = binary.LittleEndian.Uint16(data[6:8])
	copy(f.SourceNetID[:], data[8:14])
	f.SourcePort = binary.LittleEndian.Uint16(data[14:16])
	f.CommandID = binary.LittleEndian.Uint16(data[16:18])
	f.StateFlags = binary.LittleEndian.Uint16(data[18:20])
	f.Length = binary.LittleEndian.Uint32(data[20:24])
	f.ErrorCode = binary.LittleEndian.Uint32(data[24:28])
	f.InvokeID = binary.LittleEndian.Uint32(data[28:32])

	if len(data) > HeaderSize {
		f.Payload = data[HeaderSize:]
	}

	return f, nil
}

// EncodeFrame encodes an AMS frame to raw bytes. The length field is
// always written from the actual payload length.
func EncodeFrame(f Frame) []byte {
	header := make([]byte, HeaderSize)

	copy(header[0:6], f.TargetNetID[:])
	binary.LittleEndian.PutUint16(header[6:8], f.TargetPort)
	copy(header[8:14], f.SourceNetID[:])
	binary.LittleEndian.PutUint16(header[14:16], f.SourcePort)
	binary.LittleEndian.PutUint16(header[16:18], f.CommandID)
	binary.LittleEndian.PutUint16(header[18:20], f.StateFlags)
	binary.LittleEndian.PutUint32(header[20:24], uint32(len(f.Payload)))
	binary.LittleEndian.PutUint32(header[24:28], f.ErrorCode)
	binary.LittleEndian.PutUint32(header[28:32], f.InvokeID)

	return append(header, f.Payload...)
}

// DeclaredLength returns the payload length declared by a header that is
// known to contain at least HeaderSize bytes.
func DeclaredLength(data []byte) uint32 {
	return binary.LittleEndian.Uint32(data[20:24])
}

// BuildResponse constructs a reply frame for a request: endpoints swapped,
// invoke ID echoed, response bit set, length taken from the payload.
func BuildResponse(req Frame, errorCode uint32, payload []byte) Frame {
	return Frame{
		TargetNetID: req.SourceNetID,
		TargetPort:  req.SourcePort,
		SourceNetID: req.TargetNetID,
		SourcePort:  req.TargetPort,
		CommandID:   req.CommandID,
		StateFlags:  req.StateFlags | StateFlagResponse,
		Length:      uint32(len(payload)),
		ErrorCode:   errorCode,
		InvokeID:    req.InvokeID,
		Payload:     payload,
	}
}

// CommandName returns a human-readable name for an ADS command ID.
func CommandName(cmd uint16) string {
	switch cmd {
	case CommandDeviceInfo:
		return "ReadDeviceInfo"
	case CommandRead:
		return "Read"
	case CommandWrite:
		return "Write"
	case CommandReadState:
		return "ReadState"
	case CommandWriteControl:
		return "WriteControl"
	case CommandReadWrite:
		return "ReadWrite"
	default:
		return fmt.Sprintf("Unknown(0x%04X)", cmd)
	}
}
