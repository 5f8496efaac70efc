package ads

// ADS command dispatch over AMS frames.

import (
	"encoding/binary"
	"strings"

	"github.com/mfeller/plcmock/internal/ams"
)

// maxFramePayload caps the declared payload length during stream framing.
// A header declaring more than this is treated as garbage.
const maxFramePayload = 1 << 20

// maxReadLength caps the zero-fill buffer a Read or ReadWrite reply will
// allocate for a single request.
const maxReadLength = 1 << 20

// Name returns the protocol personality name.
func (d *Device) Name() string { return "ads" }

// Split extracts complete AMS frames from a read buffer using the
// declared payload length, returning any incomplete tail for the next
// read. AMS carries no magic to resync on, so a header declaring an
// absurd length means the stream is garbage from that point: the rest of
// the buffer is dropped and the connection stays usable for whatever the
// peer sends next.
func (d *Device) Split(buf []byte) ([][]byte, []byte) {
	frames := make([][]byte, 0)
	offset := 0

	for len(buf[offset:]) >= ams.HeaderSize {
		declared := ams.DeclaredLength(buf[offset:])
		if declared > maxFramePayload {
			d.logger.Error("dropping %d buffered bytes: declared payload %d exceeds cap", len(buf)-offset, declared)
			return frames, nil
		}
		total := ams.HeaderSize + int(declared)
		if len(buf[offset:]) < total {
			break
		}
		frames = append(frames, buf[offset:offset+total])
		offset += total
	}

	if offset == 0 {
		return frames, buf
	}
	remaining := make([]byte, len(buf)-offset)
	copy(remaining, buf[offset:])
	return frames, remaining
}

// Handle decodes one AMS frame, dispatches it and encodes the reply.
// Malformed input is dropped silently: the device sends nothing rather
// than erroring back, and the connection stays usable.
func (d *Device) Handle(frame []byte) []byte {
	if d.hexDump {
		d.logger.LogHex("ads rx", frame)
	}

	req, err := ams.DecodeFrame(frame)
	if err != nil {
		d.logger.Debug("drop malformed frame: %v", err)
		return nil
	}

	resp := d.dispatch(req)
	out := ams.EncodeFrame(resp)
	if d.hexDump {
		d.logger.LogHex("ads tx", out)
	}
	return out
}

func (d *Device) dispatch(req ams.Frame) ams.Frame {
	d.logger.Verbose("%s invoke=%d", ams.CommandName(req.CommandID), req.InvokeID)

	var payload []byte

	switch req.CommandID {
	case ams.CommandDeviceInfo:
		payload = d.deviceInfoReply()

	case ams.CommandRead:
		payload = d.readReply(req.Payload)

	case ams.CommandWrite:
		payload = d.writeReply(req.Payload)

	case ams.CommandReadState:
		payload = binary.LittleEndian.AppendUint32(nil, ams.ResultOK)
		payload = binary.LittleEndian.AppendUint16(payload, ams.StateRun)
		payload = binary.LittleEndian.AppendUint16(payload, 0) // device state

	case ams.CommandWriteControl:
		payload = d.writeControlReply(req.Payload)

	case ams.CommandReadWrite:
		payload = d.readWriteReply(req.Payload)

	default:
		// Fake success for protocol compatibility with permissive clients.
		d.logger.Error("unknown ADS command 0x%04X", req.CommandID)
		payload = binary.LittleEndian.AppendUint32(nil, ams.ResultOK)
	}

	return ams.BuildResponse(req, 0, payload)
}

// deviceInfoReply builds Result(4) + Major(1) + Minor(1) + Build(2) +
// Name(16, NUL padded).
func (d *Device) deviceInfoReply() []byte {
	payload := binary.LittleEndian.AppendUint32(nil, ams.ResultOK)
	payload = append(payload, d.identity.versionMajor, d.identity.versionMinor)
	payload = binary.LittleEndian.AppendUint16(payload, d.identity.versionBuild)

	name := make([]byte, 16)
	copy(name, d.identity.deviceName)
	return append(payload, name...)
}

// readReply answers a plain Read with a zero-filled buffer of the
// requested length. The emulator models no per-address backing memory.
func (d *Device) readReply(payload []byte) []byte {
	if len(payload) < 12 {
		d.logger.Error("Read request too short: %d bytes", len(payload))
		return binary.LittleEndian.AppendUint32(nil, ams.ResultOK)
	}

	group := binary.LittleEndian.Uint32(payload[0:4])
	offset := binary.LittleEndian.Uint32(payload[4:8])
	readLen := binary.LittleEndian.Uint32(payload[8:12])
	d.logger.Verbose("Read: group=0x%X offset=0x%X len=%d", group, offset, readLen)

	if readLen > maxReadLength {
		d.logger.Error("Read length %d exceeds cap, clamping", readLen)
		readLen = maxReadLength
	}

	resp := binary.LittleEndian.AppendUint32(nil, ams.ResultOK)
	resp = binary.LittleEndian.AppendUint32(resp, readLen)
	return append(resp, make([]byte, readLen)...)
}

// writeReply accepts any Write unconditionally. Nothing is stored.
func (d *Device) writeReply(payload []byte) []byte {
	if len(payload) >= 12 {
		group := binary.LittleEndian.Uint32(payload[0:4])
		offset := binary.LittleEndian.Uint32(payload[4:8])
		writeLen := binary.LittleEndian.Uint32(payload[8:12])
		d.logger.Verbose("Write: group=0x%X offset=0x%X len=%d", group, offset, writeLen)
	} else {
		d.logger.Error("Write request too short: %d bytes", len(payload))
	}
	return binary.LittleEndian.AppendUint32(nil, ams.ResultOK)
}

// writeControlReply accepts any state transition without persisting it.
func (d *Device) writeControlReply(payload []byte) []byte {
	if len(payload) >= 4 {
		adsState := binary.LittleEndian.Uint16(payload[0:2])
		deviceState := binary.LittleEndian.Uint16(payload[2:4])
		d.logger.Verbose("WriteControl: ads_state=%d device_state=%d", adsState, deviceState)
	} else {
		d.logger.Error("WriteControl request too short: %d bytes", len(payload))
	}
	return binary.LittleEndian.AppendUint32(nil, ams.ResultOK)
}

// readWriteReply sub-dispatches on the index group. The reserved
// get-handle-by-name group drives the handle allocator; every other group
// is a generic zero-fill passthrough.
func (d *Device) readWriteReply(payload []byte) []byte {
	if len(payload) < 16 {
		d.logger.Error("ReadWrite request too short: %d bytes", len(payload))
		return binary.LittleEndian.AppendUint32(nil, ams.ResultOK)
	}

	group := binary.LittleEndian.Uint32(payload[0:4])
	offset := binary.LittleEndian.Uint32(payload[4:8])
	readLen := binary.LittleEndian.Uint32(payload[8:12])
	writeData := payload[16:]
	d.logger.Verbose("ReadWrite: group=0x%X offset=0x%X", group, offset)

	switch group {
	case ams.IndexGroupGetHandleByName:
		name := strings.TrimRight(string(writeData), "\x00")
		d.logger.Verbose("GetHandle for: %s", name)

		handle, err := d.AllocateHandle(name)
		if err != nil {
			resp := binary.LittleEndian.AppendUint32(nil, ams.ResultSymbolNotFound)
			return binary.LittleEndian.AppendUint32(resp, 0)
		}
		resp := binary.LittleEndian.AppendUint32(nil, ams.ResultOK)
		resp = binary.LittleEndian.AppendUint32(resp, 4)
		return binary.LittleEndian.AppendUint32(resp, handle)

	default:
		if readLen > maxReadLength {
			d.logger.Error("ReadWrite length %d exceeds cap, clamping", readLen)
			readLen = maxReadLength
		}
		resp := binary.LittleEndian.AppendUint32(nil, ams.ResultOK)
		resp = binary.LittleEndian.AppendUint32(resp, readLen)
		return append(resp, make([]byte, readLen)...)
	}
}
