package ads

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/mfeller/plcmock/internal/ams"
)

func buildRequest(command uint16, payload []byte) ams.Frame {
	return ams.Frame{
		TargetNetID: ams.NetID{10, 0, 0, 1, 1, 1},
		TargetPort:  851,
		SourceNetID: ams.NetID{10, 0, 0, 2, 1, 1},
		SourcePort:  32905,
		CommandID:   command,
		StateFlags:  ams.StateFlagADSCmd,
		InvokeID:    0x12345678,
		Payload:     payload,
	}
}

// roundTrip pushes an encoded request through Handle and decodes the reply.
func roundTrip(t *testing.T, d *Device, req ams.Frame) ams.Frame {
	t.Helper()

	raw := d.Handle(ams.EncodeFrame(req))
	if raw == nil {
		t.Fatal("Handle returned no reply")
	}
	resp, err := ams.DecodeFrame(raw)
	if err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	return resp
}

// TestDispatchReplyHeader verifies endpoint swap, invoke ID echo and the
// response bit for every known command.
func TestDispatchReplyHeader(t *testing.T) {
	d := newTestDevice()

	commands := []uint16{
		ams.CommandDeviceInfo,
		ams.CommandRead,
		ams.CommandWrite,
		ams.CommandReadState,
		ams.CommandWriteControl,
		ams.CommandReadWrite,
		0xFFFF,
	}

	for _, cmd := range commands {
		req := buildRequest(cmd, make([]byte, 16))
		resp := roundTrip(t, d, req)

		if resp.TargetNetID != req.SourceNetID || resp.TargetPort != req.SourcePort {
			t.Errorf("cmd 0x%04X: reply target should be request source", cmd)
		}
		if resp.SourceNetID != req.TargetNetID || resp.SourcePort != req.TargetPort {
			t.Errorf("cmd 0x%04X: reply source should be request target", cmd)
		}
		if resp.InvokeID != req.InvokeID {
			t.Errorf("cmd 0x%04X: InvokeID = 0x%08X, want 0x%08X", cmd, resp.InvokeID, req.InvokeID)
		}
		if resp.StateFlags&ams.StateFlagResponse == 0 {
			t.Errorf("cmd 0x%04X: response bit not set", cmd)
		}
		if resp.ErrorCode != 0 {
			t.Errorf("cmd 0x%04X: header error code = 0x%08X, want 0", cmd, resp.ErrorCode)
		}
		if resp.Length != uint32(len(resp.Payload)) {
			t.Errorf("cmd 0x%04X: Length = %d, payload = %d", cmd, resp.Length, len(resp.Payload))
		}
	}
}

// TestDeviceInfo verifies the fixed device-info reply layout.
func TestDeviceInfo(t *testing.T) {
	d := newTestDevice()
	resp := roundTrip(t, d, buildRequest(ams.CommandDeviceInfo, nil))

	if len(resp.Payload) != 24 {
		t.Fatalf("payload length = %d, want 24", len(resp.Payload))
	}

	if result := binary.LittleEndian.Uint32(resp.Payload[0:4]); result != ams.ResultOK {
		t.Errorf("result = 0x%X, want 0", result)
	}
	if resp.Payload[4] != 3 || resp.Payload[5] != 1 {
		t.Errorf("version = %d.%d, want 3.1", resp.Payload[4], resp.Payload[5])
	}
	if build := binary.LittleEndian.Uint16(resp.Payload[6:8]); build != 4024 {
		t.Errorf("build = %d, want 4024", build)
	}

	wantName := make([]byte, 16)
	copy(wantName, "TwinCAT 3 PLC")
	if !bytes.Equal(resp.Payload[8:24], wantName) {
		t.Errorf("device name field = % X, want % X", resp.Payload[8:24], wantName)
	}
}

// TestReadZeroFill verifies a plain Read returns a zero-filled buffer of
// the requested length.
func TestReadZeroFill(t *testing.T) {
	d := newTestDevice()

	payload := binary.LittleEndian.AppendUint32(nil, 0x4020) // index group
	payload = binary.LittleEndian.AppendUint32(payload, 0)   // index offset
	payload = binary.LittleEndian.AppendUint32(payload, 8)   // read length

	resp := roundTrip(t, d, buildRequest(ams.CommandRead, payload))

	if len(resp.Payload) != 4+4+8 {
		t.Fatalf("payload length = %d, want 16", len(resp.Payload))
	}
	if result := binary.LittleEndian.Uint32(resp.Payload[0:4]); result != ams.ResultOK {
		t.Errorf("result = 0x%X", result)
	}
	if length := binary.LittleEndian.Uint32(resp.Payload[4:8]); length != 8 {
		t.Errorf("length = %d, want 8", length)
	}
	if !bytes.Equal(resp.Payload[8:], make([]byte, 8)) {
		t.Errorf("data = % X, want zeros", resp.Payload[8:])
	}
}

// TestWriteAccepted verifies Write is accepted unconditionally with a
// bare result code.
func TestWriteAccepted(t *testing.T) {
	d := newTestDevice()

	payload := binary.LittleEndian.AppendUint32(nil, 0x4020)
	payload = binary.LittleEndian.AppendUint32(payload, 0)
	payload = binary.LittleEndian.AppendUint32(payload, 4)
	payload = append(payload, 0xDE, 0xAD, 0xBE, 0xEF)

	resp := roundTrip(t, d, buildRequest(ams.CommandWrite, payload))

	if len(resp.Payload) != 4 {
		t.Fatalf("payload length = %d, want 4", len(resp.Payload))
	}
	if result := binary.LittleEndian.Uint32(resp.Payload); result != ams.ResultOK {
		t.Errorf("result = 0x%X", result)
	}
}

// TestReadState verifies the fixed running-state reply.
func TestReadState(t *testing.T) {
	d := newTestDevice()
	resp := roundTrip(t, d, buildRequest(ams.CommandReadState, nil))

	if len(resp.Payload) != 8 {
		t.Fatalf("payload length = %d, want 8", len(resp.Payload))
	}
	if result := binary.LittleEndian.Uint32(resp.Payload[0:4]); result != ams.ResultOK {
		t.Errorf("result = 0x%X", result)
	}
	if state := binary.LittleEndian.Uint16(resp.Payload[4:6]); state != ams.StateRun {
		t.Errorf("ads state = %d, want %d (RUN)", state, ams.StateRun)
	}
	if devState := binary.LittleEndian.Uint16(resp.Payload[6:8]); devState != 0 {
		t.Errorf("device state = %d, want 0", devState)
	}
}

// TestWriteControl verifies state transitions are accepted and not persisted.
func TestWriteControl(t *testing.T) {
	d := newTestDevice()

	payload := binary.LittleEndian.AppendUint16(nil, 6) // target state: STOP
	payload = binary.LittleEndian.AppendUint16(payload, 0)

	resp := roundTrip(t, d, buildRequest(ams.CommandWriteControl, payload))
	if result := binary.LittleEndian.Uint32(resp.Payload); result != ams.ResultOK {
		t.Errorf("result = 0x%X", result)
	}

	// State is not persisted: ReadState still reports RUN.
	stateResp := roundTrip(t, d, buildRequest(ams.CommandReadState, nil))
	if state := binary.LittleEndian.Uint16(stateResp.Payload[4:6]); state != ams.StateRun {
		t.Errorf("ads state after WriteControl = %d, want %d", state, ams.StateRun)
	}
}

func buildReadWritePayload(group, offset, readLen uint32, writeData []byte) []byte {
	payload := binary.LittleEndian.AppendUint32(nil, group)
	payload = binary.LittleEndian.AppendUint32(payload, offset)
	payload = binary.LittleEndian.AppendUint32(payload, readLen)
	payload = binary.LittleEndian.AppendUint32(payload, uint32(len(writeData)))
	return append(payload, writeData...)
}

// TestGetHandleByName verifies the reserved index group allocates a handle
// for a seeded symbol.
func TestGetHandleByName(t *testing.T) {
	d := newTestDevice()

	payload := buildReadWritePayload(ams.IndexGroupGetHandleByName, 0, 4, []byte("MAIN.Motor.bRun\x00"))
	resp := roundTrip(t, d, buildRequest(ams.CommandReadWrite, payload))

	if len(resp.Payload) != 12 {
		t.Fatalf("payload length = %d, want 12", len(resp.Payload))
	}
	if result := binary.LittleEndian.Uint32(resp.Payload[0:4]); result != ams.ResultOK {
		t.Errorf("result = 0x%X", result)
	}
	if length := binary.LittleEndian.Uint32(resp.Payload[4:8]); length != 4 {
		t.Errorf("length = %d, want 4", length)
	}
	handle := binary.LittleEndian.Uint32(resp.Payload[8:12])
	if handle != HandleBase {
		t.Errorf("handle = %d, want %d on a fresh session", handle, HandleBase)
	}

	name, ok := d.ResolveHandle(handle)
	if !ok || name != "MAIN.Motor.bRun" {
		t.Errorf("ResolveHandle(%d) = %q, %v", handle, name, ok)
	}
}

// TestGetHandleUnknownSymbol verifies the symbol-not-found result code,
// zero-length data, and that no handle is allocated.
func TestGetHandleUnknownSymbol(t *testing.T) {
	d := newTestDevice()

	payload := buildReadWritePayload(ams.IndexGroupGetHandleByName, 0, 4, []byte("MAIN.Ghost\x00"))
	resp := roundTrip(t, d, buildRequest(ams.CommandReadWrite, payload))

	if len(resp.Payload) != 8 {
		t.Fatalf("payload length = %d, want 8", len(resp.Payload))
	}
	if result := binary.LittleEndian.Uint32(resp.Payload[0:4]); result != ams.ResultSymbolNotFound {
		t.Errorf("result = 0x%X, want 0x%X", result, ams.ResultSymbolNotFound)
	}
	if length := binary.LittleEndian.Uint32(resp.Payload[4:8]); length != 0 {
		t.Errorf("length = %d, want 0", length)
	}

	// The counter must be untouched: the next successful allocation still
	// gets the base handle.
	good := buildReadWritePayload(ams.IndexGroupGetHandleByName, 0, 4, []byte("MAIN.Motor.bRun\x00"))
	goodResp := roundTrip(t, d, buildRequest(ams.CommandReadWrite, good))
	if handle := binary.LittleEndian.Uint32(goodResp.Payload[8:12]); handle != HandleBase {
		t.Errorf("handle = %d, want %d", handle, HandleBase)
	}
}

// TestReadWriteGenericGroup verifies the generic passthrough for
// non-reserved index groups.
func TestReadWriteGenericGroup(t *testing.T) {
	d := newTestDevice()

	payload := buildReadWritePayload(0x4020, 0, 6, []byte{1, 2})
	resp := roundTrip(t, d, buildRequest(ams.CommandReadWrite, payload))

	if result := binary.LittleEndian.Uint32(resp.Payload[0:4]); result != ams.ResultOK {
		t.Errorf("result = 0x%X", result)
	}
	if length := binary.LittleEndian.Uint32(resp.Payload[4:8]); length != 6 {
		t.Errorf("length = %d, want 6", length)
	}
	if !bytes.Equal(resp.Payload[8:], make([]byte, 6)) {
		t.Errorf("data = % X, want zeros", resp.Payload[8:])
	}
}

// TestUnknownCommandFakesSuccess verifies an unknown opcode yields a
// fabricated success result rather than an error.
func TestUnknownCommandFakesSuccess(t *testing.T) {
	d := newTestDevice()

	resp := roundTrip(t, d, buildRequest(0xFFFF, nil))
	if len(resp.Payload) != 4 {
		t.Fatalf("payload length = %d, want 4", len(resp.Payload))
	}
	if result := binary.LittleEndian.Uint32(resp.Payload); result != ams.ResultOK {
		t.Errorf("result = 0x%X, want 0", result)
	}
}

// TestHandleTruncatedFrame verifies malformed input produces no reply.
func TestHandleTruncatedFrame(t *testing.T) {
	d := newTestDevice()

	if reply := d.Handle(make([]byte, 10)); reply != nil {
		t.Errorf("expected no reply for truncated frame, got %d bytes", len(reply))
	}

	// The device is still usable afterwards.
	resp := roundTrip(t, d, buildRequest(ams.CommandDeviceInfo, nil))
	if resp.CommandID != ams.CommandDeviceInfo {
		t.Errorf("CommandID = 0x%04X", resp.CommandID)
	}
}

// TestSplitSingleFrame verifies one complete frame splits cleanly.
func TestSplitSingleFrame(t *testing.T) {
	d := newTestDevice()

	raw := ams.EncodeFrame(buildRequest(ams.CommandDeviceInfo, nil))
	frames, rest := d.Split(raw)

	if len(frames) != 1 {
		t.Fatalf("frames = %d, want 1", len(frames))
	}
	if !bytes.Equal(frames[0], raw) {
		t.Error("frame bytes mismatch")
	}
	if len(rest) != 0 {
		t.Errorf("rest = %d bytes, want 0", len(rest))
	}
}

// TestSplitPartialFrame verifies an incomplete frame is held back until
// the remaining bytes arrive.
func TestSplitPartialFrame(t *testing.T) {
	d := newTestDevice()

	payload := binary.LittleEndian.AppendUint32(nil, 0x4020)
	payload = binary.LittleEndian.AppendUint32(payload, 0)
	payload = binary.LittleEndian.AppendUint32(payload, 4)
	raw := ams.EncodeFrame(buildRequest(ams.CommandRead, payload))

	first := raw[:20]
	frames, rest := d.Split(first)
	if len(frames) != 0 {
		t.Fatalf("frames = %d, want 0 for partial header", len(frames))
	}
	if !bytes.Equal(rest, first) {
		t.Error("partial bytes should be retained")
	}

	// Header complete but payload still short.
	frames, rest = d.Split(raw[:36])
	if len(frames) != 0 {
		t.Fatalf("frames = %d, want 0 for partial payload", len(frames))
	}

	// Full frame now available.
	buf := append(rest, raw[36:]...)
	frames, rest = d.Split(buf)
	if len(frames) != 1 {
		t.Fatalf("frames = %d, want 1 after reassembly", len(frames))
	}
	if !bytes.Equal(frames[0], raw) {
		t.Error("reassembled frame mismatch")
	}
	if len(rest) != 0 {
		t.Errorf("rest = %d bytes, want 0", len(rest))
	}
}

// TestSplitTwoFrames verifies two back-to-back frames split into two.
func TestSplitTwoFrames(t *testing.T) {
	d := newTestDevice()

	a := ams.EncodeFrame(buildRequest(ams.CommandDeviceInfo, nil))
	b := ams.EncodeFrame(buildRequest(ams.CommandReadState, nil))

	frames, rest := d.Split(append(append([]byte{}, a...), b...))
	if len(frames) != 2 {
		t.Fatalf("frames = %d, want 2", len(frames))
	}
	if !bytes.Equal(frames[0], a) || !bytes.Equal(frames[1], b) {
		t.Error("frame content mismatch")
	}
	if len(rest) != 0 {
		t.Errorf("rest = %d bytes, want 0", len(rest))
	}
}

// TestSplitDropsGarbage verifies a header declaring an absurd length
// discards the buffer instead of waiting for gigabytes that will never
// arrive, while frames already extracted are kept.
func TestSplitDropsGarbage(t *testing.T) {
	d := newTestDevice()

	valid := ams.EncodeFrame(buildRequest(ams.CommandDeviceInfo, nil))
	garbage := bytes.Repeat([]byte{0xFF}, ams.HeaderSize) // declares ~4 GiB payload

	frames, rest := d.Split(append(append([]byte{}, valid...), garbage...))
	if len(frames) != 1 {
		t.Fatalf("frames = %d, want 1 (frame ahead of garbage is kept)", len(frames))
	}
	if !bytes.Equal(frames[0], valid) {
		t.Error("frame content mismatch")
	}
	if len(rest) != 0 {
		t.Errorf("rest = %d bytes, want 0 after garbage drop", len(rest))
	}

	// Garbage at the head poisons the whole buffer.
	frames, rest = d.Split(append(append([]byte{}, garbage...), valid...))
	if len(frames) != 0 {
		t.Errorf("frames = %d, want 0 when garbage heads the stream", len(frames))
	}
	if len(rest) != 0 {
		t.Errorf("rest = %d bytes, want 0 after garbage drop", len(rest))
	}
}
