package fins

// FINS device state and command dispatch.
//
// The device models word-addressed memory areas behind one mutex; like a
// single real controller, one instance serves every connection.

import (
	"encoding/binary"
	"sync"

	"github.com/mfeller/plcmock/internal/config"
	"github.com/mfeller/plcmock/internal/logging"
)

// maxWordCount caps a single read's word count, keeping reply allocation
// bounded.
const maxWordCount = 0x8000

// Device emulates one FINS controller.
type Device struct {
	mu    sync.Mutex
	areas map[uint8]map[uint16]uint16

	logger  *logging.Logger
	hexDump bool
}

// NewDevice creates a FINS device seeded from the configuration.
func NewDevice(cfg *config.Config, logger *logging.Logger) *Device {
	d := &Device{
		areas: map[uint8]map[uint16]uint16{
			AreaCIO: {},
			AreaWR:  {},
			AreaHR:  {},
			AreaDM:  {},
		},
		logger:  logger,
		hexDump: cfg.Logging.IncludeHexDump,
	}

	for _, seed := range cfg.FINS.MemorySeeds {
		area := d.areas[seed.Area]
		if area == nil {
			area = make(map[uint16]uint16)
			d.areas[seed.Area] = area
		}
		for i := 0; i < seed.Count; i++ {
			addr := seed.Start + uint16(i)
			switch seed.Pattern {
			case "counter":
				area[addr] = uint16(i)
			default:
				area[addr] = seed.Value
			}
		}
	}

	return d
}

// ReadWords returns count words starting at addr; missing words read as 0.
func (d *Device) ReadWords(areaCode uint8, addr uint16, count uint16) []uint16 {
	d.mu.Lock()
	defer d.mu.Unlock()

	area := d.areas[areaCode]
	words := make([]uint16, count)
	for i := range words {
		words[i] = area[addr+uint16(i)]
	}
	return words
}

// WriteWords stores words starting at addr, creating the area on demand.
func (d *Device) WriteWords(areaCode uint8, addr uint16, words []uint16) {
	d.mu.Lock()
	defer d.mu.Unlock()

	area := d.areas[areaCode]
	if area == nil {
		area = make(map[uint16]uint16)
		d.areas[areaCode] = area
	}
	for i, w := range words {
		area[addr+uint16(i)] = w
	}
}

// Name returns the protocol personality name.
func (d *Device) Name() string { return "fins" }

// Split treats everything available as one frame. The mock FINS frame
// carries no length field, so one socket read is one frame; partial
// delivery is not reassembled for this personality.
func (d *Device) Split(buf []byte) ([][]byte, []byte) {
	if len(buf) == 0 {
		return nil, nil
	}
	frame := make([]byte, len(buf))
	copy(frame, buf)
	return [][]byte{frame}, nil
}

// Handle decodes one FINS frame, dispatches it and encodes the reply.
// Malformed input is dropped silently.
func (d *Device) Handle(frame []byte) []byte {
	if d.hexDump {
		d.logger.LogHex("fins rx", frame)
	}

	req, err := DecodeFrame(frame)
	if err != nil {
		d.logger.Debug("drop malformed frame: %v", err)
		return nil
	}

	resp := d.dispatch(req)
	out := EncodeFrame(resp)
	if d.hexDump {
		d.logger.LogHex("fins tx", out)
	}
	return out
}

func (d *Device) dispatch(req Frame) Frame {
	d.logger.Verbose("%s sid=0x%02X", CommandName(req.MRC, req.SRC), req.Header.SID)

	resp := Frame{
		Header: ResponseHeader(req.Header),
		MRC:    req.MRC,
		SRC:    req.SRC,
	}

	switch {
	case req.MRC == MRCMemoryArea && req.SRC == SRCMemoryRead:
		resp.Payload = d.memoryReadReply(req.Payload)

	case req.MRC == MRCMemoryArea && req.SRC == SRCMemoryWrite:
		resp.Payload = d.memoryWriteReply(req.Payload)

	default:
		d.logger.Error("unknown FINS command 0x%02X/0x%02X", req.MRC, req.SRC)
		resp.Payload = binary.BigEndian.AppendUint16(nil, EndCodeNotSupported)
	}

	return resp
}

// memoryReadReply answers Memory Area Read: end code plus the requested
// words, big-endian.
func (d *Device) memoryReadReply(payload []byte) []byte {
	area, addr, count, ok := parseMemoryRequest(payload)
	if !ok {
		d.logger.Error("MemoryAreaRead request too short: %d bytes", len(payload))
		return binary.BigEndian.AppendUint16(nil, EndCodeNotSupported)
	}
	d.logger.Verbose("MemoryAreaRead: area=0x%02X addr=%d count=%d", area, addr, count)

	if count > maxWordCount {
		count = maxWordCount
	}

	out := binary.BigEndian.AppendUint16(nil, EndCodeNormal)
	for _, w := range d.ReadWords(area, addr, count) {
		out = binary.BigEndian.AppendUint16(out, w)
	}
	return out
}

// memoryWriteReply answers Memory Area Write: stores the words that were
// actually delivered, then returns a bare end code.
func (d *Device) memoryWriteReply(payload []byte) []byte {
	area, addr, count, ok := parseMemoryRequest(payload)
	if !ok {
		d.logger.Error("MemoryAreaWrite request too short: %d bytes", len(payload))
		return binary.BigEndian.AppendUint16(nil, EndCodeNotSupported)
	}
	d.logger.Verbose("MemoryAreaWrite: area=0x%02X addr=%d count=%d", area, addr, count)

	data := payload[6:]
	words := make([]uint16, 0, count)
	for i := 0; i < int(count) && (i+1)*2 <= len(data); i++ {
		words = append(words, binary.BigEndian.Uint16(data[i*2:(i+1)*2]))
	}
	d.WriteWords(area, addr, words)

	return binary.BigEndian.AppendUint16(nil, EndCodeNormal)
}

// parseMemoryRequest reads the common address block: area code, word
// address, bit number, word count (big-endian).
func parseMemoryRequest(payload []byte) (area uint8, addr uint16, count uint16, ok bool) {
	if len(payload) < 6 {
		return 0, 0, 0, false
	}
	area = payload[0]
	addr = binary.BigEndian.Uint16(payload[1:3])
	// payload[3] is the bit number; word operations ignore it.
	count = binary.BigEndian.Uint16(payload[4:6])
	return area, addr, count, true
}
