package fins

// FINS frame handling

import (
	"errors"
	"fmt"
)

// Frame layout: 10-byte header, then MRC/SRC command pair, then a
// big-endian payload.
const (
	HeaderSize   = 10
	MinFrameSize = HeaderSize + 2
)

// DefaultPort is the standard FINS port.
const DefaultPort = 9600

// Memory area codes
const (
	AreaCIO uint8 = 0x30
	AreaWR  uint8 = 0x31
	AreaHR  uint8 = 0x32
	AreaDM  uint8 = 0x82
)

// Command codes (MRC, SRC)
const (
	MRCMemoryArea  uint8 = 0x01
	SRCMemoryRead  uint8 = 0x01
	SRCMemoryWrite uint8 = 0x02
)

// End codes
const (
	EndCodeNormal       uint16 = 0x0000
	EndCodeNotSupported uint16 = 0x0001
)

// Response header constants
const (
	ICFResponse byte = 0xC0
	GCTDefault  byte = 0x02
)

// ErrTruncated reports a buffer too short to hold the header and command
// pair. Callers drop the buffer and send no reply.
var ErrTruncated = errors.New("fins: frame shorter than header")

// Header is the 10-byte FINS routing header: control fields plus the
// destination and source node triplets and the service ID.
type Header struct {
	ICF byte
	RSV byte
	GCT byte
	DNA byte // destination network
	DA1 byte // destination node
	DA2 byte // destination unit
	SNA byte // source network
	SA1 byte // source node
	SA2 byte // source unit
	SID byte // service id, echoed in the reply
}

// Frame represents one FINS message.
type Frame struct {
	Header  Header
	MRC     uint8
	SRC     uint8
	Payload []byte
}

// DecodeFrame decodes a FINS frame from raw bytes.
func DecodeFrame(data []byte) (Frame, error) {
	if len(data) < MinFrameSize {
		return Frame{}, fmt.Errorf("%w: %d bytes (minimum %d)", ErrTruncated, len(data), MinFrameSize)
	}

	f := Frame{
		Header: Header{
			ICF: data[0], RSV: data[1], GCT: data[2],
			DNA: data[3], DA1: data[4], DA2: data[5],
			SNA: data[6], SA1: data[7], SA2: data[8],
			SID: data[9],
		},
		MRC: data[10],
		SRC: data[11],
	}
	if len(data) > MinFrameSize {
		f.Payload = data[MinFrameSize:]
	}
	return f, nil
}

// EncodeFrame encodes a FINS frame to raw bytes.
func EncodeFrame(f Frame) []byte {
	h := f.Header
	out := make([]byte, 0, MinFrameSize+len(f.Payload))
	out = append(out, h.ICF, h.RSV, h.GCT, h.DNA, h.DA1, h.DA2, h.SNA, h.SA1, h.SA2, h.SID)
	out = append(out, f.MRC, f.SRC)
	return append(out, f.Payload...)
}

// ResponseHeader builds a reply header for a request: destination and
// source triplets swapped, SID echoed, fixed response control fields.
func ResponseHeader(req Header) Header {
	return Header{
		ICF: ICFResponse,
		RSV: 0x00,
		GCT: GCTDefault,
		DNA: req.SNA,
		DA1: req.SA1,
		DA2: req.SA2,
		SNA: req.DNA,
		SA1: req.DA1,
		SA2: req.DA2,
		SID: req.SID,
	}
}

// CommandName returns a human-readable name for a FINS MRC/SRC pair.
func CommandName(mrc, src uint8) string {
	switch {
	case mrc == MRCMemoryArea && src == SRCMemoryRead:
		return "MemoryAreaRead"
	case mrc == MRCMemoryArea && src == SRCMemoryWrite:
		return "MemoryAreaWrite"
	default:
		return fmt.Sprintf("Unknown(0x%02X/0x%02X)", mrc, src)
	}
}
