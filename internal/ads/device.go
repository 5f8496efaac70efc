package ads

// ADS device state: symbol table and handle allocator.
//
// One Device instance serves every connection, matching a single real
// device behind multiple client sessions. All state mutation goes through
// the Device mutex.

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/mfeller/plcmock/internal/config"
	"github.com/mfeller/plcmock/internal/logging"
)

// HandleBase is the first handle ID a fresh session allocates.
const HandleBase uint32 = 1000

// ErrUnknownSymbol reports a name not present in the symbol table.
var ErrUnknownSymbol = errors.New("ads: unknown symbol")

// Symbol is one named device variable. The engine treats the value as an
// opaque buffer; the type tag is advisory.
type Symbol struct {
	Name    string
	TypeTag string
	Value   []byte
}

type identity struct {
	deviceName   string
	versionMajor uint8
	versionMinor uint8
	versionBuild uint16
}

// Device emulates one ADS device session: symbol table, handle allocator
// and fixed identity.
type Device struct {
	mu         sync.Mutex
	symbols    map[string]*Symbol
	handles    map[uint32]string
	nextHandle uint32

	identity identity
	logger   *logging.Logger
	hexDump  bool
}

// NewDevice creates an ADS device seeded from the configuration.
func NewDevice(cfg *config.Config, logger *logging.Logger) *Device {
	d := &Device{
		symbols:    make(map[string]*Symbol),
		handles:    make(map[uint32]string),
		nextHandle: HandleBase,
		identity: identity{
			deviceName:   cfg.ADS.Identity.DeviceName,
			versionMajor: cfg.ADS.Identity.VersionMajor,
			versionMinor: cfg.ADS.Identity.VersionMinor,
			versionBuild: cfg.ADS.Identity.VersionBuild,
		},
		logger:  logger,
		hexDump: cfg.Logging.IncludeHexDump,
	}

	for _, sym := range cfg.ADS.Symbols {
		d.symbols[sym.Name] = &Symbol{
			Name:    sym.Name,
			TypeTag: strings.ToUpper(sym.Type),
			Value:   encodeSeedValue(sym.Type, sym.Value),
		}
	}

	return d
}

// encodeSeedValue renders a config seed scalar into the symbol's byte
// representation (little-endian, PLC sizes).
func encodeSeedValue(typeTag string, value float64) []byte {
	switch strings.ToUpper(typeTag) {
	case "BOOL":
		if value != 0 {
			return []byte{1}
		}
		return []byte{0}
	case "INT":
		buf := make([]byte, 2)
		binary.LittleEndian.PutUint16(buf, uint16(int16(value)))
		return buf
	case "DINT":
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(int32(value)))
		return buf
	case "REAL":
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(value)))
		return buf
	default:
		return nil
	}
}

// LookupSymbol returns the symbol bound to name.
func (d *Device) LookupSymbol(name string) (*Symbol, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	sym, ok := d.symbols[name]
	return sym, ok
}

// WriteSymbol replaces a symbol's value. No type checking is performed;
// the emulator is a passive store, not a type-checking PLC.
func (d *Device) WriteSymbol(name string, value []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	sym, ok := d.symbols[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSymbol, name)
	}
	sym.Value = append([]byte(nil), value...)
	return nil
}

// AllocateHandle binds the next handle ID to a known symbol name. The
// counter only advances on success, so a lookup miss never consumes an ID.
func (d *Device) AllocateHandle(name string) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.symbols[name]; !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownSymbol, name)
	}

	handle := d.nextHandle
	d.handles[handle] = name
	d.nextHandle++
	return handle, nil
}

// ResolveHandle returns the symbol name bound to a handle ID.
func (d *Device) ResolveHandle(id uint32) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	name, ok := d.handles[id]
	return name, ok
}

// SymbolNames returns the seeded symbol names in sorted order.
func (d *Device) SymbolNames() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	names := make([]string, 0, len(d.symbols))
	for name := range d.symbols {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
