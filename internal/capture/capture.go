package capture

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"
	"github.com/google/gopacket/pcapgo"
)

// Capture represents a packet capture session
type Capture struct {
	handle    *pcap.Handle
	writer    *pcapgo.Writer
	file      *os.File
	startTime time.Time
	stopChan  chan struct{}
	stopOnce  sync.Once

	mu      sync.Mutex
	packets int
}

// StartCapture starts capturing packets on the specified interface,
// filtered to the server's TCP port.
func StartCapture(iface string, outputFile string, port int) (*Capture, error) {
	handle, err := pcap.OpenLive(iface, 65535, true, pcap.BlockForever)
	if err != nil {
		return nil, fmt.Errorf("open live capture: %w", err)
	}

	filter := fmt.Sprintf("tcp port %d", port)
	if err := handle.SetBPFFilter(filter); err != nil {
		handle.Close()
		return nil, fmt.Errorf("set BPF filter: %w", err)
	}

	file, err := os.Create(outputFile)
	if err != nil {
		handle.Close()
		return nil, fmt.Errorf("create pcap file: %w", err)
	}

	writer := pcapgo.NewWriter(file)
	if err := writer.WriteFileHeader(65535, handle.LinkType()); err != nil {
		file.Close()
		handle.Close()
		return nil, fmt.Errorf("write pcap header: %w", err)
	}

	c := &Capture{
		handle:    handle,
		writer:    writer,
		file:      file,
		startTime: time.Now(),
		stopChan:  make(chan struct{}),
	}

	go c.captureLoop()

	return c, nil
}

// StartCaptureLoopback starts capturing on the loopback interface
func StartCaptureLoopback(outputFile string, port int) (*Capture, error) {
	devices, err := pcap.FindAllDevs()
	if err != nil {
		return nil, fmt.Errorf("find network devices: %w", err)
	}

	var loopbackIface string
	for _, device := range devices {
		for _, addr := range device.Addresses {
			if addr.IP.IsLoopback() {
				loopbackIface = device.Name
				break
			}
		}
		if loopbackIface == "" {
			name := device.Name
			if name == "lo0" || name == "lo" || name == "Loopback" || name == "Loopback Pseudo-Interface 1" {
				loopbackIface = name
			}
		}
		if loopbackIface != "" {
			break
		}
	}

	if loopbackIface == "" {
		// Fallback: try common names directly
		interfaces := []string{"lo0", "lo", "Loopback", "Loopback Pseudo-Interface 1"}
		for _, iface := range interfaces {
			c, err := StartCapture(iface, outputFile, port)
			if err == nil {
				return c, nil
			}
		}
		return nil, fmt.Errorf("could not find loopback interface")
	}

	return StartCapture(loopbackIface, outputFile, port)
}

// captureLoop runs the capture loop in background
func (c *Capture) captureLoop() {
	packetSource := gopacket.NewPacketSource(c.handle, c.handle.LinkType())

	for {
		select {
		case <-c.stopChan:
			return
		case packet := <-packetSource.Packets():
			if packet == nil {
				continue
			}
			c.mu.Lock()
			c.packets++
			c.mu.Unlock()

			if c.writer != nil {
				ci := packet.Metadata().CaptureInfo
				if err := c.writer.WritePacket(ci, packet.Data()); err != nil {
					fmt.Fprintf(os.Stderr, "Warning: failed to write packet: %v\n", err)
				}
			}
		}
	}
}

// Stop stops the capture and closes resources (idempotent)
func (c *Capture) Stop() error {
	c.stopOnce.Do(func() {
		close(c.stopChan)
		time.Sleep(100 * time.Millisecond) // Give capture loop time to stop

		if c.file != nil {
			c.file.Close()
			c.file = nil
		}
		if c.handle != nil {
			c.handle.Close()
			c.handle = nil
		}
	})
	return nil
}

// PacketCount returns the number of captured packets
func (c *Capture) PacketCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.packets
}
