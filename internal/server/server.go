package server

// TCP listener and per-connection handling for the mock device.

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/mfeller/plcmock/internal/config"
	"github.com/mfeller/plcmock/internal/logging"
)

// Device is one protocol personality: it frames a byte stream and
// answers complete frames. A nil reply means the frame is dropped
// silently. One Device instance is shared by every connection; protocol
// state behind it must be safe for concurrent dispatch.
type Device interface {
	Name() string
	Split(buf []byte) (frames [][]byte, rest []byte)
	Handle(frame []byte) []byte
}

// Server accepts connections and runs one handler goroutine per
// connection against a shared Device.
type Server struct {
	config      *config.Config
	logger      *logging.Logger
	device      Device
	tcpListener *net.TCPListener
	stats       *Stats
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// NewServer creates a server for one device personality.
func NewServer(cfg *config.Config, device Device, logger *logging.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		config: cfg,
		logger: logger,
		device: device,
		stats:  NewStats(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Stats returns the server's counters.
func (s *Server) Stats() *Stats {
	return s.stats
}

// Start binds the listener and launches the accept loop.
func (s *Server) Start() error {
	tcpAddr, err := net.ResolveTCPAddr("tcp", fmt.Sprintf("%s:%d", s.config.Server.ListenIP, s.config.Server.TCPPort))
	if err != nil {
		return fmt.Errorf("resolve TCP address: %w", err)
	}

	s.tcpListener, err = net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return fmt.Errorf("listen TCP: %w", err)
	}

	s.logger.Info("%s device listening on %s", s.device.Name(), s.tcpListener.Addr())
	fmt.Printf("[SERVER] %s device listening on %s\n", s.device.Name(), s.tcpListener.Addr())

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// TCPAddr returns the bound TCP address after Start.
func (s *Server) TCPAddr() *net.TCPAddr {
	if s.tcpListener == nil {
		return nil
	}
	if addr, ok := s.tcpListener.Addr().(*net.TCPAddr); ok {
		return addr
	}
	return nil
}

// Stop closes the listener, cancels every connection and waits for the
// handler goroutines to finish.
func (s *Server) Stop() error {
	s.cancel()

	if s.tcpListener != nil {
		s.tcpListener.Close()
	}

	s.wg.Wait()

	s.logger.Info("Server stopped")
	return nil
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		s.tcpListener.SetDeadline(time.Now().Add(1 * time.Second))
		conn, err := s.tcpListener.AcceptTCP()
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			if s.ctx.Err() != nil {
				return
			}
			s.logger.Error("Accept error: %v", err)
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// handleConnection reads chunks, splits them into frames and answers
// each frame in arrival order; the reply for a frame is fully written
// before the next frame is dispatched. The connection lives until the
// peer closes or an I/O error occurs.
func (s *Server) handleConnection(conn *net.TCPConn) {
	defer s.wg.Done()
	defer conn.Close()

	remoteAddr := conn.RemoteAddr().String()
	s.logger.Info("New connection from %s", remoteAddr)
	s.stats.ConnOpened()
	defer func() {
		s.stats.ConnClosed()
		s.logger.Info("Connection closed %s", remoteAddr)
	}()

	buffer := make([]byte, 0, 8192)
	readBuf := make([]byte, 4096)

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(30 * time.Second))

		n, err := conn.Read(readBuf)
		if err != nil {
			if err == io.EOF {
				s.logger.Info("Connection closed by client: %s", remoteAddr)
				return
			}
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			if s.ctx.Err() != nil {
				return
			}
			s.logger.Error("Read error from %s: %v", remoteAddr, err)
			return
		}
		if n == 0 {
			continue
		}

		buffer = append(buffer, readBuf[:n]...)

		frames, remaining := s.device.Split(buffer)
		buffer = remaining
		if buffer == nil {
			buffer = make([]byte, 0, 8192)
		}

		for _, frame := range frames {
			s.stats.FrameReceived(len(frame))

			reply := s.device.Handle(frame)
			if reply == nil {
				s.stats.FrameDropped()
				continue
			}

			if err := s.writeFull(conn, reply); err != nil {
				s.logger.Error("Write error to %s: %v", remoteAddr, err)
				return
			}
			s.stats.ReplySent(len(reply))
			s.logger.LogFrame(s.device.Name(), "frame", remoteAddr, len(frame), len(reply))
		}
	}
}

func (s *Server) writeFull(conn *net.TCPConn, data []byte) error {
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	for len(data) > 0 {
		n, err := conn.Write(data)
		if err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}
