package serialport

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.bug.st/serial"

	"github.com/proglyk/ser2mms-gw/internal/hal"
)

// HostConfig describes the serial device HostLink opens, following the
// same BaudRate/DataBits/StopBits shape the industrial Modbus RTU node
// in the reference pack uses to build a go.bug.st/serial.Mode.
type HostConfig struct {
	Path     string
	BaudRate int // 115200 or 230400 per spec §6.3
	DataBits int // 8
	StopBits int // 2 (8N2)

	GPIO  hal.GPIOProvider
	DEPin int

	// DEWait is the turnaround hold (spec default 2ms). HostLink does
	// not wait on it itself: Transp holds its own DEWait after the last
	// byte before calling SetDE(false).
	DEWait time.Duration

	// ReadTimeout bounds RxDrain; Transp's poll() must return quickly
	// even with nothing pending (spec §4.5.4).
	ReadTimeout time.Duration
}

// HostLink is the production Link backed by a real RS-485 serial
// device and a GPIOProvider for the DE line.
type HostLink struct {
	cfg  HostConfig
	port serial.Port

	mu     sync.Mutex
	closed atomic.Bool

	stats PortStats
}

// Open opens cfg.Path in the mode the spec requires (8 data bits, 2
// stop bits, no parity) and configures the DE pin as an output,
// initially low (receiving).
func Open(cfg HostConfig) (*HostLink, error) {
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
		StopBits: serial.TwoStopBits,
		Parity:   serial.NoParity,
	}
	port, err := serial.Open(cfg.Path, mode)
	if err != nil {
		return nil, fmt.Errorf("serialport: open %s: %w", cfg.Path, err)
	}

	timeout := cfg.ReadTimeout
	if timeout <= 0 {
		timeout = time.Millisecond
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("serialport: set read timeout: %w", err)
	}

	if cfg.GPIO != nil {
		if err := cfg.GPIO.ConfigureOutput(cfg.DEPin); err != nil {
			port.Close()
			return nil, fmt.Errorf("serialport: configure DE pin: %w", err)
		}
	}

	return &HostLink{cfg: cfg, port: port}, nil
}

func (h *HostLink) RxDrain(buf []byte) (int, error) {
	if h.closed.Load() {
		return 0, ErrClosed
	}
	n, err := h.port.Read(buf)
	if err != nil {
		return n, fmt.Errorf("serialport: read: %w", err)
	}
	atomic.AddUint64(&h.stats.BytesRead, uint64(n))
	return n, nil
}

func (h *HostLink) TxWrite(buf []byte) (int, error) {
	if h.closed.Load() {
		return 0, ErrClosed
	}
	n, err := h.port.Write(buf)
	if err != nil {
		return n, fmt.Errorf("serialport: write: %w", err)
	}
	atomic.AddUint64(&h.stats.BytesWritten, uint64(n))
	return n, nil
}

func (h *HostLink) SetDE(on bool) error {
	if h.cfg.GPIO == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.cfg.GPIO.Set(h.cfg.DEPin, on); err != nil {
		return fmt.Errorf("serialport: set DE: %w", err)
	}
	if !on && h.cfg.DEWait > 0 {
		// No delay is applied here; the caller has already waited
		// before calling SetDE(false).
	}
	return nil
}

func (h *HostLink) Stats() PortStats {
	return PortStats{
		BytesRead:    atomic.LoadUint64(&h.stats.BytesRead),
		BytesWritten: atomic.LoadUint64(&h.stats.BytesWritten),
		Overruns:     atomic.LoadUint64(&h.stats.Overruns),
	}
}

func (h *HostLink) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}
	if h.cfg.GPIO != nil {
		h.cfg.GPIO.Set(h.cfg.DEPin, false)
	}
	return h.port.Close()
}
