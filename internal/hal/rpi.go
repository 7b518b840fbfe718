//go:build linux

package hal

import (
	"fmt"
	"sync"

	"github.com/stianeikeland/go-rpio/v4"
)

// RaspberryPiGPIO drives the DE pin through go-rpio's direct
// /dev/gpiomem mapping. go-rpio only builds on Linux; see
// rpi_other.go for the non-Linux fallback.
type RaspberryPiGPIO struct {
	mu   sync.Mutex
	pins map[int]rpio.Pin
}

// NewRaspberryPiGPIO opens the GPIO chip. Call Close when done.
func NewRaspberryPiGPIO() (*RaspberryPiGPIO, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("hal: open gpio: %w", err)
	}
	return &RaspberryPiGPIO{pins: make(map[int]rpio.Pin)}, nil
}

func (h *RaspberryPiGPIO) ConfigureOutput(pin int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	p := rpio.Pin(pin)
	p.Output()
	p.Low()
	h.pins[pin] = p
	return nil
}

func (h *RaspberryPiGPIO) Set(pin int, high bool) error {
	h.mu.Lock()
	p, ok := h.pins[pin]
	h.mu.Unlock()
	if !ok {
		return ErrPinNotConfigured
	}
	if high {
		p.High()
	} else {
		p.Low()
	}
	return nil
}

func (h *RaspberryPiGPIO) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pins = nil
	return rpio.Close()
}
