// Package onepps drives an optional 1-pulse-per-second output on a
// periph.io GPIO pin, separate from the DE line hal.RaspberryPiGPIO
// owns — the spec calls this an external collaborator the core
// protocol engine never touches, but it shares the gateway process
// and the same GPIO chip. Modeled on the periph.io gpio/gpioreg
// wiring used by the reference pack's motion- and radio-control
// nodes (host.Init + gpioreg.ByName + pin.Out).
package onepps

import (
	"context"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Generator toggles a GPIO pin high for PulseWidth once per second,
// on a best-effort basis (no hardware timer/PWM peripheral is used,
// matching this package's role as a convenience, not a timing
// reference).
type Generator struct {
	pin         gpio.PinIO
	pulseWidth  time.Duration
	hostStarted bool
}

// New initializes periph.io's host drivers and looks up pinName (e.g.
// "GPIO18"). Returns an error if the pin cannot be claimed.
func New(pinName string, pulseWidth time.Duration) (*Generator, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("onepps: init periph host: %w", err)
	}
	pin := gpioreg.ByName(pinName)
	if pin == nil {
		return nil, fmt.Errorf("onepps: unknown pin %q", pinName)
	}
	if err := pin.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("onepps: configure %s as output: %w", pinName, err)
	}
	if pulseWidth <= 0 {
		pulseWidth = 100 * time.Millisecond
	}
	return &Generator{pin: pin, pulseWidth: pulseWidth}, nil
}

// Run pulses the pin once per second until ctx is cancelled.
func (g *Generator) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			g.pin.Out(gpio.Low)
			return nil
		case <-ticker.C:
			if err := g.pin.Out(gpio.High); err != nil {
				return fmt.Errorf("onepps: drive high: %w", err)
			}
			time.Sleep(g.pulseWidth)
			if err := g.pin.Out(gpio.Low); err != nil {
				return fmt.Errorf("onepps: drive low: %w", err)
			}
		}
	}
}
