// Package hal is the hardware abstraction boundary for the single GPIO
// line the protocol engine actually drives: the RS-485 driver-enable
// (DE) pin. It intentionally does not grow I2C/SPI/PWM surface — those
// belong to a different kind of application than a protocol gateway.
package hal

import "fmt"

// GPIOProvider drives a single digital output pin. Implementations must
// be safe to call from one goroutine at a time; the transport layer
// never toggles DE concurrently with itself.
type GPIOProvider interface {
	// ConfigureOutput claims pin as a digital output, initially low.
	ConfigureOutput(pin int) error
	// Set drives pin high (true) or low (false). Pin must have been
	// configured with ConfigureOutput first.
	Set(pin int, high bool) error
	// Close releases the underlying GPIO chip handle.
	Close() error
}

// ErrPinNotConfigured is returned by Set when called before
// ConfigureOutput.
var ErrPinNotConfigured = fmt.Errorf("hal: pin not configured")
