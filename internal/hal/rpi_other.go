//go:build !linux

package hal

// RaspberryPiGPIO is a non-Linux stand-in: go-rpio only builds against
// /dev/gpiomem on Linux, so dev hosts get a provider that fails the
// same way MockGPIO does when asked for an unconfigured pin, instead
// of pulling in go-rpio at all on platforms it can't run on.
type RaspberryPiGPIO struct {
	mock *MockGPIO
}

// NewRaspberryPiGPIO returns a GPIOProvider backed by MockGPIO. It
// never touches real hardware; it exists so cmd/ser2mms-gw can still
// build and run its non-"rpi" code paths on a non-Linux dev host.
func NewRaspberryPiGPIO() (*RaspberryPiGPIO, error) {
	return &RaspberryPiGPIO{mock: NewMockGPIO()}, nil
}

func (h *RaspberryPiGPIO) ConfigureOutput(pin int) error {
	return h.mock.ConfigureOutput(pin)
}

func (h *RaspberryPiGPIO) Set(pin int, high bool) error {
	return h.mock.Set(pin, high)
}

func (h *RaspberryPiGPIO) Close() error {
	return h.mock.Close()
}
