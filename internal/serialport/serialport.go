// Package serialport is the Transp layer's port contract: open/close a
// serial device, drain received bytes, write transmit bytes, and
// toggle the RS-485 driver-enable line. Transp never talks to
// go.bug.st/serial or a GPIOProvider directly — only to this
// interface — so the protocol engine stays testable without hardware.
package serialport

import "fmt"

// Link is the contract Transp consumes. Implementations must not block
// rx_drain for more than a small, bounded interval: Transp's poll()
// pump is required to return in bounded time even with no data
// pending (spec §4.5.4, P7).
type Link interface {
	// RxDrain copies up to len(buf) newly arrived bytes into buf and
	// returns the count. It must not block beyond the port's
	// configured read timeout.
	RxDrain(buf []byte) (int, error)
	// TxWrite writes buf to the wire and returns the number of bytes
	// actually written before returning or erroring.
	TxWrite(buf []byte) (int, error)
	// SetDE drives the RS-485 driver-enable line high (on=true, actively
	// transmitting) or low (on=false, receiving).
	SetDE(on bool) error
	// Close releases the underlying device.
	Close() error
}

// PortStats is optionally exposed by a Link for diagnostics; not part
// of the core contract Transp depends on.
type PortStats struct {
	BytesRead    uint64
	BytesWritten uint64
	Overruns     uint64
}

// StatsProvider is implemented by Links that track PortStats.
type StatsProvider interface {
	Stats() PortStats
}

// ErrClosed is returned by Link methods called after Close.
var ErrClosed = fmt.Errorf("serialport: link closed")
