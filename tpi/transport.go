package tpi

import "errors"

// ErrTimeout - A link operation did not complete within its timeout window
var ErrTimeout = errors.New("tpi: link timeout")

// Transport is the physical layer the TPI link runs on. The host side is
// expected to expose a full-duplex clocked byte exchange (an SPI peripheral
// or an SPI-bridge firmware) plus control of the target RESET line.
//
// Transfer clocks out eight bits least-significant bit first and returns the
// eight bits sampled from the target during the same clocks.
type Transport interface {
	Transfer(b byte) (byte, error)

	// SetReset drives the target RESET line. active=true asserts reset
	// (line low), which is what keeps the target in external programming
	// mode for the duration of a session.
	SetReset(active bool) error

	Close() error
}
