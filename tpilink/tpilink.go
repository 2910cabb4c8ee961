// Package tpilink implements tpi.Transport over a serial port. The port
// talks to an SPI-bridge firmware on the host microcontroller: every byte
// written is clocked out to the target and the byte sampled during the
// same clocks is echoed back. The DTR line drives the target RESET pin.
package tpilink

import (
	"time"

	"github.com/albenik/go-serial/v2"
	"github.com/pkg/errors"

	"github.com/TaeronKW/tpiflash/tpi"
)

const DefaultBaudrate = 250000

// Port - Serial connection to the SPI bridge
type Port struct {
	conn *serial.Port
}

// Open - Open the serial connection to the bridge and park the RESET line
func Open(portName string, baudrate int) (*Port, error) {
	if baudrate <= 0 {
		baudrate = DefaultBaudrate
	}

	conn, err := serial.Open(
		portName,
		serial.WithBaudrate(baudrate),
		serial.WithDataBits(8),
		serial.WithParity(serial.NoParity),
		serial.WithStopBits(serial.OneStopBit),
		serial.WithReadTimeout(1000),
	)
	if err != nil {
		return nil, err
	}

	p := &Port{conn: conn}

	if err = p.SetReset(false); err == nil {
		err = conn.ResetInputBuffer()
	}
	if err == nil {
		err = conn.ResetOutputBuffer()
	}
	if err != nil {
		conn.Close()
		return nil, err
	}

	return p, nil
}

// Transfer - Exchange one byte with the target through the bridge
func (p *Port) Transfer(b byte) (byte, error) {
	if _, err := p.conn.Write([]byte{b}); err != nil {
		return 0, err
	}

	buff := make([]byte, 1)
	received := 0
	for received < 1 {
		n, err := p.conn.Read(buff)
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, errors.Wrap(tpi.ErrTimeout, "bridge echo")
		}
		received += n
	}

	return buff[0], nil
}

// SetReset - Drive the target RESET line through DTR
func (p *Port) SetReset(active bool) error {
	err := p.conn.SetDTR(active)

	// let the line settle before the next transfer
	time.Sleep(10 * time.Millisecond)

	return err
}

// SetReadTimeout - Adjust the serial read timeout (milliseconds)
func (p *Port) SetReadTimeout(ms int) error {
	return p.conn.Reconfigure(
		serial.WithReadTimeout(ms),
	)
}

// Close - Release the RESET line and close the port
func (p *Port) Close() error {
	if err := p.SetReset(false); err != nil {
		p.conn.Close()
		return err
	}
	return p.conn.Close()
}
