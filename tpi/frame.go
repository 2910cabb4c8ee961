package tpi

// A TPI frame is 12 bits on the wire: one start bit (low), eight data bits,
// one even-parity bit and two stop bits, sent least-significant bit first
// over an idle-high line. The host peripheral only moves whole bytes, so a
// frame is packed into two 8-bit transfers on transmit and recovered from
// two or three transfers on receive.

const idleByte = 0xFF

// parity returns the even-parity bit over the eight data bits.
func parity(b byte) byte {
	p := b
	p ^= p >> 4
	p ^= p >> 2
	p ^= p >> 1
	return p & 1
}

// SendByte transmits one data byte as a complete TPI frame.
func (l *Link) SendByte(b byte) error {
	// two idle bits, the start bit and the five low data bits
	if _, err := l.tr.Transfer(0x03 | b<<3); err != nil {
		return err
	}

	// three high data bits, parity, two stop bits and two trailing idle bits
	_, err := l.tr.Transfer(0xF0 | parity(b)<<3 | b>>5)
	return err
}

// ReceiveByte waits for a frame from the target and returns its data byte.
//
// The target is free to insert idle bits before its start bit, so the start
// bit lands at an unknown position inside the first non-idle transfer. The
// captured transfers are realigned bit by bit until the idle run and the
// start bit have been discarded; the eight bits that follow are the data.
//
// The wait for a start bit is bounded only by the transport; per the TPI
// timing there is always a response once a frame has been requested.
func (l *Link) ReceiveByte() (byte, error) {
	b1, err := l.tr.Transfer(idleByte)
	if err != nil {
		return 0, err
	}
	for b1 == idleByte {
		if b1, err = l.tr.Transfer(idleByte); err != nil {
			return 0, err
		}
	}

	b2, err := l.tr.Transfer(idleByte)
	if err != nil {
		return 0, err
	}

	// If the low nibble of the first transfer is still idle the start bit
	// arrived late and the frame tail extends past the second transfer.
	// One more transfer clocks out the parity and stop bits so the link
	// is back at idle before the next frame.
	b3 := byte(idleByte)
	if b1&0x0F == 0x0F {
		if b3, err = l.tr.Transfer(idleByte); err != nil {
			return 0, err
		}
	}

	// Discard the leading idle bits and the start bit, pulling replacement
	// bits up from the later transfers. What remains in b1 is the data.
	for {
		start := b1&0x01 == 0
		b1 >>= 1
		if b2&0x01 != 0 {
			b1 |= 0x80
		}
		b2 >>= 1
		if b3&0x01 != 0 {
			b2 |= 0x80
		}
		b3 = b3>>1 | 0x80
		if start {
			break
		}
	}

	return b1, nil
}

// Idle clocks one byte of idle bits without framing. The NVM controller
// needs a few idle clocks between consecutive word writes.
func (l *Link) Idle() error {
	_, err := l.tr.Transfer(idleByte)
	return err
}
