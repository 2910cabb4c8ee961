package tpi

import "time"

// TPI instruction opcodes
const (
	opSLD     = 0x20 // load from data space, pointer unchanged
	opSLDPost = 0x24 // load from data space, post-increment pointer
	opSST     = 0x60 // store to data space, pointer unchanged
	opSSTPost = 0x64 // store to data space, post-increment pointer
	opSSTPR   = 0x68 // store to pointer register, low bit selects the byte
	opSIN     = 0x10 // read from I/O space
	opSOUT    = 0x90 // write to I/O space
	opSLDCS   = 0x80 // read from control/status space
	opSSTCS   = 0xC0 // write to control/status space
	opSKEY    = 0xE0 // key transfer follows
)

// Control/status space registers
const (
	RegTPISR  = 0x00 // status; bit 1 = NVM interface enabled
	RegTPIPCR = 0x02 // physical layer control; GT[2:0] guard time
	RegTPIIR  = 0x0F // identification, reads 0x80
)

// StatusNVMEN is the NVM-enabled bit in RegTPISR.
const StatusNVMEN = 0x02

// Link drives the TPI register interface of one target over a Transport.
//
// The target keeps a 16-bit pointer register that memory loads and stores
// act through. Link mirrors it locally so bare loads and stores can be
// issued without re-sending the address; the mirror is only valid as long
// as every pointer change goes through SetPointer or a post-incrementing
// access on this Link. One Link owns its transport for the whole session.
type Link struct {
	tr      Transport
	pointer uint16
}

func NewLink(tr Transport) *Link {
	return &Link{tr: tr}
}

// Start asserts the target RESET line and clocks enough idle bits for the
// target to enable its TPI interface.
func (l *Link) Start() error {
	if err := l.tr.SetReset(true); err != nil {
		return err
	}
	time.Sleep(10 * time.Millisecond)

	// the interface activates after 16 idle bits; send a couple extra
	for i := 0; i < 4; i++ {
		if err := l.Idle(); err != nil {
			return err
		}
	}
	return nil
}

// Stop releases the RESET line, letting the target run its program.
func (l *Link) Stop() error {
	return l.tr.SetReset(false)
}

func (l *Link) Close() error {
	return l.tr.Close()
}

// Pointer returns the local mirror of the target's pointer register.
func (l *Link) Pointer() uint16 {
	return l.pointer
}

// SetPointer writes the target's pointer register and the local mirror.
// Required before any bare load/store and after any address jump.
func (l *Link) SetPointer(addr uint16) error {
	if err := l.SendByte(opSSTPR | 0); err != nil {
		return err
	}
	if err := l.SendByte(byte(addr)); err != nil {
		return err
	}
	if err := l.SendByte(opSSTPR | 1); err != nil {
		return err
	}
	if err := l.SendByte(byte(addr >> 8)); err != nil {
		return err
	}

	l.pointer = addr
	return nil
}

// Load reads the byte the pointer register addresses.
func (l *Link) Load() (byte, error) {
	if err := l.SendByte(opSLD); err != nil {
		return 0, err
	}
	return l.ReceiveByte()
}

// LoadNext reads the byte the pointer register addresses and advances the
// pointer (and its mirror) by one.
func (l *Link) LoadNext() (byte, error) {
	if err := l.SendByte(opSLDPost); err != nil {
		return 0, err
	}
	b, err := l.ReceiveByte()
	if err != nil {
		return 0, err
	}

	l.pointer++
	return b, nil
}

// Store writes one byte at the pointer register address.
func (l *Link) Store(b byte) error {
	if err := l.SendByte(opSST); err != nil {
		return err
	}
	return l.SendByte(b)
}

// StoreNext writes one byte at the pointer register address and advances
// the pointer (and its mirror) by one.
func (l *Link) StoreNext(b byte) error {
	if err := l.SendByte(opSSTPost); err != nil {
		return err
	}
	if err := l.SendByte(b); err != nil {
		return err
	}

	l.pointer++
	return nil
}

// ioOpcode folds a 6-bit I/O address into an SIN/SOUT opcode: the four low
// address bits map directly, the two high bits sit one position up.
func ioOpcode(op, addr byte) byte {
	return op | (addr&0x30)<<1 | addr&0x0F
}

// ReadIO reads one byte from I/O space.
func (l *Link) ReadIO(addr byte) (byte, error) {
	if err := l.SendByte(ioOpcode(opSIN, addr)); err != nil {
		return 0, err
	}
	return l.ReceiveByte()
}

// WriteIO writes one byte to I/O space.
func (l *Link) WriteIO(addr, val byte) error {
	if err := l.SendByte(ioOpcode(opSOUT, addr)); err != nil {
		return err
	}
	return l.SendByte(val)
}

// ReadControl reads a control/status space register (4-bit address).
func (l *Link) ReadControl(addr byte) (byte, error) {
	if err := l.SendByte(opSLDCS | addr&0x0F); err != nil {
		return 0, err
	}
	return l.ReceiveByte()
}

// WriteControl writes a control/status space register (4-bit address).
func (l *Link) WriteControl(addr, val byte) error {
	if err := l.SendByte(opSSTCS | addr&0x0F); err != nil {
		return err
	}
	return l.SendByte(val)
}

// SendKey transmits the key opcode followed by the 64-bit key, least
// significant byte first.
func (l *Link) SendKey(key uint64) error {
	if err := l.SendByte(opSKEY); err != nil {
		return err
	}

	for i := 0; i < 8; i++ {
		if err := l.SendByte(byte(key)); err != nil {
			return err
		}
		key >>= 8
	}
	return nil
}
