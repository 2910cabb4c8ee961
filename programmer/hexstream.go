package programmer

import (
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/TaeronKW/tpiflash/device"
	"github.com/TaeronKW/tpiflash/tpi"
)

// Intel HEX record types
const (
	recData = 0x00
	recEOF  = 0x01
)

// groupWriter is where completed write groups go.
type groupWriter interface {
	ProgramWords(addr uint16, data []byte) error
}

// hexLoader consumes an Intel HEX character stream record by record and
// hands completed write groups to the NVM engine as the data arrives. The
// only buffer it keeps is the group accumulator, sized by the device
// profile; the stream is never held in memory.
type hexLoader struct {
	src     Source
	out     groupWriter
	profile *device.Profile
	timeout time.Duration
	onFlush func(written int)

	group   []byte // accumulator for one write group
	addr    uint16 // target address of the group being filled
	written int    // data bytes accepted this session
	started bool   // a data record has been seen
	done    bool   // end-of-file record processed
	sum     byte   // running record checksum
}

func newHexLoader(src Source, profile *device.Profile, out groupWriter, timeout time.Duration, onFlush func(int)) *hexLoader {
	return &hexLoader{
		src:     src,
		out:     out,
		profile: profile,
		timeout: timeout,
		onFlush: onFlush,
		group:   make([]byte, 0, profile.GroupSize()),
	}
}

// run consumes records until the end-of-file record or the first error.
// Groups flushed before an error stay programmed; nothing is rolled back.
func (ld *hexLoader) run() error {
	for !ld.done {
		if err := ld.readRecord(); err != nil {
			return err
		}
	}
	return nil
}

func (ld *hexLoader) readRecord() error {
	c, err := ld.readByte()
	if err != nil {
		return err
	}
	if c != ':' {
		// tolerate a single stray line terminator between records
		if c, err = ld.readByte(); err != nil {
			return err
		}
		if c != ':' {
			return &MalformedRecordError{Reason: "missing ':' start marker"}
		}
	}

	ld.sum = 0

	count, err := ld.field()
	if err != nil {
		return err
	}
	addrHi, err := ld.field()
	if err != nil {
		return err
	}
	addrLo, err := ld.field()
	if err != nil {
		return err
	}
	typ, err := ld.field()
	if err != nil {
		return err
	}

	offset := uint16(addrHi)<<8 | uint16(addrLo)

	for i := 0; i < int(count); i++ {
		b, err := ld.field()
		if err != nil {
			return err
		}

		// non-data payloads are consumed to keep the stream and the
		// checksum aligned, but never reach the target
		if typ != recData {
			continue
		}

		if err := ld.accept(offset, b); err != nil {
			return err
		}
	}

	received, err := ld.hexPair()
	if err != nil {
		return err
	}
	if computed := ^ld.sum + 1; computed != received {
		return &ChecksumError{Received: received, Computed: computed}
	}

	if typ == recEOF {
		ld.done = true
		return ld.finish()
	}
	return nil
}

// accept adds one decoded data byte to the group accumulator, flushing
// when the group is complete.
func (ld *hexLoader) accept(offset uint16, b byte) error {
	if !ld.started {
		ld.started = true
		ld.addr = device.FlashBase + offset
	}

	ld.written++
	if ld.written > int(ld.profile.FlashSize) {
		return &CapacityError{Capacity: ld.profile.FlashSize}
	}

	ld.group = append(ld.group, b)
	if len(ld.group) == ld.profile.GroupSize() {
		return ld.flush()
	}
	return nil
}

// finish zero-pads and flushes a partially filled group after the
// end-of-file record.
func (ld *hexLoader) finish() error {
	if len(ld.group) == 0 {
		return nil
	}
	for len(ld.group) < ld.profile.GroupSize() {
		ld.group = append(ld.group, 0x00)
	}
	return ld.flush()
}

func (ld *hexLoader) flush() error {
	if err := ld.out.ProgramWords(ld.addr, ld.group); err != nil {
		return err
	}

	ld.addr += uint16(len(ld.group))
	ld.group = ld.group[:0]

	if ld.onFlush != nil {
		ld.onFlush(ld.written)
	}
	return nil
}

// field reads one 2-digit hex field and accumulates it into the running
// record checksum.
func (ld *hexLoader) field() (byte, error) {
	b, err := ld.hexPair()
	if err != nil {
		return 0, err
	}
	ld.sum += b
	return b, nil
}

func (ld *hexLoader) hexPair() (byte, error) {
	hi, err := ld.hexDigit()
	if err != nil {
		return 0, err
	}
	lo, err := ld.hexDigit()
	if err != nil {
		return 0, err
	}
	return hi<<4 | lo, nil
}

func (ld *hexLoader) hexDigit() (byte, error) {
	c, err := ld.readByte()
	if err != nil {
		return 0, err
	}

	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	}
	return 0, &MalformedRecordError{Reason: fmt.Sprintf("invalid hex digit %q", c)}
}

// readByte waits for the next stream byte, bounded by the read timeout.
func (ld *hexLoader) readByte() (byte, error) {
	deadline := time.Now().Add(ld.timeout)
	for ld.src.Available() == 0 {
		if time.Now().After(deadline) {
			return 0, errors.Wrap(tpi.ErrTimeout, "waiting for hex data")
		}
		time.Sleep(time.Millisecond)
	}

	b, err := ld.src.ReadByte()
	if err != nil {
		return 0, &MalformedRecordError{Reason: "unexpected end of stream"}
	}
	return b, nil
}
