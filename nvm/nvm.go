// Package nvm sequences the target's non-volatile memory controller:
// key enable, chip and section erase, and word-group program-and-verify.
package nvm

import (
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/TaeronKW/tpiflash/device"
	"github.com/TaeronKW/tpiflash/tpi"
)

// NVM command and status registers in I/O space
const (
	RegNVMCSR = 0x32 // status; bit 7 = controller busy
	RegNVMCMD = 0x33 // command

	statusBusy = 0x80
)

// NVM commands
const (
	CmdNop          = 0x00
	CmdChipErase    = 0x10
	CmdSectionErase = 0x14
	CmdWordWrite    = 0x1D
)

// Key unlocks the NVM interface. Sent least significant byte first.
const Key uint64 = 0x1289AB45CDD888FF

// shortest guard time the physical layer allows (GT[2:0] = 0b111)
const guardTimeMin = 0x07

const (
	DefaultBusyTimeout   = 100 * time.Millisecond
	DefaultEnableTimeout = 100 * time.Millisecond
)

// Link is the slice of the TPI register layer the engine drives.
type Link interface {
	SetPointer(addr uint16) error
	LoadNext() (byte, error)
	StoreNext(b byte) error
	ReadIO(addr byte) (byte, error)
	WriteIO(addr, val byte) error
	ReadControl(addr byte) (byte, error)
	WriteControl(addr, val byte) error
	SendKey(key uint64) error
	Idle() error
}

// VerifyError - A byte read back after programming disagrees with the source
type VerifyError struct {
	Address  uint16
	Expected byte
	Actual   byte
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("verify failed at 0x%04X: wrote 0x%02X, read 0x%02X",
		e.Address, e.Expected, e.Actual)
}

// Engine drives one target's NVM controller through a Link.
//
// Both timeouts bound hardware busy polls. The raw protocol would let these
// waits run forever; a wedged controller then hangs the host, so every poll
// here carries a deadline and reports tpi.ErrTimeout on expiry.
type Engine struct {
	link Link

	BusyTimeout   time.Duration
	EnableTimeout time.Duration
}

func New(link Link) *Engine {
	return &Engine{
		link:          link,
		BusyTimeout:   DefaultBusyTimeout,
		EnableTimeout: DefaultEnableTimeout,
	}
}

// Enable unlocks the NVM interface: configure the link guard time, send
// the key and wait for the target to report the interface enabled.
func (e *Engine) Enable() error {
	if err := e.link.WriteControl(tpi.RegTPIPCR, guardTimeMin); err != nil {
		return err
	}
	if err := e.link.SendKey(Key); err != nil {
		return err
	}

	deadline := time.Now().Add(e.EnableTimeout)
	for {
		status, err := e.link.ReadControl(tpi.RegTPISR)
		if err != nil {
			return err
		}
		if status&tpi.StatusNVMEN != 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.Wrap(tpi.ErrTimeout, "waiting for NVM enable")
		}
	}
}

// ChipErase erases the whole program memory. The erase must be pointed at
// the high byte of the first word, hence the +1.
func (e *Engine) ChipErase() error {
	if err := e.link.SetPointer(device.FlashBase + 1); err != nil {
		return err
	}
	if err := e.command(CmdChipErase); err != nil {
		return err
	}

	// dummy writes trigger the erase cycle
	for i := 0; i < 4; i++ {
		if err := e.link.StoreNext(0xAA); err != nil {
			return err
		}
	}

	return e.waitReady()
}

// SectionErase erases the section containing base. Used for the
// configuration byte; the same high-byte addressing quirk applies.
func (e *Engine) SectionErase(base uint16) error {
	if err := e.link.SetPointer(base + 1); err != nil {
		return err
	}
	if err := e.command(CmdSectionErase); err != nil {
		return err
	}

	for i := 0; i < 2; i++ {
		if err := e.link.StoreNext(0xAA); err != nil {
			return err
		}
	}

	return e.waitReady()
}

// ProgramWords programs one write group at addr and reads it back,
// comparing against the source. data must be a whole number of 16-bit
// words, low byte first within each word.
func (e *Engine) ProgramWords(addr uint16, data []byte) error {
	if len(data) == 0 || len(data)%2 != 0 {
		return errors.Errorf("nvm: write group must be whole words, got %d bytes", len(data))
	}

	if err := e.link.SetPointer(addr); err != nil {
		return err
	}
	if err := e.command(CmdWordWrite); err != nil {
		return err
	}

	for i := 0; i < len(data); i += 2 {
		if err := e.link.StoreNext(data[i]); err != nil {
			return err
		}
		if err := e.link.StoreNext(data[i+1]); err != nil {
			return err
		}

		// the controller wants idle clocks between words of one group
		if i+2 < len(data) {
			if err := e.link.Idle(); err != nil {
				return err
			}
			if err := e.link.Idle(); err != nil {
				return err
			}
		}
	}

	if err := e.waitReady(); err != nil {
		return err
	}
	if err := e.command(CmdNop); err != nil {
		return err
	}

	return e.verify(addr, data)
}

// verify re-reads a just-programmed group. Any mismatch is fatal to the
// session; partially programmed data is left in place.
func (e *Engine) verify(addr uint16, data []byte) error {
	if err := e.link.SetPointer(addr); err != nil {
		return err
	}

	for i, want := range data {
		got, err := e.link.LoadNext()
		if err != nil {
			return err
		}
		if got != want {
			return &VerifyError{
				Address:  addr + uint16(i),
				Expected: want,
				Actual:   got,
			}
		}
	}
	return nil
}

func (e *Engine) command(cmd byte) error {
	return e.link.WriteIO(RegNVMCMD, cmd)
}

// waitReady polls the controller busy bit until it clears.
func (e *Engine) waitReady() error {
	deadline := time.Now().Add(e.BusyTimeout)
	for {
		status, err := e.link.ReadIO(RegNVMCSR)
		if err != nil {
			return err
		}
		if status&statusBusy == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.Wrap(tpi.ErrTimeout, "waiting for NVM ready")
		}
	}
}
