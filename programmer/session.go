// Package programmer orchestrates a complete TPI programming session:
// NVM enable, chip erase, streaming Intel HEX load with per-group
// program-and-verify, and session bookkeeping.
package programmer

import (
	"time"

	"github.com/pkg/errors"

	"github.com/TaeronKW/tpiflash/device"
	"github.com/TaeronKW/tpiflash/nvm"
	"github.com/TaeronKW/tpiflash/tpi"
)

// engine is the slice of the NVM layer the session drives.
type engine interface {
	Enable() error
	ChipErase() error
	SectionErase(base uint16) error
	ProgramWords(addr uint16, data []byte) error
}

// memoryReader is the slice of the register layer used for read-back.
type memoryReader interface {
	SetPointer(addr uint16) error
	LoadNext() (byte, error)
}

// Result reports a finished programming session.
type Result struct {
	BytesWritten int
	Elapsed      time.Duration
}

// Session owns one target for the duration of a programming session. The
// link is claimed exclusively; there is exactly one session at a time.
type Session struct {
	engine  engine
	mem     memoryReader
	profile *device.Profile
	cfg     Config

	enabled bool
}

// New creates a session for an identified device on an open link.
func New(link *tpi.Link, profile *device.Profile, opts ...Option) *Session {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	eng := nvm.New(link)
	eng.BusyTimeout = cfg.BusyTimeout
	eng.EnableTimeout = cfg.EnableTimeout

	return &Session{
		engine:  eng,
		mem:     link,
		profile: profile,
		cfg:     cfg,
	}
}

// Program streams Intel HEX records from src into the target: enable the
// NVM interface, erase the chip, then program and verify write groups as
// the data arrives.
//
// On any load failure the remaining stream is drained for a bounded grace
// window so the next session starts from a clean stream. Write groups
// flushed before the failure stay programmed.
func (s *Session) Program(src Source) (*Result, error) {
	if s.profile == nil {
		return nil, errors.New("programmer: no device profile")
	}

	start := time.Now()
	s.logInfo("programming session started", "device", s.profile.Name)

	if err := s.enable(); err != nil {
		return nil, err
	}
	if err := s.engine.ChipErase(); err != nil {
		return nil, errors.Wrap(err, "chip erase")
	}
	s.logDebug("chip erased")

	ld := newHexLoader(src, s.profile, s.engine, s.cfg.ReadTimeout, func(written int) {
		s.reportProgress(Progress{
			BytesWritten: written,
			Elapsed:      time.Since(start),
		})
	})

	if err := ld.run(); err != nil {
		s.drain(src)
		return nil, err
	}

	res := &Result{
		BytesWritten: ld.written,
		Elapsed:      time.Since(start),
	}

	s.logInfo("programming complete",
		"bytes", res.BytesWritten,
		"elapsed", res.Elapsed.String(),
	)
	return res, nil
}

// Erase performs a standalone chip erase.
func (s *Session) Erase() error {
	if err := s.enable(); err != nil {
		return err
	}
	return errors.Wrap(s.engine.ChipErase(), "chip erase")
}

// WriteConfig programs the configuration byte: section erase, then one
// word write with the unused high byte left erased.
func (s *Session) WriteConfig(value byte) error {
	if err := s.enable(); err != nil {
		return err
	}
	if err := s.engine.SectionErase(device.ConfigBase); err != nil {
		return errors.Wrap(err, "section erase")
	}
	return errors.Wrap(
		s.engine.ProgramWords(device.ConfigBase, []byte{value, 0xFF}),
		"write config byte")
}

// ReadConfig reads the configuration byte.
func (s *Session) ReadConfig() (byte, error) {
	if err := s.mem.SetPointer(device.ConfigBase); err != nil {
		return 0, err
	}
	return s.mem.LoadNext()
}

// ReadMemory fills buf from the target address space starting at addr.
// Used for dumping and offline verification.
func (s *Session) ReadMemory(addr uint16, buf []byte) error {
	if err := s.mem.SetPointer(addr); err != nil {
		return err
	}

	for i := range buf {
		b, err := s.mem.LoadNext()
		if err != nil {
			return err
		}
		buf[i] = b
	}
	return nil
}

func (s *Session) enable() error {
	if s.enabled {
		return nil
	}
	if err := s.engine.Enable(); err != nil {
		return errors.Wrap(err, "enable NVM")
	}

	s.enabled = true
	s.logDebug("NVM interface enabled")
	return nil
}

// drain discards whatever is left of the incoming stream for a bounded
// grace window, so a failed load does not corrupt the next session.
func (s *Session) drain(src Source) {
	deadline := time.Now().Add(s.cfg.DrainWindow)
	for time.Now().Before(deadline) {
		if src.Available() > 0 {
			if _, err := src.ReadByte(); err != nil {
				return
			}
			continue
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (s *Session) reportProgress(p Progress) {
	if s.cfg.Progress != nil {
		s.cfg.Progress(p)
	}
}

func (s *Session) logDebug(msg string, kv ...interface{}) {
	if s.cfg.Logger != nil {
		s.cfg.Logger.Debug(msg, kv...)
	}
}

func (s *Session) logInfo(msg string, kv ...interface{}) {
	if s.cfg.Logger != nil {
		s.cfg.Logger.Info(msg, kv...)
	}
}
