// Package device identifies TPI targets and describes their memory layout.
package device

import (
	"errors"
	"fmt"
)

// Target address space landmarks, shared by the whole device family.
const (
	// FlashBase is where program memory starts in the data address space.
	FlashBase = 0x4000

	// ConfigBase is the configuration (fuse) byte location.
	ConfigBase = 0x3F40

	// SignatureBase is the first of the three device ID bytes.
	SignatureBase = 0x3FC0
)

// ErrUnknownDevice - The signature read from the target matches no profile
var ErrUnknownDevice = errors.New("device: unknown signature")

// Profile describes one supported target. It is fixed once identification
// completes; all addressing and write grouping derives from it.
type Profile struct {
	Name      string
	Signature [3]byte

	// FlashSize is the program memory capacity in bytes.
	FlashSize uint16

	// PageWords is how many 16-bit words one NVM program operation
	// writes: 1, 2 or 4 depending on the family member.
	PageWords int

	// Reduced marks the smallest family variants whose peripheral
	// layout differs from the rest.
	Reduced bool
}

// GroupSize returns the write group size in bytes.
func (p *Profile) GroupSize() int {
	return 2 * p.PageWords
}

func (p *Profile) String() string {
	return fmt.Sprintf("%s (%d B flash, %d-word writes)", p.Name, p.FlashSize, p.PageWords)
}

// Known devices list. Adding support for a device means adding a row here
// (or registering one at runtime via Register).
var profiles = []Profile{
	{Name: "ATtiny4", Signature: [3]byte{0x1E, 0x8F, 0x0A}, FlashSize: 512, PageWords: 1, Reduced: true},
	{Name: "ATtiny5", Signature: [3]byte{0x1E, 0x8F, 0x09}, FlashSize: 512, PageWords: 1, Reduced: true},
	{Name: "ATtiny9", Signature: [3]byte{0x1E, 0x90, 0x08}, FlashSize: 1024, PageWords: 1},
	{Name: "ATtiny10", Signature: [3]byte{0x1E, 0x90, 0x03}, FlashSize: 1024, PageWords: 1},
	{Name: "ATtiny102", Signature: [3]byte{0x1E, 0x90, 0x0C}, FlashSize: 1024, PageWords: 1},
	{Name: "ATtiny104", Signature: [3]byte{0x1E, 0x90, 0x0B}, FlashSize: 1024, PageWords: 1},
	{Name: "ATtiny20", Signature: [3]byte{0x1E, 0x91, 0x0F}, FlashSize: 2048, PageWords: 2},
	{Name: "ATtiny40", Signature: [3]byte{0x1E, 0x92, 0x0E}, FlashSize: 4096, PageWords: 4},
}

// Register adds a profile to the lookup table, replacing any existing
// entry with the same signature.
func Register(p Profile) {
	for i := range profiles {
		if profiles[i].Signature == p.Signature {
			profiles[i] = p
			return
		}
	}
	profiles = append(profiles, p)
}

// Lookup resolves a signature to a device profile.
func Lookup(sig [3]byte) (*Profile, error) {
	for _, p := range profiles {
		if p.Signature == sig {
			found := p
			return &found, nil
		}
	}
	return nil, fmt.Errorf("%w: %02X %02X %02X", ErrUnknownDevice, sig[0], sig[1], sig[2])
}

// Reader is the slice of the register layer identification needs.
type Reader interface {
	SetPointer(addr uint16) error
	LoadNext() (byte, error)
}

// Identify reads the three signature bytes off the target and resolves
// them to a profile. Callers must not start programming when the returned
// error is ErrUnknownDevice; the signature alone is not enough to pick
// safe write grouping.
func Identify(r Reader) (*Profile, error) {
	if err := r.SetPointer(SignatureBase); err != nil {
		return nil, err
	}

	var sig [3]byte
	for i := range sig {
		b, err := r.LoadNext()
		if err != nil {
			return nil, err
		}
		sig[i] = b
	}

	return Lookup(sig)
}
