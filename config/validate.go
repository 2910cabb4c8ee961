package config

import (
	"encoding/hex"
	"fmt"

	"github.com/TaeronKW/tpiflash/device"
)

// Validate checks a loaded configuration. It MUST be called before the
// configuration is applied.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil configuration")
	}

	if cfg.Baud < 0 {
		return fmt.Errorf("config: negative baud rate %d", cfg.Baud)
	}

	for name, v := range map[string]int{
		"read_timeout_ms":   cfg.ReadTimeoutMs,
		"drain_ms":          cfg.DrainMs,
		"busy_timeout_ms":   cfg.BusyTimeoutMs,
		"enable_timeout_ms": cfg.EnableTimeoutMs,
	} {
		if v < 0 {
			return fmt.Errorf("config: negative %s", name)
		}
	}

	for i, d := range cfg.Devices {
		if _, err := d.Profile(); err != nil {
			return fmt.Errorf("config: devices[%d]: %w", i, err)
		}
	}

	return nil
}

// Profile converts a device table row to a device.Profile.
func (d DeviceConfig) Profile() (device.Profile, error) {
	var p device.Profile

	if d.Name == "" {
		return p, fmt.Errorf("missing name")
	}

	sig, err := hex.DecodeString(d.Signature)
	if err != nil || len(sig) != 3 {
		return p, fmt.Errorf("signature must be six hex digits, got %q", d.Signature)
	}

	if d.FlashSize == 0 {
		return p, fmt.Errorf("missing flash_size")
	}

	switch d.PageWords {
	case 1, 2, 4:
	default:
		return p, fmt.Errorf("page_words must be 1, 2 or 4, got %d", d.PageWords)
	}

	p = device.Profile{
		Name:      d.Name,
		Signature: [3]byte{sig[0], sig[1], sig[2]},
		FlashSize: d.FlashSize,
		PageWords: d.PageWords,
	}
	return p, nil
}

// Apply registers the extra device rows with the lookup table.
func (cfg *Config) Apply() error {
	for i, d := range cfg.Devices {
		p, err := d.Profile()
		if err != nil {
			return fmt.Errorf("config: devices[%d]: %w", i, err)
		}
		device.Register(p)
	}
	return nil
}
