// Package memory handles Intel HEX firmware images on the host side:
// reference images for offline verification and files produced by dumping
// a target's memory.
package memory

import (
	"os"

	"github.com/marcinbor85/gohex"
)

// Memory - Byte-addressed image built from or destined for an Intel HEX file
type Memory struct {
	*gohex.Memory
}

// GetMemRange - Extract the bytes between fromAddr and toAddr (inclusive).
// Addresses no segment covers read as erased flash (0xFF).
func (m *Memory) GetMemRange(fromAddr uint32, toAddr uint32) []byte {
	res := make([]byte, 0, toAddr-fromAddr+1)

	for addr := fromAddr; addr <= toAddr; addr++ {
		b := byte(0xFF)
		for _, seg := range m.GetDataSegments() {
			if addr >= seg.Address && addr < seg.Address+uint32(len(seg.Data)) {
				b = seg.Data[addr-seg.Address]
				break
			}
		}
		res = append(res, b)
	}

	return res
}

// Size - Number of bytes between the lowest and highest defined address,
// or 0 for an empty image.
func (m *Memory) Size() uint32 {
	segments := m.GetDataSegments()
	if len(segments) == 0 {
		return 0
	}

	low := segments[0].Address
	high := segments[0].Address + uint32(len(segments[0].Data))
	for _, seg := range segments[1:] {
		if seg.Address < low {
			low = seg.Address
		}
		if end := seg.Address + uint32(len(seg.Data)); end > high {
			high = end
		}
	}

	return high - low
}

// LoadHexFile - Parse an Intel HEX file into a Memory
func LoadHexFile(path string) (*Memory, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	mem := gohex.NewMemory()
	if err = mem.ParseIntelHex(file); err != nil {
		return nil, err
	}

	return &Memory{mem}, nil
}

// SaveHexFile - Write data starting at base to path as Intel HEX
func SaveHexFile(path string, base uint32, data []byte) error {
	mem := gohex.NewMemory()
	if err := mem.AddBinary(base, data); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return mem.DumpIntelHex(file, 16)
}
