package main

import (
	"fmt"
	"log"
	"strconv"

	"github.com/TaeronKW/tpiflash/config"
	"github.com/TaeronKW/tpiflash/device"
	"github.com/TaeronKW/tpiflash/memory"
	"github.com/TaeronKW/tpiflash/programmer"
)

// Dump reads the target's program memory into an Intel HEX file.
func Dump(cfg *config.Config, outPath string) {
	link, profile := openTarget(cfg)
	defer link.Close()

	session := programmer.New(link, profile, sessionOptions(cfg, false)...)

	data := make([]byte, profile.FlashSize)
	if err := session.ReadMemory(device.FlashBase, data); err != nil {
		log.Fatal(err)
	}

	if err := memory.SaveHexFile(outPath, 0, data); err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Dumped %d bytes to %s\n", len(data), outPath)
}

// Verify compares the target's program memory against an Intel HEX file
// without programming anything.
func Verify(cfg *config.Config, hexPath string) {
	mem, err := memory.LoadHexFile(hexPath)
	if err != nil {
		log.Fatal(err)
	}

	link, profile := openTarget(cfg)
	defer link.Close()

	session := programmer.New(link, profile, sessionOptions(cfg, false)...)

	want := mem.GetMemRange(0, uint32(profile.FlashSize)-1)
	got := make([]byte, profile.FlashSize)
	if err = session.ReadMemory(device.FlashBase, got); err != nil {
		log.Fatal(err)
	}

	for i := range want {
		if got[i] != want[i] {
			log.Fatalf("mismatch at 0x%04X: file has 0x%02X, device has 0x%02X",
				device.FlashBase+i, want[i], got[i])
		}
	}

	fmt.Printf("Verify OK: %d bytes match\n", len(want))
}

// Erase wipes the target's program memory.
func Erase(cfg *config.Config) {
	link, profile := openTarget(cfg)
	defer link.Close()

	session := programmer.New(link, profile, sessionOptions(cfg, false)...)
	if err := session.Erase(); err != nil {
		log.Fatal(err)
	}

	fmt.Println("Chip erased")
}

// WriteFuse programs the configuration byte.
func WriteFuse(cfg *config.Config, value string) {
	v, err := strconv.ParseUint(value, 16, 8)
	if err != nil {
		log.Fatalf("invalid fuse value %q: expected two hex digits", value)
	}

	link, profile := openTarget(cfg)
	defer link.Close()

	session := programmer.New(link, profile, sessionOptions(cfg, false)...)
	if err := session.WriteConfig(byte(v)); err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Configuration byte set to 0x%02X\n", v)
}

// ReadFuse prints the configuration byte.
func ReadFuse(cfg *config.Config) {
	link, profile := openTarget(cfg)
	defer link.Close()

	session := programmer.New(link, profile, sessionOptions(cfg, false)...)
	v, err := session.ReadConfig()
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Configuration byte: 0x%02X\n", v)
}
