package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/TaeronKW/tpiflash/config"
	"github.com/TaeronKW/tpiflash/device"
	"github.com/TaeronKW/tpiflash/discover"
	"github.com/TaeronKW/tpiflash/programmer"
	"github.com/TaeronKW/tpiflash/tpi"
	"github.com/TaeronKW/tpiflash/tpilink"
)

// openTarget connects to the bridge, holds the target in reset and
// identifies it. The caller owns the returned link for one session.
func openTarget(cfg *config.Config) (*tpi.Link, *device.Profile) {
	port := cfg.Port
	if port == "" {
		fmt.Println("Port not specified, running auto port discovery...")
		bridge, err := discover.FirstDevice()
		if err != nil {
			log.Fatal(err)
		}
		port = bridge.Port
	}

	fmt.Println("Connecting to: " + port)
	tr, err := tpilink.Open(port, cfg.Baud)
	if err != nil {
		log.Fatal(err)
	}

	link := tpi.NewLink(tr)
	if err = link.Start(); err != nil {
		tr.Close()
		log.Fatal(err)
	}

	profile, err := device.Identify(link)
	if err != nil {
		link.Close()
		log.Fatal(err)
	}

	fmt.Println("Found " + profile.String())
	return link, profile
}

func sessionOptions(cfg *config.Config, verbose bool) []programmer.Option {
	opts := []programmer.Option{
		programmer.WithReadTimeout(time.Duration(cfg.ReadTimeoutMs) * time.Millisecond),
		programmer.WithDrainWindow(time.Duration(cfg.DrainMs) * time.Millisecond),
		programmer.WithBusyTimeout(time.Duration(cfg.BusyTimeoutMs) * time.Millisecond),
		programmer.WithEnableTimeout(time.Duration(cfg.EnableTimeoutMs) * time.Millisecond),
	}

	if verbose {
		opts = append(opts, programmer.WithLogger(stdLogger{}))
	}

	return opts
}

// Flash streams an Intel HEX file to the target.
func Flash(cfg *config.Config, hexPath string, verbose bool) {
	file, err := os.Open(hexPath)
	if err != nil {
		log.Fatal(err)
	}
	defer file.Close()

	link, profile := openTarget(cfg)
	defer link.Close()

	opts := sessionOptions(cfg, verbose)
	opts = append(opts, programmer.WithProgress(func(p programmer.Progress) {
		fmt.Printf("\r%d bytes written", p.BytesWritten)
	}))

	session := programmer.New(link, profile, opts...)

	fmt.Println("Uploading " + hexPath + "...")
	res, err := session.Program(programmer.NewReaderSource(file))
	if err != nil {
		fmt.Println()
		log.Fatal(err)
	}

	fmt.Printf("\rSuccess: %d bytes in %s\n", res.BytesWritten, res.Elapsed.Round(time.Millisecond))

	if err = link.Stop(); err != nil {
		log.Fatal(err)
	}
}

// stdLogger routes session events to the standard logger.
type stdLogger struct{}

func (stdLogger) Debug(msg string, kv ...interface{}) { log.Println(append([]interface{}{msg}, kv...)...) }
func (stdLogger) Info(msg string, kv ...interface{})  { log.Println(append([]interface{}{msg}, kv...)...) }
func (stdLogger) Error(msg string, kv ...interface{}) { log.Println(append([]interface{}{msg}, kv...)...) }
