package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/TaeronKW/tpiflash/config"
	"github.com/TaeronKW/tpiflash/discover"
)

func main() {
	flagListPorts := flag.Bool("list", false, "List candidate programmer ports")
	flagFlash := flag.String("flash", "", "Program the target from an Intel HEX file")
	flagVerify := flag.String("verify", "", "Compare target flash against an Intel HEX file")
	flagDump := flag.String("dump", "", "Dump target flash to an Intel HEX file")
	flagErase := flag.Bool("erase", false, "Erase the target's program memory")
	flagFuse := flag.String("fuse", "", "Program the configuration byte (hex value, e.g. FE)")
	flagReadFuse := flag.Bool("read-fuse", false, "Read the configuration byte")
	flagPort := flag.String("port", "", "Serial port of the programmer bridge (optional)")
	flagConfig := flag.String("config", "", "Path to a YAML configuration file (optional)")
	flagVerbose := flag.Bool("v", false, "Log session details")

	flag.Parse()

	cfg := config.Default()
	if *flagConfig != "" {
		loaded, err := config.Load(*flagConfig)
		if err != nil {
			log.Fatal(err)
		}
		cfg = loaded
	}

	if err := cfg.Apply(); err != nil {
		log.Fatal(err)
	}

	if *flagPort != "" {
		cfg.Port = *flagPort
	}

	switch {
	case *flagListPorts:
		discover.PrintDevices()
	case *flagFlash != "":
		Flash(cfg, *flagFlash, *flagVerbose)
	case *flagVerify != "":
		Verify(cfg, *flagVerify)
	case *flagDump != "":
		Dump(cfg, *flagDump)
	case *flagErase:
		Erase(cfg)
	case *flagFuse != "":
		WriteFuse(cfg, *flagFuse)
	case *flagReadFuse:
		ReadFuse(cfg)
	default:
		fmt.Println("Run with -help to show available flags")
	}
}
