// Package discover finds serial ports that look like a connected
// programmer bridge.
package discover

import (
	"errors"
	"fmt"

	"github.com/albenik/go-serial/v2/enumerator"
)

// Bridge - One candidate programmer port
type Bridge struct {
	Port string // serial port the bridge is on
	VID  string // USB vendor ID, empty for non-USB ports
	PID  string // USB product ID, empty for non-USB ports
}

// AllDevices - List every USB serial port as a candidate bridge
func AllDevices() []Bridge {
	found := []Bridge{}

	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return found
	}

	for _, port := range ports {
		if port.IsUSB {
			found = append(found, Bridge{
				Port: port.Name,
				VID:  port.VID,
				PID:  port.PID,
			})
		}
	}

	return found
}

// FirstDevice - Pick the first candidate bridge
func FirstDevice() (*Bridge, error) {
	devices := AllDevices()
	if len(devices) == 0 {
		return nil, errors.New("no candidate programmer ports found")
	}

	return &devices[0], nil
}

// PrintDevices - Print every candidate bridge to standard output
func PrintDevices() {
	devices := AllDevices()
	if len(devices) == 0 {
		fmt.Println("No candidate programmer ports found")
		return
	}

	for _, d := range devices {
		fmt.Printf("%s\tUSB %s:%s\n", d.Port, d.VID, d.PID)
	}
}
