package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"go-seqengine/event"
	"go-seqengine/midi"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "list":
		listPorts()
	case "poll":
		pollDevices()
	case "monitor":
		match := ""
		if len(os.Args) > 2 {
			match = os.Args[2]
		}
		monitor(match)
	default:
		usage()
	}
}

func usage() {
	fmt.Println("MIDI Test Scripts")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list            - List all MIDI ports")
	fmt.Println("  poll            - Watch for device connects and disconnects")
	fmt.Println("  monitor [name]  - Print engine event records from an input")
}

func listPorts() {
	fmt.Println("=== MIDI Input Ports ===")
	fmt.Println("(waiting up to 3 seconds...)")

	ports, err := midi.Ports()
	if errors.Is(err, midi.ErrPortsTimeout) {
		fmt.Println("\nTIMEOUT! CoreMIDI is hung.")
		fmt.Println("Fix: sudo killall coreaudiod midiserver")
		return
	}

	for i, name := range ports.InNames() {
		fmt.Printf("  %d: %s\n", i, name)
	}
	fmt.Println("\n=== MIDI Output Ports ===")
	for i, name := range ports.OutNames() {
		fmt.Printf("  %d: %s\n", i, name)
	}
}

func interruptContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func pollDevices() {
	fmt.Println("Watching for device changes. Ctrl+C to exit.")

	ctx, cancel := interruptContext()
	defer cancel()

	dm := midi.NewDeviceManager("")
	go dm.Run(ctx)

	for ev := range dm.Events() {
		fmt.Printf("[%s] %s: %s\n", time.Now().Format("15:04:05"), ev.Type, ev.ID)
		if ev.Controller != nil {
			fmt.Printf("  -> %s controller\n", ev.Controller.Type())
		}
	}
}

func monitor(match string) {
	ports, err := midi.Ports()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	var kb *midi.KeyboardController
	for i, in := range ports.In {
		name := in.String()
		if match != "" && !strings.Contains(strings.ToLower(name), strings.ToLower(match)) {
			continue
		}
		kb, err = midi.NewKeyboardController(name, ports.In[i])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		break
	}
	if kb == nil {
		fmt.Println("No matching input found")
		return
	}

	ctx, cancel := interruptContext()
	defer cancel()
	go func() {
		<-ctx.Done()
		kb.Close()
	}()

	fmt.Printf("Monitoring %s. Ctrl+C to exit.\n", kb.ID())
	start := time.Now()
	var rec []byte
	midi.Forward(kb, func(d event.MIDIData) {
		// stamp with the wall-clock frame at 48 kHz
		frame := event.Frame(time.Since(start).Seconds() * 48000)
		rec = event.Append(rec[:0], event.NewMIDI(frame, d.Status, d.Data1, d.Data2))
		fmt.Printf("%10d  %s\n", frame, hex.EncodeToString(rec))
	})

	if n := kb.Dropped(); n > 0 {
		fmt.Printf("%d messages dropped\n", n)
	}
}
