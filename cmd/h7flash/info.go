package main

import (
	"flag"
	"fmt"
)

func infoCommand(args []string) {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	var mapOnly bool
	fs.BoolVar(&mapOnly, "m", false, "just print the sector map, without touching the device")
	fs.Parse(args)

	part := selectedPart()
	fmt.Printf("Part:            %s\n", part.Name)
	fmt.Printf("Registers:       0x%08X\n", part.RegBase)
	fmt.Printf("Flash:           0x%08X-0x%08X\n", part.Sectors[0], part.End)
	fmt.Printf("Max write:       %d bytes\n", part.MaxWrite)
	for i := range part.SectorCount() {
		s, err := part.Resolve(i)
		if err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("  %2d  bank %d #%d  0x%08X  %4d KiB\n", s.Index, s.Bank, s.Number, s.Base, s.Size>>10)
	}
	if mapOnly {
		return
	}

	d := openDevice()
	defer d.Close()
	for b := range part.Banks() {
		state := "unlocked"
		if d.Locked(b) {
			state = "locked"
		}
		fmt.Printf("Bank %d:          %s, SR %s\n", b, state, d.Status(b))
	}
}
