package main

import (
	"flag"
)

func eraseCommand(args []string) {
	fs := flag.NewFlagSet("erase", flag.ExitOnError)
	var (
		sector int
		addr   uint64
		length int
		bank   int
	)
	fs.IntVar(&sector, "s", -1, "sector index to erase")
	fs.Uint64Var(&addr, "a", 0, "start address of the range to erase")
	fs.IntVar(&length, "n", 0, "length of the range to erase")
	fs.IntVar(&bank, "bank", -1, "erase a whole bank")
	fs.Parse(args)

	set := 0
	for _, v := range []bool{sector >= 0, length > 0, bank >= 0} {
		if v {
			set++
		}
	}
	if set != 1 {
		fatalUsage("exactly one of -s, -a/-n or -bank is required")
	}

	d := openDevice()
	defer d.Close()

	var err error
	switch {
	case sector >= 0:
		err = d.EraseSector(sector)
	case bank >= 0:
		err = d.EraseBank(bank)
	default:
		err = d.EraseRange(uint32(addr), length)
	}
	if err != nil {
		d.Close()
		fatalf("erase failed: %v", err)
	}
}
