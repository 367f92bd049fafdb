package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"github.com/gentam/h7flash"
)

func readCommand(args []string) {
	fs := flag.NewFlagSet("read", flag.ExitOnError)
	var (
		sector  int
		offset  int
		nread   int
		outFile string
	)
	fs.IntVar(&sector, "s", 0, "sector index")
	fs.IntVar(&offset, "o", 0, "offset within the sector")
	fs.IntVar(&nread, "n", 256, "number of bytes to read")
	fs.StringVar(&outFile, "out", "", "output file (default: hexdump)")
	fs.Parse(args)

	d := openDevice()
	defer d.Close()

	f, err := h7flash.NewFlash(d.Device, sector)
	if err != nil {
		fatalf("%v", err)
	}
	data, err := f.Read(offset, nread)
	if err != nil {
		fatalf("read flash failed: %v", err)
	}
	if outFile == "" {
		fmt.Println(hex.Dump(data))
		return
	}
	if err := os.WriteFile(outFile, data, 0644); err != nil {
		fmt.Fprintln(os.Stderr, "write file failed:", err)
	}
}
