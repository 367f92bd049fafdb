package main

import (
	"flag"
	"io"
	"os"

	"github.com/gentam/h7flash"
)

func writeCommand(args []string) {
	fs := flag.NewFlagSet("write", flag.ExitOnError)
	var (
		filename string
		sector   int
		offset   int
		erase    bool
	)
	fs.StringVar(&filename, "f", "", "input file")
	fs.IntVar(&sector, "s", -1, "target sector index")
	fs.IntVar(&offset, "o", 0, "offset within the sector")
	fs.BoolVar(&erase, "e", false, "erase the sector first")
	fs.Parse(args)

	if filename == "" {
		fatalUsage("input file is required")
	}
	if sector < 0 {
		fatalUsage("sector is required")
	}

	input, err := os.Open(filename)
	if err != nil {
		fatalf("failed to open file: %v", err)
	}
	defer input.Close()

	d := openDevice()
	defer d.Close()

	f, err := h7flash.NewFlash(d.Device, sector)
	if err != nil {
		fatalf("%v", err)
	}
	if erase {
		if err := f.Erase(); err != nil {
			d.Close()
			fatalf("erase flash failed: %v", err)
		}
	}
	if err := writeChunks(f, offset, input, d.Part().MaxWrite); err != nil {
		d.Close()
		fatalf("write flash failed: %v", err)
	}
}

// writeChunks programs r into f starting at off, at most chunk bytes per call.
// A short final chunk is padded with 0xFF to a whole word.
func writeChunks(f *h7flash.Flash, off int, r io.Reader, chunk int) error {
	buf := make([]byte, chunk)
	for {
		n, err := io.ReadFull(r, buf)
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return err
		}
		if n == 0 {
			return nil
		}
		for n%h7flash.WordSize != 0 {
			buf[n] = 0xFF
			n++
		}
		if werr := f.Write(off, buf[:n]); werr != nil {
			return werr
		}
		off += n
		if err != nil {
			return nil
		}
	}
}
