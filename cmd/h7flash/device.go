package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/gentam/h7flash"
	"github.com/gentam/h7flash/mmio"
	"github.com/gentam/h7flash/sim"
	"github.com/sirupsen/logrus"
)

// simBusyPolls keeps simulated operations busy for a few status reads so the
// polling path is exercised from the command line too.
const simBusyPolls = 3

type session struct {
	*h7flash.Device
	sim   *sim.Flash
	close func() error
}

// openDevice binds the driver either to the simulator image or to the
// memory-mapped peripheral.
func openDevice() *session {
	part := selectedPart()
	s := &session{}

	var bus h7flash.Bus
	if simImage != "" {
		s.sim = sim.New(part, simBusyPolls)
		f, err := os.Open(simImage)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			logrus.Debugf("%s does not exist, starting erased", simImage)
		case err != nil:
			fatalf("failed to open image: %v", err)
		default:
			err = s.sim.LoadHex(f)
			f.Close()
			if err != nil {
				fatalf("failed to load image: %v", err)
			}
		}
		bus = s.sim
		s.close = s.saveImage
	} else {
		b, err := mmio.Open(part)
		if err != nil {
			fatalf("%v", err)
		}
		bus = b
		s.close = b.Close
	}

	d, err := h7flash.New(bus, &h7flash.Opts{
		Part:   part,
		Logger: logrus.StandardLogger(),
	})
	if err != nil {
		fatalf("%v", err)
	}
	s.Device = d
	return s
}

func (s *session) saveImage() error {
	f, err := os.Create(simImage)
	if err != nil {
		return err
	}
	if err := s.sim.DumpHex(f); err != nil {
		f.Close()
		return fmt.Errorf("write image: %w", err)
	}
	return f.Close()
}

func (s *session) Close() {
	if err := s.close(); err != nil {
		fmt.Fprintln(os.Stderr, "close failed:", err)
	}
}
