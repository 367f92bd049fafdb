package h7flash

import (
	"errors"
	"io"

	"github.com/sirupsen/logrus"
)

// Opts configures a Device.
type Opts struct {
	// Part is the flash layout. Defaults to STM32H743.
	Part *Part

	// Wait blocks until ready returns true. It is called for every busy
	// poll; the default spins. There is no timeout.
	Wait func(ready func() bool)

	// Logger receives per-operation debug lines and fault warnings.
	Logger logrus.FieldLogger
}

// Device drives the FLASH peripheral through a Bus. Clock and power bring-up
// must be complete before New is called.
//
// A Device is not safe for concurrent use; at most one caller may operate on
// a bank at any time.
type Device struct {
	bus  Bus
	part *Part
	wait func(ready func() bool)
	log  logrus.FieldLogger

	// idle[b] reports whether bank b is free.
	idle []func() bool
}

// New returns a Device for bus. It performs no bus access.
func New(bus Bus, opts *Opts) (*Device, error) {
	if bus == nil {
		return nil, errors.New("h7flash: nil bus")
	}
	if opts == nil {
		opts = &Opts{}
	}
	d := &Device{
		bus:  bus,
		part: opts.Part,
		wait: opts.Wait,
		log:  opts.Logger,
	}
	if d.part == nil {
		d.part = &STM32H743
	}
	if err := d.part.validate(); err != nil {
		return nil, err
	}
	for b := range d.part.Banks() {
		d.idle = append(d.idle, func() bool {
			return d.Status(b)&d.part.BusyMask == 0
		})
	}
	if d.wait == nil {
		d.wait = spin
	}
	if d.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		d.log = l
	}
	return d, nil
}

func spin(ready func() bool) {
	for !ready() {
	}
}

// Part returns the layout the device was configured with.
func (d *Device) Part() *Part { return d.part }

// Status returns the current status register of bank.
func (d *Device) Status(bank int) StatusRegister {
	return StatusRegister(d.bus.ReadReg(SR(bank)))
}

// Locked reports whether bank's control register is locked.
func (d *Device) Locked(bank int) bool {
	return ControlRegister(d.bus.ReadReg(CR(bank))).Locked()
}

// Read returns n bytes starting at addr. Flash is always readable, so no
// unlock takes place.
func (d *Device) Read(addr uint32, n int) ([]byte, error) {
	if err := d.part.checkRange(addr, n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	d.bus.Load(addr, out)
	return out, nil
}

// Flash is the handle of one logical flash user. It owns the right to erase
// and program its sector for its whole lifetime.
type Flash struct {
	d      *Device
	sector Sector
}

// NewFlash binds sector index of d. It performs no bus access.
func NewFlash(d *Device, index int) (*Flash, error) {
	s, err := d.part.Resolve(index)
	if err != nil {
		return nil, err
	}
	return &Flash{d: d, sector: s}, nil
}

func (f *Flash) Sector() Sector { return f.sector }
func (f *Flash) Base() uint32   { return f.sector.Base }
func (f *Flash) Size() int      { return int(f.sector.Size) }

// Erase erases the handle's sector.
func (f *Flash) Erase() error {
	return f.d.EraseSector(f.sector.Index)
}

// Write programs data at offset off of the sector. The sector must have
// been erased. len(data) must be a multiple of WordSize and at most
// Part.MaxWrite.
func (f *Flash) Write(off int, data []byte) error {
	addr, err := f.d.part.ValidateAccess(f.sector.Index, off, len(data))
	if err != nil {
		return err
	}
	return f.d.Program(addr, data)
}

// Read returns n bytes at offset off of the sector.
func (f *Flash) Read(off, n int) ([]byte, error) {
	if err := f.sector.checkWithin(off, n); err != nil {
		return nil, err
	}
	return f.d.Read(f.sector.Base+uint32(off), n)
}
