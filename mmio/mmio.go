//go:build !tinygo

package mmio

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/gentam/h7flash"
	"periph.io/x/conn/v3/driver/driverreg"
	"periph.io/x/host/v3"
	"periph.io/x/host/v3/pmem"
)

// regBlockSize covers both banks' registers [RM0433|Table 34].
const regBlockSize = 0x200

// Bus accesses the FLASH peripheral through physical memory mappings.
type Bus struct {
	regs  []uint32
	words []uint32
	bytes []byte
	base  uint32

	views []*pmem.View
}

var _ h7flash.Bus = (*Bus)(nil)

var hostInitialized atomic.Bool

// Open initializes periph's host drivers and maps the flash array of part.
func Open(part *h7flash.Part) (*Bus, error) {
	if hostInitialized.CompareAndSwap(false, true) {
		if _, err := host.Init(); err != nil {
			return nil, fmt.Errorf("host initialization failed: %w", err)
		}
	}

	b := &Bus{base: part.Sectors[0]}
	if drv.regs != nil && drv.phys == part.RegBase {
		b.regs = drv.regs
	} else {
		v, err := pmem.Map(uint64(part.RegBase), regBlockSize)
		if err != nil {
			return nil, fmt.Errorf("failed to map FLASH registers at 0x%08X: %w", part.RegBase, err)
		}
		b.views = append(b.views, v)
		b.regs = v.Uint32()
	}

	size := int(part.End-part.Sectors[0]) + 1
	v, err := pmem.Map(uint64(part.Sectors[0]), size)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("failed to map flash array at 0x%08X: %w", part.Sectors[0], err)
	}
	b.views = append(b.views, v)
	b.words = v.Uint32()
	b.bytes = v.Bytes()
	return b, nil
}

// Close releases the mappings made by Open.
func (b *Bus) Close() error {
	var errs []error
	for _, v := range b.views {
		errs = append(errs, v.Close())
	}
	b.views = nil
	return errors.Join(errs...)
}

func (b *Bus) ReadReg(r h7flash.Reg) uint32 {
	return atomic.LoadUint32(&b.regs[r/4])
}

func (b *Bus) WriteReg(r h7flash.Reg, v uint32) {
	atomic.StoreUint32(&b.regs[r/4], v)
}

func (b *Bus) Store32(addr uint32, v uint32) {
	atomic.StoreUint32(&b.words[(addr-b.base)/4], v)
}

func (b *Bus) Load(addr uint32, p []byte) {
	copy(p, b.bytes[addr-b.base:])
}

// driver maps the register block of the default part when host.Init runs.
type driver struct {
	phys uint32
	regs []uint32
}

var drv = driver{phys: h7flash.STM32H743.RegBase}

func (d *driver) String() string          { return "stm32h7-flash" }
func (d *driver) Prerequisites() []string { return nil }
func (d *driver) After() []string         { return nil }

func (d *driver) Init() (bool, error) {
	v, err := pmem.Map(uint64(d.phys), regBlockSize)
	if err != nil {
		// Skipped: not an H7 host, or no access to /dev/mem.
		return false, fmt.Errorf("stm32h7-flash: %w", err)
	}
	d.regs = v.Uint32()
	return true, nil
}

func init() {
	driverreg.MustRegister(&drv)
}
