//go:build tinygo

package mmio

import (
	"runtime/volatile"
	"unsafe"

	"github.com/gentam/h7flash"
)

// Bus accesses the FLASH peripheral at its physical addresses.
type Bus struct {
	regBase uintptr
}

var _ h7flash.Bus = (*Bus)(nil)

// Open returns a Bus for part. Bare-metal targets need no mapping.
func Open(part *h7flash.Part) (*Bus, error) {
	return &Bus{regBase: uintptr(part.RegBase)}, nil
}

func (b *Bus) Close() error { return nil }

func (b *Bus) reg(r h7flash.Reg) *volatile.Register32 {
	return (*volatile.Register32)(unsafe.Pointer(b.regBase + uintptr(r)))
}

func (b *Bus) ReadReg(r h7flash.Reg) uint32     { return b.reg(r).Get() }
func (b *Bus) WriteReg(r h7flash.Reg, v uint32) { b.reg(r).Set(v) }

func (b *Bus) Store32(addr uint32, v uint32) {
	(*volatile.Register32)(unsafe.Pointer(uintptr(addr))).Set(v)
}

func (b *Bus) Load(addr uint32, p []byte) {
	for i := range p {
		p[i] = volatile.LoadUint8((*uint8)(unsafe.Pointer(uintptr(addr) + uintptr(i))))
	}
}
