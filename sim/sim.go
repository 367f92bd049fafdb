// Package sim models the STM32H7 FLASH peripheral well enough to exercise
// the h7flash state machine without hardware.
//
// The model applies erase and program effects as soon as they are started
// and then reports BSY|QW for a configurable number of status reads. Bus
// accesses made while an operation is still reported busy are counted as
// violations instead of being rejected, so tests can assert on them.
package sim

import (
	"encoding/binary"

	"github.com/gentam/h7flash"
)

// FlashWordSize is the programming granule of the array: 256 bits.
const FlashWordSize = 32

type bank struct {
	cr         h7flash.ControlRegister
	sr         h7flash.StatusRegister
	keyStep    int
	lockout    bool
	busy       int
	failNext   h7flash.StatusRegister
	failFlush  h7flash.StatusRegister
	flushes    int
	keys       []uint32
	stores     int
	unlocks    int
	eraseCount map[int]int
}

// Flash is a simulated flash array and register block. It implements
// h7flash.Bus. The zero value is not usable; call New.
type Flash struct {
	part       *h7flash.Part
	mem        []byte
	banks      []*bank
	busyPolls  int
	protected  map[int]bool
	violations int
}

var _ h7flash.Bus = (*Flash)(nil)

// New returns an erased array for part. Every operation keeps the bank busy
// for busyPolls status reads.
func New(part *h7flash.Part, busyPolls int) *Flash {
	f := &Flash{
		part:      part,
		mem:       make([]byte, int(part.End-part.Sectors[0])+1),
		busyPolls: busyPolls,
		protected: map[int]bool{},
	}
	for i := range f.mem {
		f.mem[i] = 0xFF
	}
	for range part.Banks() {
		f.banks = append(f.banks, &bank{cr: h7flash.CtrlLOCK, eraseCount: map[int]int{}})
	}
	return f
}

// Reset models a system reset: banks are locked, key lockouts and pending
// operations are cleared. Memory contents survive.
func (f *Flash) Reset() {
	for _, b := range f.banks {
		b.cr = h7flash.CtrlLOCK
		b.sr = 0
		b.keyStep = 0
		b.lockout = false
		b.busy = 0
		b.failNext = 0
		b.failFlush = 0
	}
}

// Protect marks a sector as write protected; erasing or programming it
// sets WRPERR.
func (f *Flash) Protect(index int) { f.protected[index] = true }

// Lockout makes the next unlock of bank fail, as after a wrong key.
func (f *Flash) Lockout(bank int) { f.banks[bank].lockout = true }

// FailNext makes the next erase or store on bank set bits in the status
// register instead of taking effect.
func (f *Flash) FailNext(bank int, bits h7flash.StatusRegister) { f.banks[bank].failNext = bits }

// FailFlush makes the next forced write of a partial flash word on bank set
// bits in the status register.
func (f *Flash) FailFlush(bank int, bits h7flash.StatusRegister) { f.banks[bank].failFlush = bits }

// Locked reports the LOCK bit of bank.
func (f *Flash) Locked(bank int) bool { return f.banks[bank].cr.Locked() }

// Violations counts accesses issued while the addressed bank was busy.
func (f *Flash) Violations() int { return f.violations }

// KeyWrites returns every value written to the key register of bank.
func (f *Flash) KeyWrites(bank int) []uint32 { return f.banks[bank].keys }

// Unlocks counts successful key sequences on bank.
func (f *Flash) Unlocks(bank int) int { return f.banks[bank].unlocks }

// Stores counts the word stores that reached bank.
func (f *Flash) Stores(bank int) int { return f.banks[bank].stores }

// Flushes counts the FW writes that forced out a partial flash word on bank.
func (f *Flash) Flushes(bank int) int { return f.banks[bank].flushes }

// Erases counts how many times sector index was erased.
func (f *Flash) Erases(index int) int {
	b := index / f.part.SectorsPerBank
	return f.banks[b].eraseCount[index]
}

func (f *Flash) decode(r h7flash.Reg) (*bank, int, h7flash.Reg) {
	i := int(r / 0x100)
	if i >= len(f.banks) {
		return nil, i, r
	}
	return f.banks[i], i, r - h7flash.Reg(i)*0x100
}

func (f *Flash) ReadReg(r h7flash.Reg) uint32 {
	b, i, off := f.decode(r)
	if b == nil {
		return 0
	}
	switch off {
	case h7flash.RegCR1:
		return uint32(b.cr)
	case h7flash.RegSR1:
		if b.busy > 0 {
			b.busy--
			return uint32(b.sr | h7flash.StatusBSY | h7flash.StatusQW)
		}
		return uint32(b.sr)
	case h7flash.RegWPSN1:
		// 1 means not protected.
		var v uint32 = 0xFF
		for s := range f.part.SectorsPerBank {
			if f.protected[i*f.part.SectorsPerBank+s] {
				v &^= 1 << s
			}
		}
		return v
	}
	return 0
}

func (f *Flash) WriteReg(r h7flash.Reg, v uint32) {
	b, i, off := f.decode(r)
	if b == nil {
		return
	}
	switch off {
	case h7flash.RegKEYR1:
		f.checkIdle(b)
		f.writeKey(b, v)
	case h7flash.RegCR1:
		f.checkIdle(b)
		f.writeCR(b, i, h7flash.ControlRegister(v))
	case h7flash.RegCCR1:
		b.sr &^= h7flash.StatusRegister(v) & h7flash.StatusClearable
	}
}

func (f *Flash) checkIdle(b *bank) {
	if b.busy > 0 {
		f.violations++
	}
}

// writeKey follows the FLASH_KEYR sequence: any value other than the
// expected key locks the register until Reset.
func (f *Flash) writeKey(b *bank, v uint32) {
	b.keys = append(b.keys, v)
	if b.lockout || !b.cr.Locked() {
		b.lockout = true
		return
	}
	switch {
	case b.keyStep == 0 && v == h7flash.Key1:
		b.keyStep = 1
	case b.keyStep == 1 && v == h7flash.Key2:
		b.keyStep = 0
		b.cr &^= h7flash.CtrlLOCK
		b.unlocks++
	default:
		b.keyStep = 0
		b.lockout = true
	}
}

func (f *Flash) writeCR(b *bank, i int, v h7flash.ControlRegister) {
	if b.cr.Locked() {
		// Only LOCK itself is writable while locked.
		return
	}
	started := v&h7flash.CtrlSTART != 0 && b.cr&h7flash.CtrlSTART == 0
	b.cr = v &^ h7flash.CtrlFW
	if v&h7flash.CtrlFW != 0 && b.sr.WriteBufferFull() {
		f.flush(b)
	}
	if !started {
		return
	}
	b.busy = f.busyPolls
	if b.failNext != 0 {
		b.sr |= b.failNext
		b.failNext = 0
		return
	}
	first := i * f.part.SectorsPerBank
	var targets []int
	switch {
	case v&h7flash.CtrlSER != 0 && v&h7flash.CtrlBER == 0:
		targets = []int{first + v.SNB()}
	case v&h7flash.CtrlBER != 0 && v&h7flash.CtrlSER == 0:
		for s := first; s < first+f.part.SectorsPerBank && s < f.part.SectorCount(); s++ {
			targets = append(targets, s)
		}
	default:
		b.sr |= h7flash.StatusPGSERR
		return
	}
	for _, s := range targets {
		if s >= f.part.SectorCount() {
			b.sr |= h7flash.StatusPGSERR
			return
		}
		if f.protected[s] {
			b.sr |= h7flash.StatusWRPERR
			return
		}
	}
	for _, s := range targets {
		sec, _ := f.part.Resolve(s)
		lo := int(sec.Base - f.part.Sectors[0])
		for j := lo; j < lo+int(sec.Size); j++ {
			f.mem[j] = 0xFF
		}
		b.eraseCount[s]++
	}
	b.sr |= h7flash.StatusEOP
}

// flush forces out the pending partial flash word.
func (f *Flash) flush(b *bank) {
	b.sr &^= h7flash.StatusWBNE
	b.busy = f.busyPolls
	b.flushes++
	if b.failFlush != 0 {
		b.sr |= b.failFlush
		b.failFlush = 0
		return
	}
	b.sr |= h7flash.StatusEOP
}

// Store32 programs one word. Programming can only clear bits.
func (f *Flash) Store32(addr uint32, v uint32) {
	sec, err := f.sectorAt(addr)
	if err != nil {
		return
	}
	b := f.banks[sec.Bank]
	f.checkIdle(b)
	b.busy = f.busyPolls
	if b.failNext != 0 {
		b.sr |= b.failNext
		b.failNext = 0
		return
	}
	if addr%h7flash.WordSize != 0 || b.cr.Locked() || b.cr&h7flash.CtrlPG == 0 {
		b.sr |= h7flash.StatusPGSERR
		return
	}
	if f.protected[sec.Index] {
		b.sr |= h7flash.StatusWRPERR
		return
	}
	off := int(addr - f.part.Sectors[0])
	old := binary.LittleEndian.Uint32(f.mem[off:])
	binary.LittleEndian.PutUint32(f.mem[off:], old&v)
	b.stores++
	// WBNE stays set until the last word of the flash word is stored.
	if (addr+h7flash.WordSize)%FlashWordSize != 0 {
		b.sr |= h7flash.StatusWBNE
		return
	}
	b.sr &^= h7flash.StatusWBNE
	b.sr |= h7flash.StatusEOP
}

// Load copies flash contents; addresses outside the array read as zero.
func (f *Flash) Load(addr uint32, p []byte) {
	for i := range p {
		a := uint64(addr) + uint64(i)
		if a < uint64(f.part.Sectors[0]) || a > uint64(f.part.End) {
			p[i] = 0
			continue
		}
		p[i] = f.mem[a-uint64(f.part.Sectors[0])]
	}
}

func (f *Flash) sectorAt(addr uint32) (h7flash.Sector, error) {
	i := 0
	for i+1 < f.part.SectorCount() && f.part.Sectors[i+1] <= addr {
		i++
	}
	s, err := f.part.Resolve(i)
	if err != nil {
		return s, err
	}
	if addr < s.Base || uint64(addr) >= s.End() {
		return s, h7flash.ErrOutOfBounds
	}
	return s, nil
}
