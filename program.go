package h7flash

import (
	"encoding/binary"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Program writes data to the erased flash at addr, one 32-bit word at a
// time. addr must be word aligned, len(data) a multiple of WordSize no
// larger than Part.MaxWrite, and the range must stay within one bank.
//
// On a fault the words already written stay written.
func (d *Device) Program(addr uint32, data []byte) error {
	if err := d.part.checkLength(len(data)); err != nil {
		return err
	}
	if addr%WordSize != 0 {
		return fmt.Errorf("%w: address 0x%08X is not %d-byte aligned", ErrMisalignedAccess, addr, WordSize)
	}
	if err := d.part.checkRange(addr, len(data)); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	first, err := d.part.sectorAt(addr)
	if err != nil {
		return err
	}
	last, err := d.part.sectorAt(addr + uint32(len(data)) - 1)
	if err != nil {
		return err
	}
	if first.Bank != last.Bank {
		return fmt.Errorf("%w: [0x%08X, +%d) crosses from bank %d to bank %d",
			ErrOutOfBounds, addr, len(data), first.Bank, last.Bank)
	}
	return d.program(first.Bank, addr, data)
}

// [RM0433|4.3.9 FLASH program operations]
func (d *Device) program(bank int, addr uint32, data []byte) error {
	d.log.WithFields(logrus.Fields{"bank": bank, "len": len(data)}).Debugf("program 0x%08X", addr)

	defer d.lock(bank)
	if err := d.unlock(bank); err != nil {
		return err
	}
	d.busyWait(bank)
	d.modify(bank, CtrlSER|CtrlBER|CtrlPSIZEMask, CtrlPSIZE32)

	for off := 0; off < len(data); off += WordSize {
		a := addr + uint32(off)
		d.modify(bank, 0, CtrlPG)
		d.bus.Store32(a, binary.LittleEndian.Uint32(data[off:]))

		// No store may be issued while the previous one is in progress.
		d.busyWait(bank)
		if err := d.checkProgram(bank, a); err != nil {
			return err
		}
	}

	// A partial flash word sits in the write buffer until forced out.
	if d.Status(bank).WriteBufferFull() {
		d.modify(bank, 0, CtrlFW)
		d.busyWait(bank)
		if err := d.checkProgram(bank, addr+uint32(len(data))-WordSize); err != nil {
			return err
		}
	}

	d.acknowledge(bank, d.Status(bank)&StatusEOP)
	d.modify(bank, CtrlPG, 0)
	return nil
}

// checkProgram decodes the status register after a store. On a fault it
// acknowledges the fault bits and leaves programming disabled.
func (d *Device) checkProgram(bank int, addr uint32) error {
	sr := d.Status(bank)
	f := sr.Faults(d.part.ProgramFaults)
	if f == 0 {
		return nil
	}
	d.acknowledge(bank, f)
	d.modify(bank, CtrlPG, 0)
	d.log.WithField("bank", bank).Warnf("write fault at 0x%08X, SR %s", addr, sr)
	return &FaultError{Op: OpWrite, Bank: bank, Addr: addr, Status: sr}
}
