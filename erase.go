package h7flash

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// EraseSector erases one sector, leaving it filled with 0xFF.
func (d *Device) EraseSector(index int) error {
	s, err := d.part.Resolve(index)
	if err != nil {
		return err
	}
	return d.eraseSector(s)
}

// [RM0433|4.3.10 FLASH erase operations, Sector erase]
func (d *Device) eraseSector(s Sector) error {
	d.log.WithFields(logrus.Fields{"bank": s.Bank, "sector": s.Index}).
		Debugf("erase 0x%08X+0x%X", s.Base, s.Size)

	defer d.lock(s.Bank)
	if err := d.unlock(s.Bank); err != nil {
		return err
	}
	d.busyWait(s.Bank)

	// SER and SNB must be stable before START is written.
	snb := ControlRegister(s.Number) << CtrlSNBShift
	d.modify(s.Bank, CtrlSNBMask|CtrlPSIZEMask|CtrlBER|CtrlPG, CtrlSER|CtrlPSIZE32|snb)
	d.modify(s.Bank, 0, CtrlSTART)

	return d.finishErase(s.Bank, s.Base, CtrlSER)
}

// EraseRange erases every sector that shares at least one byte with
// [addr, addr+n), in ascending order. It stops at the first fault; sectors
// erased before it stay erased.
func (d *Device) EraseRange(addr uint32, n int) error {
	if err := d.part.checkRange(addr, n); err != nil {
		return err
	}
	for i := range d.part.Sectors {
		s, err := d.part.Resolve(i)
		if err != nil {
			return err
		}
		if !s.overlaps(addr, n) {
			continue
		}
		if err := d.eraseSector(s); err != nil {
			return fmt.Errorf("erase range [0x%08X, +%d): %w", addr, n, err)
		}
	}
	return nil
}

// EraseBank erases every sector of bank with a single bank erase.
//
// [RM0433|4.3.10 FLASH erase operations, Bank erase]
func (d *Device) EraseBank(bank int) error {
	if bank < 0 || bank >= d.part.Banks() {
		return fmt.Errorf("%w: %d (part has %d)", ErrInvalidBank, bank, d.part.Banks())
	}
	base := d.part.Sectors[bank*d.part.SectorsPerBank]
	d.log.WithField("bank", bank).Debugf("bank erase from 0x%08X", base)

	defer d.lock(bank)
	if err := d.unlock(bank); err != nil {
		return err
	}
	d.busyWait(bank)

	d.modify(bank, CtrlSER|CtrlPSIZEMask|CtrlPG, CtrlBER|CtrlPSIZE32)
	d.modify(bank, 0, CtrlSTART)

	return d.finishErase(bank, base, CtrlBER)
}

// finishErase waits for a started erase, checks the status register and
// leaves the erase mode bit cleared. The caller locks the bank.
func (d *Device) finishErase(bank int, addr uint32, mode ControlRegister) error {
	d.busyWait(bank)
	d.modify(bank, CtrlSTART, 0)

	sr := d.Status(bank)
	if f := sr.Faults(d.part.EraseFaults); f != 0 {
		d.acknowledge(bank, f)
		d.modify(bank, mode, 0)
		d.log.WithField("bank", bank).Warnf("erase fault at 0x%08X, SR %s", addr, sr)
		return &FaultError{Op: OpErase, Bank: bank, Addr: addr, Status: sr}
	}
	d.acknowledge(bank, sr&StatusEOP)
	d.modify(bank, mode, 0)
	return nil
}
