package h7flash

func (d *Device) cr(bank int) ControlRegister {
	return ControlRegister(d.bus.ReadReg(CR(bank)))
}

// modify performs a read-modify-write of FLASH_CRx as one register write.
func (d *Device) modify(bank int, clear, set ControlRegister) {
	cr := d.cr(bank)
	d.bus.WriteReg(CR(bank), uint32(cr&^clear|set))
}

// busyWait blocks until none of the part's busy bits are set on bank.
func (d *Device) busyWait(bank int) {
	d.wait(d.idle[bank])
}

// acknowledge clears the given status bits through FLASH_CCRx.
func (d *Device) acknowledge(bank int, bits StatusRegister) {
	if bits &= StatusClearable; bits != 0 {
		d.bus.WriteReg(CCR(bank), uint32(bits))
	}
}

// unlock clears the LOCK bit of bank with the key sequence. It is a no-op
// when the bank is already unlocked. A wrong or repeated key locks the
// register until the next reset, so the two keys are written exactly once
// and in order [RM0433|4.5.1].
func (d *Device) unlock(bank int) error {
	if !d.cr(bank).Locked() {
		return nil
	}
	d.busyWait(bank)
	d.bus.WriteReg(KEYR(bank), Key1)
	d.bus.WriteReg(KEYR(bank), Key2)
	if d.cr(bank).Locked() {
		sr := d.Status(bank)
		d.log.WithField("bank", bank).Warnf("unlock failed, SR %s", sr)
		return &FaultError{Op: OpUnlock, Bank: bank, Status: sr}
	}
	return nil
}

// lock sets the LOCK bit of bank. It is always safe to call.
func (d *Device) lock(bank int) {
	d.modify(bank, 0, CtrlLOCK)
}
