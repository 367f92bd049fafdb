package h7flash

func (d *Device) Unlock(bank int) error { return d.unlock(bank) }
func (d *Device) Lock(bank int)         { d.lock(bank) }
