package h7flash

import (
	"errors"
	"fmt"
)

// Validation errors are returned before any register is touched.
var (
	ErrInvalidSector    = errors.New("h7flash: invalid sector")
	ErrInvalidBank      = errors.New("h7flash: invalid bank")
	ErrOutOfBounds      = errors.New("h7flash: access out of bounds")
	ErrMisalignedAccess = errors.New("h7flash: misaligned access")
	ErrLengthTooLarge   = errors.New("h7flash: length too large")
)

// Hardware errors. They are always returned as *FaultError, which matches
// these sentinels with errors.Is.
var (
	ErrUnlockFailed = errors.New("h7flash: unlock failed")
	ErrEraseFault   = errors.New("h7flash: erase fault")
	ErrWriteFault   = errors.New("h7flash: write fault")
)

// Op names the operation a FaultError comes from.
type Op int

const (
	OpUnlock Op = iota
	OpErase
	OpWrite
)

func (o Op) String() string {
	switch o {
	case OpUnlock:
		return "unlock"
	case OpErase:
		return "erase"
	case OpWrite:
		return "write"
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// FaultError reports a hardware-detected failure. Status is the FLASH_SRx
// value captured when the fault was seen; the bank is locked again by the
// time the error is returned.
type FaultError struct {
	Op     Op
	Bank   int
	Addr   uint32 // sector base for erase, word address for write
	Status StatusRegister
}

func (e *FaultError) Error() string {
	kind := Decode(e.Status, StatusClearable)
	if e.Op == OpUnlock {
		return fmt.Sprintf("h7flash: unlock failed: bank %d still locked (SR %s)", e.Bank, e.Status)
	}
	return fmt.Sprintf("h7flash: %s fault at 0x%08X on bank %d: %s error (SR %s)",
		e.Op, e.Addr, e.Bank, kind, e.Status)
}

func (e *FaultError) Is(target error) bool {
	switch target {
	case ErrUnlockFailed:
		return e.Op == OpUnlock
	case ErrEraseFault:
		return e.Op == OpErase
	case ErrWriteFault:
		return e.Op == OpWrite
	}
	return false
}
