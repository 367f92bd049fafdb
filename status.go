package h7flash

import (
	"fmt"
	"strings"
)

// StatusRegister is a raw FLASH_SRx snapshot.
//
//	Bits | [RM0433|4.9.5 FLASH status register for bank 1/2]
//	-----+------------------------------------------------
//	27   | CRCEND: CRC end of calculation
//	26   | DBECCERR: ECC double detection error
//	25   | SNECCERR: ECC single correction error
//	24   | RDSERR: Secure error
//	23   | RDPERR: Read protection error
//	22   | OPERR: Write/erase error
//	21   | INCERR: Inconsistency error
//	19   | STRBERR: Strobe error
//	18   | PGSERR: Programming sequence error
//	17   | WRPERR: Write protection error
//	16   | EOP: End of operation
//	3    | CRC_BUSY: CRC busy
//	2    | QW: Wait queue flag
//	1    | WBNE: Write buffer not empty
//	0    | BSY: Busy
//
// The error and EOP bits are cleared by writing the same positions to FLASH_CCRx.
type StatusRegister uint32

const (
	StatusBSY      StatusRegister = 1 << 0
	StatusWBNE     StatusRegister = 1 << 1
	StatusQW       StatusRegister = 1 << 2
	StatusCRCBUSY  StatusRegister = 1 << 3
	StatusEOP      StatusRegister = 1 << 16
	StatusWRPERR   StatusRegister = 1 << 17
	StatusPGSERR   StatusRegister = 1 << 18
	StatusSTRBERR  StatusRegister = 1 << 19
	StatusINCERR   StatusRegister = 1 << 21
	StatusOPERR    StatusRegister = 1 << 22
	StatusRDPERR   StatusRegister = 1 << 23
	StatusRDSERR   StatusRegister = 1 << 24
	StatusSNECCERR StatusRegister = 1 << 25
	StatusDBECCERR StatusRegister = 1 << 26
	StatusCRCEND   StatusRegister = 1 << 27

	// StatusClearable covers every bit FLASH_CCRx can acknowledge.
	StatusClearable = StatusEOP | StatusWRPERR | StatusPGSERR | StatusSTRBERR | StatusINCERR |
		StatusOPERR | StatusRDPERR | StatusRDSERR | StatusSNECCERR | StatusDBECCERR | StatusCRCEND
)

func (sr StatusRegister) Busy() bool             { return sr&StatusBSY != 0 }
func (sr StatusRegister) WriteBufferFull() bool  { return sr&StatusWBNE != 0 }
func (sr StatusRegister) QueueWait() bool        { return sr&StatusQW != 0 }
func (sr StatusRegister) EndOfOperation() bool   { return sr&StatusEOP != 0 }
func (sr StatusRegister) WriteProtected() bool   { return sr&StatusWRPERR != 0 }
func (sr StatusRegister) SequenceError() bool    { return sr&StatusPGSERR != 0 }
func (sr StatusRegister) StrobeError() bool      { return sr&StatusSTRBERR != 0 }
func (sr StatusRegister) Inconsistent() bool     { return sr&StatusINCERR != 0 }
func (sr StatusRegister) OperationError() bool   { return sr&StatusOPERR != 0 }
func (sr StatusRegister) ReadProtectError() bool { return sr&StatusRDPERR != 0 }
func (sr StatusRegister) DoubleECCError() bool   { return sr&StatusDBECCERR != 0 }

// Faults returns the subset of mask that is set in sr.
func (sr StatusRegister) Faults(mask StatusRegister) StatusRegister { return sr & mask }

var statusNames = []struct {
	bit  StatusRegister
	name string
}{
	{StatusCRCEND, "CRCEND"},
	{StatusDBECCERR, "DBECCERR"},
	{StatusSNECCERR, "SNECCERR"},
	{StatusRDSERR, "RDSERR"},
	{StatusRDPERR, "RDPERR"},
	{StatusOPERR, "OPERR"},
	{StatusINCERR, "INCERR"},
	{StatusSTRBERR, "STRBERR"},
	{StatusPGSERR, "PGSERR"},
	{StatusWRPERR, "WRPERR"},
	{StatusEOP, "EOP"},
	{StatusCRCBUSY, "CRC_BUSY"},
	{StatusQW, "QW"},
	{StatusWBNE, "WBNE"},
	{StatusBSY, "BSY"},
}

func (sr StatusRegister) String() string {
	b := fmt.Sprintf("0x%08X", uint32(sr))
	s := []string{}
	for _, n := range statusNames {
		if sr&n.bit != 0 {
			s = append(s, n.name)
		}
	}
	if len(s) == 0 {
		return b
	}
	return b + " " + strings.Join(s, ",")
}

// FaultKind classifies the most significant fault in a status snapshot.
type FaultKind int

const (
	FaultNone FaultKind = iota
	FaultWriteProtect
	FaultSequence
	FaultStrobe
	FaultInconsistency
	FaultOperation
	FaultOther
)

var faultKindNames = [...]string{
	FaultNone:          "none",
	FaultWriteProtect:  "write protection",
	FaultSequence:      "programming sequence",
	FaultStrobe:        "strobe",
	FaultInconsistency: "inconsistency",
	FaultOperation:     "operation",
	FaultOther:         "other",
}

func (k FaultKind) String() string {
	if k < 0 || int(k) >= len(faultKindNames) {
		return fmt.Sprintf("FaultKind(%d)", int(k))
	}
	return faultKindNames[k]
}

// Decode reports the fault class of sr restricted to mask. Write protection
// wins over the sequencing errors because a protected sector sets several
// bits at once and WRPERR names the cause.
func Decode(sr StatusRegister, mask StatusRegister) FaultKind {
	f := sr.Faults(mask)
	switch {
	case f == 0:
		return FaultNone
	case f&StatusWRPERR != 0:
		return FaultWriteProtect
	case f&StatusPGSERR != 0:
		return FaultSequence
	case f&StatusSTRBERR != 0:
		return FaultStrobe
	case f&StatusINCERR != 0:
		return FaultInconsistency
	case f&StatusOPERR != 0:
		return FaultOperation
	default:
		return FaultOther
	}
}
