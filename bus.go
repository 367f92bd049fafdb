package h7flash

// Bus is the register and memory interface the driver depends on.
//
// Registers are addressed by their offset from the FLASH register block;
// memory is addressed by absolute flash address. Implementations must not
// reorder or merge accesses: every call is one bus transaction.
type Bus interface {
	ReadReg(r Reg) uint32
	WriteReg(r Reg, v uint32)

	// Store32 performs one 32-bit store into the flash array.
	Store32(addr uint32, v uint32)
	// Load copies len(p) bytes starting at addr into p.
	Load(addr uint32, p []byte)
}

// Reg is a register offset within the FLASH block.
type Reg uint32

// [RM0433|4.9 FLASH registers, Table 34]
const (
	RegACR     Reg = 0x000
	RegKEYR1   Reg = 0x004
	RegOPTKEYR Reg = 0x008
	RegCR1     Reg = 0x00C
	RegSR1     Reg = 0x010
	RegCCR1    Reg = 0x014
	RegOPTCR   Reg = 0x018
	RegWPSN1   Reg = 0x038

	bankStride Reg = 0x100
)

// Per-bank register offsets. Bank 0 is the hardware's "bank 1".
func KEYR(bank int) Reg { return RegKEYR1 + Reg(bank)*bankStride }
func CR(bank int) Reg   { return RegCR1 + Reg(bank)*bankStride }
func SR(bank int) Reg   { return RegSR1 + Reg(bank)*bankStride }
func CCR(bank int) Reg  { return RegCCR1 + Reg(bank)*bankStride }
func WPSN(bank int) Reg { return RegWPSN1 + Reg(bank)*bankStride }

// ControlRegister is a FLASH_CRx value.
//
//	Bits | [RM0433|4.9.4 FLASH control register for bank 1/2]
//	-----+------------------------------------------------
//	15   | CRC_EN
//	10:8 | SNB: Sector erase selection number
//	7    | START: Erase start
//	6    | FW: Force write
//	5:4  | PSIZE: Program size (0b10 = x32)
//	3    | BER: Bank erase request
//	2    | SER: Sector erase request
//	1    | PG: Internal buffer control
//	0    | LOCK: Configuration lock
type ControlRegister uint32

const (
	CtrlLOCK      ControlRegister = 1 << 0
	CtrlPG        ControlRegister = 1 << 1
	CtrlSER       ControlRegister = 1 << 2
	CtrlBER       ControlRegister = 1 << 3
	CtrlPSIZEMask ControlRegister = 3 << 4
	CtrlPSIZE32   ControlRegister = 2 << 4
	CtrlFW        ControlRegister = 1 << 6
	CtrlSTART     ControlRegister = 1 << 7
	CtrlSNBShift                  = 8
	CtrlSNBMask   ControlRegister = 7 << CtrlSNBShift
	CtrlCRCEN     ControlRegister = 1 << 15
)

// SNB returns the sector number field.
func (cr ControlRegister) SNB() int { return int(cr&CtrlSNBMask) >> CtrlSNBShift }

func (cr ControlRegister) Locked() bool { return cr&CtrlLOCK != 0 }
