package h7flash

import (
	"errors"
	"fmt"
)

// Part describes the flash layout and controller behaviour of one device.
// Part values are fixed at build time and never modified by the driver.
type Part struct {
	Name string

	// RegBase is the physical address of the FLASH register block.
	RegBase uint32

	// Sectors lists the base address of every sector in ascending order.
	// Sector i spans [Sectors[i], Sectors[i+1]) and the last one ends at End.
	Sectors []uint32
	End     uint32 // last valid flash address

	// SectorsPerBank splits Sectors between banks: low indices belong to
	// bank 0, the next SectorsPerBank to bank 1.
	SectorsPerBank int

	// MaxWrite is the largest byte count accepted by one program call.
	MaxWrite int

	// BusyMask selects the status bits that mean "operation in progress".
	BusyMask StatusRegister
	// EraseFaults and ProgramFaults select the status bits that fail an
	// erase or program operation.
	EraseFaults   StatusRegister
	ProgramFaults StatusRegister
}

// WordSize is the programming unit in bytes.
const WordSize = 4

// Key sequence written to FLASH_KEYR to clear the LOCK bit [RM0433|4.5.1].
const (
	Key1 uint32 = 0x4567_0123
	Key2 uint32 = 0xCDEF_89AB
)

// [RM0433|4.3.10 Flash memory error protections]
const defaultFaults = StatusWRPERR | StatusPGSERR | StatusSTRBERR | StatusINCERR | StatusOPERR

// STM32H743 is the 2 MiB dual-bank layout: 8 sectors of 128 KiB per bank.
//
// [RM0433|Table 7. Flash memory organization on STM32H742xI/743xI/753xI]
var STM32H743 = Part{
	Name:    "STM32H743xI",
	RegBase: 0x5200_2000,
	Sectors: []uint32{
		// Bank 1
		0x0800_0000,
		0x0802_0000,
		0x0804_0000,
		0x0806_0000,
		0x0808_0000,
		0x080A_0000,
		0x080C_0000,
		0x080E_0000,
		// Bank 2
		0x0810_0000,
		0x0812_0000,
		0x0814_0000,
		0x0816_0000,
		0x0818_0000,
		0x081A_0000,
		0x081C_0000,
		0x081E_0000,
	},
	End:            0x081F_FFFF,
	SectorsPerBank: 8,
	MaxWrite:       2048,

	// QW stays set while the write queue holds a pending flash word, BSY only
	// while the array is being modified. Both have to clear before the
	// controller accepts a new command [RM0433|4.3.9].
	BusyMask:      StatusBSY | StatusQW,
	EraseFaults:   defaultFaults,
	ProgramFaults: defaultFaults,
}

// STM32H750 is the single-sector value line part.
var STM32H750 = Part{
	Name:           "STM32H750xB",
	RegBase:        0x5200_2000,
	Sectors:        []uint32{0x0800_0000},
	End:            0x0801_FFFF,
	SectorsPerBank: 8,
	MaxWrite:       2048,
	BusyMask:       StatusBSY | StatusQW,
	EraseFaults:    defaultFaults,
	ProgramFaults:  defaultFaults,
}

// KnownParts maps the names accepted on the command line to part layouts.
var KnownParts = map[string]*Part{
	"stm32h743": &STM32H743,
	"stm32h753": &STM32H743,
	"stm32h750": &STM32H750,
}

func (p *Part) validate() error {
	if len(p.Sectors) == 0 {
		return errors.New("h7flash: part has no sectors")
	}
	if p.SectorsPerBank <= 0 {
		return errors.New("h7flash: SectorsPerBank must be positive")
	}
	if p.MaxWrite <= 0 || p.MaxWrite%WordSize != 0 {
		return fmt.Errorf("h7flash: MaxWrite %d is not a positive multiple of %d", p.MaxWrite, WordSize)
	}
	for i := 1; i < len(p.Sectors); i++ {
		if p.Sectors[i] <= p.Sectors[i-1] {
			return fmt.Errorf("h7flash: sector %d base 0x%08X is not above sector %d", i, p.Sectors[i], i-1)
		}
	}
	if last := p.Sectors[len(p.Sectors)-1]; p.End < last {
		return fmt.Errorf("h7flash: end 0x%08X is below last sector base 0x%08X", p.End, last)
	}
	if p.BusyMask == 0 {
		return errors.New("h7flash: empty busy mask")
	}
	return nil
}

// SectorCount returns the number of sectors across all banks.
func (p *Part) SectorCount() int { return len(p.Sectors) }

// Banks returns the number of banks the sectors are spread over.
func (p *Part) Banks() int {
	return (len(p.Sectors) + p.SectorsPerBank - 1) / p.SectorsPerBank
}
