package h7flash

import "fmt"

// Sector is one erase unit of the flash array.
type Sector struct {
	Index  int    // position in Part.Sectors
	Bank   int    // bank the sector belongs to
	Number int    // sector number within its bank (FLASH_CR.SNB)
	Base   uint32 // first address
	Size   uint32 // length in bytes
}

// End returns the address one past the last byte of s.
func (s Sector) End() uint64 { return uint64(s.Base) + uint64(s.Size) }

func (s Sector) String() string {
	return fmt.Sprintf("sector %d (bank %d #%d) 0x%08X-0x%08X", s.Index, s.Bank, s.Number, s.Base, s.End()-1)
}

// Resolve maps a sector index to its bank and address range.
func (p *Part) Resolve(index int) (Sector, error) {
	if index < 0 || index >= len(p.Sectors) {
		return Sector{}, fmt.Errorf("%w: %d (part has %d)", ErrInvalidSector, index, len(p.Sectors))
	}
	base := p.Sectors[index]
	var size uint32
	if index+1 < len(p.Sectors) {
		size = p.Sectors[index+1] - base
	} else {
		size = p.End - base + 1
	}
	return Sector{
		Index:  index,
		Bank:   index / p.SectorsPerBank,
		Number: index % p.SectorsPerBank,
		Base:   base,
		Size:   size,
	}, nil
}

// ValidateAccess checks a program request of n bytes at offset off within
// sector index and returns the physical address. It has no side effects.
func (p *Part) ValidateAccess(index, off, n int) (uint32, error) {
	s, err := p.Resolve(index)
	if err != nil {
		return 0, err
	}
	if err := p.checkLength(n); err != nil {
		return 0, err
	}
	if off%WordSize != 0 {
		return 0, fmt.Errorf("%w: offset 0x%X is not %d-byte aligned", ErrMisalignedAccess, off, WordSize)
	}
	if err := s.checkWithin(off, n); err != nil {
		return 0, err
	}
	return s.Base + uint32(off), nil
}

func (p *Part) checkLength(n int) error {
	if n%WordSize != 0 {
		return fmt.Errorf("%w: length %d is not a multiple of %d", ErrMisalignedAccess, n, WordSize)
	}
	if n > p.MaxWrite {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrLengthTooLarge, n, p.MaxWrite)
	}
	return nil
}

func (s Sector) checkWithin(off, n int) error {
	if off < 0 || n < 0 || uint64(off)+uint64(n) > uint64(s.Size) {
		return fmt.Errorf("%w: [0x%X, 0x%X) in %d-byte sector %d", ErrOutOfBounds, off, off+n, s.Size, s.Index)
	}
	return nil
}

// checkRange verifies that [addr, addr+n) lies within the flash array.
func (p *Part) checkRange(addr uint32, n int) error {
	if n < 0 || addr < p.Sectors[0] || uint64(addr)+uint64(n) > uint64(p.End)+1 {
		return fmt.Errorf("%w: [0x%08X, +%d) outside 0x%08X-0x%08X", ErrOutOfBounds, addr, n, p.Sectors[0], p.End)
	}
	return nil
}

// sectorAt returns the sector containing addr.
func (p *Part) sectorAt(addr uint32) (Sector, error) {
	if err := p.checkRange(addr, 1); err != nil {
		return Sector{}, err
	}
	i := len(p.Sectors) - 1
	for i > 0 && p.Sectors[i] > addr {
		i--
	}
	return p.Resolve(i)
}

// overlaps reports whether [addr, addr+n) and s share at least one byte.
// A range that starts in s, ends in s or spans s all count.
func (s Sector) overlaps(addr uint32, n int) bool {
	if n <= 0 {
		return false
	}
	start, end := uint64(addr), uint64(addr)+uint64(n)
	return start < s.End() && end > uint64(s.Base)
}
