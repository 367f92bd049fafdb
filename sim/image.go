package sim

import (
	"fmt"
	"io"

	"github.com/marcinbor85/gohex"
)

// imageBlock is the granularity at which erased runs are left out of dumps.
const imageBlock = 256

// LoadHex replaces the array contents with an Intel HEX image. Addresses not
// covered by the image read as erased.
func (f *Flash) LoadHex(r io.Reader) error {
	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(r); err != nil {
		return fmt.Errorf("parse image: %w", err)
	}
	base, end := uint64(f.part.Sectors[0]), uint64(f.part.End)
	for _, seg := range mem.GetDataSegments() {
		if a := uint64(seg.Address); a < base || a+uint64(len(seg.Data)) > end+1 {
			return fmt.Errorf("image segment 0x%08X+%d outside flash 0x%08X-0x%08X",
				seg.Address, len(seg.Data), base, end)
		}
	}
	for i := range f.mem {
		f.mem[i] = 0xFF
	}
	for _, seg := range mem.GetDataSegments() {
		copy(f.mem[uint64(seg.Address)-base:], seg.Data)
	}
	return nil
}

// DumpHex writes the array as an Intel HEX image, leaving out blocks that
// are fully erased.
func (f *Flash) DumpHex(w io.Writer) error {
	mem := gohex.NewMemory()
	base := f.part.Sectors[0]
	for start := 0; start < len(f.mem); {
		if erased(f.mem[start:min(start+imageBlock, len(f.mem))]) {
			start += imageBlock
			continue
		}
		end := start
		for end < len(f.mem) && !erased(f.mem[end:min(end+imageBlock, len(f.mem))]) {
			end += imageBlock
		}
		end = min(end, len(f.mem))
		if err := mem.AddBinary(base+uint32(start), f.mem[start:end]); err != nil {
			return err
		}
		start = end
	}
	return mem.DumpIntelHex(w, 16)
}

func erased(b []byte) bool {
	for _, c := range b {
		if c != 0xFF {
			return false
		}
	}
	return true
}
