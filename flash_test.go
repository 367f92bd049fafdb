package h7flash_test

import (
	"bytes"
	"errors"
	"slices"
	"testing"

	"github.com/gentam/h7flash"
	"github.com/gentam/h7flash/sim"
)

const faults = h7flash.StatusWRPERR | h7flash.StatusPGSERR | h7flash.StatusSTRBERR |
	h7flash.StatusINCERR | h7flash.StatusOPERR

// testPart has two 8 KiB sectors in bank 0 and one in bank 1.
var testPart = h7flash.Part{
	Name:           "test",
	Sectors:        []uint32{0x0000, 0x2000, 0x4000},
	End:            0x5FFF,
	SectorsPerBank: 2,
	MaxWrite:       2048,
	BusyMask:       h7flash.StatusBSY | h7flash.StatusQW,
	EraseFaults:    faults,
	ProgramFaults:  faults,
}

func newDevice(t *testing.T, part *h7flash.Part, busyPolls int) (*h7flash.Device, *sim.Flash) {
	t.Helper()
	s := sim.New(part, busyPolls)
	d, err := h7flash.New(s, &h7flash.Opts{
		Part: part,
		Wait: func(ready func() bool) {
			for i := 0; !ready(); i++ {
				if i > 1000 {
					t.Fatalf("bank still busy after %d polls", i)
				}
			}
		},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return d, s
}

func newFlash(t *testing.T, d *h7flash.Device, index int) *h7flash.Flash {
	t.Helper()
	f, err := h7flash.NewFlash(d, index)
	if err != nil {
		t.Fatalf("NewFlash(%d) error: %v", index, err)
	}
	return f
}

func assertLocked(t *testing.T, d *h7flash.Device, s *sim.Flash) {
	t.Helper()
	for b := range d.Part().Banks() {
		if !s.Locked(b) {
			t.Errorf("bank %d left unlocked", b)
		}
		cr := h7flash.ControlRegister(s.ReadReg(h7flash.CR(b)))
		if mode := cr & (h7flash.CtrlSER | h7flash.CtrlBER | h7flash.CtrlPG | h7flash.CtrlSTART | h7flash.CtrlFW); mode != 0 {
			t.Errorf("bank %d CR = %#x, operation bits %#x still set", b, uint32(cr), uint32(mode))
		}
	}
}

func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + 3)
	}
	return b
}

func TestNew(t *testing.T) {
	if _, err := h7flash.New(nil, nil); err == nil {
		t.Error("New(nil) should fail")
	}
	d, err := h7flash.New(sim.New(&h7flash.STM32H743, 0), nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if d.Part() != &h7flash.STM32H743 {
		t.Errorf("default part = %s, want %s", d.Part().Name, h7flash.STM32H743.Name)
	}
	bad := testPart
	bad.Sectors = nil
	if _, err := h7flash.New(sim.New(&testPart, 0), &h7flash.Opts{Part: &bad}); err == nil {
		t.Error("New() with an empty part should fail")
	}
}

func TestNewFlashInvalidSector(t *testing.T) {
	d, _ := newDevice(t, &testPart, 0)
	for _, i := range []int{-1, 3} {
		if _, err := h7flash.NewFlash(d, i); !errors.Is(err, h7flash.ErrInvalidSector) {
			t.Errorf("NewFlash(%d) error = %v, want ErrInvalidSector", i, err)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	d, s := newDevice(t, &testPart, 2)
	f := newFlash(t, d, 0)

	if err := f.Erase(); err != nil {
		t.Fatalf("Erase() error: %v", err)
	}
	want := []byte{0xAA, 0xBB, 0xCC, 0xDD}
	if err := f.Write(0, want); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	got, err := f.Read(0, 4)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Read() = % X, want % X", got, want)
	}
	assertLocked(t, d, s)
}

func TestRoundTripH743(t *testing.T) {
	tests := []struct {
		sector int
		off    int
		n      int
	}{
		{0, 0, 2048},
		{7, 0x1F800, 2048},
		{8, 0x100, 4},
		{15, 128<<10 - 64, 64},
	}
	d, s := newDevice(t, &h7flash.STM32H743, 3)
	for _, tt := range tests {
		f := newFlash(t, d, tt.sector)
		want := pattern(tt.n)
		if err := f.Erase(); err != nil {
			t.Fatalf("sector %d: Erase() error: %v", tt.sector, err)
		}
		if err := f.Write(tt.off, want); err != nil {
			t.Fatalf("sector %d: Write() error: %v", tt.sector, err)
		}
		got, err := f.Read(tt.off, tt.n)
		if err != nil {
			t.Fatalf("sector %d: Read() error: %v", tt.sector, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("sector %d: read back differs from written data", tt.sector)
		}
	}
	if s.Violations() != 0 {
		t.Errorf("%d accesses while busy", s.Violations())
	}
	assertLocked(t, d, s)
}

func TestEraseFillsSector(t *testing.T) {
	d, s := newDevice(t, &testPart, 1)
	f := newFlash(t, d, 1)
	if err := f.Write(0x10, pattern(16)); err != nil {
		t.Fatal(err)
	}
	if err := f.Erase(); err != nil {
		t.Fatal(err)
	}
	got, err := f.Read(0, f.Size())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, bytes.Repeat([]byte{0xFF}, f.Size())) {
		t.Error("sector not erased")
	}
	assertLocked(t, d, s)
}

func TestWriteRejected(t *testing.T) {
	tests := []struct {
		name    string
		off     int
		data    []byte
		wantErr error
	}{
		{"length 3", 0, []byte{1, 2, 3}, h7flash.ErrMisalignedAccess},
		{"unaligned offset", 2, pattern(4), h7flash.ErrMisalignedAccess},
		{"too large", 0, pattern(2052), h7flash.ErrLengthTooLarge},
		{"past end", 0x2000 - 4, pattern(8), h7flash.ErrOutOfBounds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, s := newDevice(t, &testPart, 1)
			f := newFlash(t, d, 0)
			if err := f.Write(tt.off, tt.data); !errors.Is(err, tt.wantErr) {
				t.Fatalf("Write() error = %v, want %v", err, tt.wantErr)
			}
			if s.Stores(0) != 0 || len(s.KeyWrites(0)) != 0 {
				t.Errorf("rejected write touched the hardware: %d stores, %d key writes",
					s.Stores(0), len(s.KeyWrites(0)))
			}
			got, err := f.Read(0, 8)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, bytes.Repeat([]byte{0xFF}, 8)) {
				t.Errorf("Read() = % X, want erased", got)
			}
		})
	}
}

func TestLockedAfterReturn(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(*sim.Flash)
		op      func(*h7flash.Flash) error
		wantErr error
	}{
		{"erase", nil, (*h7flash.Flash).Erase, nil},
		{"write", nil, func(f *h7flash.Flash) error { return f.Write(0, pattern(64)) }, nil},
		{"erase protected", func(s *sim.Flash) { s.Protect(0) }, (*h7flash.Flash).Erase, h7flash.ErrEraseFault},
		{"write protected", func(s *sim.Flash) { s.Protect(0) },
			func(f *h7flash.Flash) error { return f.Write(0, pattern(64)) }, h7flash.ErrWriteFault},
		{"erase unlock failure", func(s *sim.Flash) { s.Lockout(0) }, (*h7flash.Flash).Erase, h7flash.ErrUnlockFailed},
		{"write unlock failure", func(s *sim.Flash) { s.Lockout(0) },
			func(f *h7flash.Flash) error { return f.Write(0, pattern(4)) }, h7flash.ErrUnlockFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, s := newDevice(t, &testPart, 2)
			if tt.setup != nil {
				tt.setup(s)
			}
			err := tt.op(newFlash(t, d, 0))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			assertLocked(t, d, s)
			if d.Locked(0) != s.Locked(0) {
				t.Errorf("Device.Locked(0) = %v, sim reports %v", d.Locked(0), s.Locked(0))
			}
		})
	}
}

func TestUnlockFailed(t *testing.T) {
	d, s := newDevice(t, &testPart, 0)
	s.Lockout(1)
	err := newFlash(t, d, 2).Erase()
	var fe *h7flash.FaultError
	if !errors.As(err, &fe) || fe.Op != h7flash.OpUnlock || fe.Bank != 1 {
		t.Fatalf("Erase() error = %v, want unlock fault on bank 1", err)
	}
	if s.Erases(2) != 0 {
		t.Error("sector erased although unlock failed")
	}
	// Bank 0 is unaffected.
	if err := newFlash(t, d, 0).Erase(); err != nil {
		t.Errorf("bank 0 Erase() error: %v", err)
	}
}

func TestKeySequence(t *testing.T) {
	d, s := newDevice(t, &testPart, 1)
	f := newFlash(t, d, 0)
	if err := f.Erase(); err != nil {
		t.Fatal(err)
	}
	if err := f.Write(0, pattern(8)); err != nil {
		t.Fatal(err)
	}
	want := []uint32{h7flash.Key1, h7flash.Key2, h7flash.Key1, h7flash.Key2}
	if got := s.KeyWrites(0); !slices.Equal(got, want) {
		t.Errorf("KeyWrites(0) = %#x, want %#x", got, want)
	}
	if len(s.KeyWrites(1)) != 0 {
		t.Errorf("bank 1 keys written: %#x", s.KeyWrites(1))
	}
}

func TestUnlockIdempotent(t *testing.T) {
	d, s := newDevice(t, &testPart, 0)
	if err := d.Unlock(0); err != nil {
		t.Fatal(err)
	}
	if err := d.Unlock(0); err != nil {
		t.Fatalf("second Unlock() error: %v", err)
	}
	if n := len(s.KeyWrites(0)); n != 2 {
		t.Errorf("%d key writes, want 2", n)
	}
	if s.Locked(0) {
		t.Error("bank locked after Unlock()")
	}
	d.Lock(0)
	d.Lock(0)
	if !s.Locked(0) {
		t.Error("bank unlocked after Lock()")
	}
}

func TestEraseRange(t *testing.T) {
	tests := []struct {
		addr uint32
		n    int
		want []int
	}{
		{0x1FFE, 4, []int{0, 1}},
		{0x1FFF, 1, []int{0}},
		{0x2000, 0x2000, []int{1}},
		{0x3FFF, 2, []int{1, 2}},
		{0x0000, 0x6000, []int{0, 1, 2}},
		{0x4000, 0, nil},
	}
	for _, tt := range tests {
		d, s := newDevice(t, &testPart, 1)
		if err := d.EraseRange(tt.addr, tt.n); err != nil {
			t.Errorf("EraseRange(0x%X, %d) error: %v", tt.addr, tt.n, err)
			continue
		}
		var got []int
		for i := range testPart.SectorCount() {
			switch s.Erases(i) {
			case 0:
			case 1:
				got = append(got, i)
			default:
				t.Errorf("EraseRange(0x%X, %d) erased sector %d %d times", tt.addr, tt.n, i, s.Erases(i))
			}
		}
		if !slices.Equal(got, tt.want) {
			t.Errorf("EraseRange(0x%X, %d) erased %v, want %v", tt.addr, tt.n, got, tt.want)
		}
		assertLocked(t, d, s)
	}
}

func TestEraseRangeOutOfBounds(t *testing.T) {
	d, s := newDevice(t, &testPart, 1)
	if err := d.EraseRange(0x5FFC, 8); !errors.Is(err, h7flash.ErrOutOfBounds) {
		t.Errorf("EraseRange() error = %v, want ErrOutOfBounds", err)
	}
	for i := range testPart.SectorCount() {
		if s.Erases(i) != 0 {
			t.Errorf("sector %d erased", i)
		}
	}
}

func TestEraseRangeStopsAtFault(t *testing.T) {
	d, s := newDevice(t, &testPart, 1)
	s.Protect(1)
	err := d.EraseRange(0x0000, 0x6000)
	if !errors.Is(err, h7flash.ErrEraseFault) {
		t.Fatalf("EraseRange() error = %v, want ErrEraseFault", err)
	}
	var fe *h7flash.FaultError
	if !errors.As(err, &fe) || !fe.Status.WriteProtected() || fe.Addr != 0x2000 {
		t.Errorf("fault = %+v, want WRPERR at 0x2000", fe)
	}
	if got := []int{s.Erases(0), s.Erases(1), s.Erases(2)}; !slices.Equal(got, []int{1, 0, 0}) {
		t.Errorf("erase counts = %v, want [1 0 0]", got)
	}
	if d.Status(0).Faults(faults) != 0 {
		t.Errorf("fault bits not acknowledged: %s", d.Status(0))
	}
	assertLocked(t, d, s)
}

func TestEraseBank(t *testing.T) {
	d, s := newDevice(t, &testPart, 2)
	for _, i := range []int{0, 1, 2} {
		if err := newFlash(t, d, i).Write(0, pattern(16)); err != nil {
			t.Fatal(err)
		}
	}
	if err := d.EraseBank(0); err != nil {
		t.Fatalf("EraseBank(0) error: %v", err)
	}
	for _, i := range []int{0, 1} {
		got, _ := newFlash(t, d, i).Read(0, 16)
		if !bytes.Equal(got, bytes.Repeat([]byte{0xFF}, 16)) {
			t.Errorf("sector %d not erased: % X", i, got)
		}
	}
	if got, _ := newFlash(t, d, 2).Read(0, 16); !bytes.Equal(got, pattern(16)) {
		t.Errorf("sector 2 changed: % X", got)
	}
	for _, b := range []int{-1, 2} {
		err := d.EraseBank(b)
		if !errors.Is(err, h7flash.ErrInvalidBank) || errors.Is(err, h7flash.ErrInvalidSector) {
			t.Errorf("EraseBank(%d) error = %v, want ErrInvalidBank", b, err)
		}
	}
	assertLocked(t, d, s)
}

func TestProgramFaultKeepsEarlierWords(t *testing.T) {
	d, s := newDevice(t, &testPart, 1)
	s.Protect(1)
	data := pattern(12)
	err := d.Program(0x1FF8, data)
	var fe *h7flash.FaultError
	if !errors.As(err, &fe) || fe.Op != h7flash.OpWrite || fe.Addr != 0x2000 {
		t.Fatalf("Program() error = %v, want write fault at 0x2000", err)
	}
	if got := h7flash.Decode(fe.Status, testPart.ProgramFaults); got != h7flash.FaultWriteProtect {
		t.Errorf("Decode() = %v, want %v", got, h7flash.FaultWriteProtect)
	}
	got, err := d.Read(0x1FF8, 8)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data[:8]) {
		t.Errorf("Read() = % X, want % X", got, data[:8])
	}
	if s.Stores(0) != 2 {
		t.Errorf("Stores(0) = %d, want 2", s.Stores(0))
	}
	assertLocked(t, d, s)
}

func TestProgramInjectedFaults(t *testing.T) {
	tests := []struct {
		bits h7flash.StatusRegister
		want h7flash.FaultKind
	}{
		{h7flash.StatusPGSERR, h7flash.FaultSequence},
		{h7flash.StatusSTRBERR, h7flash.FaultStrobe},
		{h7flash.StatusINCERR, h7flash.FaultInconsistency},
		{h7flash.StatusOPERR, h7flash.FaultOperation},
	}
	for _, tt := range tests {
		d, s := newDevice(t, &testPart, 1)
		s.FailNext(1, tt.bits)
		err := newFlash(t, d, 2).Write(0, pattern(8))
		var fe *h7flash.FaultError
		if !errors.As(err, &fe) || !errors.Is(err, h7flash.ErrWriteFault) {
			t.Fatalf("Write() error = %v, want write fault", err)
		}
		if got := h7flash.Decode(fe.Status, testPart.ProgramFaults); got != tt.want {
			t.Errorf("Decode(%s) = %v, want %v", fe.Status, got, tt.want)
		}
		if d.Status(1)&tt.bits != 0 {
			t.Errorf("%s not acknowledged", tt.bits)
		}
		if s.Stores(1) != 0 {
			t.Errorf("Stores(1) = %d, want 0", s.Stores(1))
		}
		assertLocked(t, d, s)
	}
}

func TestEraseInjectedFault(t *testing.T) {
	d, s := newDevice(t, &testPart, 1)
	s.FailNext(0, h7flash.StatusOPERR)
	err := newFlash(t, d, 1).Erase()
	var fe *h7flash.FaultError
	if !errors.As(err, &fe) || fe.Op != h7flash.OpErase || !fe.Status.OperationError() {
		t.Fatalf("Erase() error = %v, want OPERR erase fault", err)
	}
	if s.Erases(1) != 0 {
		t.Error("faulted erase took effect")
	}
	assertLocked(t, d, s)
}

func TestProgramFlushesPartialWord(t *testing.T) {
	tests := []struct {
		name    string
		off     int
		n       int
		flushes int
	}{
		{"two words", 0, 8, 1},
		{"one flash word", 0, sim.FlashWordSize, 0},
		{"ends mid flash word", 0, sim.FlashWordSize + 4, 1},
		{"tail of flash word", sim.FlashWordSize - 8, 8, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, s := newDevice(t, &testPart, 2)
			f := newFlash(t, d, 0)
			want := pattern(tt.n)
			if err := f.Write(tt.off, want); err != nil {
				t.Fatalf("Write() error: %v", err)
			}
			if s.Flushes(0) != tt.flushes {
				t.Errorf("Flushes(0) = %d, want %d", s.Flushes(0), tt.flushes)
			}
			if d.Status(0).WriteBufferFull() {
				t.Errorf("SR = %s, write buffer still pending", d.Status(0))
			}
			got, err := f.Read(tt.off, tt.n)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, want) {
				t.Errorf("Read() = % X, want % X", got, want)
			}
			if s.Violations() != 0 {
				t.Errorf("%d accesses while busy", s.Violations())
			}
			assertLocked(t, d, s)
		})
	}
}

func TestProgramFlushFault(t *testing.T) {
	d, s := newDevice(t, &testPart, 1)
	s.FailFlush(0, h7flash.StatusINCERR)
	err := newFlash(t, d, 0).Write(0, pattern(8))
	if !errors.Is(err, h7flash.ErrWriteFault) {
		t.Fatalf("Write() error = %v, want ErrWriteFault", err)
	}
	var fe *h7flash.FaultError
	if !errors.As(err, &fe) || fe.Addr != 4 || !fe.Status.Inconsistent() {
		t.Errorf("fault = %+v, want INCERR at 0x4", fe)
	}
	if s.Flushes(0) != 1 || s.Stores(0) != 2 {
		t.Errorf("Flushes(0) = %d, Stores(0) = %d, want 1 and 2", s.Flushes(0), s.Stores(0))
	}
	if d.Status(0)&h7flash.StatusINCERR != 0 {
		t.Error("INCERR not acknowledged")
	}
	assertLocked(t, d, s)
}

func TestProgramCrossesBank(t *testing.T) {
	d, s := newDevice(t, &testPart, 1)
	if err := d.Program(0x3FFC, pattern(8)); !errors.Is(err, h7flash.ErrOutOfBounds) {
		t.Errorf("Program() error = %v, want ErrOutOfBounds", err)
	}
	if s.Stores(0)+s.Stores(1) != 0 {
		t.Error("rejected program reached the array")
	}
}

func TestNoStoreWhileBusy(t *testing.T) {
	s := sim.New(&testPart, 5)
	polls := 0
	d, err := h7flash.New(s, &h7flash.Opts{
		Part: &testPart,
		Wait: func(ready func() bool) {
			for !ready() {
				polls++
			}
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := newFlash(t, d, 0).Write(0, pattern(2048)); err != nil {
		t.Fatal(err)
	}
	if s.Violations() != 0 {
		t.Errorf("%d accesses while busy", s.Violations())
	}
	if s.Stores(0) != 512 {
		t.Errorf("Stores(0) = %d, want 512", s.Stores(0))
	}
	if polls < 512*5 {
		t.Errorf("Wait saw %d busy polls, want at least %d", polls, 512*5)
	}
}

func TestRead(t *testing.T) {
	d, _ := newDevice(t, &testPart, 0)
	if _, err := d.Read(0x5FFE, 4); !errors.Is(err, h7flash.ErrOutOfBounds) {
		t.Errorf("Read() past end error = %v, want ErrOutOfBounds", err)
	}
	f := newFlash(t, d, 1)
	if _, err := f.Read(0x1FFF, 2); !errors.Is(err, h7flash.ErrOutOfBounds) {
		t.Errorf("Flash.Read() past sector error = %v, want ErrOutOfBounds", err)
	}
	got, err := f.Read(1, 3)
	if err != nil {
		t.Fatalf("unaligned Read() error: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("len(Read()) = %d, want 3", len(got))
	}
}
