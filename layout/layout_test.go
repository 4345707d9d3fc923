package layout

import (
	"bytes"
	"testing"
)

// a plausible little input set: boot stub, some code, constants,
// writable data, two zero-fill blocks
func testBlocks() []Block {
	return []Block{
		{Name: ".text.boot", Kind: KindBootText, Data: seq(0xe0, 64)},
		{Name: ".text", Kind: KindText, Data: seq(0x10, 300)},
		{Name: ".rodata", Kind: KindROData, Data: seq(0x20, 100)},
		{Name: ".data", Kind: KindData, Data: seq(0x30, 50)},
		{Name: ".bss", Kind: KindBSS, Size: 0x1800},
		{Name: "COMMON", Kind: KindBSS, Size: 0x20},
	}
}

func seq(start byte, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = start + byte(i%16)
	}
	return b
}

func mustBuild(t *testing.T, blocks []Block) *Image {
	t.Helper()
	img, err := NewDescriptor().Build(blocks)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	return img
}

func TestBootEntryAtOrigin(t *testing.T) {
	blocks := testBlocks()
	img := mustBuild(t, blocks)
	if img.Symbols.Entry != LoadAddress {
		t.Errorf("expected entry %#x but got %#x", LoadAddress, img.Symbols.Entry)
	}
	boot := blocks[0].Data
	if !bytes.Equal(img.Bytes[:len(boot)], boot) {
		t.Errorf("byte 0 of the image is not the boot entry block")
	}
}

func TestGeneralCodeFollowsBootImmediately(t *testing.T) {
	blocks := testBlocks()
	img := mustBuild(t, blocks)
	b1 := len(blocks[0].Data)
	b2 := len(blocks[1].Data)
	if !bytes.Equal(img.Bytes[b1:b1+b2], blocks[1].Data) {
		t.Errorf("general code does not start at offset %#x", b1)
	}
	//code region is b1+b2 rounded up to the page
	codeEnd := uint64(LoadAddress) + ((uint64(b1+b2) + PageSize - 1) &^ (PageSize - 1))
	for _, p := range img.Placements {
		if p.Kind == KindROData && p.Addr != codeEnd {
			t.Errorf("rodata should start at %#x but starts at %#x", codeEnd, p.Addr)
		}
	}
}

func TestRegionEndsPageAligned(t *testing.T) {
	img := mustBuild(t, testBlocks())
	//each non-code region must begin on a page boundary, which is the
	//same as the previous region ending on one
	for _, p := range img.Placements {
		switch p.Kind {
		case KindROData, KindData:
			if (p.Addr-LoadAddress)%PageSize != 0 {
				t.Errorf("%s region starts misaligned at %#x", p.Kind, p.Addr)
			}
		}
	}
	if (img.Symbols.BSSStart-LoadAddress)%PageSize != 0 {
		t.Errorf("zero region starts misaligned at %#x", img.Symbols.BSSStart)
	}
	if (img.Symbols.ImageEnd-LoadAddress)%PageSize != 0 {
		t.Errorf("image end %#x is not page aligned", img.Symbols.ImageEnd)
	}
}

func TestZeroRegionBounds(t *testing.T) {
	img := mustBuild(t, testBlocks())
	s := img.Symbols
	if s.BSSStart > s.BSSEnd {
		t.Errorf("zero region start %#x after end %#x", s.BSSStart, s.BSSEnd)
	}
	if got := s.BSSEnd - s.BSSStart; got != 0x1800+0x20 {
		t.Errorf("zero region length should be the sum of its blocks, got %#x", got)
	}
	//the zero region is allocated space only: the file must not store it
	fileEnd := uint64(LoadAddress) + uint64(len(img.Bytes))
	if fileEnd > s.BSSStart {
		t.Errorf("image file (%#x) stores bytes inside the zero region (%#x)", fileEnd, s.BSSStart)
	}
}

func TestEmptyZeroRegion(t *testing.T) {
	blocks := testBlocks()[:4] //no bss at all
	img := mustBuild(t, blocks)
	if img.Symbols.BSSEnd != img.Symbols.BSSStart {
		t.Errorf("empty zero region should have equal bounds, got [%#x,%#x)", img.Symbols.BSSStart, img.Symbols.BSSEnd)
	}
}

func TestDeterministicBuild(t *testing.T) {
	one := mustBuild(t, testBlocks())
	two := mustBuild(t, testBlocks())
	if !bytes.Equal(one.Bytes, two.Bytes) {
		t.Errorf("two builds of the same inputs differ")
	}
	if one.Symbols != two.Symbols {
		t.Errorf("two builds of the same inputs produced different symbols")
	}
}

func TestPayloadPlacement(t *testing.T) {
	payload := seq(0x77, 129)
	blocks := append(testBlocks(), Block{Name: "extra.bin", Kind: KindPayload, Data: payload})
	img := mustBuild(t, blocks)
	s := img.Symbols
	if s.PayloadStart == 0 {
		t.Fatalf("payload start never published")
	}
	if (s.PayloadStart-LoadAddress)%PageSize != 0 {
		t.Errorf("payload should start at the aligned end of the zero region, got %#x", s.PayloadStart)
	}
	off := s.PayloadStart - LoadAddress
	if !bytes.Equal(img.Bytes[off:off+uint64(len(payload))], payload) {
		t.Errorf("payload bytes not at %#x in the file", off)
	}
	//the gap covering the zero region must read as zero in the file
	for i := s.BSSStart - LoadAddress; i < off; i++ {
		if img.Bytes[i] != 0 {
			t.Fatalf("non-zero byte %#x inside the zero region gap", i)
		}
	}
	if s.ImageEnd != s.PayloadStart+uint64(len(payload)) {
		t.Errorf("image end %#x does not account for the payload", s.ImageEnd)
	}
}

func TestMissingBootEntryFailsLoudly(t *testing.T) {
	blocks := testBlocks()[1:] //drop the boot block
	_, err := NewDescriptor().Build(blocks)
	if err != ErrNoBootEntry {
		t.Errorf("expected ErrNoBootEntry but got %v", err)
	}
}

func TestBSSBlockWithStoredBytesRejected(t *testing.T) {
	blocks := testBlocks()
	blocks[4].Data = []byte{1, 2, 3}
	_, err := NewDescriptor().Build(blocks)
	if err != ErrBSSHasData {
		t.Errorf("expected ErrBSSHasData but got %v", err)
	}
}

func TestUnknownKindFailsLoudly(t *testing.T) {
	//a block with a kind the builder has no region for must fail the
	//build, not vanish from the image
	blocks := append(testBlocks(), Block{Name: "mystery", Kind: Kind(42), Data: seq(0x50, 16)})
	_, err := NewDescriptor().Build(blocks)
	if err != ErrMisplacedKind {
		t.Errorf("expected ErrMisplacedKind but got %v", err)
	}
}
