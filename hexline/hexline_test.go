package hexline

import (
	"bytes"
	"strings"
	"testing"
)

func TestGoodLines(t *testing.T) {
	checkPerfectLine(t, ":00000001FF", EndOfFile)
	checkPerfectLine(t, ":03123400010203b1", DataLine)
	checkPerfectLine(t, ":0400000400080000F0", ExtendedLinearAddress)
	checkPerfectLine(t, ":0400000500080000EF", StartLinearAddress)
}

func checkPerfectLine(t *testing.T, raw string, ltype LineType) {
	t.Helper()
	l, err := Decode(raw)
	if err != nil {
		t.Errorf("expected line to decode correctly: %s: %v", raw, err)
		return
	}
	if l.Type != ltype {
		t.Errorf("bad line type, expected %s but got %s", ltype.String(), l.Type.String())
	}
}

func TestBadChecksum(t *testing.T) {
	if _, err := Decode(":03123400010203b2"); err == nil {
		t.Errorf("expected to have a bad checksum, but didn't")
	}
}

func TestMissingChar(t *testing.T) {
	//dropped a digit from the payload
	if _, err := Decode(":0312340001023b1"); err == nil {
		t.Errorf("expected a decode failure after removing a character, but didn't get one")
	}
}

func TestBadCharacter(t *testing.T) {
	if _, err := Decode(":0312340001020zb1"); err == nil {
		t.Errorf("expected a decode failure for a non-hex character")
	}
}

func TestDataEncoding(t *testing.T) {
	data := []byte{0x01, 0x02, 00, 00, 00, 0x03}
	s, err := EncodeData(data, 0x1234)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	s = strings.ToLower(s)
	expected := ":06123400010200000003ae"
	if s != expected {
		t.Errorf("expected %s but got %s", expected, s)
	}
}

func TestDataEncodingTooLong(t *testing.T) {
	if _, err := EncodeData(make([]byte, MaxDataBytes+1), 0); err == nil {
		t.Errorf("expected an error for an oversized data line")
	}
}

func TestZeroFillEncoding(t *testing.T) {
	s := strings.ToLower(EncodeZeroFill(0, 0x2000))
	expected := ":040000830000200059"
	if s != expected {
		t.Errorf("expected %s but got %s", expected, s)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	lines := []string{
		EncodeBase(0x80000),
		mustData(t, []byte{0xde, 0xad, 0xbe, 0xef}, 0),
		mustData(t, []byte{0x01}, 4),
		EncodeZeroFill(0x100, 0x1000),
		EncodeEntry(0x80000),
		EncodeEOF(),
	}
	wantTypes := []LineType{
		ExtendedLinearAddress, DataLine, DataLine,
		ExtensionZeroFill, StartLinearAddress, EndOfFile,
	}
	for i, raw := range lines {
		l, err := Decode(raw)
		if err != nil {
			t.Fatalf("line %d failed to decode: %v", i, err)
		}
		if l.Type != wantTypes[i] {
			t.Errorf("line %d: expected %s but got %s", i, wantTypes[i].String(), l.Type.String())
		}
	}
}

func mustData(t *testing.T, raw []byte, offset uint16) string {
	t.Helper()
	s, err := EncodeData(raw, offset)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	return s
}

/////////////////////////////////////////////////////////////////////////
// fakeSink records what a transmission does to device memory; testing
// on the metal is hard
////////////////////////////////////////////////////////////////////////

type fakeSink struct {
	mem    map[uint64]byte
	zeroed map[uint64]uint64 //start -> length
	base   uint64
	entry  uint64
	done   bool
}

func newFakeSink() *fakeSink {
	return &fakeSink{mem: make(map[uint64]byte), zeroed: make(map[uint64]uint64), entry: entryPointSentinel}
}

func (f *fakeSink) Write(addr uint64, value uint8) bool {
	f.mem[addr] = value
	return true
}
func (f *fakeSink) ZeroRange(addr, length uint64) bool {
	f.zeroed[addr] = length
	return true
}
func (f *fakeSink) SetBase(addr uint32)  { f.base = uint64(addr) }
func (f *fakeSink) Base() uint64         { return f.base }
func (f *fakeSink) SetEntry(addr uint32) { f.entry = uint64(addr) }
func (f *fakeSink) Entry() uint64        { return f.entry }
func (f *fakeSink) EntryIsSet() bool     { return f.entry != entryPointSentinel }

func TestApplyTransmission(t *testing.T) {
	sink := newFakeSink()
	lines := []string{
		EncodeBase(0x80000),
		mustData(t, []byte{0xaa, 0xbb}, 0),
		mustData(t, []byte{0xcc}, 2),
		EncodeZeroFill(0x10, 0x800),
		EncodeEntry(0x80000),
		EncodeEOF(),
	}
	done := false
	for i, raw := range lines {
		l, err := Decode(raw)
		if err != nil {
			t.Fatalf("line %d failed to decode: %v", i, err)
		}
		bad := false
		bad, done = Apply(l, sink)
		if bad {
			t.Fatalf("line %d failed to apply", i)
		}
	}
	if !done {
		t.Errorf("transmission should report done after EOF")
	}
	for addr, want := range map[uint64]byte{0x80000: 0xaa, 0x80001: 0xbb, 0x80002: 0xcc} {
		if sink.mem[addr] != want {
			t.Errorf("memory at %#x: expected %02x but got %02x", addr, want, sink.mem[addr])
		}
	}
	if sink.zeroed[0x80010] != 0x800 {
		t.Errorf("zero fill range not applied at %#x", 0x80010)
	}
	if !sink.EntryIsSet() || sink.Entry() != 0x80000 {
		t.Errorf("entry point not applied")
	}
}

func TestVerifySinkCatchesCorruption(t *testing.T) {
	image := []byte{0x10, 0x20, 0x30}
	sink := NewVerifySink(image, 0x80000, 0, 0)
	sink.SetBase(0x80000)
	if !sink.Write(0x80000, 0x10) {
		t.Fatalf("correct byte rejected: %v", sink.Err)
	}
	if sink.Write(0x80001, 0x99) {
		t.Errorf("corrupted byte accepted")
	}
	if sink.Write(0x90000, 0x10) {
		t.Errorf("out of range address accepted")
	}
}

/////////////////////////////////////////////////////////////////////////
// cross checks against the layout the lines come from
////////////////////////////////////////////////////////////////////////

func TestChecksumProperties(t *testing.T) {
	//every encoded line's framed bytes sum to zero mod 256
	sink := NewNullSink()
	for _, raw := range []string{
		EncodeBase(0xdeadbeef),
		EncodeEntry(0x80000),
		EncodeZeroFill(0xffff, 0xffffffff),
		EncodeEOF(),
	} {
		l, err := Decode(raw)
		if err != nil {
			t.Errorf("self-encoded line rejected: %s: %v", raw, err)
			continue
		}
		if bad, _ := Apply(l, sink); bad {
			t.Errorf("self-encoded line failed to apply: %s", raw)
		}
	}
}

func TestDecodePayloadIsCopy(t *testing.T) {
	raw := mustData(t, []byte{1, 2, 3}, 0)
	l, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !bytes.Equal(l.Payload, []byte{1, 2, 3}) {
		t.Errorf("payload did not survive the round trip")
	}
}
