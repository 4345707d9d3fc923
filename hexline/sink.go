package hexline

import "fmt"

//
// Sink is the interface the receiving side implements to do something
// with decoded lines. On the device it writes bytes into raw memory;
// on the host the implementations below check addresses and contents.
//
type Sink interface {
	Write(addr uint64, value uint8) bool
	ZeroRange(addr uint64, length uint64) bool
	SetBase(addr uint32)
	Base() uint64
	SetEntry(addr uint32)
	Entry() uint64
	EntryIsSet() bool
}

const entryPointSentinel = 0x22222

// Apply carries out one decoded line against a sink and reports
// (error?, done?), mirroring the receive loop on the device.
func Apply(l Line, s Sink) (bool, bool) {
	switch l.Type {
	case DataLine:
		base := s.Base() + uint64(l.Offset)
		for i, v := range l.Payload {
			if !s.Write(base+uint64(i), v) {
				return true, false
			}
		}
		return false, false
	case EndOfFile:
		return false, true
	case ExtendedLinearAddress:
		if len(l.Payload) != 4 {
			return true, false
		}
		s.SetBase(beU32(l.Payload))
		return false, false
	case StartLinearAddress:
		if len(l.Payload) != 4 {
			return true, false
		}
		s.SetEntry(beU32(l.Payload))
		return false, false
	case ExtensionZeroFill:
		if len(l.Payload) != 4 {
			return true, false
		}
		if !s.ZeroRange(s.Base()+uint64(l.Offset), uint64(beU32(l.Payload))) {
			return true, false
		}
		return false, false
	}
	return true, false
}

func beU32(p []byte) uint32 {
	return uint32(p[0])<<24 | uint32(p[1])<<16 | uint32(p[2])<<8 | uint32(p[3])
}

/////////////////////////////////////////////////////////////////////////
// NullSink
////////////////////////////////////////////////////////////////////////

// nullSink accepts everything and remembers only the addresses; used
// when we want the encode path exercised with nothing checked.
type nullSink struct {
	base  uint64
	entry uint64
}

func NewNullSink() Sink {
	return &nullSink{entry: entryPointSentinel}
}

func (n *nullSink) Write(addr uint64, value uint8) bool { return true }
func (n *nullSink) ZeroRange(addr, length uint64) bool  { return true }
func (n *nullSink) SetBase(addr uint32)                 { n.base = uint64(addr) }
func (n *nullSink) Base() uint64                        { return n.base }
func (n *nullSink) SetEntry(addr uint32)                { n.entry = uint64(addr) }
func (n *nullSink) Entry() uint64                       { return n.entry }
func (n *nullSink) EntryIsSet() bool                    { return n.entry != entryPointSentinel }

/////////////////////////////////////////////////////////////////////////
// VerifySink
////////////////////////////////////////////////////////////////////////

// VerifySink checks every decoded write against the image the lines
// were encoded from. Used by the transmitter's self test.
type VerifySink struct {
	image     []byte
	loadAddr  uint64
	zeroStart uint64
	zeroEnd   uint64
	base      uint64
	entry     uint64
	written   int
	Err       error
}

func NewVerifySink(image []byte, loadAddr, zeroStart, zeroEnd uint64) *VerifySink {
	return &VerifySink{
		image:     image,
		loadAddr:  loadAddr,
		zeroStart: zeroStart,
		zeroEnd:   zeroEnd,
		entry:     entryPointSentinel,
	}
}

func (v *VerifySink) Write(addr uint64, value uint8) bool {
	off := int(addr) - int(v.loadAddr)
	if off < 0 || off >= len(v.image) {
		v.Err = fmt.Errorf("impossible address %#x, image covers [%#x,%#x)", addr, v.loadAddr, v.loadAddr+uint64(len(v.image)))
		return false
	}
	if v.image[off] != value {
		v.Err = fmt.Errorf("byte %#x differs between image (%02x) and decoded line (%02x)", addr, v.image[off], value)
		return false
	}
	v.written++
	return true
}

func (v *VerifySink) ZeroRange(addr, length uint64) bool {
	if addr < v.zeroStart || addr+length > v.zeroEnd {
		v.Err = fmt.Errorf("zero fill [%#x,%#x) escapes the zero region [%#x,%#x)", addr, addr+length, v.zeroStart, v.zeroEnd)
		return false
	}
	return true
}

func (v *VerifySink) SetBase(addr uint32)  { v.base = uint64(addr) }
func (v *VerifySink) Base() uint64         { return v.base }
func (v *VerifySink) SetEntry(addr uint32) { v.entry = uint64(addr) }
func (v *VerifySink) Entry() uint64        { return v.entry }
func (v *VerifySink) EntryIsSet() bool     { return v.entry != entryPointSentinel }

// Written reports how many image bytes arrived intact.
func (v *VerifySink) Written() int { return v.written }
