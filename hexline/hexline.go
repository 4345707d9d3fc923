package hexline

import (
	"bytes"
	"fmt"
)

// Line-oriented protocol for pushing a built image to the device
// bootloader over a serial link. Framing is intel-hex style,
// :LLAAAATT<payload>CC with a two's complement checksum, but only the
// line types the boot protocol needs exist. 0x83 is a private
// extension telling the receiver to zero fill a range instead of
// shipping explicit zero bytes; that is how the zero region crosses
// the wire.

type EncodeDecodeError struct {
	s string
}

func NewEncodeDecodeError(s string) error {
	return &EncodeDecodeError{s}
}
func (d *EncodeDecodeError) Error() string {
	return d.s
}

type LineType int

const (
	DataLine              LineType = 0
	EndOfFile             LineType = 1
	ExtendedLinearAddress LineType = 4 //4 byte payload: absolute 32 bit base
	StartLinearAddress    LineType = 5 //4 byte payload: absolute 32 bit entry point
	ExtensionZeroFill     LineType = 0x83
)

func (lt LineType) String() string {
	switch lt {
	case DataLine:
		return "DataLine"
	case EndOfFile:
		return "EndOfFile"
	case ExtendedLinearAddress:
		return "ExtendedLinearAddress"
	case StartLinearAddress:
		return "StartLinearAddress"
	case ExtensionZeroFill:
		return "ExtensionZeroFill"
	}
	return "unknown"
}

// MaxDataBytes is how much payload a single data line carries.
const MaxDataBytes = 0x30

// EOFLine never varies, so it is precomputed.
const EOFLine = ":00000001FF"

// Line is one decoded protocol line. Offset is relative to the base
// address the receiver last saw.
type Line struct {
	Type    LineType
	Offset  uint16
	Payload []byte
}

///////////////////////////////////////////////////////////////////////////////
// ENCODING
///////////////////////////////////////////////////////////////////////////////

func encode(lt LineType, offset uint16, payload []byte) string {
	buf := bytes.Buffer{}
	buf.WriteString(fmt.Sprintf(":%02X%04X%02X", len(payload), offset, int(lt)))
	for _, b := range payload {
		buf.WriteString(fmt.Sprintf("%02x", b))
	}
	buf.WriteString(fmt.Sprintf("%02X", checksum(lt, offset, payload)))
	return buf.String()
}

// EncodeData frames up to MaxDataBytes of image content at the given
// offset from the current base address.
func EncodeData(raw []byte, offset uint16) (string, error) {
	if len(raw) > MaxDataBytes {
		return "", NewEncodeDecodeError(fmt.Sprintf("data line limited to %#x bytes, got %#x", MaxDataBytes, len(raw)))
	}
	return encode(DataLine, offset, raw), nil
}

// EncodeBase sets the receiver's absolute base address.
func EncodeBase(addr uint32) string {
	return encode(ExtendedLinearAddress, 0, be32(addr))
}

// EncodeEntry tells the receiver where execution starts.
func EncodeEntry(addr uint32) string {
	return encode(StartLinearAddress, 0, be32(addr))
}

// EncodeZeroFill asks the receiver to write length zero bytes at
// base+offset. The image on disk never stores the zero region, so
// this line is the whole region's transmission.
func EncodeZeroFill(offset uint16, length uint32) string {
	return encode(ExtensionZeroFill, offset, be32(length))
}

func EncodeEOF() string {
	return EOFLine
}

func be32(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

// checksum is the usual intel hex one: two's complement of the sum of
// every framed byte.
func checksum(lt LineType, offset uint16, payload []byte) uint8 {
	sum := len(payload)
	sum += int(offset >> 8)
	sum += int(offset & 0xff)
	sum += int(lt)
	for _, v := range payload {
		sum += int(v)
	}
	sum = ^sum
	sum++
	return uint8(sum & 0xff)
}

///////////////////////////////////////////////////////////////////////////////
// DECODING
///////////////////////////////////////////////////////////////////////////////

// Decode parses one received line, verifying framing, length, and
// checksum.
func Decode(s string) (Line, error) {
	if len(s) < 11 || s[0] != ':' {
		return Line{}, NewEncodeDecodeError(fmt.Sprintf("line too short or missing colon: %q", s))
	}
	if (len(s)-1)%2 != 0 {
		return Line{}, NewEncodeDecodeError(fmt.Sprintf("odd number of hex characters: %q", s))
	}
	converted := make([]byte, (len(s)-1)/2)
	for i := 1; i < len(s); i += 2 {
		hi, ok1 := hexNibble(s[i])
		lo, ok2 := hexNibble(s[i+1])
		if !ok1 || !ok2 {
			return Line{}, NewEncodeDecodeError(fmt.Sprintf("bad hex character in line: %q", s))
		}
		converted[(i-1)/2] = hi<<4 | lo
	}
	length := int(converted[0])
	if len(converted) != length+5 {
		return Line{}, NewEncodeDecodeError(fmt.Sprintf("declared length %d does not match line: %q", length, s))
	}
	lt, ok := lineTypeFromByte(converted[3])
	if !ok {
		return Line{}, NewEncodeDecodeError(fmt.Sprintf("unknown line type %#x: %q", converted[3], s))
	}
	sum := 0
	for _, b := range converted {
		sum += int(b)
	}
	if sum&0xff != 0 {
		return Line{}, NewEncodeDecodeError(fmt.Sprintf("bad checksum on line: %q", s))
	}
	return Line{
		Type:    lt,
		Offset:  uint16(converted[1])<<8 | uint16(converted[2]),
		Payload: converted[4 : 4+length],
	}, nil
}

func lineTypeFromByte(b byte) (LineType, bool) {
	switch b {
	case 0:
		return DataLine, true
	case 1:
		return EndOfFile, true
	case 4:
		return ExtendedLinearAddress, true
	case 5:
		return StartLinearAddress, true
	case 0x83:
		return ExtensionZeroFill, true
	}
	return DataLine, false
}

func hexNibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
