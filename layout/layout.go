package layout

import "fmt"

// LoadAddress is the physical address where the rpi3 firmware places
// kernel8.img before jumping to its first byte. It is a property of
// the boot protocol, not a tunable.
const LoadAddress = 0x80000

// PageSize is the granularity later stages (MMU and friends, outside
// our scope) assume for region boundaries. Every region except the
// trailing payload ends on a PageSize boundary.
const PageSize = 0x1000

// Kind says which region of the image a block belongs in. The order
// of the constants is the order of the regions in memory.
type Kind int

const (
	KindBootText Kind = iota //the first instructions executed, must land at LoadAddress
	KindText
	KindROData
	KindData
	KindBSS //no stored bytes, zeroed by startup code
	KindPayload
)

func (k Kind) String() string {
	switch k {
	case KindBootText:
		return "boot"
	case KindText:
		return "text"
	case KindROData:
		return "rodata"
	case KindData:
		return "data"
	case KindBSS:
		return "bss"
	case KindPayload:
		return "payload"
	}
	return "unknown"
}

// Block is one categorized chunk of input, usually a section pulled
// out of an elf file. BSS blocks carry only a size; everything else
// carries its bytes.
type Block struct {
	Name string
	Kind Kind
	Data []byte
	Size uint64 //used only when Data is nil (bss, common)
}

func (b Block) length() uint64 {
	if b.Data != nil {
		return uint64(len(b.Data))
	}
	return b.Size
}

type noBootEntry struct {
}

func (n *noBootEntry) Error() string {
	return fmt.Sprintf("no boot entry block: nothing guarantees the first instruction at %#x", LoadAddress)
}

type bssWithData struct {
}

func (b *bssWithData) Error() string {
	return "zero-initialized block carries stored bytes"
}

type misplacedKind struct {
}

func (m *misplacedKind) Error() string {
	return "block has a kind the builder cannot place"
}

var ErrNoBootEntry error = &noBootEntry{}
var ErrBSSHasData error = &bssWithData{}
var ErrMisplacedKind error = &misplacedKind{}
