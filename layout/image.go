package layout

import (
	"bytes"

	"go.uber.org/zap"
)

// Symbols are the addresses the layout publishes to code that was not
// around when the image was laid out. Startup code must zero every
// byte of [BSSStart, BSSEnd) before anything reads from it; the image
// on disk does not contain those bytes.
type Symbols struct {
	Entry        uint64
	BSSStart     uint64
	BSSEnd       uint64
	PayloadStart uint64 //zero when there is no payload
	ImageEnd     uint64 //one past the last address the image occupies
}

// Placement records where a single input block landed.
type Placement struct {
	Name string
	Kind Kind
	Addr uint64
	Size uint64
}

// Image is the result of a build: the flat binary plus the addresses
// and placements that describe it.
type Image struct {
	Bytes      []byte
	Symbols    Symbols
	Placements []Placement
}

// Descriptor holds the fixed facts of the layout: origin and page
// size. Both are constants of the boot protocol; the struct exists so
// the placement rules have a receiver, not so they can be configured.
type Descriptor struct {
	origin uint64
	page   uint64
}

func NewDescriptor() *Descriptor {
	return &Descriptor{origin: LoadAddress, page: PageSize}
}

func (d *Descriptor) align(v uint64) uint64 {
	return (v + d.page - 1) &^ (d.page - 1)
}

// Build assembles the blocks into a single contiguous image starting
// at the load origin. Region order is fixed: boot entry code, general
// code, read-only data, initialized data, zero-initialized space,
// then the optional payload. Every region except the payload is
// padded so the next region starts page aligned.
//
// The build is deterministic: the same blocks in the same order
// always produce byte-identical output.
func (d *Descriptor) Build(blocks []Block) (*Image, error) {
	var boot, text, ro, data, bss, payload []Block
	for _, b := range blocks {
		switch b.Kind {
		case KindBootText:
			boot = append(boot, b)
		case KindText:
			text = append(text, b)
		case KindROData:
			ro = append(ro, b)
		case KindData:
			data = append(data, b)
		case KindBSS:
			if b.Data != nil {
				Logger().Error("zero-initialized block carries stored bytes", zap.String("name", b.Name))
				return nil, ErrBSSHasData
			}
			bss = append(bss, b)
		case KindPayload:
			payload = append(payload, b)
		default:
			//dropping the block silently would mean a successful
			//build missing some of its input bytes
			Logger().Error("block has no region", zap.String("name", b.Name), zap.Int("kind", int(b.Kind)))
			return nil, ErrMisplacedKind
		}
	}

	bootLen := uint64(0)
	for _, b := range boot {
		bootLen += b.length()
	}
	if bootLen == 0 {
		//without this check the device would execute whatever
		//happened to land at the load address
		return nil, ErrNoBootEntry
	}

	img := &Image{}
	buf := &bytes.Buffer{}
	cursor := d.origin

	cursor = d.emitRegion(buf, img, cursor, append(boot, text...))
	cursor = d.emitRegion(buf, img, cursor, ro)
	cursor = d.emitRegion(buf, img, cursor, data)

	//bss contributes addresses, not bytes
	bssStart := cursor
	for _, b := range bss {
		img.Placements = append(img.Placements, Placement{b.Name, b.Kind, cursor, b.Size})
		cursor += b.Size
	}
	bssEnd := cursor //exact, so startup code zeroes no more than it must
	cursor = d.align(cursor)

	img.Symbols = Symbols{
		Entry:    d.origin,
		BSSStart: bssStart,
		BSSEnd:   bssEnd,
		ImageEnd: cursor,
	}

	if len(payload) > 0 {
		//the payload sits beyond the zero region, so the file has to
		//cover the gap; the zeros are harmless because startup code
		//re-zeroes the range anyway
		pad := make([]byte, cursor-bssStart)
		buf.Write(pad)
		img.Symbols.PayloadStart = cursor
		for _, b := range payload {
			img.Placements = append(img.Placements, Placement{b.Name, b.Kind, cursor, b.length()})
			buf.Write(b.Data)
			cursor += b.length()
		}
		img.Symbols.ImageEnd = cursor
	}

	img.Bytes = buf.Bytes()
	for _, p := range img.Placements {
		Logger().Debug("placed block",
			zap.String("name", p.Name),
			zap.String("kind", p.Kind.String()),
			zap.Uint64("addr", p.Addr),
			zap.Uint64("size", p.Size))
	}
	Logger().Info("image assembled",
		zap.Int("bytes", len(img.Bytes)),
		zap.Uint64("bssStart", img.Symbols.BSSStart),
		zap.Uint64("bssEnd", img.Symbols.BSSEnd),
		zap.Uint64("imageEnd", img.Symbols.ImageEnd))
	return img, nil
}

// emitRegion writes the blocks back to back, records their
// placements, and pads the region end to the next page boundary.
// Returns the address the next region starts at.
func (d *Descriptor) emitRegion(buf *bytes.Buffer, img *Image, cursor uint64, blocks []Block) uint64 {
	for _, b := range blocks {
		img.Placements = append(img.Placements, Placement{b.Name, b.Kind, cursor, b.length()})
		buf.Write(b.Data)
		cursor += b.length()
	}
	end := d.align(cursor)
	if end > cursor {
		buf.Write(make([]byte, end-cursor))
	}
	return end
}
