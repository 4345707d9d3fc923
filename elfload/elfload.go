package elfload

import (
	"debug/elf"
	"fmt"
	"io"
	"os"

	"composure/layout"

	"go.uber.org/zap"
)

type notElfFormatErr struct {
}

func (n *notElfFormatErr) Error() string {
	return fmt.Sprintf("file is not elf format (failed to read header)")
}

type notAArch64 struct {
}

func (n *notAArch64) Error() string {
	return fmt.Sprintf("elf file is not aarch64 little endian 64 bit")
}

type noSections struct {
}

func (n *noSections) Error() string {
	return fmt.Sprintf("no usable sections found in elf file!")
}

type entryOutsideBoot struct {
	entry uint64
}

func (e *entryOutsideBoot) Error() string {
	return fmt.Sprintf("entry point %#x is not inside %s, the device would execute the wrong code", e.entry, BootSectionName)
}

var NotElfFormat error = &notElfFormatErr{}
var NotAArch64 error = &notAArch64{}
var NoSections error = &noSections{}

// Load reads an elf file from disk and returns its sections as
// categorized blocks, in section order, ready for the image builder.
func Load(filename string) ([]layout.Block, error) {
	fp, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	return FromReader(io.ReaderAt(fp))
}

// FromReader is Load for elf content that is already in memory.
func FromReader(r io.ReaderAt) ([]layout.Block, error) {
	f, err := elf.NewFile(r)
	if err != nil {
		if _, ok := err.(*elf.FormatError); ok {
			return nil, NotElfFormat
		}
		return nil, err
	}
	defer f.Close()

	if f.Class != elf.ELFCLASS64 || f.Data != elf.ELFDATA2LSB || f.Machine != elf.EM_AARCH64 {
		return nil, NotAArch64
	}

	var blocks []layout.Block
	var bootAddr, bootSize uint64
	for _, section := range f.Sections {
		c := Classify(section.Name, section.Type, section.Flags)
		switch c {
		case ClassIgnore:
			continue
		case ClassDiscard:
			//harmless to correctness but wasted space; warn so an
			//incomplete toolchain discard list gets noticed
			Logger().Warn("dropping metadata section",
				zap.String("section", section.Name),
				zap.Uint64("size", section.Size))
			continue
		case ClassBSS:
			blocks = append(blocks, layout.Block{Name: section.Name, Kind: layout.KindBSS, Size: section.Size})
		default:
			data, err := section.Data()
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, layout.Block{Name: section.Name, Kind: c.kind(), Data: data})
			if c == ClassBootText {
				bootAddr = section.Addr
				bootSize = section.Size
			}
		}
	}
	if len(blocks) == 0 {
		return nil, NoSections
	}

	//common symbols have no section; they get space in the zero
	//region the same way ld -d would give them
	if common := commonSize(f); common > 0 {
		blocks = append(blocks, layout.Block{Name: "COMMON", Kind: layout.KindBSS, Size: common})
	}

	//a linked kernel declares its entry point, and it had better be
	//in the boot block or execution starts in the wrong place
	if f.Entry != 0 && bootSize > 0 {
		if f.Entry < bootAddr || f.Entry >= bootAddr+bootSize {
			return nil, &entryOutsideBoot{f.Entry}
		}
	}
	return blocks, nil
}

// commonSize totals the sizes of SHN_COMMON symbols, aligning each to
// 8 bytes the way the linker lays them out.
func commonSize(f *elf.File) uint64 {
	symbols, err := f.Symbols()
	if err != nil {
		return 0 //no symbol table, nothing to fold in
	}
	total := uint64(0)
	for _, s := range symbols {
		if s.Section == elf.SHN_COMMON {
			total += (s.Size + 7) &^ 7
		}
	}
	return total
}
