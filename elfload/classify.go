package elfload

import (
	"debug/elf"
	"strings"

	"composure/layout"
)

// Class is what we decided about a single input section.
type Class int

const (
	ClassIgnore   Class = iota //symtab, relocs, debug info: not our problem
	ClassBootText              //must be first in the image
	ClassText
	ClassROData
	ClassData
	ClassBSS
	ClassDiscard //metadata that must not leak into the image
)

func (c Class) String() string {
	switch c {
	case ClassIgnore:
		return "ignore"
	case ClassBootText:
		return "boot"
	case ClassText:
		return "text"
	case ClassROData:
		return "rodata"
	case ClassData:
		return "data"
	case ClassBSS:
		return "bss"
	case ClassDiscard:
		return "discard"
	}
	return "unknown"
}

// BootSectionName is the section startup assembly puts its first
// instructions in so they land at the load address.
const BootSectionName = ".text.boot"

//sections dropped entirely from the image; they are build metadata
//and only waste space at the load address
var discardPrefixes = []string{".comment", ".gnu", ".note", ".eh_frame"}

// Classify maps an elf section onto its place in the image. The name
// check for the boot section comes first because the boot block is
// also executable code and would otherwise classify as plain text.
func Classify(name string, typ elf.SectionType, flags elf.SectionFlag) Class {
	if name == BootSectionName {
		return ClassBootText
	}
	for _, p := range discardPrefixes {
		if strings.HasPrefix(name, p) {
			return ClassDiscard
		}
	}
	if flags&elf.SHF_ALLOC == 0 {
		return ClassIgnore
	}
	switch {
	case typ == elf.SHT_NOBITS:
		return ClassBSS
	case flags&elf.SHF_EXECINSTR != 0:
		return ClassText
	case flags&elf.SHF_WRITE != 0:
		return ClassData
	default:
		return ClassROData
	}
}

func (c Class) kind() layout.Kind {
	switch c {
	case ClassBootText:
		return layout.KindBootText
	case ClassText:
		return layout.KindText
	case ClassROData:
		return layout.KindROData
	case ClassData:
		return layout.KindData
	case ClassBSS:
		return layout.KindBSS
	}
	panic("no image kind for class " + c.String())
}
