package layout

import (
	"io"
	"text/template"
)

// The declarative twin of Build: the same placement rules expressed
// as a GNU ld control script, for builds that go through a real
// linker instead of this tool. Build and the script must agree; the
// tests hold them to the same properties.
const scriptTemplateText = `OUTPUT_ARCH(aarch64)
ENTRY({{.Entry}})

SECTIONS
{
    . = {{printf "%#x" .Origin}};

    .text : {
        KEEP(*(.text.boot))
        *(.text .text.*)
    }
    . = ALIGN({{.Align}});

    .rodata : {
        *(.rodata .rodata.*)
    }
    . = ALIGN({{.Align}});

    .data : {
        *(.data .data.*)
    }
    . = ALIGN({{.Align}});

    .bss (NOLOAD) : {
        {{.BSSStart}} = .;
        *(.bss .bss.*)
        *(COMMON)
        {{.BSSEnd}} = .;
    }
    . = ALIGN({{.Align}});

    .payload : {
        KEEP(*(.payload))
    }

    /DISCARD/ : {
        *(.comment)
        *(.gnu*)
        *(.note*)
        *(.eh_frame*)
    }
}
`

var scriptTemplate = template.Must(template.New("script").Parse(scriptTemplateText))

type scriptParams struct {
	Entry    string
	Origin   uint64
	Align    uint64
	BSSStart string
	BSSEnd   string
}

// EntrySymbol is the name startup assembly gives its first
// instruction; BSSStartSymbol and BSSEndSymbol bracket the
// zero-initialized region for it.
const (
	EntrySymbol    = "_start"
	BSSStartSymbol = "__bss_start"
	BSSEndSymbol   = "__bss_end"
)

// RenderScript writes the linker script equivalent of the descriptor.
func (d *Descriptor) RenderScript(w io.Writer) error {
	return scriptTemplate.Execute(w, scriptParams{
		Entry:    EntrySymbol,
		Origin:   d.origin,
		Align:    d.page,
		BSSStart: BSSStartSymbol,
		BSSEnd:   BSSEndSymbol,
	})
}
