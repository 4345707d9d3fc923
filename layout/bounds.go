package layout

import (
	"io"
	"text/template"
)

// Startup code has to learn the bounds of a region it did not lay
// out, so the build publishes them as generated source the kernel
// side compiles in, the same way the bootloader parameter block works
// on the device.
const boundsTemplateText = `// Code generated by compose. DO NOT EDIT.

package {{.Pkg}}

// Addresses fixed by the image layout. The region [BSSStart, BSSEnd)
// must be zero filled before any code reads from it; the image on
// disk does not contain those bytes.
const (
	LoadAddress  = {{printf "%#x" .Origin}}
	Entry        = {{printf "%#x" .Sym.Entry}}
	BSSStart     = {{printf "%#x" .Sym.BSSStart}}
	BSSEnd       = {{printf "%#x" .Sym.BSSEnd}}
	PayloadStart = {{printf "%#x" .Sym.PayloadStart}}
	ImageEnd     = {{printf "%#x" .Sym.ImageEnd}}
)
`

var boundsTemplate = template.Must(template.New("bounds").Parse(boundsTemplateText))

type boundsParams struct {
	Pkg    string
	Origin uint64
	Sym    Symbols
}

// RenderBounds writes a Go source file that publishes the image's
// symbols as constants in package pkg.
func (d *Descriptor) RenderBounds(w io.Writer, pkg string, img *Image) error {
	return boundsTemplate.Execute(w, boundsParams{
		Pkg:    pkg,
		Origin: d.origin,
		Sym:    img.Symbols,
	})
}
