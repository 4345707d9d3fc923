package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"composure/elfload"
	"composure/layout"

	"go.uber.org/zap"
)

var helpFlag = flag.Bool("h", false, "get usage info")
var outFlag = flag.String("o", "kernel8.img", "where to write the flat image")
var payloadFlag = flag.String("payload", "", "file appended to the image as an opaque trailing blob")
var scriptFlag = flag.String("script", "", "also write the equivalent linker script here")
var boundsFlag = flag.String("bounds", "", "also write the generated bounds constants here")
var boundsPkg = flag.String("boundspkg", "boot", "package name for the generated bounds file")
var verbose = flag.Int("v", 0, "verbosity level: 0 terse (default), 1 placement summary, 2 per block detail")

///////////////////////////////////////////////////////////////////////
// main
///////////////////////////////////////////////////////////////////////
func main() {
	flag.Parse()
	if flag.NArg() == 0 {
		usage()
	}
	if *helpFlag {
		usage()
	}

	if *verbose > 0 {
		cfg := zap.NewDevelopmentConfig()
		if *verbose < 2 {
			cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
		}
		l, err := cfg.Build()
		if err != nil {
			log.Fatalf("unable to set up logging: %v", err)
		}
		defer l.Sync()
		layout.SetLogger(l)
		elfload.SetLogger(l)
	}

	var blocks []layout.Block
	for _, filename := range flag.Args() {
		bs, err := elfload.Load(filename)
		if err != nil {
			log.Fatalf("%s: %v", filename, err)
		}
		blocks = append(blocks, bs...)
	}

	if *payloadFlag != "" {
		data, err := os.ReadFile(*payloadFlag)
		if err != nil {
			log.Fatalf("unable to read payload: %v", err)
		}
		blocks = append(blocks, layout.Block{Name: *payloadFlag, Kind: layout.KindPayload, Data: data})
	}

	d := layout.NewDescriptor()
	img, err := d.Build(blocks)
	if err != nil {
		log.Fatalf("unable to build image: %v", err)
	}

	if err := os.WriteFile(*outFlag, img.Bytes, 0644); err != nil {
		log.Fatalf("unable to write image: %v", err)
	}
	log.Printf("wrote %s: %d bytes at load address %#x", *outFlag, len(img.Bytes), layout.LoadAddress)
	log.Printf("zero region [%#x,%#x), image end %#x", img.Symbols.BSSStart, img.Symbols.BSSEnd, img.Symbols.ImageEnd)
	if img.Symbols.PayloadStart != 0 {
		log.Printf("payload at %#x", img.Symbols.PayloadStart)
	}

	if *scriptFlag != "" {
		writeRendered(*scriptFlag, func(f *os.File) error { return d.RenderScript(f) })
		log.Printf("wrote linker script %s", *scriptFlag)
	}
	if *boundsFlag != "" {
		writeRendered(*boundsFlag, func(f *os.File) error { return d.RenderBounds(f, *boundsPkg, img) })
		log.Printf("wrote bounds constants %s (package %s)", *boundsFlag, *boundsPkg)
	}
}

func writeRendered(filename string, render func(*os.File) error) {
	f, err := os.Create(filename)
	if err != nil {
		log.Fatalf("unable to create %s: %v", filename, err)
	}
	defer f.Close()
	if err := render(f); err != nil {
		log.Fatalf("unable to render %s: %v", filename, err)
	}
}

func usage() {
	fmt.Printf("usage: compose [options] kernel-elf-file...\n")
	flag.PrintDefaults()
	os.Exit(1)
}
