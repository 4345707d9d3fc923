package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"composure/hexline"
	"composure/layout"
)

var helpFlag = flag.Bool("h", false, "get usage info")
var ptyFlag = flag.String("p", "", "supply a tty device to transmit to")
var testFlag = flag.Bool("t", false, "decode the whole transmission locally and verify it against the image")
var baseFlag = flag.Uint64("base", layout.LoadAddress, "load address of the image")
var entryFlag = flag.Uint64("entry", layout.LoadAddress, "entry point address")
var zeroStartFlag = flag.Uint64("zero-start", 0, "start of the region the device must zero fill")
var zeroEndFlag = flag.Uint64("zero-end", 0, "end (exclusive) of the region the device must zero fill")
var verbose = flag.Int("v", 0, "verbosity level: 0 terse (default), 1 debug info, 2 show everything")

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
	if *zeroEndFlag < *zeroStartFlag {
		log.Fatalf("zero region end %#x precedes its start %#x", *zeroEndFlag, *zeroStartFlag)
	}
	for _, a := range []struct {
		name string
		addr uint64
	}{
		{"base", *baseFlag},
		{"entry", *entryFlag},
		{"zero-start", *zeroStartFlag},
		{"zero-end", *zeroEndFlag},
	} {
		if !fitsWire(a.addr) {
			log.Fatalf("-%s %#x does not fit the wire protocol's 32 bit addresses", a.name, a.addr)
		}
	}

	image, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		log.Fatalf("%v", err)
	}
	if len(image) == 0 {
		log.Fatalf("refusing to transmit an empty image: %s", flag.Arg(0))
	}

	if *testFlag {
		selfTest(image)
	}
	if *ptyFlag != "" {
		oh := newTTYIOProto(*ptyFlag)
		if oh == nil {
			log.Fatalf("unable to connect to %s", *ptyFlag)
		}
		protocol(image, oh)
		log.Printf("transmission successful: %s", flag.Arg(0))
		echoDeviceLog(oh)
	}
	if !*testFlag && *ptyFlag == "" {
		log.Printf("neither test flag nor pty flag/parameter supplied, not doing anything")
	}
}

func selfTest(image []byte) {
	sink := hexline.NewVerifySink(image, *baseFlag, *zeroStartFlag, *zeroEndFlag)
	protocol(image, newVerifyIOProto(sink))
	if sink.Written() != len(image) {
		log.Fatalf("verify: only %d of %d image bytes arrived", sink.Written(), len(image))
	}
	if !sink.EntryIsSet() {
		log.Fatalf("verify: transmission never set the entry point")
	}
	log.Printf("verified all the data bytes and the addresses for loading them.")
}

func protocol(image []byte, oh ioProto) {
	emitterList := []emitter{newImageEmitter(image, uint32(*baseFlag), oh)}
	if *zeroEndFlag > *zeroStartFlag {
		emitterList = append(emitterList, newZeroEmitter(uint32(*zeroStartFlag), uint32(*zeroEndFlag), oh))
	}
	emitterList = append(emitterList, newEntryEmitter(uint32(*entryFlag), oh))

	tx := newTransmitLooper(emitterList, oh)
	if *verbose > 0 {
		log.Printf("@@@ sending %s", tx.current.name())
	}

outer:
	for {
		l, err := tx.read()
		if err != nil {
			log.Fatalf("!!! error reading from device: %v", err)
		}
		if len(l) == 0 {
			log.Printf("ignoring empty line")
			continue
		}

		switch l[0] {
		case '#': //comment
			log.Print("### ", l[1:])
		case '@': //debug info
			if *verbose > 0 {
				log.Print("@@@ ", l[1:])
			}
		case '!': //error
			if *verbose < 2 { //verbose user has already seen this
				log.Printf("!!! %s", l[1:])
			}
			log.Printf("RETRY in %s", tx.current.name())
			tx.errorCount++
			switch {
			case tx.errorCount > 5:
				log.Fatalf("aborting, too many errors in a row")
			case tx.errorCount > 2:
				tx.current.reset()
			}
		case '.':
			tx.errorCount = 0 //no more consecutive errors
			if tx.state == tsEnd {
				break outer //device confirmed the EOF line
			}
			for tx.state == tsData && !tx.current.moreLines() {
				if tx.next() && *verbose > 0 {
					log.Printf("@@@ sending %s", tx.current.name())
				}
			}
			sendLineToDevice(tx)
		default:
			log.Printf("ignoring unexpected response: %s", l)
		}
	}
}

func sendLineToDevice(tx *transmitLooper) {
	// we get the line as a courtesy, but it's already been sent
	l, err := tx.line()
	if err != nil {
		log.Fatalf("error sending next line: %v", err)
	}
	if *verbose == 2 {
		log.Printf("--> %s", l)
	}
}

// after the transmission the device starts the kernel; relay whatever
// it prints until the line goes away
func echoDeviceLog(oh ioProto) {
	log.Printf("--- device log ---")
	buffer := make([]uint8, 256)
	for {
		l, err := oh.Read(buffer)
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalf("failed to read from device: %v", err)
		}
		if len(l) == 0 {
			continue
		}
		switch l[0] {
		case '@':
			if *verbose > 0 {
				fmt.Printf("@@@ %s\n", l[1:])
			}
		case '!':
			fmt.Printf("!!! %s\n", l[1:])
		case '#':
			fmt.Printf("### %s\n", l[1:])
		default:
			fmt.Printf("%s\n", l)
		}
	}
}

// the line protocol carries 32 bit addresses; anything wider would
// truncate silently when the emitters build their lines
func fitsWire(addr uint64) bool {
	return addr <= 0xffffffff
}

func usage() {
	fmt.Printf("usage: convey [options] flat-image-file\n")
	flag.PrintDefaults()
	os.Exit(1)
}
