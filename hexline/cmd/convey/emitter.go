package main

import (
	"log"

	"composure/hexline"
)

///////////////////////////////////////////////////////////////////////////////
// emitter figures out what lines and addresses to send for one part
// of the transmission. It uses an ioProto to do the actual IO work.
///////////////////////////////////////////////////////////////////////////////
type emitter interface {
	name() string
	moreLines() bool
	line() (string, error) //sends the next line and returns it
	reset()                //return to the beginning of this emitter
}

// lineEmitter walks a precomputed list of lines. Precomputing keeps
// the transmission deterministic and makes retry a plain index reset.
type lineEmitter struct {
	emitterName string
	lines       []string
	next        int
	oh          ioProto
}

func (l *lineEmitter) name() string {
	return l.emitterName
}

func (l *lineEmitter) moreLines() bool {
	return l.next < len(l.lines)
}

func (l *lineEmitter) line() (string, error) {
	s := l.lines[l.next]
	if err := l.oh.Send(s); err != nil {
		return "bad output", err
	}
	l.next++
	return s, nil
}

func (l *lineEmitter) reset() {
	l.next = 0
}

// newImageEmitter frames the image bytes as data lines, issuing a new
// base address line each time the 16 bit line offset would wrap.
func newImageEmitter(image []byte, base uint32, oh ioProto) emitter {
	var lines []string
	for window := 0; window < len(image); window += 0x10000 {
		lines = append(lines, hexline.EncodeBase(base+uint32(window)))
		limit := window + 0x10000
		if limit > len(image) {
			limit = len(image)
		}
		for off := window; off < limit; off += hexline.MaxDataBytes {
			end := off + hexline.MaxDataBytes
			if end > limit {
				end = limit
			}
			l, err := hexline.EncodeData(image[off:end], uint16(off-window))
			if err != nil {
				log.Fatalf("unable to encode image bytes: %v", err)
			}
			lines = append(lines, l)
		}
	}
	return &lineEmitter{emitterName: "image", lines: lines, oh: oh}
}

// newZeroEmitter tells the receiver to zero the region the image file
// does not carry.
func newZeroEmitter(start, end uint32, oh ioProto) emitter {
	var lines []string
	//a zero fill line carries a 32 bit length, so one line per 64K
	//window keeps the offsets honest
	for cur := start; cur < end; {
		length := end - cur
		if length > 0x10000 {
			length = 0x10000
		}
		lines = append(lines, hexline.EncodeBase(cur))
		lines = append(lines, hexline.EncodeZeroFill(0, length))
		cur += length
	}
	return &lineEmitter{emitterName: "zero region", lines: lines, oh: oh}
}

func newEntryEmitter(entry uint32, oh ioProto) emitter {
	return &lineEmitter{emitterName: "entry point", lines: []string{hexline.EncodeEntry(entry)}, oh: oh}
}
