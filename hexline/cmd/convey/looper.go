package main

import (
	"log"
	"strings"

	"composure/hexline"
)

///////////////////////////////////////////////////////////////////////
// transmitLooper
///////////////////////////////////////////////////////////////////////
type transmitState int

const (
	tsData transmitState = 0
	tsEnd  transmitState = 1
)

// transmitLooper speaks the line oriented protocol with the device
// and handles successful and failed lines, retransmitting when lines
// fail. The emitters decide WHAT to send; the looper is only
// concerned with the responses from the device.
//
// The layers are: transmitLooper <--- emitter <--- ioProto.
// ioProto does the raw sending and receiving. emitter knows which
// lines make up its part of the transmission. transmitLooper confirms
// each line was received ok and sends it again when it wasn't.
type transmitLooper struct {
	state        transmitState
	emitterIndex int
	current      emitter
	emitters     []emitter
	inBuffer     []uint8
	oh           ioProto
	errorCount   int //in a row
}

func newTransmitLooper(all []emitter, oh ioProto) *transmitLooper {
	return &transmitLooper{
		oh:           oh,
		state:        tsData,
		emitterIndex: 1,
		current:      all[0],
		emitters:     all,
		inBuffer:     make([]uint8, 256),
	}
}

// next moves to the following emitter, or to the end state when the
// emitters are used up. Returns false on the transition to the end
// state so the caller can tell the two apart.
func (t *transmitLooper) next() bool {
	if t.state == tsEnd {
		log.Fatalf("bad state, transmitLooper should know it is done!")
	}
	if t.emitterIndex == len(t.emitters) {
		t.state = tsEnd
		return false
	}
	t.current = t.emitters[t.emitterIndex]
	t.emitterIndex++
	return true
}

func (t *transmitLooper) read() (string, error) {
	l, err := t.oh.Read(t.inBuffer)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(l), nil
}

func (t *transmitLooper) line() (string, error) {
	switch t.state {
	case tsEnd:
		if err := t.oh.Send(hexline.EOFLine); err != nil {
			return "", err
		}
		return hexline.EOFLine, nil
	case tsData:
		return t.current.line()
	}
	panic("unexpected state for transmitLooper")
}
