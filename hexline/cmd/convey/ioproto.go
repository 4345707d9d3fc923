package main

import (
	"log"

	"composure/hexline"

	tty "github.com/mattn/go-tty"
)

////////////////////////////////////////////////////////////////////////////////
// ioProto deals with what to do with encoded lines. it talks to the
// actual i/o interface; it does not decide what to send or receive,
// only provides the implementation.
////////////////////////////////////////////////////////////////////////////////
type ioProto interface {
	Send(line string) error
	Read(buffer []uint8) (string, error) //read the next thing from the other side
}

///////////////////////////////////////////////////////////////////////
// ttyIOProto is the real device on the other end of a serial line
///////////////////////////////////////////////////////////////////////

type ttyIOProto struct {
	io *tty.TTY
}

func newTTYIOProto(devTTYPath string) *ttyIOProto { //returns nil when it can't open
	ttyObj, err := tty.OpenDevice(devTTYPath)
	if err != nil {
		log.Printf("%v", err)
		return nil
	}
	_ = ttyObj.MustRaw()
	return &ttyIOProto{io: ttyObj}
}

func (t *ttyIOProto) Send(line string) error {
	if _, err := t.io.Output().WriteString(line); err != nil {
		return err
	}
	_, err := t.io.Output().WriteString("\n")
	return err
}

func (t *ttyIOProto) Read(data []uint8) (string, error) {
	count := uint16(0)
	dropped := 0
	for {
		r, err := t.io.Input().Read(data[count : count+1])
		if err != nil {
			return "", err
		}
		if r == 0 {
			log.Printf("retrying failed read (size zero)")
			continue
		}
		switch {
		case data[count] < 32 && data[count] != 10:
			continue
		case data[count] == 10:
			if dropped != 0 {
				log.Printf("dropped %d characters from line", dropped)
			}
			return string(data[:count]), nil
		default:
			if count == uint16(len(data)-1) {
				dropped++
				continue
			}
			count++
		}
	}
}

///////////////////////////////////////////////////////////////////////
// verifyIOProto decodes every sent line and checks it against the
// image it came from. Used by the self test (the -t option).
///////////////////////////////////////////////////////////////////////

type verifyIOProto struct {
	sink *hexline.VerifySink
}

func newVerifyIOProto(sink *hexline.VerifySink) *verifyIOProto {
	return &verifyIOProto{sink: sink}
}

func (v *verifyIOProto) Send(line string) error {
	decoded, err := hexline.Decode(line)
	if err != nil {
		return err
	}
	if bad, _ := hexline.Apply(decoded, v.sink); bad {
		if v.sink.Err != nil {
			return v.sink.Err
		}
		return hexline.NewEncodeDecodeError("line failed to apply: " + line)
	}
	return nil
}

func (v *verifyIOProto) Read(buffer []uint8) (string, error) { //always acks
	buffer[0] = '.'
	return string(buffer[0:1]), nil
}
