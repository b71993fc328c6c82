package bridge

/*------------------------------------------------------------------
 *
 * Purpose:	DVM host protocol (C4): byte-at-a-time parser for the
 *		async host channel's short/long framed messages, command
 *		dispatch, and version/status/ACK/NAK reply composition.
 *
 * Description:	The byte-by-byte pos-indexed state machine mirrors the
 *		search/collecting shape of kiss_frame.go's kiss_rec_byte,
 *		generalized from KISS's FEND-delimited framing to DVM's
 *		length-prefixed framing. Command semantics and reply wire
 *		layout are ported from vcp.c's VCPCallback/VCPWriteP25Frame
 *		and from spec.md §4.4 (vcp.c itself only special-cases
 *		CMD_P25_DATA; the rest of the dispatch table comes straight
 *		from the spec).
 *
 *---------------------------------------------------------------*/

import (
	"time"
)

const (
	dvmFrameStartShort byte = 0xFE
	dvmFrameStartLong  byte = 0xFD

	dvmMaxMsgLen = 255 // VCP_MAX_MSG_LENGTH_BYTES

	cmdGetVersion  byte = 0x00
	cmdGetStatus   byte = 0x01
	cmdSetConfig   byte = 0x02
	cmdSetMode     byte = 0x03
	cmdSetRFParams byte = 0x06
	cmdCalData     byte = 0x08
	cmdP25Data     byte = 0x31
	cmdP25Clear    byte = 0x33
	cmdFlashRead   byte = 0xE0
	cmdFlashWrite  byte = 0xE1
	cmdResetMCU    byte = 0xEA

	replyACK byte = 0x70
	replyNAK byte = 0x7F

	protocolVersion byte = 0x04
	cpuKind         byte = 0x02
)

type dvmParserState int

const (
	dvmAwaitStart dvmParserState = iota
	dvmAwaitLen1
	dvmAwaitLen2
	dvmCollecting
)

// dvmUISender is how C4 hands an outbound P25 payload down to C3.
type dvmUISender interface {
	sendUIPayload(payload []byte)
	peerConnected() bool
	hdlcFreeSpace() int // remaining RX capacity for P25 data, in bytes
}

// asyncWriter is the narrow capability C4 needs to reply on the host
// channel (implemented by the C6 async adapters).
type asyncWriter interface {
	Write(p []byte) (int, error)
}

type flashStore interface {
	read() []byte
	write(data []byte) error
}

// dvmParser is the C4 state machine: one instance per async host
// channel (spec.md §1 Non-goals: no multi-peer support applies to the
// V.24 side; the host side is likewise single-channel).
type dvmParser struct {
	log *componentLogger

	rxFIFO *octetFIFO // populated by the async-RX adapter

	state      dvmParserState
	long       bool
	declaredLen int
	lenHi      byte
	buf        []byte

	lastByteTick time.Time
	interByteTimeout time.Duration

	out   asyncWriter
	hdlc  dvmUISender
	flash flashStore

	deviceUID   [12]byte
	hardwareStr string
}

func newDVMParser(rxFIFO *octetFIFO, out asyncWriter, hdlc dvmUISender, flash flashStore, deviceUID [12]byte, hardwareStr string, interByteTimeout time.Duration, log *componentLogger) *dvmParser {
	return &dvmParser{
		log:              log,
		rxFIFO:           rxFIFO,
		out:              out,
		hdlc:             hdlc,
		flash:            flash,
		deviceUID:        deviceUID,
		hardwareStr:      hardwareStr,
		interByteTimeout: interByteTimeout,
	}
}

func (p *dvmParser) resetParser() {
	p.state = dvmAwaitStart
	p.long = false
	p.declaredLen = 0
	p.buf = p.buf[:0]
}

// drainRX consumes all currently buffered bytes from the async RX FIFO,
// feeding the parser one byte at a time. Call once per main-loop
// iteration (C5's fixed order, step 1).
func (p *dvmParser) drainRX(now time.Time) {
	if p.state != dvmAwaitStart && now.Sub(p.lastByteTick) > p.interByteTimeout {
		if p.log != nil {
			p.log.Warn("DVM inter-byte timeout, resetting parser")
		}
		p.resetParser()
	}

	for {
		b, ok := p.rxFIFO.pop()
		if !ok {
			return
		}
		p.lastByteTick = now
		p.feed(b)
	}
}

func (p *dvmParser) feed(b byte) {
	switch p.state {
	case dvmAwaitStart:
		switch b {
		case dvmFrameStartShort:
			p.long = false
			p.buf = append(p.buf[:0], b)
			p.state = dvmAwaitLen1
		case dvmFrameStartLong:
			p.long = true
			p.buf = append(p.buf[:0], b)
			p.state = dvmAwaitLen1
		default:
			// Noise: discard and keep searching.
		}
	case dvmAwaitLen1:
		p.buf = append(p.buf, b)
		if p.long {
			p.lenHi = b
			p.state = dvmAwaitLen2
			return
		}
		p.declaredLen = int(b)
		p.afterLength()
	case dvmAwaitLen2:
		p.buf = append(p.buf, b)
		p.declaredLen = int(p.lenHi)<<8 | int(b)
		p.afterLength()
	case dvmCollecting:
		p.buf = append(p.buf, b)
		if len(p.buf) >= p.declaredLen {
			frame := append([]byte(nil), p.buf...)
			p.resetParser()
			p.dispatch(frame)
		}
	}
}

func (p *dvmParser) afterLength() {
	if p.declaredLen > dvmMaxMsgLen {
		if p.log != nil {
			p.log.Error("DVM frame declared length exceeds maximum, resetting", "len", p.declaredLen)
		}
		p.nak(0, reasonIllegalLength)
		p.resetParser()
		return
	}
	if len(p.buf) >= p.declaredLen {
		frame := append([]byte(nil), p.buf...)
		p.resetParser()
		p.dispatch(frame)
		return
	}
	p.state = dvmCollecting
}

// dispatch implements spec.md §4.4's command table. frame is the
// complete on-wire message including its start byte and length field(s).
func (p *dvmParser) dispatch(frame []byte) {
	hdrLen := 3
	if frame[0] == dvmFrameStartLong {
		hdrLen = 4
	}
	if len(frame) < hdrLen {
		return
	}
	cmd := frame[hdrLen-1]
	payload := frame[hdrLen:]

	switch cmd {
	case cmdGetVersion:
		p.sendVersion()
	case cmdGetStatus:
		p.sendStatus()
	case cmdSetConfig:
		p.ack(cmd)
	case cmdSetMode:
		// Always P25; no action needed.
	case cmdSetRFParams:
		p.ack(cmd)
	case cmdCalData:
		p.ack(cmd)
	case cmdP25Data:
		if len(payload) < 1 {
			p.nak(cmd, reasonIllegalLength)
			return
		}
		p.hdlc.sendUIPayload(payload[1:]) // strip DVM pad byte
	case cmdP25Clear:
		// No action.
	case cmdFlashRead:
		p.sendFlashRead()
	case cmdFlashWrite:
		p.handleFlashWrite(payload)
	case cmdResetMCU:
		if p.log != nil {
			p.log.Warn("RESET_MCU requested")
		}
	default:
		p.nak(cmd, reasonInvalidRequest)
	}
}

// deliverP25Frame implements the C3->C4 UI-frame-to-host path (spec.md
// §4.4 "P25 data emission to host").
func (p *dvmParser) deliverP25Frame(payload []byte) {
	out := make([]byte, 0, len(payload)+4)
	out = append(out, dvmFrameStartShort, byte(len(payload)+4), cmdP25Data, 0x00)
	out = append(out, payload...)
	p.write(out)
}

func (p *dvmParser) sendVersion() {
	body := make([]byte, 0, 32+len(p.hardwareStr)+1)
	body = append(body, dvmFrameStartShort, 0, cmdGetVersion, protocolVersion, cpuKind)
	uidPadded := make([]byte, 16)
	copy(uidPadded, p.deviceUID[:])
	body = append(body, uidPadded...)
	body = append(body, []byte(p.hardwareStr)...)
	body = append(body, 0x00)
	body[1] = byte(len(body))
	p.write(body)
}

func (p *dvmParser) sendStatus() {
	modeFlags := byte(0x08 | 0x80) // buffer space reported in 16-byte blocks
	state := byte(0x00)
	if p.hdlc.peerConnected() {
		modeFlags |= 0x40
		state = 0x02
	}

	blocks := p.hdlc.hdlcFreeSpace() / 16
	if blocks < 16 {
		if p.log != nil {
			p.log.Warn("low P25 RX buffer space, clearing", "free_blocks", blocks)
		}
		p.rxFIFO.clear()
	}

	body := []byte{dvmFrameStartShort, 0, cmdGetStatus, modeFlags, state, 0, 0, 0, 0, 0, byte(blocks), 0, 0, 0, 0}
	body[1] = byte(len(body))
	p.write(body)
}

func (p *dvmParser) sendFlashRead() {
	data := p.flash.read()
	out := make([]byte, 0, len(data)+4)
	out = append(out, dvmFrameStartShort, byte(len(data)+4), cmdFlashRead, 0x00)
	out = append(out, data...)
	p.write(out)
}

func (p *dvmParser) handleFlashWrite(payload []byte) {
	if len(payload) < 1 {
		p.nak(cmdFlashWrite, reasonIllegalLength)
		return
	}
	data := payload[1:]
	if err := p.flash.write(data); err != nil {
		if p.log != nil {
			p.log.Error("flash write failed", "err", err)
		}
		p.nak(cmdFlashWrite, reasonFailedWriteFlash)
		return
	}
	p.ack(cmdFlashWrite)
}

func (p *dvmParser) ack(cmd byte) {
	p.write([]byte{dvmFrameStartShort, 4, replyACK, cmd})
}

func (p *dvmParser) nak(cmd byte, reason reasonCode) {
	p.write([]byte{dvmFrameStartShort, 5, replyNAK, cmd, byte(reason)})
}

func (p *dvmParser) write(b []byte) {
	if p.out == nil {
		return
	}
	if _, err := p.out.Write(b); err != nil && p.log != nil {
		p.log.Error("DVM host write failed", "err", err)
	}
}
