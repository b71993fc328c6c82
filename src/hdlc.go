package bridge

/*------------------------------------------------------------------
 *
 * Purpose:	HDLC link layer (C3): frame boundary recovery over C2's
 *		octet stream, escape/unescape, CRC-16/X.25 FCS, peer
 *		address learning, SABM/UA/XID/RR/UI control dispatch, idle
 *		heartbeat, and RX-timeout link drop.
 *
 * Description:	Grounded on hdlc.c's HDLCParseMsg/hdlcEncodeAndSendFrame/
 *		HdlcCallback from the Quantar V.24 firmware this bridge
 *		replaces. The control-field dispatch table and the RR/
 *		peer_connected sequencing are literal ports (see DESIGN.md
 *		"Open Question resolutions").
 *
 *---------------------------------------------------------------*/

import (
	"time"
)

const (
	hdlcCtrlRR   byte = 0x01
	hdlcCtrlUI   byte = 0x03
	hdlcCtrlUA   byte = 0x73
	hdlcCtrlSABM byte = 0x3F
	hdlcCtrlXID  byte = 0xBF

	hdlcSelfAddress byte = 0x0B
	hdlcSite        byte = 13

	frameSpacing = 2 // trailing fill flags beyond the mandatory boundary flag

	minFrameLen = 4 // address + control + 2-byte FCS
)

// hdlcTimers bundles the link's timeout/heartbeat intervals so they can
// be overridden from configuration (SPEC_FULL §10.2) instead of being
// compiled-in constants as in the firmware.
type hdlcTimers struct {
	rrInterval   time.Duration
	rxTimeout    time.Duration
	syncRXDelay  time.Duration
}

func defaultHDLCTimers() hdlcTimers {
	return hdlcTimers{
		rrInterval:  5 * time.Second,
		rxTimeout:   10 * time.Second,
		syncRXDelay: time.Second,
	}
}

// hdlcCounters are the frame counters the firmware's optional periodic
// status line reports (SPEC_FULL §12 "Frame counters").
type hdlcCounters struct {
	rxTotal uint64
	rxValid uint64
	txTotal uint64
}

func (c hdlcCounters) rxErrors() uint64 { return c.rxTotal - c.rxValid }

// uiSink is how C3 delivers an accepted UI frame's payload onward to C4.
type uiSink interface {
	deliverP25Frame(payload []byte)
}

// hdlcLink is the C3 state machine: one instance per V.24 peer (spec.md
// §1 Non-goals: no multi-peer support).
type hdlcLink struct {
	rxFIFO *octetFIFO // from C2
	txFIFO *octetFIFO // to C2

	log *componentLogger

	timers   hdlcTimers
	counters hdlcCounters

	peerConnected bool
	peerAddress   byte // 0 = unknown

	lastRxTick time.Time
	lastTxTick time.Time

	curFrame []byte // in-progress frame, accumulated between boundary flags
	inFrame  bool   // have we seen an opening boundary flag since the last close?

	sink uiSink
}

func newHDLCLink(rxFIFO, txFIFO *octetFIFO, timers hdlcTimers, log *componentLogger, sink uiSink) *hdlcLink {
	return &hdlcLink{
		rxFIFO: rxFIFO,
		txFIFO: txFIFO,
		timers: timers,
		log:    log,
		sink:   sink,
	}
}

// onSyncReset is C2's hook back into C3 (spec.md §4.2 "Reset").
func (h *hdlcLink) onSyncReset() {
	h.resetLink()
}

func (h *hdlcLink) resetLink() {
	if h.peerConnected {
		h.peerConnected = false
		if h.log != nil {
			h.log.Info("HDLC link reset")
		}
	}
	h.peerAddress = 0
	h.curFrame = h.curFrame[:0]
	h.inFrame = false
}

// drainRX harvests completed frames out of C2's RX FIFO and dispatches
// them. Call once per main-loop iteration (C5's fixed order, step 2).
func (h *hdlcLink) drainRX(now time.Time) {
	for {
		b, ok := h.rxFIFO.pop()
		if !ok {
			return
		}
		if b == flagOctet {
			if h.inFrame && len(h.curFrame) > 0 {
				frame := h.curFrame
				h.curFrame = nil
				h.parseFrame(now, frame)
			}
			// Idle fill flag between frames (back-to-back close+open
			// markers with nothing between them), or an opening flag
			// with no content yet: nothing to harvest.
			h.inFrame = true
			continue
		}
		if !h.inFrame {
			// Should not happen (C2 always emits an opening marker
			// before data), but never accumulate outside a frame.
			continue
		}
		h.curFrame = append(h.curFrame, b)
	}
}

// parseFrame implements spec.md §4.3 parse_frame.
func (h *hdlcLink) parseFrame(now time.Time, raw []byte) {
	h.counters.rxTotal++

	msg := unescapeHDLC(raw)
	if len(msg) < minFrameLen {
		if h.log != nil {
			h.log.Warn("HDLC frame too short, dropping", "len", len(msg))
		}
		return
	}

	if !checkFCS(msg) {
		if h.log != nil {
			h.log.Error("HDLC FCS mismatch, dropping frame")
		}
		return
	}
	h.counters.rxValid++

	address := msg[0]
	control := msg[1]
	data := msg[2 : len(msg)-2]

	if h.peerAddress == 0 {
		h.peerAddress = address
		if h.log != nil {
			h.log.Info("learned HDLC peer address", "address", address)
		}
	}

	switch control {
	case hdlcCtrlSABM:
		if h.log != nil {
			h.log.Info("got SABM frame")
		}
		h.lastRxTick = now
		h.sendUA(now, h.peerAddress)
	case hdlcCtrlXID:
		if h.log != nil {
			h.log.Info("got XID frame")
		}
		h.lastRxTick = now
		h.sendXID(now, hdlcSelfAddress, hdlcCtrlXID, hdlcSite, 0x00)
	case hdlcCtrlRR:
		if h.log != nil {
			h.log.Info("got RR frame")
		}
		// Open Question resolution (DESIGN.md): refresh unconditionally,
		// then mark connected if this is the first RR.
		h.lastRxTick = now
		if !h.peerConnected {
			h.peerConnected = true
			if h.log != nil {
				h.log.Info("connected to HDLC peer", "address", h.peerAddress)
			}
		}
	case hdlcCtrlUI:
		if h.log != nil {
			h.log.Debug("got UI frame", "len", len(data))
		}
		h.lastRxTick = now
		if h.sink != nil {
			h.sink.deliverP25Frame(data)
		}
	default:
		if h.log != nil {
			h.log.Warn("unhandled HDLC control type", "control", control)
		}
	}
}

// ---- frame emission ----

func unescapeHDLC(in []byte) []byte {
	out := make([]byte, 0, len(in))
	for i := 0; i < len(in); i++ {
		if in[i] == escapeCode && i+1 < len(in) {
			switch in[i+1] {
			case escape7E:
				out = append(out, flagOctet)
				i++
				continue
			case escape7D:
				out = append(out, escapeCode)
				i++
				continue
			}
		}
		out = append(out, in[i])
	}
	return out
}

func escapeHDLC(in []byte) []byte {
	out := make([]byte, 0, len(in))
	for _, b := range in {
		switch b {
		case flagOctet:
			out = append(out, escapeCode, escape7E)
		case escapeCode:
			out = append(out, escapeCode, escape7D)
		default:
			out = append(out, b)
		}
	}
	return out
}

// sendFrame builds [address, control, data...], appends the FCS,
// escapes, and pushes flag-delimited onto the sync TX FIFO, with
// FRAME_SPACING fill flags trailing.
func (h *hdlcLink) sendFrame(now time.Time, address, control byte, data []byte) {
	body := make([]byte, 0, 2+len(data))
	body = append(body, address, control)
	body = append(body, data...)
	body = appendFCS(body)

	escaped := escapeHDLC(body)

	if !h.pushTX(flagOctet) {
		return
	}
	for _, b := range escaped {
		if !h.pushTX(b) {
			return
		}
	}
	if !h.pushTX(flagOctet) {
		return
	}
	for i := 0; i < frameSpacing; i++ {
		h.pushTX(flagOctet)
	}

	h.counters.txTotal++
	h.lastTxTick = now
}

func (h *hdlcLink) pushTX(b byte) bool {
	if h.txFIFO.push(b) {
		return true
	}
	if h.log != nil {
		h.log.Warn("HDLC TX FIFO full, dropping frame")
	}
	return false
}

func (h *hdlcLink) sendUA(now time.Time, address byte) {
	h.sendFrame(now, address, hdlcCtrlUA, nil)
	if h.log != nil {
		h.log.Info("sent UA frame")
	}
}

func (h *hdlcLink) sendXID(now time.Time, address, msgType, site, stationType byte) {
	data := []byte{msgType, site*2 + 1, stationType, 0, 0, 0, 0, 0xFF}
	h.sendFrame(now, address, hdlcCtrlXID, data)
	if h.log != nil {
		h.log.Info("sent XID frame")
	}
}

func (h *hdlcLink) sendRR(now time.Time) {
	h.sendFrame(now, hdlcSelfAddress, hdlcCtrlRR, nil)
	if h.log != nil {
		h.log.Info("sent RR frame")
	}
}

// sendUI transmits a P25 payload to the peer as a UI frame. Called from
// C5 when C4 hands down a P25_DATA message.
func (h *hdlcLink) sendUI(now time.Time, payload []byte) {
	h.sendFrame(now, h.peerAddress, hdlcCtrlUI, payload)
	if h.log != nil {
		h.log.Debug("sent UI frame", "len", len(payload))
	}
}

// ---- timers ----

// service runs the RR heartbeat; call once per main-loop iteration when
// C2 reports SYNCED. RX timeout is checked separately by the caller via
// rxTimedOut, since dropping sync is C2's responsibility (the bridge
// mediates between the two).
func (h *hdlcLink) service(now time.Time) {
	if h.peerConnected && now.Sub(h.lastTxTick) > h.timers.rrInterval {
		h.sendRR(now)
	}
}

func (h *hdlcLink) rxTimedOut(now time.Time) bool {
	return now.Sub(h.lastRxTick) > h.timers.rxTimeout
}
