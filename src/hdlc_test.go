package bridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeSink struct {
	delivered [][]byte
}

func (f *fakeSink) deliverP25Frame(payload []byte) {
	f.delivered = append(f.delivered, append([]byte(nil), payload...))
}

func newTestHDLCLink(sink uiSink) (*hdlcLink, *octetFIFO, *octetFIFO) {
	rx := newOctetFIFO(4096)
	tx := newOctetFIFO(4096)
	h := newHDLCLink(rx, tx, defaultHDLCTimers(), nil, sink)
	return h, rx, tx
}

// buildWireFrame FCS-wraps address/control/data (unescaped) so tests can
// hand it straight to parseFrame, bypassing drainRX's flag-boundary
// harvesting (exercised separately by the drainRX test below).
func buildWireFrame(address, control byte, data []byte) []byte {
	body := append([]byte{address, control}, data...)
	return appendFCS(body)
}

func Test_hdlcLink_SABM_repliesUA(t *testing.T) {
	h, _, tx := newTestHDLCLink(nil)
	now := time.Unix(0, 0)

	frame := buildWireFrame(0x0B, hdlcCtrlSABM, nil)
	h.parseFrame(now, frame)

	assert.False(t, h.peerConnected, "SABM must not set peer_connected")
	assert.Equal(t, byte(0x0B), h.peerAddress, "address must be learned from the frame")

	popped := drainAll(tx)
	assert.Equal(t, flagOctet, popped[0])
	// Reply starts [flag, address, control=UA].
	assert.Equal(t, byte(0x0B), popped[1])
	assert.Equal(t, hdlcCtrlUA, popped[2])
}

func Test_hdlcLink_XID_repliesXID(t *testing.T) {
	h, _, tx := newTestHDLCLink(nil)
	now := time.Unix(0, 0)

	frame := buildWireFrame(0x0B, hdlcCtrlXID, []byte{0, 0, 0, 0, 0, 0, 0, 0})
	h.parseFrame(now, frame)

	popped := drainAll(tx)
	assert.Equal(t, hdlcCtrlXID, popped[2])
}

func Test_hdlcLink_RR_setsConnectedOnFirstReceipt(t *testing.T) {
	h, _, _ := newTestHDLCLink(nil)
	now := time.Unix(0, 0)

	frame := buildWireFrame(0x0B, hdlcCtrlRR, nil)
	h.parseFrame(now, frame)

	assert.True(t, h.peerConnected)
	assert.Equal(t, now, h.lastRxTick)
}

func Test_hdlcLink_UI_deliversPayloadToSink(t *testing.T) {
	sink := &fakeSink{}
	h, _, _ := newTestHDLCLink(sink)
	now := time.Unix(0, 0)

	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	frame := buildWireFrame(0x0B, hdlcCtrlUI, payload)
	h.parseFrame(now, frame)

	if assert.Len(t, sink.delivered, 1) {
		assert.Equal(t, payload, sink.delivered[0])
	}
}

func Test_hdlcLink_badFCSDropped(t *testing.T) {
	sink := &fakeSink{}
	h, _, _ := newTestHDLCLink(sink)
	now := time.Unix(0, 0)

	frame := buildWireFrame(0x0B, hdlcCtrlUI, []byte{1, 2, 3})
	frame[len(frame)-1] ^= 0xFF // corrupt the FCS

	h.parseFrame(now, frame)

	assert.Empty(t, sink.delivered)
	assert.Equal(t, uint64(1), h.counters.rxTotal)
	assert.Equal(t, uint64(0), h.counters.rxValid)
}

func Test_hdlcLink_tooShortDropped(t *testing.T) {
	h, _, _ := newTestHDLCLink(nil)
	h.parseFrame(time.Unix(0, 0), []byte{0x0B, 0x03})
	assert.Equal(t, uint64(0), h.counters.rxValid)
}

func Test_hdlcLink_rxTimedOut(t *testing.T) {
	h, _, _ := newTestHDLCLink(nil)
	base := time.Unix(0, 0)
	h.lastRxTick = base

	assert.False(t, h.rxTimedOut(base.Add(h.timers.rxTimeout-time.Millisecond)))
	assert.True(t, h.rxTimedOut(base.Add(h.timers.rxTimeout+time.Millisecond)))
}

func Test_hdlcLink_serviceSendsRRHeartbeatOnlyWhenConnected(t *testing.T) {
	h, _, tx := newTestHDLCLink(nil)
	now := time.Unix(0, 0)

	h.service(now.Add(time.Hour))
	assert.True(t, tx.empty(), "no heartbeat before peer_connected")

	h.peerConnected = true
	h.lastTxTick = now
	h.service(now.Add(h.timers.rrInterval + time.Millisecond))
	assert.False(t, tx.empty(), "heartbeat expected once connected and interval elapsed")
}

func Test_hdlcLink_resetLink_clearsState(t *testing.T) {
	h, _, _ := newTestHDLCLink(nil)
	h.peerConnected = true
	h.peerAddress = 0x0B
	h.curFrame = []byte{1, 2, 3}
	h.inFrame = true

	h.resetLink()

	assert.False(t, h.peerConnected)
	assert.Equal(t, byte(0), h.peerAddress)
	assert.Empty(t, h.curFrame)
	assert.False(t, h.inFrame)
}

// Back-to-back frames share a single boundary flag (close of frame N is
// open of frame N+1): drainRX must not treat that shared marker as an
// empty frame of its own.
func Test_hdlcLink_drainRX_backToBackFramesNoPhantomFrame(t *testing.T) {
	h, rx, _ := newTestHDLCLink(nil)
	now := time.Unix(0, 0)

	frame1 := buildWireFrame(0x0B, hdlcCtrlRR, nil)
	frame2 := buildWireFrame(0x0B, hdlcCtrlRR, nil)

	push := func(b byte) { assert.True(t, rx.push(b)) }
	push(flagOctet)
	for _, b := range escapeHDLC(frame1) {
		push(b)
	}
	push(flagOctet) // shared close/open boundary
	for _, b := range escapeHDLC(frame2) {
		push(b)
	}
	push(flagOctet)

	h.drainRX(now)

	assert.Equal(t, uint64(2), h.counters.rxTotal, "no phantom frame from the shared boundary flag")
	assert.Equal(t, uint64(2), h.counters.rxValid)
}

func drainAll(f *octetFIFO) []byte {
	var out []byte
	for {
		b, ok := f.pop()
		if !ok {
			return out
		}
		out = append(out, b)
	}
}
