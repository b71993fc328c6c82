package bridge

/*------------------------------------------------------------------
 *
 * Purpose:	Bit-clock-driven HDLC physical layer: flag detection,
 *		zero-bit destuffing/stuffing, byte reassembly, and the
 *		escape encoding inserted at the RX FIFO boundary so C3
 *		never has to reason about bits.
 *
 * Description:	Ticked at twice the V.24 line rate (9600 bit/s). The
 *		rising-edge tick drives the next TX bit and samples RX;
 *		the falling-edge tick is clock-only and carries no state
 *		transition of its own. Literal port of the state machine
 *		in sync.c (RxBits/NextTxBit/NextTxByte) from the Quantar
 *		V.24 firmware this bridge replaces, restructured so the
 *		tentative-bit insertion/cancel dance sync.c does for
 *		stuffed-bit discard becomes a plain "don't commit" branch.
 *
 *---------------------------------------------------------------*/

import (
	"sync/atomic"
	"time"
)

const (
	flagOctet   byte = 0x7E
	escapeCode  byte = 0x7D
	escape7E    byte = 0x5E
	escape7D    byte = 0x5D
	stuffedAtNone = -1
)

type rxSyncState int

const (
	rxSearching rxSyncState = iota
	rxSynced
)

// syncEngine is the per-tick bit engine (C2). One instance serves the
// single V.24 link this bridge maintains (spec §1: exactly one HDLC
// peer, no multi-link support).
type syncEngine struct {
	rxFIFO *octetFIFO // engine -> HDLC framer (C3), escaped octets + 0x7E boundary markers
	txFIFO *octetFIFO // HDLC framer (C3) -> engine, already boundary-escaped

	log *componentLogger

	// onReset is invoked whenever the engine drops sync (abort pattern,
	// bit-count overrun) so C3 can reset link state. Set once at wiring
	// time; never nil in production use.
	onReset func()

	rxDelay time.Duration // SYNC_RX_DELAY debounce window

	// synced mirrors rxState == rxSynced for readers outside the tick
	// goroutine (spec §5: rxState itself belongs to the tick goroutine
	// alone; this atomic is the one safe cross-goroutine window onto it).
	synced atomic.Bool

	// needsRXClear is set by reset() instead of clearing rxFIFO directly:
	// clear() is only safe to call from rxFIFO's consumer (fifo.go), and
	// reset() can run on the tick (producer) goroutine, so the actual
	// clear is deferred to drainRXClearIfNeeded, called from the
	// consumer side.
	needsRXClear atomic.Bool

	// RX state
	rxState        rxSyncState
	rxShift        byte
	rxBitCount     int
	rxOnesRun      int
	rxStuffedAt    int // bit position of a stuffed zero in the byte in progress, or stuffedAtNone
	rxMsgInProgress bool
	rxArmDeadline  time.Time

	// TX state
	txByte    byte
	txBitPos  int
	txOnesRun int
	txIsFlag  bool
	txStarted bool // whether txByte/txBitPos hold a live byte yet
}

func newSyncEngine(rxFIFO, txFIFO *octetFIFO, rxDelay time.Duration, log *componentLogger, onReset func()) *syncEngine {
	return &syncEngine{
		rxFIFO:      rxFIFO,
		txFIFO:      txFIFO,
		log:         log,
		onReset:     onReset,
		rxDelay:     rxDelay,
		rxState:     rxSearching,
		rxStuffedAt: stuffedAtNone,
		txIsFlag:    true,
	}
}

// reset clears RX state, arms the RX FIFO for a deferred clear, arms the
// RX debounce, and notifies C3 to reset link state. Spec §4.2 "Reset".
// Must only be called from the tick goroutine (the sole owner of this
// engine's RX state); the bridge's main loop requests a reset through
// its resetRequested flag instead of calling this directly.
func (s *syncEngine) reset(now time.Time) {
	s.rxState = rxSearching
	s.synced.Store(false)
	s.rxShift = 0
	s.rxBitCount = 0
	s.rxOnesRun = 0
	s.rxStuffedAt = stuffedAtNone
	s.rxMsgInProgress = false
	s.needsRXClear.Store(true)
	s.rxArmDeadline = now.Add(s.rxDelay)
	if s.onReset != nil {
		s.onReset()
	}
}

// isSynced reports whether the engine currently holds flag sync. Safe to
// call from any goroutine, unlike rxState itself.
func (s *syncEngine) isSynced() bool { return s.synced.Load() }

// drainRXClearIfNeeded performs a clear of rxFIFO requested by a prior
// reset(), if one is pending. Must be called from rxFIFO's consumer
// goroutine (the bridge's main loop, via serviceOnce) to respect
// octetFIFO's consumer-only clear() contract.
func (s *syncEngine) drainRXClearIfNeeded() {
	if s.needsRXClear.CompareAndSwap(true, false) {
		s.rxFIFO.clear()
	}
}

// tick services one half-period of the bit clock. rising selects which
// half; rxd is the sampled RX data pin (only meaningful when rising).
// txd is the bit to drive onto the TX data pin (only meaningful when
// rising: the falling half leaves TXD holding the current bit); txclk
// is the clock level the caller should assert on the TX clock output.
func (s *syncEngine) tick(now time.Time, rising bool, rxd bool) (txd bool, txclk bool) {
	if !rising {
		return false, false
	}
	txd = s.nextTxBit()
	s.sampleRx(now, rxd)
	return txd, true
}

// ---- receive path ----

func (s *syncEngine) sampleRx(now time.Time, rxd bool) {
	if now.Before(s.rxArmDeadline) {
		return
	}

	bit := byte(0)
	if rxd {
		bit = 1
	}

	// Tentative insertion: MSB-first, so the newest bit lands at bit 7
	// and earlier bits migrate toward bit 0 as more arrive.
	shifted := (s.rxShift >> 1) | (bit << 7)

	switch s.rxState {
	case rxSearching:
		s.rxShift = shifted
		if s.rxShift == flagOctet {
			s.rxState = rxSynced
			s.synced.Store(true)
			s.rxShift = 0
			s.rxBitCount = 0
			s.rxOnesRun = 0
			s.rxMsgInProgress = false
		}
		return
	case rxSynced:
		switch {
		case s.rxOnesRun == 5 && bit == 0:
			// Stuffed zero: discard it, don't commit the insertion,
			// don't advance the bit counter.
			s.rxStuffedAt = s.rxBitCount
			s.rxOnesRun = 0
			return
		case s.rxOnesRun == 6 && bit == 1:
			// Seven consecutive 1s: abort pattern.
			if s.log != nil {
				s.log.Error("received abort pattern, dropping sync")
			}
			s.reset(now)
			return
		default:
			s.rxShift = shifted
			if bit == 1 {
				s.rxOnesRun++
			} else {
				s.rxOnesRun = 0
			}
			s.rxBitCount++

			if s.rxBitCount == 8 {
				s.completeRxByte()
			} else if s.rxBitCount > 8 {
				if s.log != nil {
					s.log.Error("RX bit counter exceeded, dropping sync")
				}
				s.reset(now)
			}
		}
	}
}

// completeRxByte classifies the just-assembled octet and, per spec
// §4.2, pushes boundary markers / escaped or raw data into the RX FIFO.
func (s *syncEngine) completeRxByte() {
	b := s.rxShift
	stuffedAt6 := s.rxStuffedAt == 6

	if b == flagOctet && !stuffedAt6 {
		if s.rxMsgInProgress {
			s.rxMsgInProgress = false
			s.pushRX(flagOctet) // closing boundary marker
		}
		// Idle fill flag between frames: no boundary, no data.
	} else {
		if !s.rxMsgInProgress {
			s.rxMsgInProgress = true
			s.pushRX(flagOctet) // opening boundary marker
		}
		switch b {
		case flagOctet:
			// Coincidental 0x7E formed only by destuffing: a true
			// data byte, not a boundary.
			s.pushRX(escapeCode)
			s.pushRX(escape7E)
		case escapeCode:
			s.pushRX(escapeCode)
			s.pushRX(escape7D)
		default:
			s.pushRX(b)
		}
	}

	s.rxShift = 0
	s.rxBitCount = 0
	s.rxStuffedAt = stuffedAtNone
}

// pushRX drops the octet and warns when rxFIFO is full, rather than
// clearing it: clear() is only safe to call from rxFIFO's consumer side
// (fifo.go), and pushRX always runs on the tick (producer) goroutine.
func (s *syncEngine) pushRX(b byte) {
	if !s.rxFIFO.push(b) {
		if s.log != nil {
			s.log.Warn("sync RX FIFO full, dropping octet", "octet", b)
		}
	}
}

// ---- transmit path ----

func (s *syncEngine) nextTxBit() bool {
	if s.txOnesRun == 5 && !s.txIsFlag {
		s.txOnesRun = 0
		return false
	}

	s.txBitPos++
	if s.txBitPos >= 8 || !s.txStarted {
		s.txBitPos = 0
		s.nextTxByte()
	}

	bit := (s.txByte>>uint(s.txBitPos))&1 == 1
	if bit {
		s.txOnesRun++
	} else {
		s.txOnesRun = 0
	}
	return bit
}

func (s *syncEngine) nextTxByte() {
	s.txStarted = true
	b, ok := s.txFIFO.pop()
	if !ok {
		b = flagOctet
	}

	if b == escapeCode {
		next, ok := s.txFIFO.pop()
		if !ok {
			if s.log != nil {
				s.log.Error("escape code with nothing following in TX FIFO")
			}
			b = flagOctet
		} else {
			switch next {
			case escape7D:
				b = escapeCode
				s.txIsFlag = false
			case escape7E:
				b = flagOctet
				s.txIsFlag = false // coincidental data 0x7E, not a real flag
			default:
				b = next
				s.txIsFlag = false
			}
			s.txByte = b
			return
		}
	}

	s.txByte = b
	s.txIsFlag = b == flagOctet
}

// txActive reports whether the TX FIFO currently has content to clock
// out, for the activity LED.
func (s *syncEngine) txActive() bool {
	return !s.txFIFO.empty()
}
