package bridge

/*------------------------------------------------------------------
 *
 * Purpose:	Bridge glue (C5): wires C2 (sync bit engine) to C3 (HDLC
 *		link) to C4 (DVM host protocol), drives the bit clock, and
 *		runs the fixed-order main loop spec.md §4.5 describes.
 *
 * Description:	Grounded on main.c's top-level scheduling loop (poll VCP,
 *		poll HDLC, service timers, in that order, once per pass)
 *		from the Quantar V.24 firmware this bridge replaces. The
 *		bit-clock goroutine stands in for TIM2's hardware interrupt;
 *		its period-driven loop is modeled on the teacher's
 *		SLEEP_MS-based polling idiom (util.go), generalized to
 *		time.Ticker for steadier timing than a sleep loop gives.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/lestrrat-go/strftime"
)

// statusTimeLayout mirrors config.h's BUILD_DATE_STRING's human-readable
// style for the periodic status line, via lestrrat-go/strftime rather
// than Go's reference-time layout (declared in the teacher's go.mod but
// never imported there - wired in here for the one place the firmware
// itself formats a timestamp for a log line).
const statusTimeLayout = "%Y-%m-%d %H:%M:%S"

func formatStatusTime(t time.Time) string {
	s, err := strftime.Format(statusTimeLayout, t)
	if err != nil {
		return t.Format("2006-01-02 15:04:05")
	}
	return s
}

// tickerBitClock drives a callback at twice the configured line rate,
// alternating the rising/falling half-period flag. Implements bitClock.
type tickerBitClock struct {
	period time.Duration
	stop   chan struct{}
}

func newTickerBitClock(lineRateBaud int) *tickerBitClock {
	if lineRateBaud <= 0 {
		lineRateBaud = lineRateBaud9600
	}
	return &tickerBitClock{period: time.Second / time.Duration(lineRateBaud*2)}
}

const lineRateBaud9600 = 9600

func (c *tickerBitClock) Start(fn func(rising bool)) {
	c.stop = make(chan struct{})
	go func() {
		t := time.NewTicker(c.period)
		defer t.Stop()
		rising := true
		for {
			select {
			case <-c.stop:
				return
			case now := <-t.C:
				_ = now
				fn(rising)
				rising = !rising
			}
		}
	}()
}

func (c *tickerBitClock) Stop() {
	if c.stop != nil {
		close(c.stop)
	}
}

// bridge is C5: it owns every FIFO and component and mediates the two
// cross-component interfaces (uiSink for C3->C4, dvmUISender for
// C4->C3) so neither C3 nor C4 holds a direct reference to the other.
type bridge struct {
	syncRX, syncTX *octetFIFO
	asyncRX        *octetFIFO

	sync *syncEngine
	hdlc *hdlcLink
	dvm  *dvmParser

	pins  v24Pins
	clock bitClock
	host  asyncChannel

	log *componentLogger

	statusInterval time.Duration
	lastStatus     time.Time

	// resetRequested is how the main-loop goroutine asks the tick
	// goroutine to drop sync (spec §5: C2 state has a single owner, the
	// tick goroutine, so the request is a flag it checks, not a direct
	// call into syncEngine from outside that goroutine).
	resetRequested atomic.Bool

	done chan struct{}
}

// bridgeConfig bundles everything needed to assemble a bridge, already
// resolved from config.go's config/flagOverrides into concrete values.
type bridgeConfig struct {
	Timers          hdlcTimers
	VCPRXTimeout    time.Duration
	StatusInterval  time.Duration
	LineRateBaud    int
	HardwareString  string
	FlashPagePath   string
	FIFODepth       int
}

// componentLoggers bundles the four per-subsystem loggers newBridge
// needs, all derived from one root logger via componentLog.
type componentLoggers struct {
	sync, hdlc, dvm, bridgeLog *componentLogger
}

func newBridge(cfg bridgeConfig, pins v24Pins, host asyncChannel, loggers componentLoggers) *bridge {
	const defaultFIFODepth = 4096
	depth := cfg.FIFODepth
	if depth <= 0 {
		depth = defaultFIFODepth
	}

	b := &bridge{
		syncRX:         newOctetFIFO(depth),
		syncTX:         newOctetFIFO(depth),
		asyncRX:        newOctetFIFO(depth),
		pins:           pins,
		host:           host,
		log:            loggers.bridgeLog,
		statusInterval: cfg.StatusInterval,
		done:           make(chan struct{}),
	}

	b.hdlc = newHDLCLink(b.syncRX, b.syncTX, cfg.Timers, loggers.hdlc, b)
	b.sync = newSyncEngine(b.syncRX, b.syncTX, cfg.Timers.syncRXDelay, loggers.sync, b.hdlc.onSyncReset)

	flash := newFilePage(cfg.FlashPagePath, loggers.dvm)
	uid := deriveDeviceUID(cfg.HardwareString)
	b.dvm = newDVMParser(b.asyncRX, host, b, flash, uid, cfg.HardwareString, cfg.VCPRXTimeout, loggers.dvm)

	b.clock = newTickerBitClock(cfg.LineRateBaud)

	return b
}

// ---- uiSink (C3 -> C4) ----

func (b *bridge) deliverP25Frame(payload []byte) {
	b.dvm.deliverP25Frame(payload)
}

// ---- dvmUISender (C4 -> C3) ----

func (b *bridge) sendUIPayload(payload []byte) {
	b.hdlc.sendUI(time.Now(), payload)
}

func (b *bridge) peerConnected() bool {
	return b.hdlc.peerConnected
}

func (b *bridge) hdlcFreeSpace() int {
	return b.syncTX.free()
}

// ---- lifecycle ----

// run starts the bit clock and the async host reader, then services the
// fixed-order main loop (spec.md §4.5) until ctx is cancelled.
func (b *bridge) run(ctx context.Context) {
	b.clock.Start(func(rising bool) {
		now := time.Now()
		// Honor a pending reset request here, in the tick goroutine,
		// so syncEngine's scalar state is only ever touched by the one
		// goroutine that owns it (spec §5).
		if b.resetRequested.CompareAndSwap(true, false) {
			b.sync.reset(now)
		}
		rxd := b.pins.ReadRXD()
		txd, txclk := b.sync.tick(now, rising, rxd)
		if rising {
			// The falling edge only lowers TXCLK; TXD holds its bit.
			b.pins.WriteTXD(txd)
		}
		b.pins.WriteTXCLK(txclk)
	})
	defer b.clock.Stop()

	go pumpHostChannel(b.host, b.asyncRX, b.done, b.dvm.log)
	defer close(b.done)

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			b.serviceOnce(now)
		}
	}
}

// serviceOnce is one pass of the fixed-order loop: DVM RX drain, HDLC
// frame drain, HDLC heartbeat, RX-timeout-mediated sync reset, and the
// optional periodic status line (SPEC_FULL §12).
func (b *bridge) serviceOnce(now time.Time) {
	// A reset arms a pending RX-FIFO clear; honoring it here, as the
	// consumer of syncRX, keeps clear() on the consumer side of the
	// SPSC discipline (fifo.go) instead of the tick goroutine.
	b.sync.drainRXClearIfNeeded()

	b.dvm.drainRX(now)
	b.hdlc.drainRX(now)
	if b.sync.isSynced() {
		b.hdlc.service(now)
	}

	if b.hdlc.rxTimedOut(now) && b.sync.isSynced() {
		if b.log != nil {
			b.log.Warn("HDLC RX timeout, dropping sync")
		}
		b.resetRequested.Store(true)
	}

	if b.statusInterval > 0 && now.Sub(b.lastStatus) > b.statusInterval {
		b.lastStatus = now
		b.logStatus(now)
	}
}

// pumpHostChannel runs the background read loop feeding fifo, mirroring
// VCPRxITCallback's "push every received byte" behavior. Works against
// any asyncChannel's io.Reader side - UART, USB-CDC, or pty alike - so
// every C6 transport gets its bytes into the DVM parser, not just the
// ones that happen to implement a pump method of their own.
func pumpHostChannel(r io.Reader, fifo *octetFIFO, done <-chan struct{}, log *componentLogger) {
	buf := make([]byte, 256)
	for {
		select {
		case <-done:
			return
		default:
		}
		n, err := r.Read(buf)
		if err != nil {
			if log != nil {
				log.Error("host channel read failed", "err", err)
			}
			return
		}
		for i := 0; i < n; i++ {
			if !fifo.push(buf[i]) {
				if log != nil {
					log.Warn("async RX FIFO full")
				}
				break
			}
		}
	}
}

func (b *bridge) logStatus(now time.Time) {
	if b.log == nil {
		return
	}
	b.log.Info("status",
		"at", formatStatusTime(now),
		"peer_connected", b.hdlc.peerConnected,
		"rx_total", b.hdlc.counters.rxTotal,
		"rx_valid", b.hdlc.counters.rxValid,
		"rx_errors", b.hdlc.counters.rxErrors(),
		"tx_total", b.hdlc.counters.txTotal,
		"sync_tx_free", b.syncTX.free(),
	)
}
