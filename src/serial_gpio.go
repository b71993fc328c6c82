package bridge

/*------------------------------------------------------------------
 *
 * Purpose:	V.24 GPIO bit adapter (C6): the six RXD/RXCLK/CTS/TXD/
 *		TXCLK/CTS lines spec.md §4.6 requires, for a host (e.g. a
 *		Raspberry Pi) wired directly to the Quantar's V.24
 *		connector through a line-level shifter.
 *
 * Description:	Uses warthog618/go-gpiocdev against a Linux gpiochip
 *		character device. Grounded on the teacher's ptt.go/rrbb.go
 *		idiom of holding one open line handle per signal rather
 *		than bit-banging a shared register, and on ptt.go's
 *		golang.org/x/sys/unix TIOCM* ioctl use for the alternate
 *		case where CTS rides the UART's hardware modem-control
 *		lines instead of a dedicated GPIO line.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
	"golang.org/x/sys/unix"
)

// gpioV24Pins implements v24Pins entirely over gpiochip lines.
type gpioV24Pins struct {
	rxd, rxclk, cts *gpiocdev.Line
	txd, txclk      *gpiocdev.Line
	ctsOut          *gpiocdev.Line // nil when CTS is input-only (peer drives it)
}

// gpioLineNames names the offsets on the configured chip for each
// signal, set from configuration (SPEC_FULL §10.2).
type gpioLineNames struct {
	Chip        string
	RXD, RXCLK  int
	TXD, TXCLK  int
	CTS         int
	CTSIsOutput bool
}

func openGPIOV24Pins(names gpioLineNames) (*gpioV24Pins, error) {
	rxd, err := gpiocdev.RequestLine(names.Chip, names.RXD, gpiocdev.AsInput)
	if err != nil {
		return nil, fmt.Errorf("request RXD line: %w", err)
	}
	rxclk, err := gpiocdev.RequestLine(names.Chip, names.RXCLK, gpiocdev.AsInput)
	if err != nil {
		return nil, fmt.Errorf("request RXCLK line: %w", err)
	}
	txd, err := gpiocdev.RequestLine(names.Chip, names.TXD, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("request TXD line: %w", err)
	}
	txclk, err := gpiocdev.RequestLine(names.Chip, names.TXCLK, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("request TXCLK line: %w", err)
	}

	p := &gpioV24Pins{rxd: rxd, rxclk: rxclk, txd: txd, txclk: txclk}

	if names.CTSIsOutput {
		cts, err := gpiocdev.RequestLine(names.Chip, names.CTS, gpiocdev.AsOutput(0))
		if err != nil {
			return nil, fmt.Errorf("request CTS line: %w", err)
		}
		p.ctsOut = cts
	} else {
		cts, err := gpiocdev.RequestLine(names.Chip, names.CTS, gpiocdev.AsInput)
		if err != nil {
			return nil, fmt.Errorf("request CTS line: %w", err)
		}
		p.cts = cts
	}
	return p, nil
}

func (p *gpioV24Pins) ReadRXD() bool   { return readLine(p.rxd) }
func (p *gpioV24Pins) ReadRXCLK() bool { return readLine(p.rxclk) }
func (p *gpioV24Pins) ReadCTS() bool   { return readLine(p.cts) }

func (p *gpioV24Pins) WriteTXD(v bool)   { writeLine(p.txd, v) }
func (p *gpioV24Pins) WriteTXCLK(v bool) { writeLine(p.txclk, v) }
func (p *gpioV24Pins) WriteCTS(v bool)   { writeLine(p.ctsOut, v) }

func (p *gpioV24Pins) Close() error {
	for _, l := range []*gpiocdev.Line{p.rxd, p.rxclk, p.cts, p.txd, p.txclk, p.ctsOut} {
		if l != nil {
			l.Close()
		}
	}
	return nil
}

func readLine(l *gpiocdev.Line) bool {
	if l == nil {
		return false
	}
	v, err := l.Value()
	if err != nil {
		return false
	}
	return v != 0
}

func writeLine(l *gpiocdev.Line, v bool) {
	if l == nil {
		return
	}
	val := 0
	if v {
		val = 1
	}
	l.SetValue(val)
}

// loopbackPins is a GPIO-free v24Pins stand-in for bench testing without
// a wired Quantar: TXD is looped straight back as RXD, and clocks/CTS
// report a quiescent line. Used when no GPIO chip is configured.
type loopbackPins struct {
	lastTXD bool
}

func newLoopbackPins() *loopbackPins { return &loopbackPins{} }

func (p *loopbackPins) ReadRXD() bool     { return p.lastTXD }
func (p *loopbackPins) ReadRXCLK() bool   { return true }
func (p *loopbackPins) ReadCTS() bool     { return true }
func (p *loopbackPins) WriteTXD(v bool)   { p.lastTXD = v }
func (p *loopbackPins) WriteTXCLK(v bool) {}
func (p *loopbackPins) WriteCTS(v bool)   {}
func (p *loopbackPins) Close() error      { return nil }

// uartModemCTS reads CTS through the UART's TIOCM modem-control bits,
// for boards where the V.24 adapter's CTS line is wired into the host
// UART's hardware-handshake pin rather than a free GPIO offset.
func uartModemCTS(fd int) bool {
	bits, err := unix.IoctlGetInt(fd, unix.TIOCMGET)
	if err != nil {
		return false
	}
	return bits&unix.TIOCM_CTS != 0
}
