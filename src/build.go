package bridge

/*------------------------------------------------------------------
 *
 * Purpose:	Top-level wiring: turn a decoded Config into a running
 *		Runner, choosing concrete C6 adapters (GPIO vs. PTY loopback,
 *		UART vs. USB-CDC discovery) the way main.c's board-support
 *		selection (DVM_V24_V1 vs DVM_V24_V2) picks a hardware variant
 *		at compile time - here it's a runtime config choice instead.
 *
 * Description:	Exported so cmd/quantarbridge/main.go never touches an
 *		unexported bridge/syncEngine/hdlcLink/dvmParser type
 *		directly, mirroring how the teacher's cmd/direwolf/main.go
 *		only ever calls exported direwolf.* entry points.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"fmt"
	"time"

	charmlog "github.com/charmbracelet/log"
)

// Runner is the one object cmd/quantarbridge/main.go needs: build it
// with Build, then call Run until the context is cancelled.
type Runner struct {
	b    *bridge
	pins v24Pins
	host asyncChannel

	dnssdEnabled bool
	dnssdName    string
	site         byte
	bridgeLog    *componentLogger
}

// Build assembles C1-C6 from a decoded Config and returns a Runner ready
// to start. The V.24 side uses real GPIO lines when a chip name is
// configured; the host side opens a real UART, or discovers a USB-CDC
// device by vendor/product ID when Host.Device == "auto" and IDs are
// set, falling back to a PTY loopback otherwise (useful for bench
// testing without hardware).
func Build(cfg Config, root *charmlog.Logger) (*Runner, error) {
	loggers := componentLoggers{
		sync:      componentLog(root, "sync"),
		hdlc:      componentLog(root, "hdlc"),
		dvm:       componentLog(root, "dvm"),
		bridgeLog: componentLog(root, "bridge"),
	}

	pins, err := openPins(cfg, loggers.bridgeLog)
	if err != nil {
		return nil, fmt.Errorf("open V.24 pins: %w", err)
	}

	host, err := openHostChannel(cfg, loggers.dvm)
	if err != nil {
		pins.Close()
		return nil, fmt.Errorf("open host channel: %w", err)
	}

	if err := host.Enumerate(); err != nil && loggers.dvm != nil {
		loggers.dvm.Warn("USB-CDC enumerate pulse failed", "err", err)
	}

	var statusInterval time.Duration
	if cfg.PeriodicStatus {
		statusInterval = time.Duration(cfg.Timers.StatusIntervalMS) * time.Millisecond
	}

	bc := bridgeConfig{
		Timers:         cfg.timers(),
		VCPRXTimeout:   time.Duration(cfg.Timers.VCPRXTimeoutMS) * time.Millisecond,
		StatusInterval: statusInterval,
		LineRateBaud:   lineRateBaud,
		HardwareString: cfg.HardwareString,
		FlashPagePath:  cfg.FlashPagePath,
	}

	b := newBridge(bc, pins, host, loggers)

	return &Runner{
		b:            b,
		pins:         pins,
		host:         host,
		dnssdEnabled: cfg.DNSSDEnabled,
		dnssdName:    cfg.DNSSDName,
		site:         byte(cfg.Site),
		bridgeLog:    loggers.bridgeLog,
	}, nil
}

// Run blocks, servicing the bridge loop, until ctx is cancelled, then
// releases the platform handles.
func (r *Runner) Run(ctx context.Context) {
	defer r.pins.Close()
	defer r.host.Close()
	if r.dnssdEnabled {
		announcePresence(ctx, r.dnssdName, r.site, r.bridgeLog)
	}
	r.b.run(ctx)
}

// lineRateBaud is the V.24 bit-clock rate spec.md §4.1/§6 specifies for
// the Quantar's synchronous serial link.
const lineRateBaud = 9600

func openPins(cfg Config, log *componentLogger) (v24Pins, error) {
	if cfg.V24.GPIOChip == "" {
		return newLoopbackPins(), nil
	}
	names := gpioLineNames{
		Chip:  cfg.V24.GPIOChip,
		RXD:   cfg.V24.RXD,
		RXCLK: cfg.V24.RXCLK,
		TXD:   cfg.V24.TXD,
		TXCLK: cfg.V24.TXCLK,
		CTS:   cfg.V24.CTS,
	}
	return openGPIOV24Pins(names)
}

func openHostChannel(cfg Config, log *componentLogger) (asyncChannel, error) {
	device := cfg.Host.Device
	if device == "auto" && cfg.Host.VendorID != "" && cfg.Host.ProductID != "" {
		found, err := findUSBCDCDevice(cfg.Host.VendorID, cfg.Host.ProductID)
		if err != nil {
			if log != nil {
				log.Warn("USB-CDC discovery failed, falling back to PTY loopback", "err", err)
			}
			return openPTYChannel()
		}
		device = found
	}
	if device == "" || device == "auto" {
		return openPTYChannel()
	}
	return openUARTChannel(device, cfg.Host.Baud, log)
}
