package bridge

/*------------------------------------------------------------------
 *
 * Purpose:	Async host channel adapter (C6) backed by a real UART,
 *		115200 8-N-1 per spec.md §6.
 *
 * Description:	Directly modeled on the teacher's serial_port.go (thin
 *		pkg/term wrapper hiding OS differences). Reading into the
 *		DVM RX FIFO is done by bridge.go's pumpHostChannel, which
 *		plays the role of the firmware's VCPRxITCallback interrupt
 *		handler for this and every other host channel.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"

	"github.com/pkg/term"
)

type uartChannel struct {
	fd  *term.Term
	log *componentLogger
}

func openUARTChannel(device string, baud int, log *componentLogger) (*uartChannel, error) {
	fd, err := term.Open(device, term.RawMode)
	if err != nil {
		return nil, fmt.Errorf("open uart %s: %w", device, err)
	}
	if err := fd.SetSpeed(baud); err != nil {
		fd.Close()
		return nil, fmt.Errorf("set uart speed %d: %w", baud, err)
	}
	return &uartChannel{fd: fd, log: log}, nil
}

func (u *uartChannel) Read(p []byte) (int, error)  { return u.fd.Read(p) }
func (u *uartChannel) Write(p []byte) (int, error) { return u.fd.Write(p) }
func (u *uartChannel) Close() error                { return u.fd.Close() }

// Enumerate is a no-op for a real UART; the D+ re-enumeration pulse
// only applies to the USB-CDC variant (SPEC_FULL §12).
func (u *uartChannel) Enumerate() error { return nil }
