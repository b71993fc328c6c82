package bridge

/*------------------------------------------------------------------
 *
 * Purpose:	Pseudo-terminal-backed async channel adapter (C6), for
 *		local/dev/test use without a real USB-CDC device present.
 *
 * Description:	Grounded on the teacher's "KISS over pseudo terminal"
 *		mode referenced in kissserial.go's package doc comment,
 *		generalized to DVM framing via creack/pty instead of the
 *		teacher's cgo pty glue.
 *
 *---------------------------------------------------------------*/

import (
	"os"

	"github.com/creack/pty"
)

type ptyChannel struct {
	master *os.File
	slave  *os.File
}

func openPTYChannel() (*ptyChannel, error) {
	master, slave, err := pty.Open()
	if err != nil {
		return nil, err
	}
	return &ptyChannel{master: master, slave: slave}, nil
}

// SlaveName is the pty slave path (e.g. /dev/pts/4) a companion test
// client should open.
func (c *ptyChannel) SlaveName() string { return c.slave.Name() }

func (c *ptyChannel) Read(p []byte) (int, error)  { return c.master.Read(p) }
func (c *ptyChannel) Write(p []byte) (int, error) { return c.master.Write(p) }
func (c *ptyChannel) Close() error {
	c.slave.Close()
	return c.master.Close()
}

// Enumerate is a no-op: a pty has no USB D+ line to pulse.
func (c *ptyChannel) Enumerate() error { return nil }
