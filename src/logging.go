package bridge

/*------------------------------------------------------------------
 *
 * Purpose:	Structured logging (ambient stack, SPEC_FULL §10.1),
 *		replacing the firmware's log_info/log_error/log_warn
 *		severity buckets with charmbracelet/log's leveled,
 *		field-aware logger.
 *
 * Description:	The teacher's go.mod declares charmbracelet/log but
 *		never imports it anywhere in src/ - wired in here since
 *		nothing in the teacher's own source used it. Field-rich
 *		structured output replaces the firmware's sprintf-style
 *		log_info("... %d ...") call sites; the one-line-per-
 *		state-transition texture is preserved.
 *
 *---------------------------------------------------------------*/

import (
	"io"

	"github.com/charmbracelet/log"
)

// componentLogger is a charmbracelet/log.Logger pinned to one
// "component" field (sync, hdlc, dvm, bridge), mirroring how the
// firmware's log call sites were grouped by subsystem.
type componentLogger struct {
	*log.Logger
}

func NewRootLogger(w io.Writer, level log.Level) *log.Logger {
	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Level:           level,
	})
	return l
}

func componentLog(root *log.Logger, component string) *componentLogger {
	return &componentLogger{root.With("component", component)}
}
