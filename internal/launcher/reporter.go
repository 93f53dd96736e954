package launcher

import (
	"fmt"
	"io"
	"sync"

	"github.com/Iron-Ham/labkeeper/internal/errors"
	"github.com/Iron-Ham/labkeeper/internal/logging"
	"github.com/Iron-Ham/labkeeper/internal/tui/styles"
)

// Reporter is the single path launch failures take: one diagnostic log entry
// and one message for the user.
type Reporter struct {
	mu     sync.Mutex
	out    io.Writer
	logger *logging.Logger
}

// NewReporter creates a Reporter writing user messages to out.
func NewReporter(out io.Writer, logger *logging.Logger) *Reporter {
	if out == nil {
		out = io.Discard
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Reporter{out: out, logger: logger}
}

// Failure logs err and shows it to the user. Errors that are not user facing
// are only logged.
func (r *Reporter) Failure(launchID string, err error) {
	if err == nil {
		return
	}

	log := r.logger.WithLaunch(launchID)
	attrs := []any{"error", err.Error(), "code", string(errors.GetCode(err))}
	switch errors.GetSeverity(err) {
	case errors.SeverityDebug:
		log.Debug("launch failed", attrs...)
	case errors.SeverityInfo:
		log.Info("launch stopped", attrs...)
	case errors.SeverityWarning:
		log.Warn("launch rejected", attrs...)
	default:
		log.Error("launch failed", attrs...)
	}

	if !errors.IsUserFacing(err) {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	style := styles.ErrorMsg
	if errors.GetSeverity(err) <= errors.SeverityWarning {
		style = styles.WarningMsg
	}
	fmt.Fprintln(r.out, style.Render("Launch failed: "+userMessage(err)))
	if s := errors.GetSuggestion(err); s != "" {
		fmt.Fprintln(r.out, styles.Hint.Render(s))
	}
}

// Warning shows a non-fatal problem with a launch that otherwise succeeded.
func (r *Reporter) Warning(launchID, msg string) {
	r.logger.WithLaunch(launchID).Warn(msg)

	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, styles.WarningMsg.Render("Warning: "+msg))
}

func userMessage(err error) string {
	var le *errors.LaunchError
	if errors.As(err, &le) {
		if cause := errors.Unwrap(le); cause != nil {
			return fmt.Sprintf("%s (%v)", le.Message, cause)
		}
		return le.Message
	}
	return err.Error()
}
