package arc

import "log/slog"

// Reporter receives fatal bookkeeping violations. It is the boundary to crash
// and traceback tooling: the registry classifies the condition, the Reporter
// decides how to surface it.
type Reporter interface {
	Report(err *Error)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(err *Error)

// Report calls f(err).
func (f ReporterFunc) Report(err *Error) { f(err) }

// LogReporter logs violations at error level.
type LogReporter struct {
	Logger *slog.Logger
}

// Report logs err with its kind and message.
func (l LogReporter) Report(err *Error) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error("arc: bookkeeping violation", "kind", err.Kind.String(), "msg", err.Msg)
}

// PanicReporter returns a Reporter that panics with the violation. It matches
// the severity of treating every violation as fatal to the process.
func PanicReporter() Reporter {
	return ReporterFunc(func(err *Error) { panic(err) })
}
