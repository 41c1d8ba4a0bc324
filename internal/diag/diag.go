// Package diag routes baker diagnostics to the caller's message callback and
// to a zap logger.
package diag

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/omm-baker/pkg/omm"
)

// Reporter sends diagnostics. The zero Reporter discards everything.
type Reporter struct {
	Callback omm.MessageCallback
	Log      *zap.Logger
}

// New returns a reporter; a nil logger is replaced by a no-op one.
func New(cb omm.MessageCallback, log *zap.Logger) Reporter {
	if log == nil {
		log = zap.NewNop()
	}
	return Reporter{Callback: cb, Log: log}
}

func (r Reporter) send(severity omm.MessageSeverity, msg string) {
	if r.Callback != nil {
		r.Callback(severity, msg)
	}
}

func (r Reporter) logger() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log
}

// InvalidArg reports a contract violation and returns it wrapped in
// omm.ErrInvalidArgument.
func (r Reporter) InvalidArg(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	r.send(omm.SeverityError, "[Invalid Argument] - "+msg)
	r.logger().Debug("invalid argument", zap.String("reason", msg))
	return fmt.Errorf("%w: %s", omm.ErrInvalidArgument, msg)
}

// NotImplemented reports an unsupported feature.
func (r Reporter) NotImplemented(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	r.send(omm.SeverityError, "[Not Implemented] - "+msg)
	return fmt.Errorf("%w: %s", omm.ErrNotImplemented, msg)
}

// WorkloadTooBig reports a bake rejected by workload validation.
func (r Reporter) WorkloadTooBig(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	r.send(omm.SeverityError, "[Workload Too Big] - "+msg)
	return fmt.Errorf("%w: %s", omm.ErrWorkloadTooBig, msg)
}

// PerfWarning reports a configuration that will bake slowly.
func (r Reporter) PerfWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.send(omm.SeverityPerfWarning, "[Perf Warning] - "+msg)
	r.logger().Warn("perf warning", zap.String("detail", msg))
}

// Info reports progress.
func (r Reporter) Info(msg string, fields ...zap.Field) {
	r.logger().Debug(msg, fields...)
}

// Error forwards an error from a lower layer to the callback under the
// prefix of its category and returns it unchanged.
func (r Reporter) Error(err error) error {
	if err == nil {
		return nil
	}
	prefix := "[Failure] - "
	switch {
	case errors.Is(err, omm.ErrInvalidArgument):
		prefix = "[Invalid Argument] - "
	case errors.Is(err, omm.ErrNotImplemented):
		prefix = "[Not Implemented] - "
	case errors.Is(err, omm.ErrWorkloadTooBig):
		prefix = "[Workload Too Big] - "
	}
	r.send(omm.SeverityError, prefix+err.Error())
	return err
}
