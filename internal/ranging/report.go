package ranging

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/uwbctl/internal/eventlog"
)

// reporter fans a session fact out to the logger, the event log and the
// error callback.
type reporter struct {
	logger   *logrus.Logger
	recorder eventlog.Recorder
	onError  func(error)
	runID    string
}

func (r *reporter) record(ev eventlog.Event) {
	ev.Timestamp = time.Now().UTC()
	ev.RunID = r.runID
	r.recorder.Record(ev)
}

func (r *reporter) debug(msg string, fields logrus.Fields, ev *eventlog.Event) {
	r.logger.WithFields(fields).Debug(msg)
	if ev != nil {
		r.record(*ev)
	}
}

func (r *reporter) info(msg string, fields logrus.Fields, ev eventlog.Event) {
	r.logger.WithFields(fields).Info(msg)
	r.record(ev)
}

// warn reports a non-fatal condition. err may be nil.
func (r *reporter) warn(msg string, err error, fields logrus.Fields, ev eventlog.Event) {
	entry := r.logger.WithFields(fields)
	if err != nil {
		entry = entry.WithError(err)
		ev.Error = err.Error()
	}
	entry.Warn(msg)
	r.record(ev)
	r.notify(err)
}

func (r *reporter) error(msg string, err error, fields logrus.Fields, ev eventlog.Event) {
	r.logger.WithFields(fields).WithError(err).Error(msg)
	ev.Error = err.Error()
	r.record(ev)
	r.notify(err)
}

func (r *reporter) notify(err error) {
	if err == nil || r.onError == nil {
		return
	}
	r.onError(err)
}
