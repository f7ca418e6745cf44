package filesystem

import "sync/atomic"

// Observer records filesystem operation metrics. The metrics package provides
// the Prometheus implementation; the interface lives here so filesystem does
// not import metrics.
type Observer interface {
	// ObserveOperation records duration and error status for one operation.
	// operation is one of "stat", "open", "read", "write".
	ObserveOperation(volume, operation string, durationSeconds float64, err error)

	ObserveRetryAttempt(retryOp, volume string)
	ObserveRetrySuccess(retryOp, volume string)
	ObserveRetryFailure(retryOp, volume string)
	ObserveRetryDuration(retryOp, volume string, durationSeconds float64)
	ObserveStaleError(retryOp, volume string)
}

type observerHolder struct{ o Observer }

var defaultObserver atomic.Pointer[observerHolder]

// SetObserver sets the package-level metrics observer. Passing nil disables
// recording.
func SetObserver(o Observer) {
	defaultObserver.Store(&observerHolder{o: o})
}

// observe returns the current observer, or nil.
func observe() Observer {
	h := defaultObserver.Load()
	if h == nil {
		return nil
	}
	return h.o
}
