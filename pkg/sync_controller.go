package pkg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
)

// SessionOutcome classifies how an RTR session ended and whether the data
// collected before it ended may be used.
type SessionOutcome int

const (
	// OutcomeCompleted means the server ended the session on its own after
	// serving data.
	OutcomeCompleted SessionOutcome = iota
	// OutcomeSignaledDone means the collector stopped the session after a
	// complete initial synchronization.
	OutcomeSignaledDone
	// OutcomeTimedOut means the session deadline expired. A live cache
	// streams indefinitely, so for a one-shot run this is an expected end,
	// not a failure.
	OutcomeTimedOut
	// OutcomeFailed means the session broke; whatever was collected must
	// not be used.
	OutcomeFailed
)

func (o SessionOutcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeSignaledDone:
		return "synchronized"
	case OutcomeTimedOut:
		return "timed out"
	case OutcomeFailed:
		return "failed"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Usable reports whether ROAs collected under this outcome may be handed to
// the match engine.
func (o SessionOutcome) Usable() bool {
	return o != OutcomeFailed
}

// ErrNoROAs marks a session that ended in a usable state without delivering
// a single ROA. Production caches always carry data, so an empty set means a
// broken synchronization rather than an empty RPKI, and validating against
// it would declare every prefix NOT FOUND.
var ErrNoROAs = errors.New("rtr: no ROAs received from cache")

// SessionRunner is the client surface the controller drives. The stopped
// result reports that the sink ended the session on purpose.
type SessionRunner interface {
	Run(ctx context.Context) (stopped bool, err error)
}

// SyncController runs one RTR session under an overall deadline and decides
// whether it ended in a state whose data can be trusted.
type SyncController struct {
	runner  SessionRunner
	sink    *RoaCollector
	timeout time.Duration
}

func NewSyncController(runner SessionRunner, sink *RoaCollector, timeout time.Duration) *SyncController {
	return &SyncController{
		runner:  runner,
		sink:    sink,
		timeout: timeout,
	}
}

// Sync runs the session and classifies its end. The collector's stop request
// and a deadline expiry both count as usable ends; any true error is a
// failure and is returned as-is. A usable session that collected nothing is
// downgraded to a failure with ErrNoROAs.
func (s *SyncController) Sync(ctx context.Context) (SessionOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var outcome SessionOutcome
	stopped, err := s.runner.Run(ctx)
	switch {
	case stopped:
		outcome = OutcomeSignaledDone
	case err == nil:
		outcome = OutcomeCompleted
	case errors.Is(err, os.ErrDeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		outcome = OutcomeTimedOut
	default:
		return OutcomeFailed, err
	}

	log.WithFields(log.Fields{
		"outcome":   outcome,
		"roas":      s.sink.Set().Len(),
		"exchanges": s.sink.Exchanges(),
	}).Debug("rtr session ended")

	if s.sink.Set().Len() == 0 {
		return OutcomeFailed, ErrNoROAs
	}
	return outcome, nil
}
