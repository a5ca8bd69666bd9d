package engine

import (
	"fmt"
	"sync"
	"time"
)

// EvalTimeout is the default hard limit for a single evaluation.
const EvalTimeout = 5 * time.Second

// orDefault returns d, or EvalTimeout when d is not positive.
func orDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return EvalTimeout
	}
	return d
}

// evalResult passes evaluation results through channels.
type evalResult struct {
	session *Session
	errors  []EvalError
	err     error
}

// waitWithTimeout waits for a result from ch, but returns a timeout error
// if the evaluation exceeds limit. It uses a generation counter to discard
// stale results from previous evaluations.
//
// On timeout, the goroutine may still be running; the generation check
// ensures its result is discarded when it eventually completes.
func waitWithTimeout(
	ch <-chan evalResult,
	gen uint64,
	limit time.Duration,
	mu *sync.Mutex,
	currentGen *uint64,
) (*Session, []EvalError, error) {
	timer := time.NewTimer(limit)
	defer timer.Stop()

	select {
	case res := <-ch:
		mu.Lock()
		current := *currentGen
		mu.Unlock()

		if gen != current {
			return nil, nil, fmt.Errorf("evaluation superseded by newer request")
		}

		return res.session, res.errors, res.err

	case <-timer.C:
		return nil, nil, fmt.Errorf("evaluation timed out after %s", limit)
	}
}
