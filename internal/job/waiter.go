/**
 * Copyright (c) 2025 Peking University and Peking University
 * Changsha Institute for Computing and Digital Economy
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

package job

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/buildkite/roko"
	log "github.com/sirupsen/logrus"
	batchv1 "k8s.io/api/batch/v1"
)

var (
	ErrNotFound = errors.New("job not found")
	ErrTimeout  = errors.New("timed out waiting for job")
)

type Getter interface {
	GetJob(ctx context.Context, ref Ref) (*batchv1.Job, error)
}

// IsTransient reports whether err, or an error it wraps, says the failure
// may go away on retry.
func IsTransient(err error) bool {
	var t interface{ Transient() bool }
	return errors.As(err, &t) && t.Transient()
}

type Waiter struct {
	Getter   Getter
	Interval time.Duration
	// Zero means no timeout.
	Timeout time.Duration
	// Retries is the number of extra attempts after a transient failure.
	Retries int
	// OnChange is called from the polling goroutine whenever the observed
	// phase of a job changes, including the first observation.
	OnChange func(*Status)
}

type Result struct {
	Ref    Ref
	Status *Status
	Err    error
}

// Wait polls ref until it reaches a terminal phase. On timeout the last
// observed status is returned together with ErrTimeout.
func (w *Waiter) Wait(ctx context.Context, ref Ref) (*Status, error) {
	if w.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, w.Timeout, ErrTimeout)
		defer cancel()
	}

	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	var last *Status
	for {
		status, err := w.poll(ctx, ref)
		if err != nil {
			if ctx.Err() != nil {
				return last, w.stopCause(ctx, ref)
			}
			return last, err
		}

		if last == nil || last.Phase != status.Phase {
			log.Debugf("Job %s is now %s", ref, status.Phase)
			if w.OnChange != nil {
				w.OnChange(status)
			}
		}
		last = status

		if status.Phase.IsTerminal() {
			return status, nil
		}

		select {
		case <-ctx.Done():
			return last, w.stopCause(ctx, ref)
		case <-ticker.C:
		}
	}
}

func (w *Waiter) stopCause(ctx context.Context, ref Ref) error {
	cause := context.Cause(ctx)
	if errors.Is(cause, ErrTimeout) {
		return fmt.Errorf("%w %s after %v", ErrTimeout, ref, w.Timeout)
	}
	return cause
}

func (w *Waiter) poll(ctx context.Context, ref Ref) (*Status, error) {
	r := roko.NewRetrier(
		roko.WithMaxAttempts(w.Retries+1),
		roko.WithStrategy(roko.Constant(w.Interval)),
	)
	return roko.DoFunc(ctx, r, func(r *roko.Retrier) (*Status, error) {
		job, err := w.Getter.GetJob(ctx, ref)
		if err != nil {
			if !IsTransient(err) {
				r.Break()
				return nil, err
			}
			log.Warnf("Failed to query job %s (attempt %d of %d): %v",
				ref, r.AttemptCount()+1, w.Retries+1, err)
			return nil, err
		}
		return NewStatus(job), nil
	})
}

// WaitAll waits for every ref concurrently. Results keep the order of refs.
func (w *Waiter) WaitAll(ctx context.Context, refs []Ref) []Result {
	results := make([]Result, len(refs))

	var wg sync.WaitGroup
	for i, ref := range refs {
		wg.Add(1)
		go func(i int, ref Ref) {
			defer wg.Done()
			status, err := w.Wait(ctx, ref)
			results[i] = Result{Ref: ref, Status: status, Err: err}
		}(i, ref)
	}
	wg.Wait()

	return results
}
