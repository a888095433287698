package service

import (
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/okian/gradecast/internal/domain/model"
)

// mirrorTracker follows the mirror jobs of one batch. Job errors are
// collected, never returned to the batch caller.
type mirrorTracker struct {
	mu         sync.Mutex
	wg         sync.WaitGroup
	dispatched int
	succeeded  int
	failed     int
	errs       *multierror.Error
}

// expect registers a job that has been queued.
func (t *mirrorTracker) expect() func(error) {
	t.mu.Lock()
	t.dispatched++
	t.mu.Unlock()
	t.wg.Add(1)

	var once sync.Once
	return func(err error) {
		once.Do(func() {
			t.record(err)
			t.wg.Done()
		})
	}
}

func (t *mirrorTracker) record(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		t.failed++
		t.errs = multierror.Append(t.errs, err)
		return
	}
	t.succeeded++
}

// wait blocks until every queued job finished or d elapsed.
func (t *mirrorTracker) wait(d time.Duration) bool {
	if d <= 0 {
		return false
	}
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

func (t *mirrorTracker) summary() model.MirrorSummary {
	t.mu.Lock()
	defer t.mu.Unlock()
	return model.MirrorSummary{
		Dispatched: t.dispatched,
		Succeeded:  t.succeeded,
		Failed:     t.failed,
		Pending:    t.dispatched - t.succeeded - t.failed,
	}
}

func (t *mirrorTracker) err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.errs.ErrorOrNil()
}
