// Package timer implements the single process-wide timer wheel that
// produces Tick messages and enqueues them into the owning Stage's queue.
// The wheel itself only knows (stageId, timerId, fireAt); the Stage-local
// TimerEntry table (kind,
// period, remaining, callback) lives in package stage, which reschedules or
// cancels through this Service as each tick is processed under its own
// serialization guarantee.
package timer

import (
	"container/heap"
	"sync"
	"time"
)

// Fire is what the wheel hands back when a schedule elapses: just enough to
// look the real TimerEntry up in the owning Stage.
type Fire struct {
	StageID int64
	TimerID int64
}

type scheduled struct {
	stageID   int64
	timerID   int64
	fireAt    time.Time
	heapIndex int
	cancelled bool
}

// Service is the single shared timer wheel. The zero value is not valid;
// use New.
type Service struct {
	mu      sync.Mutex
	pq      wheelQueue
	index   map[[2]int64]*scheduled
	timer   *time.Timer
	onFire  func(Fire)
	closed  bool
	nowFunc func() time.Time
}

// New builds a Service that invokes onFire exactly once per elapsed
// schedule, from its own goroutine (time.AfterFunc). onFire must not block;
// the play dispatcher's wiring just enqueues a message and returns.
func New(onFire func(Fire)) *Service {
	s := &Service{
		index:   make(map[[2]int64]*scheduled),
		onFire:  onFire,
		nowFunc: time.Now,
	}
	heap.Init(&s.pq)
	return s
}

// Schedule arms (or re-arms) a single fire at fireAt for (stageID,
// timerID). A prior schedule for the same key is replaced.
func (s *Service) Schedule(stageID, timerID int64, fireAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	key := [2]int64{stageID, timerID}
	if old, ok := s.index[key]; ok {
		old.cancelled = true
		s.pq.remove(old)
	}
	e := &scheduled{stageID: stageID, timerID: timerID, fireAt: fireAt}
	s.index[key] = e
	heap.Push(&s.pq, e)
	s.rearmLocked()
}

// Cancel removes any pending schedule for (stageID, timerID). A no-op if
// none exists (already fired or never scheduled).
func (s *Service) Cancel(stageID, timerID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := [2]int64{stageID, timerID}
	if e, ok := s.index[key]; ok {
		e.cancelled = true
		s.pq.remove(e)
		delete(s.index, key)
		s.rearmLocked()
	}
}

// CancelStage removes every pending schedule belonging to stageID, used
// when a Stage transitions to Destroying.
func (s *Service) CancelStage(stageID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, e := range s.index {
		if key[0] == stageID {
			e.cancelled = true
			s.pq.remove(e)
			delete(s.index, key)
		}
	}
	s.rearmLocked()
}

// Shutdown stops the wheel; idempotent.
func (s *Service) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
}

func (s *Service) rearmLocked() {
	if s.closed || s.pq.Len() == 0 {
		if s.timer != nil {
			s.timer.Stop()
		}
		return
	}
	delay := time.Until(s.pq[0].fireAt)
	if delay < 0 {
		delay = 0
	}
	if s.timer == nil {
		s.timer = time.AfterFunc(delay, s.onTimer)
		return
	}
	s.timer.Reset(delay)
}

func (s *Service) onTimer() {
	s.mu.Lock()
	now := s.nowFunc()
	var fired []Fire
	for s.pq.Len() > 0 && !s.pq[0].fireAt.After(now) {
		e := heap.Pop(&s.pq).(*scheduled)
		if e.cancelled {
			continue
		}
		delete(s.index, [2]int64{e.stageID, e.timerID})
		fired = append(fired, Fire{StageID: e.stageID, TimerID: e.timerID})
	}
	s.rearmLocked()
	s.mu.Unlock()

	for _, f := range fired {
		s.onFire(f)
	}
}

type wheelQueue []*scheduled

func (q wheelQueue) Len() int           { return len(q) }
func (q wheelQueue) Less(i, j int) bool { return q[i].fireAt.Before(q[j].fireAt) }
func (q wheelQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].heapIndex = i
	q[j].heapIndex = j
}

func (q *wheelQueue) Push(x interface{}) {
	e := x.(*scheduled)
	e.heapIndex = len(*q)
	*q = append(*q, e)
}

func (q *wheelQueue) Pop() interface{} {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.heapIndex = -1
	*q = old[:n-1]
	return e
}

func (q *wheelQueue) remove(e *scheduled) {
	if e.heapIndex < 0 || e.heapIndex >= len(*q) {
		return
	}
	heap.Remove(q, e.heapIndex)
}
