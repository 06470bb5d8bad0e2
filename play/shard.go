package play

import (
	"sync"

	"github.com/ulala-x/playhouse/stage"
)

// numShards trades one contended map+mutex for several, so looking a Stage
// up on one busy Stage's traffic never blocks registering or destroying an
// unrelated one.
const numShards = 16

type shard struct {
	mu    sync.RWMutex
	byID  map[int64]*stage.Stage
}

type stageTable struct {
	shards [numShards]*shard
}

func newStageTable() *stageTable {
	t := &stageTable{}
	for i := range t.shards {
		t.shards[i] = &shard{byID: make(map[int64]*stage.Stage)}
	}
	return t
}

func (t *stageTable) shardFor(stageID int64) *shard {
	idx := uint64(stageID) % uint64(numShards)
	return t.shards[idx]
}

func (t *stageTable) store(s *stage.Stage) {
	sh := t.shardFor(s.StageID())
	sh.mu.Lock()
	sh.byID[s.StageID()] = s
	sh.mu.Unlock()
}

func (t *stageTable) lookup(stageID int64) (*stage.Stage, bool) {
	sh := t.shardFor(stageID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	s, ok := sh.byID[stageID]
	return s, ok
}

func (t *stageTable) remove(stageID int64) {
	sh := t.shardFor(stageID)
	sh.mu.Lock()
	delete(sh.byID, stageID)
	sh.mu.Unlock()
}

func (t *stageTable) count() int {
	n := 0
	for _, sh := range t.shards {
		sh.mu.RLock()
		n += len(sh.byID)
		sh.mu.RUnlock()
	}
	return n
}

func (t *stageTable) all() []*stage.Stage {
	out := make([]*stage.Stage, 0, t.count())
	for _, sh := range t.shards {
		sh.mu.RLock()
		for _, s := range sh.byID {
			out = append(out, s)
		}
		sh.mu.RUnlock()
	}
	return out
}
