package store

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/scrypster/recall/pkg/types"
)

const (
	recordsFile   = "records.json"
	userIndexFile = "user_index.json"
)

// persister owns all disk I/O for the store. A single goroutine consumes
// dirty signals, debounces them, and writes both artifacts atomically.
// Mutators only ever set a flag; they never block on the filesystem.
type persister struct {
	dataPath string
	debounce time.Duration

	// snapshot marshals the current store state under the store's lock.
	snapshot func() (records, userIndex []byte, err error)

	dirty chan struct{} // capacity 1; coalesces bursts
	flush chan chan error
	stop  chan struct{}
	done  chan struct{}
}

func newPersister(dataPath string, debounce time.Duration, snapshot func() ([]byte, []byte, error)) *persister {
	return &persister{
		dataPath: dataPath,
		debounce: debounce,
		snapshot: snapshot,
		dirty:    make(chan struct{}, 1),
		flush:    make(chan chan error),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// markDirty schedules a save. Non-blocking: a signal already in flight
// absorbs any number of further mutations.
func (p *persister) markDirty() {
	select {
	case p.dirty <- struct{}{}:
	default:
	}
}

// flushSync forces an immediate save of any pending state and waits for it.
func (p *persister) flushSync() error {
	reply := make(chan error, 1)
	select {
	case p.flush <- reply:
		return <-reply
	case <-p.done:
		return types.ErrClosed
	}
}

// stopAndWait saves pending state and shuts the loop down.
func (p *persister) stopAndWait() error {
	close(p.stop)
	<-p.done
	return nil
}

// run is the save loop. Each dirty signal (re)arms the debounce timer; the
// save fires once the store has been quiet for the full window. A failed
// save keeps the pending flag set and re-arms the timer, so the state is
// retried rather than dropped.
func (p *persister) run() {
	defer close(p.done)

	var timer *time.Timer
	var timerC <-chan time.Time
	pending := false

	arm := func() {
		if timer == nil {
			timer = time.NewTimer(p.debounce)
		} else {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(p.debounce)
		}
		timerC = timer.C
	}
	disarm := func() {
		if timer != nil && !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timerC = nil
	}
	// drainDirty folds a queued-but-unconsumed signal into pending, so a
	// flush racing a mutation cannot miss it.
	drainDirty := func() {
		select {
		case <-p.dirty:
			pending = true
		default:
		}
	}

	for {
		select {
		case <-p.dirty:
			pending = true
			arm()

		case <-timerC:
			timerC = nil
			if err := p.save(); err != nil {
				log.Printf("ERROR: persist failed, will retry: %v", err)
				arm()
				continue
			}
			pending = false

		case reply := <-p.flush:
			drainDirty()
			disarm()
			var err error
			if pending {
				if err = p.save(); err == nil {
					pending = false
				}
			}
			reply <- err

		case <-p.stop:
			drainDirty()
			disarm()
			if pending {
				if err := p.save(); err != nil {
					log.Printf("ERROR: final persist on shutdown failed: %v", err)
				}
			}
			return
		}
	}
}

func (p *persister) save() error {
	records, userIndex, err := p.snapshot()
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	if err := os.MkdirAll(p.dataPath, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	if err := writeAtomic(filepath.Join(p.dataPath, recordsFile), records); err != nil {
		return err
	}
	return writeAtomic(filepath.Join(p.dataPath, userIndexFile), userIndex)
}

// writeAtomic writes via a temp file in the same directory and renames it
// into place. Readers only ever observe the previous or the new complete
// file, never a truncated one.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// snapshot marshals both artifacts under the read lock. The user index is
// serialized with sorted ID slices for stable diffs.
func (s *Store) snapshot() ([]byte, []byte, error) {
	s.mu.RLock()
	recordsCopy := make(map[string]*types.MemoryRecord, len(s.records))
	for id, rec := range s.records {
		recordsCopy[id] = rec.Clone()
	}
	indexCopy := make(map[string][]string, len(s.userIndex))
	for userID, ids := range s.userIndex {
		list := make([]string, 0, len(ids))
		for id := range ids {
			list = append(list, id)
		}
		sort.Strings(list)
		indexCopy[userID] = list
	}
	s.mu.RUnlock()

	records, err := json.MarshalIndent(recordsCopy, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("marshal records: %w", err)
	}
	userIndex, err := json.MarshalIndent(indexCopy, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("marshal user index: %w", err)
	}
	return records, userIndex, nil
}

// loadState reads both artifacts back. Missing files mean a fresh store.
// The two files are reconciled defensively: index entries pointing at
// unknown records are dropped, and records missing from the index are
// re-indexed, so a crash between the two renames cannot lose data.
func loadState(dataPath string) (map[string]*types.MemoryRecord, map[string]map[string]struct{}, error) {
	records := make(map[string]*types.MemoryRecord)
	userIndex := make(map[string]map[string]struct{})

	data, err := os.ReadFile(filepath.Join(dataPath, recordsFile))
	switch {
	case os.IsNotExist(err):
		return records, userIndex, nil
	case err != nil:
		return nil, nil, fmt.Errorf("read %s: %w", recordsFile, err)
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", recordsFile, err)
	}

	data, err = os.ReadFile(filepath.Join(dataPath, userIndexFile))
	if err == nil {
		var onDisk map[string][]string
		if err := json.Unmarshal(data, &onDisk); err != nil {
			return nil, nil, fmt.Errorf("parse %s: %w", userIndexFile, err)
		}
		for userID, ids := range onDisk {
			set := make(map[string]struct{}, len(ids))
			for _, id := range ids {
				if _, ok := records[id]; !ok {
					log.Printf("WARNING: user index references unknown record %s, dropping", id)
					continue
				}
				set[id] = struct{}{}
			}
			if len(set) > 0 {
				userIndex[userID] = set
			}
		}
	} else if !os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("read %s: %w", userIndexFile, err)
	}

	for id, rec := range records {
		if rec.ID == "" {
			rec.ID = id
		}
		set, ok := userIndex[rec.UserID]
		if !ok {
			set = make(map[string]struct{})
			userIndex[rec.UserID] = set
		}
		if _, ok := set[id]; !ok {
			set[id] = struct{}{}
		}
	}

	return records, userIndex, nil
}
