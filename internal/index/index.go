// Package index defines the keyword index contract and the asynchronous
// notifier that decouples store writes from index maintenance. The index
// holds no record state beyond ID back-references plus the content needed
// for full-text matching; the store remains the single source of truth.
package index

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Document is the slice of a memory record that the keyword index sees.
type Document struct {
	ID      string
	UserID  string
	Content string

	// ImageEmbedding is populated for image memories when the backend can
	// store vectors (pgvector); other backends ignore it.
	ImageEmbedding []float64
}

// Hit is one keyword search result. Score semantics are backend-specific;
// callers must normalize before mixing hits with other rankings.
type Hit struct {
	ID      string
	Content string
	Score   float64
}

// Index is the pluggable keyword backend.
type Index interface {
	Index(ctx context.Context, doc Document) error
	Remove(ctx context.Context, id string) error
	Search(ctx context.Context, userID, query string, limit int) ([]Hit, error)
	Close() error
}

// Notifier is how the store reports mutations to the index. Both calls are
// fire-and-forget: index freshness is best-effort and must never slow a
// write down.
type Notifier interface {
	Notify(doc Document)
	Forget(id string)
}

type jobKind int

const (
	jobUpsert jobKind = iota
	jobDelete
)

type job struct {
	id   string // trace ID, for log correlation only
	kind jobKind
	doc  Document
}

// AsyncNotifier feeds index mutations through a bounded queue to one
// worker goroutine. When the queue is full the job is dropped and logged;
// a stale index entry surfaces at worst as one extra fusion candidate.
type AsyncNotifier struct {
	idx  Index
	jobs chan job
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewAsyncNotifier starts the worker. queueSize bounds memory under write
// bursts; zero or negative falls back to 256.
func NewAsyncNotifier(idx Index, queueSize int) *AsyncNotifier {
	if queueSize <= 0 {
		queueSize = 256
	}
	n := &AsyncNotifier{
		idx:  idx,
		jobs: make(chan job, queueSize),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go n.worker()
	return n
}

// Notify enqueues an upsert. Never blocks.
func (n *AsyncNotifier) Notify(doc Document) {
	n.enqueue(job{id: uuid.NewString(), kind: jobUpsert, doc: doc})
}

// Forget enqueues a deletion. Never blocks.
func (n *AsyncNotifier) Forget(id string) {
	n.enqueue(job{id: uuid.NewString(), kind: jobDelete, doc: Document{ID: id}})
}

func (n *AsyncNotifier) enqueue(j job) {
	select {
	case <-n.stop:
		log.Printf("WARNING: index notifier closed, dropping job %s for record %s", j.id, j.doc.ID)
		return
	default:
	}
	select {
	case n.jobs <- j:
	default:
		log.Printf("WARNING: index queue full, dropping job %s for record %s", j.id, j.doc.ID)
	}
}

// Close drains queued jobs and releases the backend. Safe to call more
// than once, and jobs enqueued after Close are dropped rather than sent
// to a dead worker.
func (n *AsyncNotifier) Close() error {
	var err error
	n.once.Do(func() {
		close(n.stop)
		<-n.done
		err = n.idx.Close()
	})
	return err
}

func (n *AsyncNotifier) worker() {
	defer close(n.done)
	for {
		select {
		case j := <-n.jobs:
			n.apply(j)
		case <-n.stop:
			for {
				select {
				case j := <-n.jobs:
					n.apply(j)
				default:
					return
				}
			}
		}
	}
}

func (n *AsyncNotifier) apply(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var err error
	switch j.kind {
	case jobUpsert:
		err = n.idx.Index(ctx, j.doc)
	case jobDelete:
		err = n.idx.Remove(ctx, j.doc.ID)
	}
	if err != nil {
		log.Printf("WARNING: index job %s for record %s failed: %v", j.id, j.doc.ID, err)
	}
}
