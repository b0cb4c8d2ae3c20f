// Package index implements the brute-force cosine-similarity vector index.
// Records are inserted in an embedding-pending state and ranked only once a
// background worker has obtained their embedding; the O(n) scan per query is
// deliberate, since consolidation bounds n.
package index

import (
	"context"
	"log"
	"math"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/jinruoxinchen/one-unlimit-os/internal/llm"
	"github.com/jinruoxinchen/one-unlimit-os/pkg/types"
)

// similarityTolerance is the band inside which two cosine scores count as
// tied and recency decides the order.
const similarityTolerance = 1e-6

// maxEmbedAttempts bounds retries for a single record's embedding. A record
// that exhausts its attempts stays pending until it is upserted again.
const maxEmbedAttempts = 5

// Options configures a VectorIndex.
type Options struct {
	QueueSize    int           // pending-embedding queue capacity (default 256)
	RatePerSec   float64       // embedding call rate limit (default 5/s)
	EmbedTimeout time.Duration // per-call bound on the embedder (default 10s)
	CacheSize    int           // query-embedding LRU capacity (default 512)
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.QueueSize <= 0 {
		out.QueueSize = 256
	}
	if out.RatePerSec <= 0 {
		out.RatePerSec = 5
	}
	if out.EmbedTimeout <= 0 {
		out.EmbedTimeout = 10 * time.Second
	}
	if out.CacheSize <= 0 {
		out.CacheSize = 512
	}
	return out
}

// embedJob is one unit of background embedding work.
type embedJob struct {
	id       string
	content  string
	attempts int
}

// VectorIndex stores memory records keyed by ID and answers nearest-neighbor
// queries by cosine similarity. It holds a derived, non-owning view of the
// memory store's records; the service façade keeps the two in sync.
type VectorIndex struct {
	mu      sync.RWMutex
	entries map[string]types.MemoryRecord

	embedder llm.Embedder
	opts     Options

	queue   chan embedJob
	limiter *rate.Limiter
	cache   *lru.Cache[string, []float64]

	// onEmbedded, when set, is invoked after a record's embedding arrives so
	// the authoritative store can be updated too. Called outside all index
	// locks.
	onEmbedded func(id string, embedding []float64)

	workerCtx    context.Context
	workerCancel context.CancelFunc
	workerDone   chan struct{}
}

// NewVectorIndex creates an index backed by the given embedder and starts
// its background embedding worker.
func NewVectorIndex(embedder llm.Embedder, opts Options) *VectorIndex {
	opts = opts.withDefaults()

	cache, _ := lru.New[string, []float64](opts.CacheSize)
	ctx, cancel := context.WithCancel(context.Background())

	idx := &VectorIndex{
		entries:      make(map[string]types.MemoryRecord),
		embedder:     embedder,
		opts:         opts,
		queue:        make(chan embedJob, opts.QueueSize),
		limiter:      rate.NewLimiter(rate.Limit(opts.RatePerSec), 1),
		cache:        cache,
		workerCtx:    ctx,
		workerCancel: cancel,
		workerDone:   make(chan struct{}),
	}

	go idx.embedWorker()
	return idx
}

// SetOnEmbedded registers a callback fired after a pending record's
// embedding arrives. Must be set before records are upserted.
func (idx *VectorIndex) SetOnEmbedded(fn func(id string, embedding []float64)) {
	idx.onEmbedded = fn
}

// Upsert inserts or replaces a record's entry. Records without an embedding
// are queued for background embedding; a full queue leaves the record
// pending (a later upsert retries).
func (idx *VectorIndex) Upsert(rec types.MemoryRecord) {
	idx.mu.Lock()
	idx.entries[rec.ID] = rec
	idx.mu.Unlock()

	if rec.HasEmbedding() {
		return
	}

	select {
	case idx.queue <- embedJob{id: rec.ID, content: rec.Content}:
	default:
		log.Printf("index: embedding queue full, %s stays pending", rec.ID)
	}
}

// SetEmbedding attaches an embedding to an indexed record. No-op when the
// record has been removed in the meantime.
func (idx *VectorIndex) SetEmbedding(id string, embedding []float64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if rec, ok := idx.entries[id]; ok {
		rec.Embedding = embedding
		idx.entries[id] = rec
	}
}

// Remove deletes the entry if present, else no-op.
func (idx *VectorIndex) Remove(id string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.entries, id)
}

// Clear drops every entry.
func (idx *VectorIndex) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries = make(map[string]types.MemoryRecord)
}

// Len returns the number of indexed records, pending ones included.
func (idx *VectorIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// PendingCount returns the number of records whose embedding has not arrived.
func (idx *VectorIndex) PendingCount() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	n := 0
	for _, rec := range idx.entries {
		if !rec.HasEmbedding() {
			n++
		}
	}
	return n
}

// scored pairs a record with its similarity to the current query.
type scored struct {
	rec   types.MemoryRecord
	score float64
}

// Search returns up to k records ranked descending by cosine similarity to
// the query text. Ties within the similarity tolerance are broken by newer
// CreatedAt. Records whose embedding is still pending never appear. The
// query embedding call runs under the caller's context plus the configured
// timeout; its failure is returned so the caller can degrade.
func (idx *VectorIndex) Search(ctx context.Context, query string, k int) ([]types.MemoryRecord, error) {
	if k <= 0 {
		return nil, nil
	}

	queryVec, err := idx.queryEmbedding(ctx, query)
	if err != nil {
		return nil, err
	}

	idx.mu.RLock()
	candidates := make([]scored, 0, len(idx.entries))
	for _, rec := range idx.entries {
		if !rec.HasEmbedding() {
			continue
		}
		candidates = append(candidates, scored{rec: rec, score: Cosine(queryVec, rec.Embedding)})
	}
	idx.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		if math.Abs(candidates[i].score-candidates[j].score) > similarityTolerance {
			return candidates[i].score > candidates[j].score
		}
		if !candidates[i].rec.CreatedAt.Equal(candidates[j].rec.CreatedAt) {
			return candidates[i].rec.CreatedAt.After(candidates[j].rec.CreatedAt)
		}
		// Stable order for identical timestamps.
		return candidates[i].rec.ID > candidates[j].rec.ID
	})

	if k > len(candidates) {
		k = len(candidates)
	}
	out := make([]types.MemoryRecord, 0, k)
	for _, c := range candidates[:k] {
		out = append(out, c.rec)
	}
	return out, nil
}

// Close stops the background worker. Pending jobs are abandoned; their
// records simply stay in the pending state.
func (idx *VectorIndex) Close() {
	idx.workerCancel()
	<-idx.workerDone
}

// queryEmbedding resolves the query text to a vector, consulting the LRU
// cache first so repeated queries skip the collaborator round trip.
func (idx *VectorIndex) queryEmbedding(ctx context.Context, query string) ([]float64, error) {
	if vec, ok := idx.cache.Get(query); ok {
		return vec, nil
	}

	ctx, cancel := context.WithTimeout(ctx, idx.opts.EmbedTimeout)
	defer cancel()

	vec, err := idx.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	idx.cache.Add(query, vec)
	return vec, nil
}

// embedWorker drains the pending-embedding queue. Every collaborator call is
// rate limited and bounded by the embed timeout, and runs while no index or
// store lock is held.
func (idx *VectorIndex) embedWorker() {
	defer close(idx.workerDone)

	for {
		select {
		case <-idx.workerCtx.Done():
			return
		case job := <-idx.queue:
			idx.processJob(job)
		}
	}
}

func (idx *VectorIndex) processJob(job embedJob) {
	if err := idx.limiter.Wait(idx.workerCtx); err != nil {
		return // shutting down
	}

	// The record may have been removed (deleted or consolidated) while the
	// job sat in the queue.
	idx.mu.RLock()
	_, live := idx.entries[job.id]
	idx.mu.RUnlock()
	if !live {
		return
	}

	ctx, cancel := context.WithTimeout(idx.workerCtx, idx.opts.EmbedTimeout)
	vec, err := idx.embedder.Embed(ctx, job.content)
	cancel()

	if err != nil {
		job.attempts++
		if job.attempts >= maxEmbedAttempts {
			log.Printf("index: embedding %s failed after %d attempts, left pending: %v", job.id, job.attempts, err)
			return
		}
		select {
		case idx.queue <- job:
		default:
			log.Printf("index: embedding queue full, dropping retry for %s", job.id)
		}
		return
	}

	idx.SetEmbedding(job.id, vec)
	if idx.onEmbedded != nil {
		idx.onEmbedded(job.id, vec)
	}
}

// Cosine computes the cosine similarity of two vectors, defined as 0 when
// either vector has zero magnitude or the dimensions differ.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
