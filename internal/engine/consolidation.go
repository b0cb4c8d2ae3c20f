// Package engine hosts the consolidation engine and the memory service
// façade that coordinates the store, vector index, relationship graph, and
// categorical stores.
package engine

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/jinruoxinchen/one-unlimit-os/internal/config"
	"github.com/jinruoxinchen/one-unlimit-os/internal/graph"
	"github.com/jinruoxinchen/one-unlimit-os/internal/index"
	"github.com/jinruoxinchen/one-unlimit-os/internal/llm"
	"github.com/jinruoxinchen/one-unlimit-os/internal/store"
	"github.com/jinruoxinchen/one-unlimit-os/pkg/types"
)

// Consolidator bounds memory store growth by periodically merging each
// bucket's oldest records into per-tag summary records. It is triggered
// opportunistically from store calls; no dedicated timer goroutine exists.
type Consolidator struct {
	memories   *store.MemoryStore
	vectors    *index.VectorIndex
	relations  *graph.Graph
	summarizer llm.Summarizer
	fallback   llm.FallbackSummarizer
	cfg        config.ConsolidationConfig
	timeout    time.Duration

	mu      sync.Mutex
	lastRun time.Time
	running bool
}

// NewConsolidator creates a consolidation engine. The summarizer may be
// nil; the deterministic fallback then produces every summary.
func NewConsolidator(memories *store.MemoryStore, vectors *index.VectorIndex, relations *graph.Graph, summarizer llm.Summarizer, cfg config.ConsolidationConfig, timeout time.Duration) *Consolidator {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Consolidator{
		memories:   memories,
		vectors:    vectors,
		relations:  relations,
		summarizer: summarizer,
		cfg:        cfg,
		timeout:    timeout,
		lastRun:    time.Now(),
	}
}

// MaybeTrigger checks the trigger policy and, when due, starts a
// consolidation pass in the background. At most one pass runs at a time;
// callers never block on the pass itself.
func (c *Consolidator) MaybeTrigger() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	due := c.memories.Count() > c.cfg.Threshold || time.Since(c.lastRun) > c.cfg.Interval
	if !due {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.mu.Unlock()

	go func() {
		defer func() {
			c.mu.Lock()
			c.running = false
			c.lastRun = time.Now()
			c.mu.Unlock()
		}()
		c.Run()
	}()
}

// Run consolidates every agent bucket independently. One bucket's failure
// never prevents the others from running.
func (c *Consolidator) Run() {
	for _, agentID := range c.memories.Agents() {
		c.runBucket(agentID)
	}
}

// runBucket consolidates a single bucket, isolating panics so a corrupted
// bucket is fatal only to its own pass.
func (c *Consolidator) runBucket(agentID string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("engine: consolidation of bucket %q aborted: %v", agentID, r)
		}
	}()

	merged := c.consolidateBucket(agentID)
	if merged > 0 {
		log.Printf("engine: consolidated %d group(s) in bucket %q", merged, agentID)
	}
}

// consolidateBucket performs one pass over one bucket and returns the
// number of groups merged.
//
// The pass only ever considers the oldest ⌊n/2⌋ records, so the newest half
// of a bucket is never touched, and a single pass can never consolidate
// more than half a bucket.
func (c *Consolidator) consolidateBucket(agentID string) int {
	records := c.memories.Records(agentID)
	if len(records) < c.cfg.MinBucket {
		return 0
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	oldest := records[:len(records)/2]

	groups := make(map[string][]types.MemoryRecord)
	order := make([]string, 0)
	for _, rec := range oldest {
		tag := rec.GroupTag()
		if _, seen := groups[tag]; !seen {
			order = append(order, tag)
		}
		groups[tag] = append(groups[tag], rec)
	}

	merged := 0
	for _, tag := range order {
		group := groups[tag]
		if len(group) < c.cfg.MinGroupSize {
			continue
		}
		if err := c.mergeGroup(agentID, tag, group); err != nil {
			log.Printf("engine: merge group %q in bucket %q failed: %v", tag, agentID, err)
			continue
		}
		merged++
	}
	return merged
}

// mergeGroup replaces one tag group with a single summary record. The
// summary comes from the summarization collaborator when available and from
// the deterministic fallback otherwise, so the merge itself never fails for
// lack of a language model.
func (c *Consolidator) mergeGroup(agentID, tag string, group []types.MemoryRecord) error {
	contents := make([]string, len(group))
	ids := make([]string, len(group))
	maxImportance := 0.0
	for i, rec := range group {
		contents[i] = rec.Content
		ids[i] = rec.ID
		if rec.Importance > maxImportance {
			maxImportance = rec.Importance
		}
	}

	summary := c.summarize(contents)
	if summary == "" {
		return fmt.Errorf("empty summary for %d records", len(group))
	}

	consolidated := c.memories.NewRecord(agentID, summary, maxImportance,
		[]string{types.TagConsolidated, tag})

	// Remove the originals from the bucket and both derived views, then
	// insert the replacement everywhere. Lineage is not retained: edges
	// incident to the originals are pruned along with their graph entities.
	c.memories.RemoveFromBucket(agentID, ids)
	for _, id := range ids {
		c.vectors.Remove(id)
		c.relations.RemoveEntity(id)
	}

	if err := c.memories.Add(consolidated); err != nil {
		return fmt.Errorf("store consolidated record: %w", err)
	}
	c.vectors.Upsert(consolidated)
	c.relations.CreateEntity(consolidated.ID, types.EntityTypeMemory, []string{summary})
	return nil
}

// summarize produces the group summary, degrading from the collaborator to
// the deterministic fallback.
func (c *Consolidator) summarize(contents []string) string {
	if c.summarizer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		summary, err := c.summarizer.Summarize(ctx, contents)
		cancel()
		if err == nil && summary != "" {
			return summary
		}
		if err != nil {
			log.Printf("engine: summarizer unavailable, using fallback: %v", err)
		}
	}

	summary, _ := c.fallback.Summarize(context.Background(), contents)
	return summary
}
