// Package tracker accumulates papers seen during a session for later
// listing and bibliography export.
package tracker

import (
	"sync"

	"github.com/helixir/scholar-service/internal/domain"
)

// PaperTracker is a thread-safe, insertion-ordered store of papers keyed by
// paper identifier. It is constructed once by the host process and injected
// into the operations that need it; its lifetime is the process lifetime,
// and Clear exists for session resets and test isolation.
//
// Reads return snapshots: a caller never observes a partially applied write,
// and the tracker may be used concurrently from any number of goroutines or
// host worker threads.
type PaperTracker struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string
}

type entry struct {
	paper      domain.Paper
	sourceTool string
}

// NewPaperTracker creates an empty tracker.
func NewPaperTracker() *PaperTracker {
	return &PaperTracker{
		entries: make(map[string]*entry),
	}
}

// Track records a paper under the tool that produced it. Re-tracking an
// already-known paper identifier updates the record and source tool but
// keeps a single logical entry in its original position. Papers without an
// identifier are ignored, since they cannot be deduplicated or exported.
func (t *PaperTracker) Track(paper domain.Paper, sourceTool string) {
	if paper.PaperID == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.entries[paper.PaperID]; ok {
		existing.paper = paper
		existing.sourceTool = sourceTool
		return
	}

	t.entries[paper.PaperID] = &entry{paper: paper, sourceTool: sourceTool}
	t.order = append(t.order, paper.PaperID)
}

// TrackMany records each paper under the given source tool.
func (t *PaperTracker) TrackMany(papers []domain.Paper, sourceTool string) {
	for _, paper := range papers {
		t.Track(paper, sourceTool)
	}
}

// GetAllPapers returns all tracked papers in insertion order.
func (t *PaperTracker) GetAllPapers() []domain.Paper {
	t.mu.RLock()
	defer t.mu.RUnlock()

	papers := make([]domain.Paper, 0, len(t.order))
	for _, id := range t.order {
		papers = append(papers, t.entries[id].paper)
	}
	return papers
}

// GetPapersByTool returns the papers recorded by the given source tool, in
// insertion order.
func (t *PaperTracker) GetPapersByTool(sourceTool string) []domain.Paper {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var papers []domain.Paper
	for _, id := range t.order {
		if e := t.entries[id]; e.sourceTool == sourceTool {
			papers = append(papers, e.paper)
		}
	}
	return papers
}

// GetPapersByIDs returns the tracked papers matching the given identifiers,
// in insertion order. Unknown identifiers are skipped.
func (t *PaperTracker) GetPapersByIDs(ids []string) []domain.Paper {
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	var papers []domain.Paper
	for _, id := range t.order {
		if wanted[id] {
			papers = append(papers, t.entries[id].paper)
		}
	}
	return papers
}

// Count returns the number of tracked papers.
func (t *PaperTracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Clear removes all tracked papers.
func (t *PaperTracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[string]*entry)
	t.order = nil
}
