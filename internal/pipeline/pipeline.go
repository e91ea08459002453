// Package pipeline holds the hand-offs from the merger to the rest of the
// upload pipeline: failed PDF uploads go back on the processing queue, and
// dockets with changed parties are queued for re-indexing.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/JustJay7/docket-merger/internal/database"
	"github.com/JustJay7/docket-merger/pkg/logger"
	"gorm.io/gorm"
)

// Requeuer puts failed uploads back in the processing queue.
type Requeuer struct {
	db     *gorm.DB
	logger *logger.Logger
}

func NewRequeuer(db *gorm.DB, log *logger.Logger) *Requeuer {
	return &Requeuer{db: db, logger: log}
}

// ProcessUpload re-enqueues item. Only failed items move.
func (r *Requeuer) ProcessUpload(ctx context.Context, item *database.ProcessingQueue) error {
	res := r.db.WithContext(ctx).Model(&database.ProcessingQueue{}).
		Where("id = ? AND status = ?", item.ID, database.ProcessingFailed).
		Updates(map[string]any{"status": database.ProcessingEnqueued, "error_message": ""})
	if res.Error != nil {
		return fmt.Errorf("requeue upload %d: %w", item.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("requeue upload %d: no longer failed", item.ID)
	}
	item.Status = database.ProcessingEnqueued
	item.ErrorMessage = ""
	r.logger.Info("Requeued orphan upload", "uploadID", item.ID, "pacerDocID", item.PacerDocID)
	return nil
}

// IndexFunc re-indexes the parties of one docket.
type IndexFunc func(ctx context.Context, docketID uint) error

// PartyIndexer runs IndexFunc in the background for dockets handed to
// IndexParties. Requests for a docket already waiting are collapsed.
type PartyIndexer struct {
	index   IndexFunc
	logger  *logger.Logger
	queue   chan uint
	workers int

	mu      sync.Mutex
	pending map[uint]bool
	wg      sync.WaitGroup
}

func NewPartyIndexer(index IndexFunc, workers, backlog int, log *logger.Logger) *PartyIndexer {
	if workers < 1 {
		workers = 1
	}
	return &PartyIndexer{
		index:   index,
		logger:  log,
		queue:   make(chan uint, backlog),
		workers: workers,
		pending: make(map[uint]bool),
	}
}

// Start launches the workers. They exit when ctx is done or Close is called.
func (p *PartyIndexer) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case id, ok := <-p.queue:
					if !ok {
						return
					}
					p.mu.Lock()
					delete(p.pending, id)
					p.mu.Unlock()
					if err := p.index(ctx, id); err != nil {
						p.logger.Warn("Party indexing failed", "docketID", id, "error", err)
					}
				}
			}
		}()
	}
}

// IndexParties queues docketID without blocking. A full backlog drops the
// request.
func (p *PartyIndexer) IndexParties(docketID uint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending[docketID] {
		return
	}
	select {
	case p.queue <- docketID:
		p.pending[docketID] = true
	default:
		p.logger.Warn("Party index backlog full, dropping request", "docketID", docketID)
	}
}

// Close stops accepting work and waits for queued requests to finish.
func (p *PartyIndexer) Close() {
	close(p.queue)
	p.wg.Wait()
}
