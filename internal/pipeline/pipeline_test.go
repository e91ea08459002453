package pipeline

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/JustJay7/docket-merger/internal/database"
	"github.com/JustJay7/docket-merger/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequeuer(t *testing.T) {
	db, err := database.Initialize("sqlite:///"+filepath.Join(t.TempDir(), "queue.db"), false)
	require.NoError(t, err)
	item := database.ProcessingQueue{PacerDocID: "1", Status: database.ProcessingFailed, ErrorMessage: "no document"}
	require.NoError(t, db.Create(&item).Error)

	r := NewRequeuer(db, logger.NewNop())
	ctx := context.Background()
	require.NoError(t, r.ProcessUpload(ctx, &item))

	var stored database.ProcessingQueue
	require.NoError(t, db.First(&stored, item.ID).Error)
	assert.Equal(t, database.ProcessingEnqueued, stored.Status)
	assert.Empty(t, stored.ErrorMessage)

	assert.Error(t, r.ProcessUpload(ctx, &item), "already requeued")
}

func TestPartyIndexer(t *testing.T) {
	var mu sync.Mutex
	seen := map[uint]int{}
	p := NewPartyIndexer(func(_ context.Context, id uint) error {
		mu.Lock()
		defer mu.Unlock()
		seen[id]++
		return nil
	}, 2, 10, logger.NewNop())

	p.IndexParties(1)
	p.IndexParties(1)
	p.IndexParties(2)
	p.Start(context.Background())
	p.Close()

	assert.Equal(t, map[uint]int{1: 1, 2: 1}, seen)
}

func TestPartyIndexerDropsWhenFull(t *testing.T) {
	calls := 0
	p := NewPartyIndexer(func(context.Context, uint) error { calls++; return nil }, 1, 1, logger.NewNop())
	p.IndexParties(1)
	p.IndexParties(2)
	p.Start(context.Background())
	p.Close()
	assert.Equal(t, 1, calls)
}
