// Package merger reconciles scraped court reports into the canonical store.
//
// Every merge is idempotent and non-destructive: existing values are only
// replaced by richer incoming ones, and entities missing from a scrape are
// disassociated from the docket rather than deleted.
package merger

import (
	"context"
	"time"

	"github.com/JustJay7/docket-merger/internal/database"
	"github.com/JustJay7/docket-merger/pkg/logger"
	"gorm.io/gorm"
)

// CourtRegistry answers the court questions the merger needs.
type CourtRegistry interface {
	Exists(courtID string) bool
	IsAppellate(courtID string) bool
	IsBankruptcy(courtID string) bool
	MapPacerToID(pacerID string) string
	LocalDate(courtID string, t time.Time, hasClock bool) time.Time
	Location(courtID string) *time.Location
}

// JudgeFinder resolves a judge name to a judge id. A nil id means no match.
type JudgeFinder interface {
	Lookup(ctx context.Context, name, courtID string, on *time.Time) (*uint, error)
}

// PageArchiver stores a raw source page against the row it produced.
type PageArchiver interface {
	Save(ctx context.Context, objectType string, objectID uint, uploadType database.UploadType, filename string, content []byte) (*database.PacerHTMLFile, error)
}

// PartyIndexer is told when a docket's parties changed. Calls must not block.
type PartyIndexer interface {
	IndexParties(docketID uint)
}

// PDFProcessor reprocesses a queued document upload.
type PDFProcessor interface {
	ProcessUpload(ctx context.Context, item *database.ProcessingQueue) error
}

// RetryPolicy is a fixed-delay bounded retry.
type RetryPolicy struct {
	Attempts uint
	Delay    time.Duration
}

// Merger is the reconciliation engine. It is safe for concurrent use; all
// state lives in the store.
type Merger struct {
	db      *gorm.DB
	courts  CourtRegistry
	judges  JudgeFinder
	archive PageArchiver
	indexer PartyIndexer
	pdfs    PDFProcessor
	logger  *logger.Logger

	partyRetry     RetryPolicy
	caseQueryRetry RetryPolicy
	orphanLookback time.Duration
	orphanFallback time.Duration

	now func() time.Time
}

type Option func(*Merger)

func WithJudgeFinder(j JudgeFinder) Option { return func(m *Merger) { m.judges = j } }

func WithArchiver(a PageArchiver) Option { return func(m *Merger) { m.archive = a } }

func WithPartyIndexer(i PartyIndexer) Option { return func(m *Merger) { m.indexer = i } }

func WithPDFProcessor(p PDFProcessor) Option { return func(m *Merger) { m.pdfs = p } }

func WithPartyRetry(p RetryPolicy) Option { return func(m *Merger) { m.partyRetry = p } }

func WithCaseQueryRetry(p RetryPolicy) Option { return func(m *Merger) { m.caseQueryRetry = p } }

// WithOrphanWindows sets how far back failed uploads are rescanned: lookback
// before the docket's filed date, or fallback before now when the docket has
// no filed date.
func WithOrphanWindows(lookback, fallback time.Duration) Option {
	return func(m *Merger) {
		m.orphanLookback = lookback
		m.orphanFallback = fallback
	}
}

func withClock(now func() time.Time) Option { return func(m *Merger) { m.now = now } }

// New builds a Merger. Collaborators not supplied through options default to
// no-ops.
func New(db *gorm.DB, courts CourtRegistry, log *logger.Logger, opts ...Option) *Merger {
	m := &Merger{
		db:             db,
		courts:         courts,
		judges:         nopJudges{},
		indexer:        nopIndexer{},
		pdfs:           nopPDFs{},
		logger:         log,
		partyRetry:     RetryPolicy{Attempts: 2, Delay: time.Second},
		caseQueryRetry: RetryPolicy{Attempts: 3, Delay: 250 * time.Millisecond},
		orphanLookback: 30 * 24 * time.Hour,
		orphanFallback: 180 * 24 * time.Hour,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = logger.NewNop()
	}
	return m
}

type nopJudges struct{}

func (nopJudges) Lookup(context.Context, string, string, *time.Time) (*uint, error) { return nil, nil }

type nopIndexer struct{}

func (nopIndexer) IndexParties(uint) {}

type nopPDFs struct{}

func (nopPDFs) ProcessUpload(context.Context, *database.ProcessingQueue) error { return nil }

// today is the current date as UTC midnight.
func (m *Merger) today() time.Time {
	n := m.now().UTC()
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
}
