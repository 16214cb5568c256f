// Package memory is an in-process implementation of the catalog store, the
// change ledger and the unit of work. Transactions run against a cloned
// state that replaces the live one only on success.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"catalog-mirror/internal/domain"
	"catalog-mirror/internal/repository"

	"github.com/shopspring/decimal"
)

type state struct {
	products     map[int64]domain.Product
	categories   map[int64]domain.Category
	ledger       []domain.LedgerEntry
	nextLedgerID int64
}

func newState() state {
	return state{
		products:     map[int64]domain.Product{},
		categories:   map[int64]domain.Category{},
		nextLedgerID: 1,
	}
}

func (s state) clone() state {
	out := state{
		products:     make(map[int64]domain.Product, len(s.products)),
		categories:   make(map[int64]domain.Category, len(s.categories)),
		ledger:       make([]domain.LedgerEntry, len(s.ledger)),
		nextLedgerID: s.nextLedgerID,
	}
	for k, v := range s.products {
		out.products[k] = v
	}
	for k, v := range s.categories {
		out.categories[k] = v
	}
	copy(out.ledger, s.ledger)
	return out
}

// Store holds the whole catalog and ledger in memory.
type Store struct {
	mu    sync.Mutex
	state state

	hookMu          sync.Mutex
	appendFailAfter int
	appendErr       error
	appendCount     int
	upsertFailures  map[int64]error
	markSyncedErr   error
}

// New creates an empty Store
func New() *Store {
	return &Store{state: newState(), appendFailAfter: -1, upsertFailures: map[int64]error{}}
}

// Repositories returns repositories that each lock the store per call.
func (s *Store) Repositories() repository.Repositories {
	return s.bind(nil)
}

// Do runs fn on a private copy of the state and publishes it only when fn
// succeeds. Concurrent units of work are serialized.
func (s *Store) Do(ctx context.Context, fn func(repository.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return domain.NewStoreWriteError("begin", "transaction", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := s.state.clone()
	if err := fn(s.bind(&tx)); err != nil {
		return err
	}
	s.state = tx
	return nil
}

func (s *Store) bind(tx *state) repository.Repositories {
	b := &binding{store: s, tx: tx}
	return repository.Repositories{
		Products:   &productRepo{b},
		Categories: &categoryRepo{b},
		Ledger:     &ledgerRepo{b},
	}
}

// FailLedgerAppendsAfter makes every ledger append after the first n fail with err.
func (s *Store) FailLedgerAppendsAfter(n int, err error) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.appendFailAfter = n
	s.appendErr = err
	s.appendCount = 0
}

// FailProductUpsert makes upserts of one product fail with err.
func (s *Store) FailProductUpsert(externalID int64, err error) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.upsertFailures[externalID] = err
}

// FailMarkSynced makes MarkSynced fail with err; nil clears it.
func (s *Store) FailMarkSynced(err error) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.markSyncedErr = err
}

func (s *Store) appendHook() error {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	if s.appendFailAfter >= 0 && s.appendCount >= s.appendFailAfter {
		return domain.NewStoreWriteError("append", "ledger entry", s.appendErr)
	}
	s.appendCount++
	return nil
}

func (s *Store) upsertHook(externalID int64) error {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	if err, ok := s.upsertFailures[externalID]; ok {
		return domain.NewStoreWriteError("upsert", "product", err)
	}
	return nil
}

func (s *Store) markSyncedHook() error {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	if s.markSyncedErr != nil {
		return domain.NewStoreWriteError("mark synced", "ledger entries", s.markSyncedErr)
	}
	return nil
}

// binding routes repository calls either to a transaction's state or,
// under the store lock, to the live state.
type binding struct {
	store *Store
	tx    *state
}

func (b *binding) run(fn func(st *state) error) error {
	if b.tx != nil {
		return fn(b.tx)
	}
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	return fn(&b.store.state)
}

// storedCost mirrors NUMERIC(12,2).
func storedCost(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func sameInt64(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sortProducts(products []*domain.Product) {
	sort.Slice(products, func(i, j int) bool {
		if products[i].Name != products[j].Name {
			return products[i].Name < products[j].Name
		}
		return products[i].ExternalID < products[j].ExternalID
	})
}

func byCreated(a, b domain.LedgerEntry) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func timePtr(t time.Time) *time.Time {
	return &t
}
