package lookup

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rpattn/formrecon/internal/domain"
	"github.com/rpattn/formrecon/internal/repository"
)

type stubFilingRepo struct {
	mu      sync.Mutex
	batches [][]string
	rows    map[string]domain.FilingRecord
	err     error
}

func (s *stubFilingRepo) ListPage(context.Context, repository.FilingQuery) ([]domain.FilingRecord, error) {
	return nil, nil
}

func (s *stubFilingRepo) ListByAccessions(_ context.Context, accessions []string) ([]domain.FilingRecord, error) {
	s.mu.Lock()
	s.batches = append(s.batches, append([]string(nil), accessions...))
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	var out []domain.FilingRecord
	for _, a := range accessions {
		if f, ok := s.rows[a]; ok {
			out = append(out, f)
		}
	}
	return out, nil
}

type stubAdviserRepo struct {
	years []int
}

func (s *stubAdviserRepo) ListByExemptionFlag(context.Context, domain.ExemptionFlag) ([]domain.AdviserRecord, error) {
	return nil, nil
}

func (s *stubAdviserRepo) AUMByYear(_ context.Context, ids []string, years []int) (map[string]domain.AUMByYear, error) {
	s.years = years
	figure := decimal.NewFromInt(125000000)
	out := map[string]domain.AUMByYear{}
	for _, id := range ids {
		out[id] = domain.AUMByYear{2025: nil, 2024: &figure}
	}
	return out, nil
}

func (s *stubAdviserRepo) ListNamesPage(context.Context, int, int) ([]domain.AdviserRecord, error) {
	return nil, nil
}

func TestFilingLoaderBatchesConcurrentLoads(t *testing.T) {
	repo := &stubFilingRepo{rows: map[string]domain.FilingRecord{
		"A-1": {Accession: "A-1", FundType: "Venture Capital Fund"},
		"A-2": {Accession: "A-2", FundType: "Hedge Fund"},
	}}
	loader := NewFilingLoader(repo, WithWait(20*time.Millisecond))

	keys := []string{"A-1", "A-2", "A-3", "A-1"}
	outcomes, err := loader.LoadAll(context.Background(), keys, 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcomes) != 3 {
		t.Fatalf("expected 3 distinct outcomes, got %d", len(outcomes))
	}
	if got := outcomes["A-2"]; !got.Found || got.Value.FundType != "Hedge Fund" {
		t.Fatalf("unexpected outcome for A-2: %+v", got)
	}
	if got := outcomes["A-3"]; got.Found || got.Err != nil {
		t.Fatalf("expected A-3 to be missing without error, got %+v", got)
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()
	if len(repo.batches) != 1 {
		t.Fatalf("expected one batched query, got %d: %v", len(repo.batches), repo.batches)
	}
	batch := append([]string(nil), repo.batches[0]...)
	sort.Strings(batch)
	if len(batch) != 3 || batch[0] != "A-1" || batch[2] != "A-3" {
		t.Fatalf("unexpected batch keys %v", batch)
	}
}

func TestLoadAllReportsPerKeyErrors(t *testing.T) {
	boom := errors.New("statement timeout")
	repo := &stubFilingRepo{err: boom}
	loader := NewFilingLoader(repo)

	outcomes, err := loader.LoadAll(context.Background(), []string{"A-1", "A-2"}, 2)
	if err != nil {
		t.Fatalf("per-key failures must not fail LoadAll: %v", err)
	}
	for key, outcome := range outcomes {
		if !errors.Is(outcome.Err, boom) {
			t.Fatalf("expected %s to carry the batch error, got %v", key, outcome.Err)
		}
	}
}

func TestLoadAllFillsBatchesToCapacity(t *testing.T) {
	repo := &stubFilingRepo{rows: map[string]domain.FilingRecord{}}
	keys := []string{"A-1", "A-2", "A-3", "A-4", "A-5"}
	for _, k := range keys {
		repo.rows[k] = domain.FilingRecord{Accession: k}
	}
	loader := NewFilingLoader(repo, WithBatchCapacity(2), WithWait(50*time.Millisecond))

	outcomes, err := loader.LoadAll(context.Background(), keys, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, k := range keys {
		if !outcomes[k].Found {
			t.Fatalf("expected %s to be found", k)
		}
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()
	if len(repo.batches) != 3 {
		t.Fatalf("expected 3 batches, got %d: %v", len(repo.batches), repo.batches)
	}
	for i, want := range []int{2, 2, 1} {
		if len(repo.batches[i]) != want {
			t.Fatalf("expected batch sizes [2 2 1], got %v", repo.batches)
		}
	}
}

func TestForEachBoundsConcurrency(t *testing.T) {
	items := make([]int, 50)
	var inFlight, peak atomic.Int32
	err := ForEach(context.Background(), items, 4, func(context.Context, int, int) error {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		inFlight.Add(-1)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if peak.Load() > 4 {
		t.Fatalf("expected at most 4 concurrent calls, saw %d", peak.Load())
	}
}

func TestForEachStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := ForEach(ctx, []int{1, 2, 3}, 1, func(context.Context, int, int) error {
		calls++
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected no calls after cancellation, got %d", calls)
	}
}

func TestAUMLoaderPassesYears(t *testing.T) {
	repo := &stubAdviserRepo{}
	loader := NewAUMLoader(repo, []int{2025, 2024})

	aum, found, err := loader.Load(context.Background(), "801")
	if err != nil || !found {
		t.Fatalf("expected AUM for 801, got found=%v err=%v", found, err)
	}
	if year, ok := aum.LatestYear([]int{2025, 2024}); !ok || year != 2024 {
		t.Fatalf("expected latest year 2024, got %d (ok=%v)", year, ok)
	}
	if len(repo.years) != 2 || repo.years[0] != 2025 {
		t.Fatalf("unexpected years passed to repository: %v", repo.years)
	}
}
