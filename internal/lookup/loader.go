// Package lookup batches the targeted lookups detectors make per link or
// adviser. Loaders coalesce queued keys into one ANY($1) query per batch;
// a loader's LoadAll queues keys a full batch at a time and bounds how many
// batches are in flight.
package lookup

import (
	"context"
	"fmt"
	"time"

	"github.com/graph-gophers/dataloader"

	"github.com/rpattn/formrecon/internal/domain"
	"github.com/rpattn/formrecon/internal/repository"
)

type settings struct {
	wait     time.Duration
	capacity int
}

// Option tunes batching.
type Option func(*settings)

// WithWait sets how long a batch collects keys before dispatch.
func WithWait(wait time.Duration) Option {
	return func(s *settings) {
		if wait > 0 {
			s.wait = wait
		}
	}
}

// WithBatchCapacity caps the keys sent in one query.
func WithBatchCapacity(capacity int) Option {
	return func(s *settings) {
		if capacity > 0 {
			s.capacity = capacity
		}
	}
}

type batchFetch[V any] func(ctx context.Context, keys []string) (map[string]V, error)

type batchLoader struct {
	loader   *dataloader.Loader
	capacity int
}

func newLoader[V any](fetch batchFetch[V], opts []Option) batchLoader {
	cfg := settings{wait: 5 * time.Millisecond, capacity: 500}
	for _, opt := range opts {
		opt(&cfg)
	}

	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		ids := keys.Keys()

		found, err := fetch(ctx, ids)
		if err != nil {
			results := make([]*dataloader.Result, len(keys))
			for i := range results {
				results[i] = &dataloader.Result{Error: err}
			}
			return results
		}

		// Build results in the same order as keys
		results := make([]*dataloader.Result, len(keys))
		for i, id := range ids {
			if v, ok := found[id]; ok {
				results[i] = &dataloader.Result{Data: v}
			} else {
				results[i] = &dataloader.Result{Data: nil}
			}
		}
		return results
	}

	return batchLoader{
		loader: dataloader.NewBatchedLoader(batchFn,
			dataloader.WithWait(cfg.wait),
			dataloader.WithBatchCapacity(cfg.capacity),
		),
		capacity: cfg.capacity,
	}
}

func load[V any](ctx context.Context, l batchLoader, key string) (V, bool, error) {
	return resolve[V](l.loader.Load(ctx, dataloader.StringKey(key)), key)
}

// loadAll queues distinct keys in chunks of the batch capacity so each chunk
// fills a whole batch, with at most fanOut chunks waiting on results.
func loadAll[V any](ctx context.Context, l batchLoader, keys []string, fanOut int) (map[string]Outcome[V], error) {
	distinct := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		distinct = append(distinct, k)
	}

	var chunks [][]string
	for start := 0; start < len(distinct); start += l.capacity {
		chunks = append(chunks, distinct[start:min(start+l.capacity, len(distinct))])
	}

	outcomes := make([][]Outcome[V], len(chunks))
	err := ForEach(ctx, chunks, fanOut, func(ctx context.Context, i int, chunk []string) error {
		thunks := make([]dataloader.Thunk, len(chunk))
		for j, key := range chunk {
			thunks[j] = l.loader.Load(ctx, dataloader.StringKey(key))
		}
		results := make([]Outcome[V], len(chunk))
		for j, thunk := range thunks {
			v, found, err := resolve[V](thunk, chunk[j])
			results[j] = Outcome[V]{Value: v, Found: found, Err: err}
		}
		outcomes[i] = results
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := make(map[string]Outcome[V], len(distinct))
	for i, chunk := range chunks {
		for j, key := range chunk {
			result[key] = outcomes[i][j]
		}
	}
	return result, nil
}

func resolve[V any](thunk dataloader.Thunk, key string) (V, bool, error) {
	var zero V
	data, err := thunk()
	if err != nil {
		return zero, false, err
	}
	if data == nil {
		return zero, false, nil
	}
	v, ok := data.(V)
	if !ok {
		return zero, false, fmt.Errorf("unexpected loader value %T for key %s", data, key)
	}
	return v, true, nil
}

// FilingLoader resolves offering notices by accession number.
type FilingLoader struct {
	loader batchLoader
}

// NewFilingLoader batches lookups through FilingRepository.ListByAccessions.
func NewFilingLoader(repo repository.FilingRepository, opts ...Option) *FilingLoader {
	fetch := func(ctx context.Context, accessions []string) (map[string]domain.FilingRecord, error) {
		filings, err := repo.ListByAccessions(ctx, accessions)
		if err != nil {
			return nil, err
		}
		byAccession := make(map[string]domain.FilingRecord, len(filings))
		for _, f := range filings {
			byAccession[f.Accession] = f
		}
		return byAccession, nil
	}
	return &FilingLoader{loader: newLoader(fetch, opts)}
}

// Load returns the filing, or found=false when no row exists.
func (l *FilingLoader) Load(ctx context.Context, accession string) (domain.FilingRecord, bool, error) {
	return load[domain.FilingRecord](ctx, l.loader, accession)
}

// LoadAll resolves every key with at most fanOut batches in flight.
func (l *FilingLoader) LoadAll(ctx context.Context, keys []string, fanOut int) (map[string]Outcome[domain.FilingRecord], error) {
	return loadAll[domain.FilingRecord](ctx, l.loader, keys, fanOut)
}

// FundLoader resolves registration-side funds by fund id.
type FundLoader struct {
	loader batchLoader
}

// NewFundLoader batches lookups through FundRepository.ListByIDs.
func NewFundLoader(repo repository.FundRepository, opts ...Option) *FundLoader {
	fetch := func(ctx context.Context, ids []string) (map[string]domain.FundRecord, error) {
		funds, err := repo.ListByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		byID := make(map[string]domain.FundRecord, len(funds))
		for _, f := range funds {
			byID[f.ID] = f
		}
		return byID, nil
	}
	return &FundLoader{loader: newLoader(fetch, opts)}
}

// Load returns the fund, or found=false when no row exists.
func (l *FundLoader) Load(ctx context.Context, fundID string) (domain.FundRecord, bool, error) {
	return load[domain.FundRecord](ctx, l.loader, fundID)
}

// LoadAll resolves every key with at most fanOut batches in flight.
func (l *FundLoader) LoadAll(ctx context.Context, keys []string, fanOut int) (map[string]Outcome[domain.FundRecord], error) {
	return loadAll[domain.FundRecord](ctx, l.loader, keys, fanOut)
}

// AUMLoader resolves per-year AUM figures by adviser id.
type AUMLoader struct {
	loader batchLoader
}

// NewAUMLoader batches lookups through AdviserRepository.AUMByYear for the
// given years.
func NewAUMLoader(repo repository.AdviserRepository, years []int, opts ...Option) *AUMLoader {
	years = append([]int(nil), years...)
	fetch := func(ctx context.Context, ids []string) (map[string]domain.AUMByYear, error) {
		return repo.AUMByYear(ctx, ids, years)
	}
	return &AUMLoader{loader: newLoader(fetch, opts)}
}

// Load returns the adviser's AUM figures, or found=false when the adviser
// has no row.
func (l *AUMLoader) Load(ctx context.Context, adviserID string) (domain.AUMByYear, bool, error) {
	return load[domain.AUMByYear](ctx, l.loader, adviserID)
}

// LoadAll resolves every key with at most fanOut batches in flight.
func (l *AUMLoader) LoadAll(ctx context.Context, keys []string, fanOut int) (map[string]Outcome[domain.AUMByYear], error) {
	return loadAll[domain.AUMByYear](ctx, l.loader, keys, fanOut)
}
