package xref

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rpattn/formrecon/internal/domain"
	"github.com/rpattn/formrecon/internal/fetch"
	"github.com/rpattn/formrecon/internal/identity"
	"github.com/rpattn/formrecon/internal/repository"
)

// Limits bounds the scans behind an index.
type Limits struct {
	PageSize       int
	RecordCeiling  int
	MatchCeiling   int
	AdviserCeiling int
}

// Builder owns the repositories and scan settings used to build indices.
type Builder struct {
	filings  repository.FilingRepository
	links    repository.MatchLinkRepository
	advisers repository.AdviserRepository

	limits   Limits
	lookback int
	now      func() time.Time
	logger   *zap.Logger
}

// Option customises a Builder.
type Option func(*Builder)

// WithLimits sets page size and ceilings; zero fields keep their defaults.
func WithLimits(limits Limits) Option {
	return func(b *Builder) {
		if limits.PageSize > 0 {
			b.limits.PageSize = limits.PageSize
		}
		if limits.RecordCeiling > 0 {
			b.limits.RecordCeiling = limits.RecordCeiling
		}
		if limits.MatchCeiling > 0 {
			b.limits.MatchCeiling = limits.MatchCeiling
		}
		if limits.AdviserCeiling > 0 {
			b.limits.AdviserCeiling = limits.AdviserCeiling
		}
	}
}

// WithLookbackMonths sets the manager grouping horizon.
func WithLookbackMonths(months int) Option {
	return func(b *Builder) {
		if months > 0 {
			b.lookback = months
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		if now != nil {
			b.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBuilder wires a Builder.
func NewBuilder(
	filings repository.FilingRepository,
	links repository.MatchLinkRepository,
	advisers repository.AdviserRepository,
	opts ...Option,
) *Builder {
	b := &Builder{
		filings:  filings,
		links:    links,
		advisers: advisers,
		limits: Limits{
			PageSize:       fetch.DefaultPageSize,
			RecordCeiling:  100000,
			MatchCeiling:   200000,
			AdviserCeiling: 50000,
		},
		lookback: 6,
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build scans the selected views into a new Index. Any scan failure fails
// the build.
func (b *Builder) Build(ctx context.Context, views View) (*Index, error) {
	if views.Has(ViewManagers) {
		views |= ViewLinks
	}
	x := &Index{matched: map[string]struct{}{}}

	if views.Has(ViewLinks) {
		if err := b.loadLinks(ctx, x); err != nil {
			return nil, err
		}
	}
	if views.Has(ViewFilings) {
		if err := b.loadFilings(ctx, x); err != nil {
			return nil, err
		}
	}
	if views.Has(ViewManagers) {
		horizon := b.horizon()
		if err := b.loadRecent(ctx, x, horizon); err != nil {
			return nil, err
		}
		x.managers = groupManagers(x.recent, horizon)
		x.stats.Managers = len(x.managers)
	}
	if views.Has(ViewRegistered) {
		if err := b.loadRegistered(ctx, x); err != nil {
			return nil, err
		}
	}

	b.logger.Debug("cross-reference index built",
		zap.Int("filings", x.stats.Filings),
		zap.Int("recent_filings", x.stats.Recent),
		zap.Int("links", x.stats.Links),
		zap.Int("advisers", x.stats.Advisers),
		zap.Int("managers", x.stats.Managers),
		zap.Strings("truncated", x.stats.Truncated),
	)
	return x, nil
}

func (b *Builder) horizon() time.Time {
	now := b.now().UTC()
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, -b.lookback, 0)
}

func (b *Builder) scanOptions(name string, ceiling int) fetch.Options {
	return fetch.Options{Name: name, PageSize: b.limits.PageSize, Ceiling: ceiling, Logger: b.logger}
}

func (b *Builder) loadLinks(ctx context.Context, x *Index) error {
	res, err := fetch.Offset[domain.MatchLink](ctx, b.links.ListPage, b.scanOptions("match_links", b.limits.MatchCeiling))
	if err != nil {
		return fmt.Errorf("failed to load match links: %w", err)
	}
	if res.Truncated {
		x.stats.Truncated = append(x.stats.Truncated, "match_links")
	}

	x.links = res.Items
	sort.SliceStable(x.links, func(i, j int) bool { return x.links[i].ID < x.links[j].ID })

	byAdviser := map[string]*AdviserLinks{}
	for _, link := range x.links {
		x.matched[link.Accession] = struct{}{}
		if link.AdviserID == "" {
			continue
		}
		a, ok := byAdviser[link.AdviserID]
		if !ok {
			a = &AdviserLinks{ID: link.AdviserID}
			byAdviser[link.AdviserID] = a
		}
		if a.LegalName == "" {
			a.LegalName = link.AdviserLegalName
		}
		a.Links = append(a.Links, link)
		a.Earliest, a.Latest = widen(a.Earliest, a.Latest, link.FilingDate)
	}

	ids := make([]string, 0, len(byAdviser))
	for id := range byAdviser {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	x.advisers = make([]AdviserLinks, len(ids))
	for i, id := range ids {
		x.advisers[i] = *byAdviser[id]
	}

	x.stats.Links = len(x.links)
	x.stats.Advisers = len(x.advisers)
	return nil
}

func (b *Builder) loadFilings(ctx context.Context, x *Index) error {
	filings, err := b.scanFilings(ctx, x, "filings", time.Time{})
	if err != nil {
		return fmt.Errorf("failed to load filings: %w", err)
	}
	x.filings = filings
	x.stats.Filings = len(filings)
	return nil
}

// loadRecent scans only filings on or after the horizon so the record
// ceiling is spent on rows that can form manager groups.
func (b *Builder) loadRecent(ctx context.Context, x *Index, horizon time.Time) error {
	filings, err := b.scanFilings(ctx, x, "recent_filings", horizon)
	if err != nil {
		return fmt.Errorf("failed to load recent filings: %w", err)
	}
	x.recent = filings
	x.stats.Recent = len(filings)
	return nil
}

func (b *Builder) scanFilings(ctx context.Context, x *Index, name string, since time.Time) ([]domain.FilingRecord, error) {
	page := func(ctx context.Context, after string, limit int) ([]domain.FilingRecord, error) {
		return b.filings.ListPage(ctx, repository.FilingQuery{AfterAccession: after, Since: since, Limit: limit})
	}
	cursor := func(f domain.FilingRecord) string { return f.Accession }

	res, err := fetch.Cursor[domain.FilingRecord, string](ctx, page, cursor, b.scanOptions(name, b.limits.RecordCeiling))
	if err != nil {
		return nil, err
	}
	if res.Truncated {
		x.stats.Truncated = append(x.stats.Truncated, name)
	}
	return res.Items, nil
}

func (b *Builder) loadRegistered(ctx context.Context, x *Index) error {
	res, err := fetch.Offset[domain.AdviserRecord](ctx, b.advisers.ListNamesPage, b.scanOptions("adviser_names", b.limits.AdviserCeiling))
	if err != nil {
		return fmt.Errorf("failed to load adviser names: %w", err)
	}
	if res.Truncated {
		x.stats.Truncated = append(x.stats.Truncated, "adviser_names")
	}

	matcher := identity.NewMatcher()
	for _, a := range res.Items {
		matcher.Add(a.ID, a.LegalName)
		if a.Name != "" && a.Name != a.LegalName {
			matcher.Add(a.ID, a.Name)
		}
	}
	x.registered = matcher
	return nil
}

// groupManagers buckets filings dated on or after the horizon by the key of
// their controlling manager. Filings without a valid date cannot be aged and
// are left out.
func groupManagers(filings []domain.FilingRecord, horizon time.Time) []ManagerGroup {
	type member struct {
		filing    domain.FilingRecord
		candidate identity.Candidate
		all       []identity.Candidate
	}
	buckets := map[string][]member{}
	for _, f := range filings {
		if !f.FilingDate.Valid() || f.FilingDate.Time().Before(horizon) {
			continue
		}
		primary, all := identity.ControllingManager(f.EntityName, f.RelatedParties)
		key := identity.Key(primary.Name)
		if key == "" {
			continue
		}
		buckets[key] = append(buckets[key], member{filing: f, candidate: primary, all: all})
	}

	groups := make([]ManagerGroup, 0, len(buckets))
	for key, members := range buckets {
		sort.SliceStable(members, func(i, j int) bool {
			a, b := members[i].filing, members[j].filing
			if !a.FilingDate.Time().Equal(b.FilingDate.Time()) {
				return a.FilingDate.Before(b.FilingDate)
			}
			return a.Accession < b.Accession
		})

		g := ManagerGroup{
			Key:           key,
			Display:       members[0].candidate.Name,
			Source:        members[0].candidate.Source,
			TotalOffering: decimal.Zero,
		}
		seen := map[string]bool{}
		for _, m := range members {
			g.Filings = append(g.Filings, m.filing)
			g.Earliest, g.Latest = widen(g.Earliest, g.Latest, m.filing.FilingDate)
			if m.filing.OfferingAmount != nil {
				g.TotalOffering = g.TotalOffering.Add(*m.filing.OfferingAmount)
			}
			for _, c := range m.all {
				k := identity.Key(c.Name)
				if k == "" || seen[k] {
					continue
				}
				seen[k] = true
				g.Candidates = append(g.Candidates, c)
			}
		}
		groups = append(groups, g)
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].Key < groups[j].Key })
	return groups
}

// widen extends [earliest, latest] to cover d when d is valid.
func widen(earliest, latest, d domain.FilingDate) (domain.FilingDate, domain.FilingDate) {
	if !d.Valid() {
		return earliest, latest
	}
	if !earliest.Valid() || d.Before(earliest) {
		earliest = d
	}
	if !latest.Valid() || latest.Before(d) {
		latest = d
	}
	return earliest, latest
}
