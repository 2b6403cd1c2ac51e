// Package testsupport provides in-memory repositories and fixtures shared by
// package tests.
package testsupport

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rpattn/formrecon/internal/domain"
	"github.com/rpattn/formrecon/internal/repository"
)

// Store holds both datasets in memory and implements every repository.
type Store struct {
	mu sync.Mutex

	filings  []domain.FilingRecord
	links    []domain.MatchLink
	advisers []domain.AdviserRecord
	funds    []domain.FundRecord
	issues   map[domain.DiscrepancyType][]domain.ComplianceIssue

	// Failure injection.
	FilingPageErr  error
	LinkPageErr    error
	FundErrs       map[string]error
	DeleteErr      error
	InsertErr      error
	InsertBatches  []int
	FilingLookups  int
	FundIDLookups  int
	AUMLookups     int
	AdviserScanned int
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		issues:   map[domain.DiscrepancyType][]domain.ComplianceIssue{},
		FundErrs: map[string]error{},
	}
}

// AddFilings appends offering notices.
func (s *Store) AddFilings(filings ...domain.FilingRecord) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filings = append(s.filings, filings...)
	sort.SliceStable(s.filings, func(i, j int) bool { return s.filings[i].Accession < s.filings[j].Accession })
	return s
}

// AddLinks appends match links, assigning ids in insertion order when unset.
func (s *Store) AddLinks(links ...domain.MatchLink) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range links {
		if l.ID == 0 {
			l.ID = int64(len(s.links) + 1)
		}
		s.links = append(s.links, l)
	}
	return s
}

// AddAdvisers appends registered advisers.
func (s *Store) AddAdvisers(advisers ...domain.AdviserRecord) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advisers = append(s.advisers, advisers...)
	sort.SliceStable(s.advisers, func(i, j int) bool { return s.advisers[i].ID < s.advisers[j].ID })
	return s
}

// AddFunds appends registration-side funds.
func (s *Store) AddFunds(funds ...domain.FundRecord) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.funds = append(s.funds, funds...)
	return s
}

// Issues returns a copy of the stored issues of one type.
func (s *Store) Issues(t domain.DiscrepancyType) []domain.ComplianceIssue {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ComplianceIssue(nil), s.issues[t]...)
}

// SeedIssues stores issues directly, bypassing InsertBatch.
func (s *Store) SeedIssues(issues ...domain.ComplianceIssue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, issue := range issues {
		s.issues[issue.Type] = append(s.issues[issue.Type], issue)
	}
}

// Filings exposes the store as a FilingRepository.
func (s *Store) Filings() repository.FilingRepository { return filingRepo{s} }

// Links exposes the store as a MatchLinkRepository.
func (s *Store) Links() repository.MatchLinkRepository { return linkRepo{s} }

// Advisers exposes the store as an AdviserRepository.
func (s *Store) Advisers() repository.AdviserRepository { return adviserRepo{s} }

// Funds exposes the store as a FundRepository.
func (s *Store) Funds() repository.FundRepository { return fundRepo{s} }

// IssueRepo exposes the store as an IssueRepository.
func (s *Store) IssueRepo() repository.IssueRepository { return issueRepo{s} }

type filingRepo struct{ s *Store }

func (r filingRepo) ListPage(ctx context.Context, q repository.FilingQuery) ([]domain.FilingRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.FilingPageErr != nil {
		return nil, r.s.FilingPageErr
	}
	var page []domain.FilingRecord
	for _, f := range r.s.filings {
		if f.Accession <= q.AfterAccession || len(page) >= q.Limit {
			continue
		}
		// Undated rows pass the bound, as non-ISO dates do in SQL.
		if !q.Since.IsZero() && f.FilingDate.Valid() && f.FilingDate.Time().Before(q.Since) {
			continue
		}
		page = append(page, f)
	}
	return page, nil
}

func (r filingRepo) ListByAccessions(_ context.Context, accessions []string) ([]domain.FilingRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.FilingLookups++
	wanted := toSet(accessions)
	var out []domain.FilingRecord
	for _, f := range r.s.filings {
		if wanted[f.Accession] {
			out = append(out, f)
		}
	}
	return out, nil
}

type linkRepo struct{ s *Store }

func (r linkRepo) ListPage(ctx context.Context, offset, limit int) ([]domain.MatchLink, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.LinkPageErr != nil {
		return nil, r.s.LinkPageErr
	}
	return window(r.s.links, offset, limit), nil
}

type adviserRepo struct{ s *Store }

func (r adviserRepo) ListByExemptionFlag(_ context.Context, flag domain.ExemptionFlag) ([]domain.AdviserRecord, error) {
	if !flag.Valid() {
		return nil, fmt.Errorf("unknown exemption flag %q", flag)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.AdviserRecord
	for _, a := range r.s.advisers {
		if a.Exemption(flag).IsTrue() {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r adviserRepo) AUMByYear(_ context.Context, ids []string, years []int) (map[string]domain.AUMByYear, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.AUMLookups++
	wanted := toSet(ids)
	out := map[string]domain.AUMByYear{}
	for _, a := range r.s.advisers {
		if !wanted[a.ID] {
			continue
		}
		aum := domain.AUMByYear{}
		for _, y := range years {
			aum[y] = a.AUM[y]
		}
		out[a.ID] = aum
	}
	return out, nil
}

func (r adviserRepo) ListNamesPage(_ context.Context, offset, limit int) ([]domain.AdviserRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	page := window(r.s.advisers, offset, limit)
	r.s.AdviserScanned += len(page)
	out := make([]domain.AdviserRecord, len(page))
	for i, a := range page {
		out[i] = domain.AdviserRecord{ID: a.ID, Name: a.Name, LegalName: a.LegalName}
	}
	return out, nil
}

type fundRepo struct{ s *Store }

func (r fundRepo) ListByAdviser(_ context.Context, adviserID string) ([]domain.FundRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.FundErrs[adviserID]; err != nil {
		return nil, err
	}
	var out []domain.FundRecord
	for _, f := range r.s.funds {
		if f.AdviserID == adviserID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (r fundRepo) ListByIDs(_ context.Context, ids []string) ([]domain.FundRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.FundIDLookups++
	wanted := toSet(ids)
	var out []domain.FundRecord
	for _, f := range r.s.funds {
		if wanted[f.ID] {
			out = append(out, f)
		}
	}
	return out, nil
}

type issueRepo struct{ s *Store }

func (r issueRepo) DeleteByType(_ context.Context, t domain.DiscrepancyType) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.DeleteErr != nil {
		return 0, r.s.DeleteErr
	}
	n := int64(len(r.s.issues[t]))
	delete(r.s.issues, t)
	return n, nil
}

func (r issueRepo) InsertBatch(_ context.Context, t domain.DiscrepancyType, batch []domain.ComplianceIssue) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.InsertErr != nil {
		return 0, r.s.InsertErr
	}
	for _, issue := range batch {
		if issue.Type != t {
			return 0, fmt.Errorf("issue %s has type %s, expected %s", issue.ID, issue.Type, t)
		}
	}
	r.s.InsertBatches = append(r.s.InsertBatches, len(batch))
	r.s.issues[t] = append(r.s.issues[t], batch...)
	return len(batch), nil
}

func (r issueRepo) ListByType(_ context.Context, t domain.DiscrepancyType) ([]domain.ComplianceIssue, error) {
	return r.s.Issues(t), nil
}

func window[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	end := min(offset+limit, len(items))
	return append([]T(nil), items[offset:end]...)
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
