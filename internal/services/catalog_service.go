package services

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"bankfees/internal/catalog"
	"bankfees/internal/core"
	"bankfees/internal/fees"
	applog "bankfees/internal/log"
	"bankfees/internal/metrics"
	"bankfees/internal/source"
)

// Calculation kinds for the calculations_total metric.
const (
	KindNormalize = "normalize"
	KindCustomize = "customize"
)

type (
	// Query selects and orders the accounts of a listing.
	Query struct {
		Filter    catalog.Filter
		SortKey   catalog.SortKey
		Direction catalog.Direction
		// Lang is the BCP 47 tag used to collate bank names.
		Lang string
	}

	// Listing is the filtered, sorted account set with stats over what is shown.
	Listing struct {
		Accounts []core.CalculatedAccount
		Stats    core.Stats
		// Total counts every account before filtering; Shown after.
		Total int
		Shown int
	}

	// Detail is one bank with every account priced by the normalizer.
	Detail struct {
		Bank     core.Bank
		Accounts []core.CalculatedAccount
	}

	// CustomResult pairs one account's normalized charges with its charges
	// under a caller's usage profile.
	CustomResult struct {
		BankID   string
		BankName string
		Account  core.AccountFees
		Default  core.Charges
		Custom   core.CustomCharges
	}

	// Comparison holds the selected banks in selection order.
	Comparison struct {
		Banks []Detail
		// Missing lists selected IDs that no longer exist upstream.
		Missing []string
	}

	// Invalidator drops cached bank data.
	Invalidator interface {
		Invalidate(ctx context.Context) error
	}

	// RefreshPublisher asks the sync worker to refresh the mirror.
	RefreshPublisher interface {
		PublishRefresh(ctx context.Context, reason string) error
	}
)

// CatalogService answers catalog questions over a bank source.
type CatalogService struct {
	source    source.Source
	policy    fees.Policy
	cache     Invalidator
	publisher RefreshPublisher
	logger    *applog.Logger
	structLog *applog.StructuredLogger
	metrics   *metrics.Metrics
}

// Option configures a CatalogService.
type Option func(*CatalogService)

// WithCache sets the cache dropped by Refresh.
func WithCache(c Invalidator) Option { return func(s *CatalogService) { s.cache = c } }

// WithPublisher sets where Refresh sends the sync request.
func WithPublisher(p RefreshPublisher) Option { return func(s *CatalogService) { s.publisher = p } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *CatalogService) { s.metrics = m } }

func WithLogger(l *applog.Logger) Option {
	return func(s *CatalogService) {
		if l != nil {
			s.logger = l.WithComponent(applog.ComponentCatalog)
		}
	}
}

// NewCatalogService creates a catalog service over src, pricing accounts with
// policy. Without WithLogger it logs to a default logger.
func NewCatalogService(src source.Source, policy fees.Policy, opts ...Option) *CatalogService {
	s := &CatalogService{
		source: src,
		policy: policy,
		logger: applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentCatalog),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.structLog = applog.NewStructuredLogger(s.logger)
	return s
}

// Policy returns the fee policy the service prices with.
func (s *CatalogService) Policy() fees.Policy { return s.policy }

// ListBanks returns the raw bank records.
func (s *CatalogService) ListBanks(ctx context.Context) ([]core.Bank, error) {
	banks, err := s.source.ListBanks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list banks: %w", err)
	}
	return banks, nil
}

// ListAccounts fetches every bank, prices each account, then filters, sorts
// and summarizes the visible ones.
func (s *CatalogService) ListAccounts(ctx context.Context, q Query) (Listing, error) {
	banks, err := s.source.ListBanks(ctx)
	if err != nil {
		return Listing{}, fmt.Errorf("list banks: %w", err)
	}
	all := catalog.Calculate(banks, s.policy)
	s.metrics.RecordCalculation(KindNormalize, len(all))

	key := q.SortKey
	if key == "" {
		key = catalog.SortByMonthlyTotal
	}
	dir := q.Direction
	if dir == "" {
		dir = catalog.Ascending
	}
	shown, err := catalog.Sort(q.Filter.Apply(all), key, dir, q.Lang)
	if err != nil {
		return Listing{}, err
	}
	s.logger.DebugContext(ctx, "Accounts listed",
		applog.FieldCount, len(shown),
		"total", len(all),
		applog.FieldSortKey, string(key))

	return Listing{
		Accounts: shown,
		Stats:    catalog.Summarize(shown),
		Total:    len(all),
		Shown:    len(shown),
	}, nil
}

// BankDetail returns one bank with its priced accounts in the bank's order.
func (s *CatalogService) BankDetail(ctx context.Context, id string) (Detail, error) {
	b, err := s.source.GetBank(ctx, id)
	if err != nil {
		return Detail{}, fmt.Errorf("get bank %s: %w", id, err)
	}
	return s.detail(b), nil
}

func (s *CatalogService) detail(b core.Bank) Detail {
	accounts := catalog.Calculate([]core.Bank{b}, s.policy)
	s.metrics.RecordCalculation(KindNormalize, len(accounts))
	return Detail{Bank: b, Accounts: accounts}
}

// Customize prices one account of a bank under the caller's usage profile.
// An empty account type selects the bank's first account.
func (s *CatalogService) Customize(ctx context.Context, bankID string, accountType core.AccountType, usage core.UsageProfile) (CustomResult, error) {
	b, err := s.source.GetBank(ctx, bankID)
	if err != nil {
		return CustomResult{}, fmt.Errorf("get bank %s: %w", bankID, err)
	}
	a, err := b.Account(accountType)
	if err != nil {
		return CustomResult{}, fmt.Errorf("bank %s account %q: %w", bankID, accountType, err)
	}

	custom := s.policy.Customize(a, usage)
	s.metrics.RecordCalculation(KindCustomize, 1)
	s.structLog.LogCustomCalculation(ctx, b.ID, string(a.Type), custom.CustomMonthlyTotal, custom.CustomYearlyTotal)

	return CustomResult{
		BankID:   b.ID,
		BankName: b.Name,
		Account:  a,
		Default:  s.policy.Normalize(a),
		Custom:   custom,
	}, nil
}

// Compare fetches the selected banks concurrently and returns them in
// selection order. Unknown IDs are reported in Missing; a fetch failure for
// any bank fails the whole comparison.
func (s *CatalogService) Compare(ctx context.Context, sel catalog.Selection) (Comparison, error) {
	ids := sel.IDs()
	if len(ids) == 0 {
		return Comparison{}, core.ErrEmptySelection
	}

	found := make([]*core.Bank, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			b, err := s.source.GetBank(gctx, id)
			if errors.Is(err, core.ErrBankNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("get bank %s: %w", id, err)
			}
			found[i] = &b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Comparison{}, err
	}

	var cmp Comparison
	for i, b := range found {
		if b == nil {
			cmp.Missing = append(cmp.Missing, ids[i])
			continue
		}
		cmp.Banks = append(cmp.Banks, s.detail(*b))
	}
	if len(cmp.Banks) == 0 {
		return Comparison{}, core.ErrBankNotFound
	}
	if len(cmp.Missing) > 0 {
		s.logger.WarnContext(ctx, "Compared banks not found", "missing", cmp.Missing)
	}
	return cmp, nil
}

// Breakdown explains how the default totals are computed.
func (s *CatalogService) Breakdown() fees.Breakdown {
	return s.policy.Breakdown()
}

// Refresh drops cached data and asks the worker to resync. The cache is
// cleared even when publishing fails; a missing publisher is not an error.
func (s *CatalogService) Refresh(ctx context.Context, reason string) error {
	var errs []error
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			errs = append(errs, fmt.Errorf("invalidate cache: %w", err))
		}
	}
	if s.publisher == nil {
		s.logger.WarnContext(ctx, "AMQP client not available, skipping refresh message")
	} else if err := s.publisher.PublishRefresh(ctx, reason); err != nil {
		errs = append(errs, fmt.Errorf("publish refresh: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		s.logger.ErrorContext(ctx, "Refresh incomplete", applog.FieldOperation, applog.OpRefresh, applog.FieldError, err)
		return err
	}
	s.logger.InfoContext(ctx, "Refresh requested", applog.FieldOperation, applog.OpRefresh, "reason", reason)
	return nil
}

// Ready reports whether the source can currently list banks.
func (s *CatalogService) Ready(ctx context.Context) (int, error) {
	banks, err := s.source.ListBanks(ctx)
	if err != nil {
		return 0, err
	}
	return len(banks), nil
}

// IsUpstreamFailure reports whether err came from the bank source rather
// than from the request.
func IsUpstreamFailure(err error) bool {
	return source.IsFetchFailure(err)
}
