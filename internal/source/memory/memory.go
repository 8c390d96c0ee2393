// Package memory is an in-process bank source, seeded from a JSON file and
// used for development, tests and as the fallback backend.
package memory

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"bankfees/internal/core"
	"bankfees/internal/wire"
)

// SeedFile is the file NewFromFiles reads under its base directory.
const SeedFile = "seed_banks.json"

type Store struct {
	mu    sync.RWMutex
	banks []core.Bank
}

func New(banks []core.Bank) *Store {
	return &Store{banks: dedupe(banks)}
}

// NewFromFiles loads base/seed_banks.json in any envelope wire accepts. A
// missing or unreadable seed falls back to a small built-in catalog.
func NewFromFiles(base string) *Store {
	data, err := os.ReadFile(filepath.Join(base, SeedFile))
	if err == nil {
		if banks, err := wire.DecodeBanks(data); err == nil && len(banks) > 0 {
			return New(banks)
		}
	}
	return New(defaultBanks())
}

// ListBanks returns a copy of the stored banks in insertion order.
func (s *Store) ListBanks(_ context.Context) ([]core.Bank, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Bank, len(s.banks))
	for i, b := range s.banks {
		out[i] = clone(b)
	}
	return out, nil
}

func (s *Store) GetBank(_ context.Context, id string) (core.Bank, error) {
	id = strings.TrimSpace(id)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.banks {
		if b.ID == id {
			return clone(b), nil
		}
	}
	return core.Bank{}, core.ErrBankNotFound
}

// ReplaceBanks swaps the stored set. Invalid banks are rejected as a whole.
func (s *Store) ReplaceBanks(_ context.Context, banks []core.Bank) error {
	for _, b := range banks {
		if err := b.Validate(); err != nil {
			return err
		}
	}
	next := dedupe(banks)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.banks = next
	return nil
}

func clone(b core.Bank) core.Bank {
	b.AccountTypes = slices.Clone(b.AccountTypes)
	return b
}

// dedupe keeps the first bank seen for each ID and drops banks without one.
func dedupe(in []core.Bank) []core.Bank {
	seen := map[string]struct{}{}
	out := make([]core.Bank, 0, len(in))
	for _, b := range in {
		b.ID = strings.TrimSpace(b.ID)
		if b.ID == "" {
			continue
		}
		if _, ok := seen[b.ID]; ok {
			continue
		}
		seen[b.ID] = struct{}{}
		out = append(out, clone(b))
	}
	return out
}

func defaultBanks() []core.Bank {
	return []core.Bank{
		{
			ID:   "sonali",
			Name: "Sonali Bank",
			Type: core.StateOwnedCommercial,
			AccountTypes: []core.AccountFees{
				{Type: core.Savings, MinimumBalance: 1000, AccountMaintenanceFee: 300, ATMFeeOther: 15, NSPBFee: 10, BEFTNFee: 10, DebitCardFee: 300, SMSBankingFee: 200},
				{Type: core.Current, MinimumBalance: 5000, AccountMaintenanceFee: 1000, ATMFeeOther: 15, NSPBFee: 10, BEFTNFee: 10, CheckbookFee: 250},
			},
		},
		{
			ID:   "brac",
			Name: "BRAC Bank",
			Type: core.PrivateCommercial,
			AccountTypes: []core.AccountFees{
				{Type: core.Savings, MinimumBalance: 5000, AccountMaintenanceFee: 500, ATMFeeOther: 20, NSPBFee: 15, BEFTNFee: 10, DebitCardFee: 500, OnlineBankingFee: 0, SMSBankingFee: 300},
				{Type: core.Student, MinimumBalance: 100, AccountMaintenanceFee: 0, ATMFeeOther: 20, NSPBFee: 15, BEFTNFee: 10},
			},
		},
		{
			ID:   "ibbl",
			Name: "Islami Bank Bangladesh",
			Type: core.IslamicBank,
			AccountTypes: []core.AccountFees{
				{Type: core.MudarabaSavings, MinimumBalance: 1000, AccountMaintenanceFee: 400, ATMFeeOther: 15, NSPBFee: 10, BEFTNFee: 10, DebitCardFee: 400},
				{Type: core.AlWadiahCurrent, MinimumBalance: 10000, AccountMaintenanceFee: 1200, ATMFeeOther: 15, NSPBFee: 10, BEFTNFee: 10, CheckbookFee: 300, StatementFee: 100},
			},
		},
	}
}
