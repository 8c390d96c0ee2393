// Package source defines where bank records come from.
package source

import (
	"context"
	"errors"
	"fmt"

	"bankfees/internal/core"
)

// Ports for outbound adapters.
type (
	BankLister interface {
		// ListBanks returns every bank with its account types. An empty
		// upstream yields an empty slice and a nil error.
		ListBanks(ctx context.Context) ([]core.Bank, error)
	}

	BankGetter interface {
		// GetBank returns core.ErrBankNotFound when id is unknown.
		GetBank(ctx context.Context, id string) (core.Bank, error)
	}

	Source interface {
		BankLister
		BankGetter
	}

	// BankWriter replaces the stored bank set, used by the sync worker to
	// mirror an upstream.
	BankWriter interface {
		ReplaceBanks(ctx context.Context, banks []core.Bank) error
	}
)

// FetchError reports that a backend could not be reached or returned data it
// could not read. It is distinct from core.ErrBankNotFound and from an empty
// result.
type FetchError struct {
	Backend string
	Op      string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Backend, e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetch wraps err as a FetchError. A nil err stays nil, and
// core.ErrBankNotFound passes through unwrapped.
func Fetch(backend, op string, err error) error {
	if err == nil || errors.Is(err, core.ErrBankNotFound) {
		return err
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return err
	}
	return &FetchError{Backend: backend, Op: op, Err: err}
}

// IsFetchFailure reports whether err is, or wraps, a FetchError.
func IsFetchFailure(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}
