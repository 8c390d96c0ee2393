// Package fees turns itemized account fee schedules into comparable monthly
// and yearly totals.
//
// Two calculations live here. Normalize prices an account under a fixed
// "typical customer" usage so every account in the catalog can be ranked on
// the same basis. Customize prices an account under a user's own usage
// profile. Both read fees through core.Amount.Value, so absent or non-finite
// fields count as zero, and both round half up.
package fees

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"bankfees/internal/core"
)

// Policy holds the numbers the calculations depend on.
type Policy struct {
	// Usage is the transaction volume Normalize assumes.
	Usage core.UsageAssumptions `yaml:"usage"`
	// DefaultProfile seeds a custom calculation when the caller supplies none.
	DefaultProfile core.UsageProfile `yaml:"default_profile"`
	// MinimumBalanceAsCost adds the account's minimum balance to the custom
	// monthly total as if it were a fee.
	MinimumBalanceAsCost bool `yaml:"minimum_balance_as_cost"`
}

// DefaultPolicy returns 4 other-bank ATM withdrawals and 2+2 interbank
// transfers per month, the default usage profile, and minimum balance counted
// as a cost.
func DefaultPolicy() Policy {
	return Policy{
		Usage:                core.DefaultUsageAssumptions(),
		DefaultProfile:       core.DefaultUsageProfile(),
		MinimumBalanceAsCost: true,
	}
}

// LoadPolicy reads a YAML policy file layered over DefaultPolicy. An empty path
// or a missing file yields the defaults.
func LoadPolicy(path string) (Policy, error) {
	p := DefaultPolicy()
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return p, nil
		}
		return Policy{}, fmt.Errorf("read fee policy: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("parse fee policy %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return Policy{}, fmt.Errorf("fee policy %s: %w", path, err)
	}
	return p, nil
}

// Validate rejects negative usage counts.
func (p Policy) Validate() error {
	var errs []error
	check := func(name string, n int) {
		if n < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative (got %d)", name, n))
		}
	}
	check("usage.monthly_atm_other_bank", p.Usage.MonthlyATMOtherBank)
	check("usage.monthly_nspb_transfers", p.Usage.MonthlyNSPBTransfers)
	check("usage.monthly_beftn_transfers", p.Usage.MonthlyBEFTNTransfers)
	check("default_profile.monthly_atm_other_bank", p.DefaultProfile.MonthlyATMOtherBank)
	check("default_profile.monthly_nspb_transfers", p.DefaultProfile.MonthlyNSPBTransfers)
	check("default_profile.monthly_beftn_transfers", p.DefaultProfile.MonthlyBEFTNTransfers)
	check("default_profile.monthly_statements", p.DefaultProfile.MonthlyStatements)
	check("default_profile.monthly_checkbooks", p.DefaultProfile.MonthlyCheckbooks)
	return errors.Join(errs...)
}
