// Package postgres reads banks from the PostgreSQL schema of the bank API
// server: banks joined with account_types, aggregated per bank with json_agg.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bankfees/internal/core"
	applog "bankfees/internal/log"
	"bankfees/internal/source"
	"bankfees/internal/wire"
)

const backendName = "postgres"

const selectBanks = `
    SELECT
        b.id, b.bank_name, b.bank_type, b.established_year, b.headquarters,
        b.website, b.total_branches, b.total_atms, b.created_at, b.updated_at,
        json_agg(
            json_build_object(
                'id', at.id,
                'type', at.account_type,
                'minimumBalance', at.minimum_balance,
                'accountMaintenanceFee', at.account_maintenance_fee,
                'atmFeeOwn', at.atm_fee_own,
                'atmFeeOther', at.atm_fee_other,
                'onlineBankingFee', at.online_banking_fee,
                'smsBankingFee', at.sms_banking_fee,
                'debitCardFee', at.debit_card_fee,
                'creditCardFee', at.credit_card_fee,
                'nspbFee', at.nspb_fee,
                'rtgsFee', at.rtgs_fee,
                'beftnFee', at.beftn_fee,
                'checkbookFee', at.checkbook_fee,
                'statementFee', at.statement_fee,
                'otherCharges', at.other_charges,
                'interestRate', at.interest_rate
            ) ORDER BY at.id
        ) AS account_types
    FROM banks b
    LEFT JOIN account_types at ON b.id = at.bank_id
`

const groupBanks = `
    GROUP BY b.id, b.bank_name, b.bank_type, b.established_year,
             b.headquarters, b.website, b.total_branches, b.total_atms,
             b.created_at, b.updated_at
`

const (
	listBanksQuery = selectBanks + groupBanks + `ORDER BY b.bank_name`
	getBankQuery   = selectBanks + `WHERE b.id = $1` + groupBanks
)

// Repository is a read-only bank source over a pgx pool.
type Repository struct {
	db     *pgxpool.Pool
	logger *applog.Logger
}

var _ source.Source = (*Repository)(nil)

// Connect opens a pool for url and verifies it with a ping.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("POSTGRES_URL is required")
	}
	config, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

func NewRepository(db *pgxpool.Pool, logger *applog.Logger) *Repository {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &Repository{db: db, logger: logger.WithComponent(applog.ComponentPostgres)}
}

// ListBanks returns every bank ordered by name.
func (r *Repository) ListBanks(ctx context.Context) ([]core.Bank, error) {
	rows, err := r.db.Query(ctx, listBanksQuery)
	if err != nil {
		return nil, r.fail(applog.OpList, err)
	}
	defer rows.Close()

	banks := []core.Bank{}
	for rows.Next() {
		b, err := scanBank(rows)
		if err != nil {
			return nil, r.fail(applog.OpList, err)
		}
		banks = append(banks, b)
	}
	if err := rows.Err(); err != nil {
		return nil, r.fail(applog.OpList, err)
	}
	return banks, nil
}

func (r *Repository) GetBank(ctx context.Context, id string) (core.Bank, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return core.Bank{}, core.ErrBankNotFound
	}
	b, err := scanBank(r.db.QueryRow(ctx, getBankQuery, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Bank{}, core.ErrBankNotFound
	}
	if err != nil {
		return core.Bank{}, r.fail(applog.OpGet, err)
	}
	return b, nil
}

func (r *Repository) fail(op string, err error) error {
	r.logger.Error("Postgres query failed", applog.FieldOperation, op, applog.FieldError, err)
	return source.Fetch(backendName, op, err)
}

// bankRow mirrors the selected columns; nullable columns are pointers.
type bankRow struct {
	ID              string
	BankName        *string
	BankType        *string
	EstablishedYear *int32
	Headquarters    *string
	Website         *string
	TotalBranches   *int32
	TotalATMs       *int32
	CreatedAt       *time.Time
	UpdatedAt       *time.Time
	AccountTypes    []byte
}

func scanBank(row pgx.Row) (core.Bank, error) {
	var br bankRow
	err := row.Scan(
		&br.ID,
		&br.BankName,
		&br.BankType,
		&br.EstablishedYear,
		&br.Headquarters,
		&br.Website,
		&br.TotalBranches,
		&br.TotalATMs,
		&br.CreatedAt,
		&br.UpdatedAt,
		&br.AccountTypes,
	)
	if err != nil {
		return core.Bank{}, err
	}
	return br.toBank()
}

func (br bankRow) toBank() (core.Bank, error) {
	accounts, err := wire.DecodeAccounts(br.AccountTypes)
	if err != nil {
		return core.Bank{}, fmt.Errorf("bank %s account_types: %w", br.ID, err)
	}
	b := core.Bank{
		ID:              br.ID,
		Name:            deref(br.BankName),
		Type:            core.BankType(deref(br.BankType)),
		EstablishedYear: intPtr(br.EstablishedYear),
		Headquarters:    deref(br.Headquarters),
		Website:         deref(br.Website),
		TotalBranches:   intPtr(br.TotalBranches),
		TotalATMs:       intPtr(br.TotalATMs),
		AccountTypes:    accounts,
	}
	if br.CreatedAt != nil {
		b.CreatedAt = *br.CreatedAt
	}
	if br.UpdatedAt != nil {
		b.UpdatedAt = *br.UpdatedAt
	}
	return b, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func intPtr(v *int32) *int {
	if v == nil {
		return nil
	}
	n := int(*v)
	return &n
}
