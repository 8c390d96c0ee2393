package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bankfees/internal/core"
	"bankfees/internal/source"

	_ "modernc.org/sqlite"
)

const backendName = "sqlite"

// SQLiteRepository is the local bank mirror written by the sync worker and
// read by the API when DATA_BACKEND=sqlite.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

var (
	_ source.Source     = (*SQLiteRepository)(nil)
	_ source.BankWriter = (*SQLiteRepository)(nil)
)

// SyncRun describes the last mirror refresh.
type SyncRun struct {
	Source     string
	Trigger    string
	BankCount  int
	FinishedAt time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; modernc serializes anyway and this avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ListBanks implements source.BankLister. Banks are ordered by name.
func (r *SQLiteRepository) ListBanks(ctx context.Context) ([]core.Bank, error) {
	rows, err := r.queries.ListBanks(ctx)
	if err != nil {
		return nil, source.Fetch(backendName, "list", fmt.Errorf("list banks: %w", err))
	}
	accounts, err := r.queries.ListAccountTypes(ctx)
	if err != nil {
		return nil, source.Fetch(backendName, "list", fmt.Errorf("list account types: %w", err))
	}

	byBank := make(map[string][]core.AccountFees, len(rows))
	for _, a := range accounts {
		byBank[a.BankID] = append(byBank[a.BankID], toAccount(a))
	}
	banks := make([]core.Bank, 0, len(rows))
	for _, row := range rows {
		b := toBank(row)
		if acc, ok := byBank[b.ID]; ok {
			b.AccountTypes = acc
		}
		banks = append(banks, b)
	}
	return banks, nil
}

// GetBank implements source.BankGetter.
func (r *SQLiteRepository) GetBank(ctx context.Context, id string) (core.Bank, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return core.Bank{}, core.ErrBankNotFound
	}
	row, err := r.queries.GetBank(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Bank{}, core.ErrBankNotFound
	}
	if err != nil {
		return core.Bank{}, source.Fetch(backendName, "get", fmt.Errorf("get bank %s: %w", id, err))
	}
	accounts, err := r.queries.ListAccountTypesByBank(ctx, id)
	if err != nil {
		return core.Bank{}, source.Fetch(backendName, "get", fmt.Errorf("list account types for %s: %w", id, err))
	}
	b := toBank(row)
	for _, a := range accounts {
		b.AccountTypes = append(b.AccountTypes, toAccount(a))
	}
	return b, nil
}

// ReplaceBanks makes the stored set equal to banks in one transaction: banks
// are upserted, banks absent from the input are removed and every account
// list is rewritten. Any invalid bank aborts the whole replacement.
func (r *SQLiteRepository) ReplaceBanks(ctx context.Context, banks []core.Bank) error {
	ids := make([]string, 0, len(banks))
	seen := make(map[string]struct{}, len(banks))
	for _, b := range banks {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("bank %q: %w", b.ID, err)
		}
		if _, dup := seen[b.ID]; dup {
			return fmt.Errorf("bank %q: duplicate id", b.ID)
		}
		seen[b.ID] = struct{}{}
		ids = append(ids, b.ID)
	}
	idsJSON, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode bank ids: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()
	q := r.queries.WithTx(tx)

	now := r.now().UTC()
	if err := q.DeleteAccountTypes(ctx); err != nil {
		return fmt.Errorf("clear account types: %w", err)
	}
	if err := q.DeleteBanksExcept(ctx, string(idsJSON)); err != nil {
		return fmt.Errorf("delete stale banks: %w", err)
	}
	for _, b := range banks {
		if err := q.UpsertBank(ctx, fromBank(b, now)); err != nil {
			return fmt.Errorf("upsert bank %s: %w", b.ID, err)
		}
		for i, a := range b.AccountTypes {
			if err := q.InsertAccountType(ctx, fromAccount(b.ID, i, a)); err != nil {
				return fmt.Errorf("insert account %s/%s: %w", b.ID, a.Type, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Bank mirror replaced", "banks", len(banks))
	return nil
}

// RecordSync stores the outcome of a successful mirror refresh.
func (r *SQLiteRepository) RecordSync(ctx context.Context, sourceName, trigger string, count int) error {
	err := r.queries.InsertSyncRun(ctx, sourceName, trigger, int64(count), r.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record sync run: %w", err)
	}
	return nil
}

// LastSync returns the most recent sync run. ok is false when the mirror has
// never been synced.
func (r *SQLiteRepository) LastSync(ctx context.Context) (run SyncRun, ok bool, err error) {
	row, err := r.queries.LastSyncRun(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return SyncRun{}, false, nil
	}
	if err != nil {
		return SyncRun{}, false, fmt.Errorf("last sync run: %w", err)
	}
	return SyncRun{
		Source:     row.Source,
		Trigger:    row.Trigger,
		BankCount:  int(row.BankCount),
		FinishedAt: parseTime(row.FinishedAt),
	}, true, nil
}

func toBank(row BankRow) core.Bank {
	return core.Bank{
		ID:              row.ID,
		Name:            row.BankName,
		Type:            core.BankType(row.BankType),
		EstablishedYear: optInt(row.EstablishedYear),
		Headquarters:    row.Headquarters,
		Website:         row.Website,
		TotalBranches:   optInt(row.TotalBranches),
		TotalATMs:       optInt(row.TotalAtms),
		AccountTypes:    []core.AccountFees{},
		CreatedAt:       parseTime(row.CreatedAt),
		UpdatedAt:       parseTime(row.UpdatedAt),
	}
}

func fromBank(b core.Bank, now time.Time) BankRow {
	created := b.CreatedAt
	if created.IsZero() {
		created = now
	}
	return BankRow{
		ID:              b.ID,
		BankName:        b.Name,
		BankType:        string(b.Type),
		EstablishedYear: nullInt(b.EstablishedYear),
		Headquarters:    b.Headquarters,
		Website:         b.Website,
		TotalBranches:   nullInt(b.TotalBranches),
		TotalAtms:       nullInt(b.TotalATMs),
		CreatedAt:       created.UTC().Format(time.RFC3339Nano),
		UpdatedAt:       now.Format(time.RFC3339Nano),
	}
}

func toAccount(row AccountTypeRow) core.AccountFees {
	a := core.AccountFees{
		Type:                  core.AccountType(row.Type),
		MinimumBalance:        core.Amount(row.MinimumBalance),
		AccountMaintenanceFee: core.Amount(row.AccountMaintenanceFee),
		ATMFeeOwn:             core.Amount(row.AtmFeeOwn),
		ATMFeeOther:           core.Amount(row.AtmFeeOther),
		NSPBFee:               core.Amount(row.NspbFee),
		BEFTNFee:              core.Amount(row.BeftnFee),
		NEFTFee:               core.Amount(row.NeftFee),
		RTGSFee:               core.Amount(row.RtgsFee),
		DebitCardFee:          core.Amount(row.DebitCardFee),
		CreditCardFee:         core.Amount(row.CreditCardFee),
		OnlineBankingFee:      core.Amount(row.OnlineBankingFee),
		SMSBankingFee:         core.Amount(row.SmsBankingFee),
		StatementFee:          core.Amount(row.StatementFee),
		CheckbookFee:          core.Amount(row.CheckbookFee),
		OtherCharges:          core.Amount(row.OtherCharges),
	}
	if row.AccountID.Valid {
		id := row.AccountID.Int64
		a.ID = &id
	}
	if row.InterestRate.Valid {
		f := row.InterestRate.Float64
		a.InterestRate = &f
	}
	return a
}

// fromAccount stores amounts through Value so NaN never reaches the database.
func fromAccount(bankID string, position int, a core.AccountFees) AccountTypeRow {
	row := AccountTypeRow{
		BankID:                bankID,
		Position:              int64(position),
		Type:                  string(a.Type),
		MinimumBalance:        a.MinimumBalance.Value(),
		AccountMaintenanceFee: a.AccountMaintenanceFee.Value(),
		AtmFeeOwn:             a.ATMFeeOwn.Value(),
		AtmFeeOther:           a.ATMFeeOther.Value(),
		NspbFee:               a.NSPBFee.Value(),
		BeftnFee:              a.BEFTNFee.Value(),
		NeftFee:               a.NEFTFee.Value(),
		RtgsFee:               a.RTGSFee.Value(),
		DebitCardFee:          a.DebitCardFee.Value(),
		CreditCardFee:         a.CreditCardFee.Value(),
		OnlineBankingFee:      a.OnlineBankingFee.Value(),
		SmsBankingFee:         a.SMSBankingFee.Value(),
		StatementFee:          a.StatementFee.Value(),
		CheckbookFee:          a.CheckbookFee.Value(),
		OtherCharges:          a.OtherCharges.Value(),
	}
	if a.ID != nil {
		row.AccountID = sql.NullInt64{Int64: *a.ID, Valid: true}
	}
	if a.InterestRate != nil {
		row.InterestRate = sql.NullFloat64{Float64: core.Amount(*a.InterestRate).Value(), Valid: true}
	}
	return row
}

func optInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
