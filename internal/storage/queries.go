package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type BankRow struct {
	ID              string
	BankName        string
	BankType        string
	EstablishedYear sql.NullInt64
	Headquarters    string
	Website         string
	TotalBranches   sql.NullInt64
	TotalAtms       sql.NullInt64
	CreatedAt       string
	UpdatedAt       string
}

type AccountTypeRow struct {
	BankID                string
	Position              int64
	AccountID             sql.NullInt64
	Type                  string
	MinimumBalance        float64
	AccountMaintenanceFee float64
	AtmFeeOwn             float64
	AtmFeeOther           float64
	NspbFee               float64
	BeftnFee              float64
	NeftFee               float64
	RtgsFee               float64
	DebitCardFee          float64
	CreditCardFee         float64
	OnlineBankingFee      float64
	SmsBankingFee         float64
	StatementFee          float64
	CheckbookFee          float64
	OtherCharges          float64
	InterestRate          sql.NullFloat64
}

const bankColumns = `id, bank_name, bank_type, established_year, headquarters, website,
    total_branches, total_atms, created_at, updated_at`

const accountColumns = `bank_id, position, account_id, type, minimum_balance, account_maintenance_fee,
    atm_fee_own, atm_fee_other, nspb_fee, beftn_fee, neft_fee, rtgs_fee, debit_card_fee,
    credit_card_fee, online_banking_fee, sms_banking_fee, statement_fee, checkbook_fee,
    other_charges, interest_rate`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBank(s rowScanner) (BankRow, error) {
	var i BankRow
	err := s.Scan(
		&i.ID,
		&i.BankName,
		&i.BankType,
		&i.EstablishedYear,
		&i.Headquarters,
		&i.Website,
		&i.TotalBranches,
		&i.TotalAtms,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func scanAccount(s rowScanner) (AccountTypeRow, error) {
	var i AccountTypeRow
	err := s.Scan(
		&i.BankID,
		&i.Position,
		&i.AccountID,
		&i.Type,
		&i.MinimumBalance,
		&i.AccountMaintenanceFee,
		&i.AtmFeeOwn,
		&i.AtmFeeOther,
		&i.NspbFee,
		&i.BeftnFee,
		&i.NeftFee,
		&i.RtgsFee,
		&i.DebitCardFee,
		&i.CreditCardFee,
		&i.OnlineBankingFee,
		&i.SmsBankingFee,
		&i.StatementFee,
		&i.CheckbookFee,
		&i.OtherCharges,
		&i.InterestRate,
	)
	return i, err
}

const listBanks = `SELECT ` + bankColumns + ` FROM banks ORDER BY bank_name, id`

func (q *Queries) ListBanks(ctx context.Context) ([]BankRow, error) {
	rows, err := q.db.QueryContext(ctx, listBanks)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []BankRow
	for rows.Next() {
		i, err := scanBank(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getBank = `SELECT ` + bankColumns + ` FROM banks WHERE id = ?`

func (q *Queries) GetBank(ctx context.Context, id string) (BankRow, error) {
	return scanBank(q.db.QueryRowContext(ctx, getBank, id))
}

const listAccountTypes = `SELECT ` + accountColumns + ` FROM account_types ORDER BY bank_id, position`

func (q *Queries) ListAccountTypes(ctx context.Context) ([]AccountTypeRow, error) {
	return q.queryAccounts(ctx, listAccountTypes)
}

const listAccountTypesByBank = `SELECT ` + accountColumns + ` FROM account_types WHERE bank_id = ? ORDER BY position`

func (q *Queries) ListAccountTypesByBank(ctx context.Context, bankID string) ([]AccountTypeRow, error) {
	return q.queryAccounts(ctx, listAccountTypesByBank, bankID)
}

func (q *Queries) queryAccounts(ctx context.Context, query string, args ...interface{}) ([]AccountTypeRow, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AccountTypeRow
	for rows.Next() {
		i, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const upsertBank = `INSERT INTO banks (` + bankColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    bank_name = excluded.bank_name,
    bank_type = excluded.bank_type,
    established_year = excluded.established_year,
    headquarters = excluded.headquarters,
    website = excluded.website,
    total_branches = excluded.total_branches,
    total_atms = excluded.total_atms,
    updated_at = excluded.updated_at`

// UpsertBank keeps the stored created_at of an existing row.
func (q *Queries) UpsertBank(ctx context.Context, arg BankRow) error {
	_, err := q.db.ExecContext(ctx, upsertBank,
		arg.ID,
		arg.BankName,
		arg.BankType,
		arg.EstablishedYear,
		arg.Headquarters,
		arg.Website,
		arg.TotalBranches,
		arg.TotalAtms,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return err
}

const insertAccountType = `INSERT INTO account_types (` + accountColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertAccountType(ctx context.Context, arg AccountTypeRow) error {
	_, err := q.db.ExecContext(ctx, insertAccountType,
		arg.BankID,
		arg.Position,
		arg.AccountID,
		arg.Type,
		arg.MinimumBalance,
		arg.AccountMaintenanceFee,
		arg.AtmFeeOwn,
		arg.AtmFeeOther,
		arg.NspbFee,
		arg.BeftnFee,
		arg.NeftFee,
		arg.RtgsFee,
		arg.DebitCardFee,
		arg.CreditCardFee,
		arg.OnlineBankingFee,
		arg.SmsBankingFee,
		arg.StatementFee,
		arg.CheckbookFee,
		arg.OtherCharges,
		arg.InterestRate,
	)
	return err
}

const deleteAccountTypes = `DELETE FROM account_types`

func (q *Queries) DeleteAccountTypes(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteAccountTypes)
	return err
}

const deleteBanksExcept = `DELETE FROM banks WHERE id NOT IN (SELECT value FROM json_each(?))`

// DeleteBanksExcept removes every bank whose id is not in the JSON array ids.
func (q *Queries) DeleteBanksExcept(ctx context.Context, ids string) error {
	_, err := q.db.ExecContext(ctx, deleteBanksExcept, ids)
	return err
}

const insertSyncRun = `INSERT INTO sync_runs (source, trigger, bank_count, finished_at) VALUES (?, ?, ?, ?)`

func (q *Queries) InsertSyncRun(ctx context.Context, source, trigger string, bankCount int64, finishedAt string) error {
	_, err := q.db.ExecContext(ctx, insertSyncRun, source, trigger, bankCount, finishedAt)
	return err
}

const lastSyncRun = `SELECT source, trigger, bank_count, finished_at FROM sync_runs ORDER BY id DESC LIMIT 1`

type SyncRunRow struct {
	Source     string
	Trigger    string
	BankCount  int64
	FinishedAt string
}

func (q *Queries) LastSyncRun(ctx context.Context) (SyncRunRow, error) {
	var i SyncRunRow
	err := q.db.QueryRowContext(ctx, lastSyncRun).Scan(&i.Source, &i.Trigger, &i.BankCount, &i.FinishedAt)
	return i, err
}
