package docstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sameep-scrape/model"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
create table if not exists %[1]s (
	id text primary key,
	listing_id text not null,
	display_name text not null,
	updated_at timestamp not null
);

create table if not exists %[2]s (
	id text primary key,
	account_id text not null,
	supply_number text not null,
	street text,
	house_number text,
	floor text,
	updated_at timestamp not null
);

create table if not exists %[3]s (
	record_key text primary key,
	id text not null,
	account_id text not null,
	supply_point_id text not null,
	invoice_number text not null,
	document_number text,
	document_type text,
	period text,
	issue_date timestamp,
	first_due_date timestamp,
	second_due_date timestamp,
	original_amount real,
	surcharge real,
	total_amount real,
	hash text not null,
	filename text,
	content blob,
	created_at timestamp not null
);

create index if not exists %[3]s_hash on %[3]s(hash);
`

// SQLite is a Store backed by a local sqlite database file
type SQLite struct {
	db    *sql.DB
	names Config
	store bool
}

// OpenSQLite opens (and creates if needed) the database at cfg.URL
func OpenSQLite(ctx context.Context, cfg Config) (*SQLite, error) {
	for _, name := range []string{cfg.Accounts, cfg.SupplyPoints, cfg.Statements} {
		if !validIdent(name) {
			return nil, fmt.Errorf("invalid table name %q", name)
		}
	}

	db, err := sql.Open("sqlite", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", cfg.URL, err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, fmt.Sprintf(sqliteSchema, cfg.Accounts, cfg.SupplyPoints, cfg.Statements)); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLite{db: db, names: cfg, store: cfg.StoreContent}, nil
}

func validIdent(s string) bool {
	if s == "" {
		return false
	}
	return strings.IndexFunc(s, func(r rune) bool {
		return !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	}) < 0
}

func (s *SQLite) UpsertAccount(ctx context.Context, acc *model.Account) error {
	r := newAccountRecord(acc)
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		insert into %s (id, listing_id, display_name, updated_at) values (?, ?, ?, ?)
		on conflict(id) do update set
			listing_id = excluded.listing_id,
			display_name = excluded.display_name,
			updated_at = excluded.updated_at`, s.names.Accounts),
		r.ID, r.ListingID, r.DisplayName, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert account %s: %w", r.ID, err)
	}
	return nil
}

func (s *SQLite) UpsertSupplyPoint(ctx context.Context, sp *model.SupplyPoint) error {
	r := newSupplyPointRecord(sp)
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		insert into %s (id, account_id, supply_number, street, house_number, floor, updated_at)
		values (?, ?, ?, ?, ?, ?, ?)
		on conflict(id) do update set
			account_id = excluded.account_id,
			supply_number = excluded.supply_number,
			street = excluded.street,
			house_number = excluded.house_number,
			floor = excluded.floor,
			updated_at = excluded.updated_at`, s.names.SupplyPoints),
		r.ID, r.AccountID, r.SupplyNumber, r.Street, r.HouseNumber, r.Floor, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert supply point %s: %w", r.ID, err)
	}
	return nil
}

func (s *SQLite) HasStatementHash(ctx context.Context, hash string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`select count(*) from %s where hash = ?`, s.names.Statements), hash).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to look up hash: %w", err)
	}
	return n > 0, nil
}

func (s *SQLite) InsertStatement(ctx context.Context, st *model.Statement) (bool, error) {
	r := newStatementRecord(st, s.store)
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		insert or ignore into %s (
			record_key, id, account_id, supply_point_id, invoice_number, document_number,
			document_type, period, issue_date, first_due_date, second_due_date,
			original_amount, surcharge, total_amount, hash, filename, content, created_at
		) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.names.Statements),
		r.Key, r.ID, r.AccountID, r.SupplyPointID, r.InvoiceNumber, r.DocumentNumber,
		r.DocumentType, r.Period, r.IssueDate, r.FirstDueDate, r.SecondDueDate,
		r.OriginalAmount, r.Surcharge, r.TotalAmount, r.Hash, r.Filename, r.Content, r.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to insert statement %s: %w", r.InvoiceNumber, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Count returns the number of rows in one of the store's tables
func (s *SQLite) Count(ctx context.Context, table string) (int, error) {
	if !validIdent(table) {
		return 0, fmt.Errorf("invalid table name %q", table)
	}
	var n int
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`select count(*) from %s`, table)).Scan(&n)
	return n, err
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
