package receipt

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const (
	sqliteDateLayout = "2006-01-02"
	sqliteTimeLayout = time.RFC3339Nano
)

// SQLiteDB implements the DB interface on a SQLite file
type SQLiteDB struct {
	db *sql.DB
}

// NewSQLiteDB opens the database at path and applies pending migrations
func NewSQLiteDB(path string) (*SQLiteDB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if err := RunMigrations(path); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteDB{db: db}, nil
}

// SaveReceipt inserts or replaces a receipt
func (s *SQLiteDB) SaveReceipt(receipt *Receipt) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO receipts
			(id, vendor, transaction_date, amount, category, file_name, storage_path, content_type, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		receipt.ID,
		receipt.Vendor,
		receipt.TransactionDate.Format(sqliteDateLayout),
		receipt.Amount,
		receipt.Category,
		receipt.FileName,
		receipt.StoragePath,
		receipt.ContentType,
		receipt.UploadedAt.UTC().Format(sqliteTimeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting receipt: %w", err)
	}
	return nil
}

const selectReceipt = `
	SELECT id, vendor, transaction_date, amount, category, file_name, storage_path, content_type, uploaded_at
	FROM receipts`

// GetReceipt retrieves a receipt by ID
func (s *SQLiteDB) GetReceipt(id string) (*Receipt, error) {
	receipt, err := scanReceipt(s.db.QueryRow(selectReceipt+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying receipt: %w", err)
	}
	return receipt, nil
}

// ListReceipts returns all receipts in ID order
func (s *SQLiteDB) ListReceipts() ([]*Receipt, error) {
	rows, err := s.db.Query(selectReceipt + ` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying receipts: %w", err)
	}
	defer rows.Close()

	receipts := make([]*Receipt, 0)
	for rows.Next() {
		receipt, err := scanReceipt(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning receipt: %w", err)
		}
		receipts = append(receipts, receipt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating receipts: %w", err)
	}
	return receipts, nil
}

// DeleteReceipt removes a receipt from the database
func (s *SQLiteDB) DeleteReceipt(id string) error {
	res, err := s.db.Exec(`DELETE FROM receipts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting receipt: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting receipt: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReceipt(row rowScanner) (*Receipt, error) {
	var (
		r          Receipt
		date       string
		uploadedAt string
		category   sql.NullString
	)
	err := row.Scan(&r.ID, &r.Vendor, &date, &r.Amount, &category,
		&r.FileName, &r.StoragePath, &r.ContentType, &uploadedAt)
	if err != nil {
		return nil, err
	}

	if r.TransactionDate, err = time.Parse(sqliteDateLayout, date); err != nil {
		return nil, fmt.Errorf("parsing transaction_date %q: %w", date, err)
	}
	if r.UploadedAt, err = time.Parse(sqliteTimeLayout, uploadedAt); err != nil {
		return nil, fmt.Errorf("parsing uploaded_at %q: %w", uploadedAt, err)
	}
	if category.Valid {
		c := category.String
		r.Category = &c
	}
	return &r, nil
}
