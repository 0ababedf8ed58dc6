package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite" // SQLite driver
)

// Directory is the remote identity service the provider authenticates
// against.
type Directory interface {
	// Authenticate checks credentials and returns the matching identity.
	Authenticate(ctx context.Context, email, password string) (Identity, error)

	// Register creates an account and returns its identity.
	Register(ctx context.Context, email, password string) (Identity, error)

	// Lookup resolves a previously issued uid.
	Lookup(ctx context.Context, uid string) (Identity, error)
}

// Directory failures. The provider does not surface these distinctions.
var (
	ErrAccountNotFound = errors.New("account not found")
	ErrWrongPassword   = errors.New("wrong password")
	ErrEmailTaken      = errors.New("email already in use")
	ErrWeakPassword    = errors.New("password must be at least 6 characters")
	ErrInvalidEmail    = errors.New("invalid email")
)

const minPasswordLen = 6

const accountsSchema = `
CREATE TABLE IF NOT EXISTS accounts (
	uid           TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    DATETIME NOT NULL
);
`

// SQLiteDirectory stores accounts with bcrypt password hashes.
type SQLiteDirectory struct {
	db   *sql.DB
	cost int
}

// NewSQLiteDirectory opens (or creates) the accounts database at dbPath.
// The caller is responsible for calling Close.
func NewSQLiteDirectory(dbPath string) (*SQLiteDirectory, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1) // prevent SQLITE_BUSY
	if _, err := db.Exec(accountsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteDirectory{db: db, cost: bcrypt.DefaultCost}, nil
}

// Close releases the underlying database connection.
func (d *SQLiteDirectory) Close() error { return d.db.Close() }

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (d *SQLiteDirectory) Register(ctx context.Context, email, password string) (Identity, error) {
	email = normalizeEmail(email)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return Identity{}, ErrInvalidEmail
	}
	if len(password) < minPasswordLen {
		return Identity{}, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), d.cost)
	if err != nil {
		return Identity{}, fmt.Errorf("hash password: %w", err)
	}

	id := Identity{UID: uuid.NewString(), Email: email}
	_, err = d.db.ExecContext(ctx,
		`INSERT INTO accounts (uid, email, password_hash, created_at) VALUES (?,?,?,?)`,
		id.UID, id.Email, string(hash), time.Now().UTC(),
	)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return Identity{}, ErrEmailTaken
		}
		return Identity{}, fmt.Errorf("insert account: %w", err)
	}
	return id, nil
}

func (d *SQLiteDirectory) Authenticate(ctx context.Context, email, password string) (Identity, error) {
	email = normalizeEmail(email)
	var id Identity
	var hash string
	err := d.db.QueryRowContext(ctx,
		`SELECT uid, email, password_hash FROM accounts WHERE email = ?`, email,
	).Scan(&id.UID, &id.Email, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return Identity{}, ErrAccountNotFound
	}
	if err != nil {
		return Identity{}, fmt.Errorf("query account: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return Identity{}, ErrWrongPassword
	}
	return id, nil
}

func (d *SQLiteDirectory) Lookup(ctx context.Context, uid string) (Identity, error) {
	var id Identity
	err := d.db.QueryRowContext(ctx,
		`SELECT uid, email FROM accounts WHERE uid = ?`, uid,
	).Scan(&id.UID, &id.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return Identity{}, ErrAccountNotFound
	}
	if err != nil {
		return Identity{}, fmt.Errorf("query account: %w", err)
	}
	return id, nil
}
