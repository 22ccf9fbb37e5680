package store

import (
	"database/sql"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/lineage/internal/model"
)

// BcryptCost is the work factor for new password hashes.
var BcryptCost = bcrypt.DefaultCost

type AccountStore struct {
	db *sql.DB
}

func NewAccountStore(db *sql.DB) *AccountStore {
	return &AccountStore{db: db}
}

func scanAccount(scanner interface{ Scan(...any) error }) (*model.Account, error) {
	var a model.Account
	var familyID, memberID sql.NullInt64
	var blockedAt, lastLogin sql.NullTime

	err := scanner.Scan(
		&a.ID, &a.Username, &a.PasswordHash, &familyID, &memberID, &a.UserType,
		&a.IsActive, &a.IsFirstLogin, &a.FailedAttempts, &a.IsBlocked, &blockedAt, &lastLogin,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if familyID.Valid {
		a.FamilyID = &familyID.Int64
	}
	if memberID.Valid {
		a.MemberID = &memberID.Int64
	}
	if blockedAt.Valid {
		a.BlockedAt = &blockedAt.Time
	}
	if lastLogin.Valid {
		a.LastLogin = &lastLogin.Time
	}
	return &a, nil
}

const accountCols = `id, username, password_hash, family_id, member_id, user_type, is_active, is_first_login, failed_attempts, is_blocked, blocked_at, last_login, created_at, updated_at`

// NewAccount holds the fields needed to create an account.
type NewAccount struct {
	Username string
	Password string
	UserType string
	FamilyID *int64
	MemberID *int64
}

func (s *AccountStore) Create(na NewAccount) (*model.Account, error) {
	if na.UserType == "" {
		na.UserType = model.UserTypeMember
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(na.Password), BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	result, err := s.db.Exec(
		`INSERT INTO accounts (username, password_hash, family_id, member_id, user_type) VALUES (?, ?, ?, ?, ?)`,
		na.Username, string(hash), nullableID(na.FamilyID), nullableID(na.MemberID), na.UserType,
	)
	if err != nil {
		return nil, fmt.Errorf("insert account: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *AccountStore) GetByID(id int64) (*model.Account, error) {
	row := s.db.QueryRow(`SELECT `+accountCols+` FROM accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

func (s *AccountStore) GetByUsername(username string) (*model.Account, error) {
	row := s.db.QueryRow(`SELECT `+accountCols+` FROM accounts WHERE username = ?`, username)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account by username: %w", err)
	}
	return a, nil
}

func (s *AccountStore) ListByFamily(familyID int64) ([]model.Account, error) {
	rows, err := s.db.Query(`SELECT `+accountCols+` FROM accounts WHERE family_id = ? ORDER BY username`, familyID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// VerifyPassword reports whether password matches the account's hash.
func (s *AccountStore) VerifyPassword(a *model.Account, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) == nil
}

// RecordFailedAttempt bumps the failure counter and blocks the account once
// it reaches max. It reports whether the account is now blocked.
func (s *AccountStore) RecordFailedAttempt(id int64, max int) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var attempts int
	err = tx.QueryRow(
		`UPDATE accounts SET failed_attempts = failed_attempts + 1, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? RETURNING failed_attempts`, id,
	).Scan(&attempts)
	if err != nil {
		return false, fmt.Errorf("increment failed attempts: %w", err)
	}

	blocked := max > 0 && attempts >= max
	if blocked {
		if _, err := tx.Exec(
			`UPDATE accounts SET is_blocked = 1, blocked_at = ? WHERE id = ?`,
			time.Now().UTC(), id,
		); err != nil {
			return false, fmt.Errorf("block account: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return blocked, nil
}

// RecordSuccessfulLogin clears the failure counter and stamps last_login.
func (s *AccountStore) RecordSuccessfulLogin(id int64) error {
	_, err := s.db.Exec(
		`UPDATE accounts SET failed_attempts = 0, last_login = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("record login: %w", err)
	}
	return nil
}

func (s *AccountStore) Unblock(id int64) error {
	_, err := s.db.Exec(
		`UPDATE accounts SET is_blocked = 0, blocked_at = NULL, failed_attempts = 0, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("unblock account: %w", err)
	}
	return nil
}

// UpdatePassword sets a new password and clears the first-login flag.
func (s *AccountStore) UpdatePassword(id int64, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	_, err = s.db.Exec(
		`UPDATE accounts SET password_hash = ?, is_first_login = 0, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		string(hash), id,
	)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}
