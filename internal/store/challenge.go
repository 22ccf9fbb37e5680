package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/lineage/internal/family"
	"github.com/dukerupert/lineage/internal/model"
)

// ChallengeStore keeps issued identity challenges server-side so that an
// answer is checked against what was actually handed out.
type ChallengeStore struct {
	db *sql.DB
}

func NewChallengeStore(db *sql.DB) *ChallengeStore {
	return &ChallengeStore{db: db}
}

func scanChallenge(scanner interface{ Scan(...any) error }) (*model.IssuedChallenge, error) {
	var c model.IssuedChallenge
	var options, correct string
	err := scanner.Scan(&c.Token, &c.AccountID, &c.MemberID, &options, &correct, &c.ExpiresAt, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(options), &c.Options); err != nil {
		return nil, fmt.Errorf("decode options: %w", err)
	}
	if err := json.Unmarshal([]byte(correct), &c.CorrectIDs); err != nil {
		return nil, fmt.Errorf("decode correct ids: %w", err)
	}
	return &c, nil
}

const challengeCols = `token, account_id, member_id, options, correct_ids, expires_at, created_at`

// Create stores a freshly built challenge under a new random token. Earlier
// open challenges for the account are discarded.
func (s *ChallengeStore) Create(accountID, memberID int64, c family.Challenge, ttl time.Duration) (*model.IssuedChallenge, error) {
	options, err := json.Marshal(c.Options)
	if err != nil {
		return nil, fmt.Errorf("encode options: %w", err)
	}
	correct, err := json.Marshal(c.CorrectIDs.Sorted())
	if err != nil {
		return nil, fmt.Errorf("encode correct ids: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM challenges WHERE account_id = ?`, accountID); err != nil {
		return nil, fmt.Errorf("delete old challenges: %w", err)
	}

	token := uuid.NewString()
	if _, err := tx.Exec(
		`INSERT INTO challenges (token, account_id, member_id, options, correct_ids, expires_at) VALUES (?, ?, ?, ?, ?, ?)`,
		token, accountID, memberID, string(options), string(correct), time.Now().Add(ttl).UTC(),
	); err != nil {
		return nil, fmt.Errorf("insert challenge: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.Get(token)
}

func (s *ChallengeStore) Get(token string) (*model.IssuedChallenge, error) {
	row := s.db.QueryRow(`SELECT `+challengeCols+` FROM challenges WHERE token = ?`, token)
	c, err := scanChallenge(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get challenge: %w", err)
	}
	return c, nil
}

// Consume removes the account's challenge and returns it in the same
// statement, so a token can be judged only once. A token that is unknown,
// already used or owned by another account yields (nil, nil) and is left
// untouched.
func (s *ChallengeStore) Consume(token string, accountID int64) (*model.IssuedChallenge, error) {
	row := s.db.QueryRow(
		`DELETE FROM challenges WHERE token = ? AND account_id = ? RETURNING `+challengeCols,
		token, accountID,
	)
	c, err := scanChallenge(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("consume challenge: %w", err)
	}
	return c, nil
}
