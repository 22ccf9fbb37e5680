package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/lineage/internal/family"
	"github.com/dukerupert/lineage/internal/model"
)

type MemberStore struct {
	db *sql.DB
}

func NewMemberStore(db *sql.DB) *MemberStore {
	return &MemberStore{db: db}
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
	Exec(query string, args ...any) (sql.Result, error)
}

func scanMember(scanner interface{ Scan(...any) error }) (*model.Member, error) {
	var m model.Member
	var birth sql.NullString
	var parent sql.NullInt64

	err := scanner.Scan(
		&m.ID, &m.FamilyID, &m.FirstName, &m.LastName, &birth, &m.Gender, &m.Role,
		&parent, &m.Email, &m.Phone, &m.Address, &m.PhotoURL, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if birth.Valid && birth.String != "" {
		d, err := model.ParseDate(birth.String)
		if err != nil {
			return nil, fmt.Errorf("member %d birth date: %w", m.ID, err)
		}
		m.BirthDate = &d
	}
	if parent.Valid {
		m.ParentID = &parent.Int64
	}
	return &m, nil
}

const memberCols = `id, family_id, first_name, last_name, birth_date, gender, role, parent_id, email, phone, address, photo_url, created_at, updated_at`

func birthDateArg(d *model.Date) any {
	if d == nil || d.IsZero() {
		return nil
	}
	return d.String()
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

// FetchMembers returns every member of a family ordered by id.
func (s *MemberStore) FetchMembers(familyID int64) ([]model.Member, error) {
	return fetchMembers(s.db, familyID)
}

func fetchMembers(q querier, familyID int64) ([]model.Member, error) {
	rows, err := q.Query(`SELECT `+memberCols+` FROM family_members WHERE family_id = ? ORDER BY id`, familyID)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var members []model.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

// Snapshot loads a family into an immutable snapshot for the tree queries.
func (s *MemberStore) Snapshot(familyID int64) (*family.Snapshot, error) {
	return loadSnapshot(s.db, familyID)
}

func loadSnapshot(q querier, familyID int64) (*family.Snapshot, error) {
	members, err := fetchMembers(q, familyID)
	if err != nil {
		return nil, err
	}
	snap, err := family.NewSnapshot(members)
	if err != nil {
		return nil, fmt.Errorf("snapshot family %d: %w", familyID, err)
	}
	return snap, nil
}

func (s *MemberStore) GetByID(id int64) (*model.Member, error) {
	row := s.db.QueryRow(`SELECT `+memberCols+` FROM family_members WHERE id = ?`, id)
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

// Create inserts a member. A parent, when given, must belong to the same family.
func (s *MemberStore) Create(m model.Member) (*model.Member, error) {
	if m.Role == "" {
		m.Role = model.DefaultRole
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if m.ParentID != nil {
		if err := checkParent(tx, m.FamilyID, *m.ParentID); err != nil {
			return nil, err
		}
	}

	result, err := tx.Exec(
		`INSERT INTO family_members (family_id, first_name, last_name, birth_date, gender, role, parent_id, email, phone, address, photo_url)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.FamilyID, m.FirstName, m.LastName, birthDateArg(m.BirthDate), m.Gender, m.Role,
		nullableID(m.ParentID), m.Email, m.Phone, m.Address, m.PhotoURL,
	)
	if err != nil {
		return nil, fmt.Errorf("insert member: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(id)
}

func checkParent(q querier, familyID, parentID int64) error {
	var parentFamily int64
	err := q.QueryRow(`SELECT family_id FROM family_members WHERE id = ?`, parentID).Scan(&parentFamily)
	if err == sql.ErrNoRows || (err == nil && parentFamily != familyID) {
		return fmt.Errorf("parent %d: %w", parentID, family.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("query parent: %w", err)
	}
	return nil
}

// Update rewrites a member's profile fields. The parent link is changed only
// through ApplyReparent.
func (s *MemberStore) Update(m model.Member) (*model.Member, error) {
	_, err := s.db.Exec(
		`UPDATE family_members SET first_name = ?, last_name = ?, birth_date = ?, gender = ?, role = ?,
		 email = ?, phone = ?, address = ?, photo_url = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		m.FirstName, m.LastName, birthDateArg(m.BirthDate), m.Gender, m.Role,
		m.Email, m.Phone, m.Address, m.PhotoURL, m.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update member: %w", err)
	}
	return s.GetByID(m.ID)
}

// ApplyReparent moves a member under newParentID, or makes it a root when
// newParentID is nil. The move is validated against the family as it stands
// inside the transaction, so a concurrent edit cannot slip a cycle in.
func (s *MemberStore) ApplyReparent(familyID, memberID int64, newParentID *int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	snap, err := loadSnapshot(tx, familyID)
	if err != nil {
		return err
	}
	if err := snap.ValidateReparent(memberID, newParentID); err != nil {
		return err
	}

	if _, err := tx.Exec(
		`UPDATE family_members SET parent_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		nullableID(newParentID), memberID,
	); err != nil {
		return fmt.Errorf("update parent: %w", err)
	}
	return tx.Commit()
}

// DeleteMembers removes the accounts linked to ids and then the members
// themselves, in the given order, in one transaction.
func (s *MemberStore) DeleteMembers(orderedIDs []int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := deleteMembers(tx, orderedIDs); err != nil {
		return err
	}
	return tx.Commit()
}

func deleteMembers(tx *sql.Tx, orderedIDs []int64) error {
	// Corrupted cycles cannot be removed leaf-first; checking at commit
	// still rejects any reference left dangling.
	if _, err := tx.Exec(`PRAGMA defer_foreign_keys = ON`); err != nil {
		return fmt.Errorf("defer foreign keys: %w", err)
	}

	for _, id := range orderedIDs {
		if _, err := tx.Exec(`DELETE FROM accounts WHERE member_id = ?`, id); err != nil {
			return fmt.Errorf("delete accounts for member %d: %w", id, err)
		}
	}
	for _, id := range orderedIDs {
		if _, err := tx.Exec(`DELETE FROM family_members WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete member %d: %w", id, err)
		}
	}
	return checkDangling(tx)
}

// checkDangling fails when a surviving member still points at a removed one.
func checkDangling(tx *sql.Tx) error {
	rows, err := tx.Query(`PRAGMA foreign_key_check(family_members)`)
	if err != nil {
		return fmt.Errorf("foreign key check: %w", err)
	}
	defer rows.Close()
	if rows.Next() {
		var table, parent string
		var rowID, fkID sql.NullInt64
		if err := rows.Scan(&table, &rowID, &parent, &fkID); err != nil {
			return fmt.Errorf("scan foreign key check: %w", err)
		}
		return fmt.Errorf("member %d would reference a deleted %s row", rowID.Int64, parent)
	}
	return rows.Err()
}

// DeleteSubtree plans and performs a cascade delete of memberID and all of
// its descendants against the family as it stands inside the transaction.
func (s *MemberStore) DeleteSubtree(familyID, memberID int64) (*family.DeletionPlan, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	snap, err := loadSnapshot(tx, familyID)
	if err != nil {
		return nil, err
	}
	plan, err := snap.PlanDeletion(memberID)
	if err != nil {
		return nil, err
	}
	if err := deleteMembers(tx, plan.Order); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &plan, nil
}

// FetchFamilyRoot returns the founding member of a family, or nil when the
// family is empty.
func (s *MemberStore) FetchFamilyRoot(familyID int64, roles []string) (*model.Member, error) {
	snap, err := s.Snapshot(familyID)
	if err != nil {
		return nil, err
	}
	root, ok := snap.FamilyRoot(familyID, roles)
	if !ok {
		return nil, nil
	}
	return &root, nil
}

func (s *MemberStore) Count(familyID int64) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM family_members WHERE family_id = ?`, familyID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count members: %w", err)
	}
	return n, nil
}
