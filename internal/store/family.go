package store

import (
	"database/sql"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/dukerupert/lineage/internal/model"
)

type FamilyStore struct {
	db *sql.DB
}

func NewFamilyStore(db *sql.DB) *FamilyStore {
	return &FamilyStore{db: db}
}

func scanFamily(scanner interface{ Scan(...any) error }) (*model.Family, error) {
	var f model.Family
	var createdBy sql.NullInt64
	err := scanner.Scan(&f.ID, &f.Name, &f.Slug, &createdBy, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if createdBy.Valid {
		f.CreatedBy = &createdBy.Int64
	}
	return &f, nil
}

const familyCols = `id, name, slug, created_by, created_at, updated_at`

var slugStrip = regexp.MustCompile(`[^a-z0-9_]`)

// Slugify derives a family slug: lowercased, without the "família " prefix,
// spaces as underscores, anything outside [a-z0-9_] dropped.
func Slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, "família ", "")
	s = strings.ReplaceAll(s, " ", "_")
	return slugStrip.ReplaceAllString(s, "")
}

// Create inserts a family. Colliding slugs get a numeric suffix.
func (s *FamilyStore) Create(name string, createdBy *int64) (*model.Family, error) {
	base := Slugify(name)
	if base == "" {
		base = "familia"
	}
	slug := base
	for n := 2; ; n++ {
		existing, err := s.GetBySlug(slug)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			break
		}
		slug = fmt.Sprintf("%s_%d", base, n)
	}

	result, err := s.db.Exec(
		`INSERT INTO families (name, slug, created_by) VALUES (?, ?, ?)`,
		name, slug, nullableID(createdBy),
	)
	if err != nil {
		return nil, fmt.Errorf("insert family: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *FamilyStore) GetByID(id int64) (*model.Family, error) {
	row := s.db.QueryRow(`SELECT `+familyCols+` FROM families WHERE id = ?`, id)
	f, err := scanFamily(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get family: %w", err)
	}
	return f, nil
}

func (s *FamilyStore) GetBySlug(slug string) (*model.Family, error) {
	row := s.db.QueryRow(`SELECT `+familyCols+` FROM families WHERE slug = ?`, slug)
	f, err := scanFamily(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get family by slug: %w", err)
	}
	return f, nil
}

// List returns every family with its member count, ordered by name.
func (s *FamilyStore) List() ([]model.FamilySummary, error) {
	rows, err := s.db.Query(
		`SELECT f.id, f.name, f.slug, f.created_by, f.created_at, f.updated_at, COUNT(m.id)
		 FROM families f LEFT JOIN family_members m ON m.family_id = f.id
		 GROUP BY f.id ORDER BY f.name, f.id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list families: %w", err)
	}
	defer rows.Close()

	var out []model.FamilySummary
	for rows.Next() {
		var fs model.FamilySummary
		var createdBy sql.NullInt64
		if err := rows.Scan(&fs.ID, &fs.Name, &fs.Slug, &createdBy, &fs.CreatedAt, &fs.UpdatedAt, &fs.Members); err != nil {
			return nil, fmt.Errorf("scan family: %w", err)
		}
		if createdBy.Valid {
			fs.CreatedBy = &createdBy.Int64
		}
		out = append(out, fs)
	}
	return out, rows.Err()
}

// Delete removes a family with its accounts and members, deepest generation
// first, in one transaction.
func (s *FamilyStore) Delete(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	snap, err := loadSnapshot(tx, id)
	if err != nil {
		return err
	}
	levels := snap.Levels()
	order := make([]int64, 0, snap.Len())
	for _, m := range snap.Members() {
		order = append(order, m.ID)
	}
	slices.SortStableFunc(order, func(a, b int64) int {
		return levels[b] - levels[a]
	})

	if _, err := tx.Exec(`DELETE FROM accounts WHERE family_id = ?`, id); err != nil {
		return fmt.Errorf("delete family accounts: %w", err)
	}
	if err := deleteMembers(tx, order); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM sent_notifications WHERE family_id = ?`, id); err != nil {
		return fmt.Errorf("delete sent notifications: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM families WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete family: %w", err)
	}
	return tx.Commit()
}

func (s *FamilyStore) Statistics() (*model.Statistics, error) {
	var st model.Statistics
	err := s.db.QueryRow(
		`SELECT (SELECT COUNT(*) FROM families), (SELECT COUNT(*) FROM family_members)`,
	).Scan(&st.TotalFamilies, &st.TotalMembers)
	if err != nil {
		return nil, fmt.Errorf("query statistics: %w", err)
	}
	return &st, nil
}

// Exists reports whether a family with id is present.
func (s *FamilyStore) Exists(id int64) (bool, error) {
	f, err := s.GetByID(id)
	if err != nil {
		return false, err
	}
	return f != nil, nil
}
