// Package seed imports families, members and accounts from a YAML document.
package seed

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"sigs.k8s.io/yaml"

	"github.com/dukerupert/lineage/internal/model"
	"github.com/dukerupert/lineage/internal/store"
)

// File is the top-level import document.
type File struct {
	Families []Family `json:"families" validate:"required,min=1,dive"`
}

type Family struct {
	Name     string    `json:"name" validate:"required"`
	Members  []Member  `json:"members" validate:"dive"`
	Accounts []Account `json:"accounts" validate:"dive"`
}

// Member refers to its parent by Key, so parents may appear after their
// children in the document.
type Member struct {
	Key       string      `json:"key" validate:"required"`
	FirstName string      `json:"first_name" validate:"required"`
	LastName  string      `json:"last_name"`
	BirthDate *model.Date `json:"birth_date"`
	Gender    string      `json:"gender"`
	Role      string      `json:"role"`
	Parent    string      `json:"parent"`
	Email     string      `json:"email" validate:"omitempty,email"`
	Phone     string      `json:"phone"`
	Address   string      `json:"address"`
	PhotoURL  string      `json:"photo_url"`
}

type Account struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
	Member   string `json:"member" validate:"required"`
}

// Result counts what an import created.
type Result struct {
	Families int `json:"families"`
	Members  int `json:"members"`
	Accounts int `json:"accounts"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Parse decodes and validates a YAML document.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	if err := validate.Struct(&f); err != nil {
		return nil, fmt.Errorf("invalid seed: %w", err)
	}
	for _, fam := range f.Families {
		if _, err := fam.order(); err != nil {
			return nil, fmt.Errorf("family %q: %w", fam.Name, err)
		}
		keys := make(map[string]bool, len(fam.Members))
		for _, m := range fam.Members {
			keys[m.Key] = true
		}
		for _, a := range fam.Accounts {
			if !keys[a.Member] {
				return nil, fmt.Errorf("family %q: account %s: unknown member %q", fam.Name, a.Username, a.Member)
			}
		}
	}
	return &f, nil
}

// ParseFile reads and parses the document at path.
func ParseFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	return Parse(data)
}

// order returns the members with every parent ahead of its children. It
// rejects duplicate keys, unknown parents and parent loops.
func (f Family) order() ([]Member, error) {
	byKey := make(map[string]Member, len(f.Members))
	for _, m := range f.Members {
		if _, dup := byKey[m.Key]; dup {
			return nil, fmt.Errorf("duplicate member key %q", m.Key)
		}
		byKey[m.Key] = m
	}
	for _, m := range f.Members {
		if m.Parent != "" {
			if _, ok := byKey[m.Parent]; !ok {
				return nil, fmt.Errorf("member %q: unknown parent %q", m.Key, m.Parent)
			}
			if m.Parent == m.Key {
				return nil, fmt.Errorf("member %q is its own parent", m.Key)
			}
		}
	}

	placed := make(map[string]bool, len(f.Members))
	out := make([]Member, 0, len(f.Members))
	for len(out) < len(f.Members) {
		progress := false
		for _, m := range f.Members {
			if placed[m.Key] || (m.Parent != "" && !placed[m.Parent]) {
				continue
			}
			placed[m.Key] = true
			out = append(out, m)
			progress = true
		}
		if !progress {
			var stuck []string
			for _, m := range f.Members {
				if !placed[m.Key] {
					stuck = append(stuck, m.Key)
				}
			}
			return nil, fmt.Errorf("parent loop among %s", strings.Join(stuck, ", "))
		}
	}
	return out, nil
}

// Importer writes parsed documents through the stores.
type Importer struct {
	families *store.FamilyStore
	members  *store.MemberStore
	accounts *store.AccountStore
	logger   *slog.Logger
}

func NewImporter(fs *store.FamilyStore, ms *store.MemberStore, as *store.AccountStore, logger *slog.Logger) *Importer {
	return &Importer{families: fs, members: ms, accounts: as, logger: logger}
}

// Import creates every family in f. A family that fails part way is removed
// again; families imported before it are kept.
func (im *Importer) Import(f *File) (Result, error) {
	var res Result
	for _, fam := range f.Families {
		members, accounts, err := im.importFamily(fam)
		if err != nil {
			return res, fmt.Errorf("family %q: %w", fam.Name, err)
		}
		res.Families++
		res.Members += members
		res.Accounts += accounts
	}
	return res, nil
}

func (im *Importer) importFamily(fam Family) (members, accounts int, err error) {
	ordered, err := fam.order()
	if err != nil {
		return 0, 0, err
	}

	created, err := im.families.Create(fam.Name, nil)
	if err != nil {
		return 0, 0, err
	}
	defer func() {
		if err != nil {
			if derr := im.families.Delete(created.ID); derr != nil {
				err = errors.Join(err, fmt.Errorf("roll back family: %w", derr))
			}
		}
	}()

	ids := make(map[string]int64, len(ordered))
	for _, sm := range ordered {
		m := model.Member{
			FamilyID:  created.ID,
			FirstName: sm.FirstName,
			LastName:  sm.LastName,
			BirthDate: sm.BirthDate,
			Gender:    sm.Gender,
			Role:      sm.Role,
			Email:     sm.Email,
			Phone:     sm.Phone,
			Address:   sm.Address,
			PhotoURL:  sm.PhotoURL,
		}
		if sm.Parent != "" {
			pid := ids[sm.Parent]
			m.ParentID = &pid
		}
		out, err := im.members.Create(m)
		if err != nil {
			return 0, 0, fmt.Errorf("member %q: %w", sm.Key, err)
		}
		ids[sm.Key] = out.ID
	}

	for _, sa := range fam.Accounts {
		memberID := ids[sa.Member]
		if _, err := im.accounts.Create(store.NewAccount{
			Username: sa.Username,
			Password: sa.Password,
			UserType: model.UserTypeMember,
			FamilyID: &created.ID,
			MemberID: &memberID,
		}); err != nil {
			return 0, 0, fmt.Errorf("account %s: %w", sa.Username, err)
		}
	}

	im.logger.Info("family imported", "family_id", created.ID, "slug", created.Slug, "members", len(ordered), "accounts", len(fam.Accounts))
	return len(ordered), len(fam.Accounts), nil
}
