package family

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dukerupert/lineage/internal/model"
)

func ptr(id int64) *int64 { return &id }

func date(y int, m time.Month, d int) *model.Date {
	return &model.Date{Year: y, Month: m, Day: d}
}

func member(id int64, name string, parent *int64) model.Member {
	return model.Member{ID: id, FamilyID: 1, FirstName: name, Role: model.DefaultRole, ParentID: parent}
}

// chain builds A(1) <- B(2) <- C(3).
func chain() []model.Member {
	return []model.Member{
		member(1, "A", nil),
		member(2, "B", ptr(1)),
		member(3, "C", ptr(2)),
	}
}

// tree builds:
//
//	1 Ana
//	├── 2 Bruno
//	│   ├── 4 Davi
//	│   └── 5 Elisa
//	│       └── 7 Gabi
//	└── 3 Carla
//	    └── 6 Felipe
func tree() []model.Member {
	return []model.Member{
		member(1, "Ana", nil),
		member(2, "Bruno", ptr(1)),
		member(3, "Carla", ptr(1)),
		member(4, "Davi", ptr(2)),
		member(5, "Elisa", ptr(2)),
		member(6, "Felipe", ptr(3)),
		member(7, "Gabi", ptr(5)),
	}
}

func snap(t *testing.T, members []model.Member) *Snapshot {
	t.Helper()
	s, err := NewSnapshot(members)
	require.NoError(t, err)
	return s
}

func ids(members []model.Member) []int64 {
	out := make([]int64, len(members))
	for i, m := range members {
		out[i] = m.ID
	}
	return out
}
