package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dukerupert/lineage/internal/model"
	"github.com/dukerupert/lineage/internal/store"
)

var treeCmd = &cobra.Command{
	Use:   "tree <family-id>",
	Short: "Print a family's generations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		familyID, err := parseFamilyID(args[0])
		if err != nil {
			return err
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		fam, err := store.NewFamilyStore(db).GetByID(familyID)
		if err != nil {
			return err
		}
		if fam == nil {
			return fmt.Errorf("family %d not found", familyID)
		}

		snap, err := store.NewMemberStore(db).Snapshot(familyID)
		if err != nil {
			return err
		}

		fmt.Printf("%s (%d members)\n", fam.Name, snap.Len())
		for _, gen := range snap.Hierarchy() {
			fmt.Printf("\nGeneration %d\n", gen.Level)
			for _, m := range gen.Members {
				fmt.Printf("  %s\n", describeMember(m))
			}
		}
		return nil
	},
}

func describeMember(m model.Member) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%d %s", m.ID, m.FullName())
	if m.Role != "" {
		fmt.Fprintf(&b, " [%s]", m.Role)
	}
	if m.ParentID != nil {
		fmt.Fprintf(&b, " parent #%d", *m.ParentID)
	}
	return b.String()
}
