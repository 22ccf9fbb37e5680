package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dukerupert/lineage/internal/seed"
	"github.com/dukerupert/lineage/internal/store"
)

var importCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Import families, members and accounts from YAML",
	Long: `Import families from a YAML seed file. Members refer to their parent by key,
so a file can describe a whole tree in any order. Each family is imported
atomically: if one fails, it is removed and the families before it are kept.`,
	Example: `  lineage import families.yaml`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := seed.ParseFile(args[0])
		if err != nil {
			return err
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		im := seed.NewImporter(store.NewFamilyStore(db), store.NewMemberStore(db), store.NewAccountStore(db), logger.With("component", "seed"))
		res, err := im.Import(f)
		fmt.Printf("Imported %d families, %d members, %d accounts\n", res.Families, res.Members, res.Accounts)
		return err
	},
}
