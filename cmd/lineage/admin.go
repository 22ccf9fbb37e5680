package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dukerupert/lineage/internal/model"
	"github.com/dukerupert/lineage/internal/store"
)

var (
	adminUsername string
	adminPassword string
)

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an administrator account",
	Long: `Create an administrator account. Administrators skip the identity
challenge and can reach every family. The password may also come from
LINEAGE_ADMIN_PASSWORD.`,
	Example: `  LINEAGE_ADMIN_PASSWORD=s3cret-pass lineage create-admin --username root`,
	RunE: func(cmd *cobra.Command, args []string) error {
		password := adminPassword
		if password == "" {
			password = os.Getenv("LINEAGE_ADMIN_PASSWORD")
		}
		if len(password) < 8 {
			return configError("password must be at least 8 characters", nil)
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		acct, err := store.NewAccountStore(db).Create(store.NewAccount{
			Username: adminUsername,
			Password: password,
			UserType: model.UserTypeAdmin,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Created admin %q (account #%d)\n", acct.Username, acct.ID)
		return nil
	},
}

func init() {
	f := createAdminCmd.Flags()
	f.StringVar(&adminUsername, "username", "", "login name")
	f.StringVar(&adminPassword, "password", "", "password (default: $LINEAGE_ADMIN_PASSWORD)")
	_ = createAdminCmd.MarkFlagRequired("username")
}
