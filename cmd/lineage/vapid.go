package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dukerupert/lineage/internal/push"
)

var vapidKeysCmd = &cobra.Command{
	Use:   "vapid-keys",
	Short: "Generate a VAPID key pair for web push",
	RunE: func(cmd *cobra.Command, args []string) error {
		pub, priv, err := push.GenerateVAPIDKeys()
		if err != nil {
			return err
		}
		fmt.Println("push:")
		fmt.Printf("  vapid_public_key: %s\n", pub)
		fmt.Printf("  vapid_private_key: %s\n", priv)
		return nil
	},
}
