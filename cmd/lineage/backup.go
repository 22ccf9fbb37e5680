package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dukerupert/lineage/internal/backup"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Encrypted database backups to S3-compatible storage",
	Long: `Snapshot the database, encrypt it with a key derived from backup.passphrase
and upload it to backup.bucket. Secrets are best passed as
LINEAGE_BACKUP_SECRET_KEY and LINEAGE_BACKUP_PASSPHRASE.`,
}

var backupRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Upload a new backup and prune old ones",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := backupManager()
		if err != nil {
			return err
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		obj, err := m.Run(cmd.Context(), db)
		if err != nil {
			return err
		}
		fmt.Printf("Uploaded %s (%d bytes)\n", obj.Key, obj.Size)

		deleted, err := m.Prune(cmd.Context(), cfg.Backup.Retention)
		if err != nil {
			return err
		}
		for _, key := range deleted {
			fmt.Printf("Pruned %s\n", key)
		}
		return nil
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored backups, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := backupManager()
		if err != nil {
			return err
		}
		objects, err := m.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(objects) == 0 {
			fmt.Println("No backups found")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tSIZE\tMODIFIED")
		for _, o := range objects {
			fmt.Fprintf(w, "%s\t%d\t%s\n", o.Key, o.Size, o.Modified.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore <key>",
	Short: "Replace the database with a stored backup",
	Long:  `Download, decrypt and integrity-check a backup, then replace the configured database with it. Stop the server first.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := backupManager()
		if err != nil {
			return err
		}
		if err := m.Restore(cmd.Context(), args[0], cfg.DBPath); err != nil {
			return err
		}
		fmt.Printf("Restored %s into %s\n", args[0], cfg.DBPath)
		return nil
	},
}

func backupManager() (*backup.Manager, error) {
	m, err := backup.NewManager(backup.Config{
		Endpoint:   cfg.Backup.Endpoint,
		Bucket:     cfg.Backup.Bucket,
		Region:     cfg.Backup.Region,
		AccessKey:  cfg.Backup.AccessKey,
		SecretKey:  cfg.Backup.SecretKey,
		Prefix:     cfg.Backup.Prefix,
		Passphrase: cfg.Backup.Passphrase,
	}, logger.With("component", "backup"))
	if err != nil {
		return nil, configError("backup", err)
	}
	return m, nil
}

func init() {
	backupCmd.AddCommand(backupRunCmd, backupListCmd, backupRestoreCmd)
}
