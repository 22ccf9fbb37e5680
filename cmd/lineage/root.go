package main

import (
	"database/sql"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dukerupert/lineage/internal/config"
	"github.com/dukerupert/lineage/internal/database"
	"github.com/dukerupert/lineage/internal/logging"
)

var (
	// Set during PersistentPreRunE
	cfg        *config.Config
	configPath string
	logger     *slog.Logger

	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "lineage",
	Short: "Family tree server",
	Long: `lineage - family tree server

Keeps one parent-linked tree per family, guards member logins with an
identity challenge built from the tree, and pushes upcoming birthdays to
subscribed devices.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "version" {
			return nil
		}

		var err error
		cfg, configPath, err = config.Load(cfgFile, cmd.Flags())
		if err != nil {
			return configError("loading configuration", err)
		}
		logger = logging.Setup(cfg.LogLevel, cfg.LogFormat)
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

const (
	groupServer = "server"
	groupData   = "data"
	groupUtil   = "utility"
)

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&cfgFile, "config", "", "config file (default: auto-discover lineage.yaml)")
	f.String("db", "", "path to the SQLite database")
	f.String("log-level", "", "log level: debug, info, warn or error")
	f.Int("port", 0, "HTTP listen port")
	f.String("base-url", "", "public URL of the server")

	rootCmd.AddGroup(
		&cobra.Group{ID: groupServer, Title: "Server:"},
		&cobra.Group{ID: groupData, Title: "Data:"},
		&cobra.Group{ID: groupUtil, Title: "Utility:"},
	)

	serveCmd.GroupID = groupServer
	migrateCmd.GroupID = groupServer
	backupCmd.GroupID = groupServer
	rootCmd.AddCommand(serveCmd, migrateCmd, backupCmd)

	importCmd.GroupID = groupData
	treeCmd.GroupID = groupData
	birthdaysCmd.GroupID = groupData
	createAdminCmd.GroupID = groupData
	rootCmd.AddCommand(importCmd, treeCmd, birthdaysCmd, createAdminCmd)

	vapidKeysCmd.GroupID = groupUtil
	configCmd.GroupID = groupUtil
	versionCmd.GroupID = groupUtil
	rootCmd.AddCommand(vapidKeysCmd, configCmd, versionCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		exitWithError(err)
	}
}

// openDB opens the configured database and applies pending migrations.
func openDB() (*sql.DB, error) {
	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return nil, dbError("opening database "+cfg.DBPath, err)
	}
	return db, nil
}

func parseFamilyID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, configError("invalid family id "+strconv.Quote(arg), nil)
	}
	return id, nil
}
