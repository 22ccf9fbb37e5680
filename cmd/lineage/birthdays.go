package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/lineage/internal/family"
	"github.com/dukerupert/lineage/internal/store"
)

var birthdaysDays int

var birthdaysCmd = &cobra.Command{
	Use:   "birthdays <family-id>",
	Short: "List upcoming birthdays in a family",
	Example: `  # Birthdays in the configured window
  lineage birthdays 1

  # Birthdays in the next 30 days
  lineage birthdays 1 --days 30`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		familyID, err := parseFamilyID(args[0])
		if err != nil {
			return err
		}
		days := cfg.Birthdays.WindowDays
		if cmd.Flags().Changed("days") {
			days = birthdaysDays
		}
		if days < 0 || days > 366 {
			return configError(fmt.Sprintf("--days must be between 0 and 366, got %d", days), nil)
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		snap, err := store.NewMemberStore(db).Snapshot(familyID)
		if err != nil {
			return err
		}

		upcoming := snap.UpcomingBirthdays(family.Today(time.Now()), days)
		if len(upcoming) == 0 {
			fmt.Printf("No birthdays in the next %d days\n", days)
			return nil
		}
		for _, b := range upcoming {
			m, _ := snap.Member(b.MemberID)
			when := fmt.Sprintf("in %d days", b.DaysUntil)
			switch b.DaysUntil {
			case 0:
				when = "today"
			case 1:
				when = "tomorrow"
			}
			fmt.Printf("%s  %s turns %d %s\n", b.Date, m.FullName(), b.TurningAge, when)
		}
		return nil
	},
}

func init() {
	birthdaysCmd.Flags().IntVar(&birthdaysDays, "days", family.DefaultBirthdayWindow, "days ahead to look")
}
