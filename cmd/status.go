package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"jobdroid/internal/ledger"
)

var statusCmd = &cobra.Command{
	Use:   "status <application-id> <status> [note]",
	Short: "Update the status of a recorded application",
	Long:  "Set a new status (Applied, Interview, Rejected, Offer, Pending) on a ledger record, optionally appending a dated note",
	Args:  cobra.RangeArgs(2, 3),
	Run: func(_ *cobra.Command, args []string) {
		log := mustLogger()

		config, err := getConfig()
		if err != nil {
			log.Fatal("getting a config", zap.Error(err))
		}

		ldgr, err := ledger.Open(config.Ledger.Path, log)
		if err != nil {
			log.Fatal("opening the ledger", zap.Error(err))
		}
		defer ldgr.Close()

		id, status := args[0], args[1]
		note := ""
		if len(args) == 3 {
			note = args[2]
		}

		found, err := ldgr.UpdateStatus(id, status, note)
		if err != nil {
			log.Fatal("updating application status", zap.Error(err))
		}
		if !found {
			log.Warn("no application with this id", zap.String("application_id", id))
			return
		}

		fmt.Printf("%s %s\n", labelStyle.Render(id), valueStyle.Render("-> "+status))
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
