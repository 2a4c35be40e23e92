package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"jobdroid/internal/ledger"
	"jobdroid/internal/logger"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show application statistics from the ledger",
	Run: func(_ *cobra.Command, _ []string) {
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

		stats, err := ldgr.Stats()
		if err != nil {
			log.Fatal("reading ledger stats", zap.Error(err))
		}

		if stats.Total == 0 {
			fmt.Println("No applications yet. Start a session with 'jobdroid run'")
			return
		}

		fmt.Println(titleStyle.Render("Application Statistics"))
		fmt.Printf("  %s %s\n", labelStyle.Render("Total:"), valueStyle.Render(fmt.Sprintf("%d", stats.Total)))
		fmt.Printf("  %s %s\n", labelStyle.Render("Applied:"), valueStyle.Render(fmt.Sprintf("%d", stats.Applied)))
		fmt.Printf("  %s %s\n", labelStyle.Render("Interview:"), valueStyle.Render(fmt.Sprintf("%d", stats.Interview)))
		fmt.Printf("  %s %s\n", labelStyle.Render("Rejected:"), valueStyle.Render(fmt.Sprintf("%d", stats.Rejected)))
		fmt.Printf("  %s %s\n", labelStyle.Render("Pending:"), valueStyle.Render(fmt.Sprintf("%d", stats.Pending)))
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func mustLogger() *zap.Logger {
	l, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	return l
}
