package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"jobdroid/internal/ai/gemini"
	"jobdroid/internal/ledger"
	"jobdroid/internal/logger"
	"jobdroid/internal/mail"
	"jobdroid/internal/matching"
	"jobdroid/internal/runner"
	"jobdroid/internal/secrets"
	"jobdroid/internal/session"
	"jobdroid/internal/surface/droid"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"
)

var prompt = promptui.Select{
	Label: "Start the session?",
	Items: []string{PromptYes, PromptNo},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one application session across all enabled sources",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("auto-approve", "y", false, "do not ask for confirmation before starting the session")
	runCmd.Flags().Bool("dry-run", false, "discover and match but do not submit applications")
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}
	if err := config.validateSession(); err != nil {
		logger.Fatal("validating the config", zap.Error(err))
	}

	logger.Info("starting jobdroid", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	dryRun := cmd.Flag("dry-run").Value.String() == "true"

	ldgr, err := ledger.Open(config.Ledger.Path, logger)
	if err != nil {
		logger.Fatal("opening the ledger", zap.Error(err))
	}
	closed := false
	defer func() {
		if !closed {
			ldgr.Close()
		}
	}()

	stats, err := ldgr.Stats()
	if err != nil {
		logger.Fatal("reading ledger stats", zap.Error(err))
	}
	logger.Info("ledger loaded",
		zap.String("path", config.Ledger.Path),
		zap.Int("total", stats.Total),
		zap.Int("applied", stats.Applied),
		zap.Int("interview", stats.Interview),
		zap.Int("rejected", stats.Rejected),
		zap.Int("pending", stats.Pending),
	)

	if cmd.Flag("auto-approve").Value.String() == "false" && !dryRun {
		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}
		if action == PromptNo {
			logger.Info("exiting", zap.String("reason", "got no from prompt"))
			return
		}
	}

	agent, err := buildAgent(ctx, config, logger)
	if err != nil {
		logger.Fatal("building the device agent", zap.Error(err))
	}

	engine := matching.NewEngine(&matching.Profile{
		Titles:           config.Profile.Titles,
		Keywords:         config.Profile.Keywords,
		ExcludedKeywords: config.Profile.ExcludedKeywords,
		Locations:        config.Profile.Locations,
		MinYears:         config.Profile.Experience.MinYears,
		MaxYears:         config.Profile.Experience.MaxYears,
	}, matching.DefaultWeights())

	applicant := runner.Applicant{
		Name:  config.Applicant.Name,
		Email: config.Applicant.Email,
		Phone: config.Applicant.Phone,
	}

	sourceRunner := runner.New(agent, engine, ldgr, applicant, config.TaskTimeout, dryRun, logger)
	checker := mail.NewChecker(agent, config.TaskTimeout, logger)
	orchestrator := session.New(sourceRunner, checker, config.runnerSources(), config.Cooldown, logger)

	report := orchestrator.Run(ctx)

	printReport(report)

	closed = true
	if err := ldgr.Close(); err != nil {
		logger.Fatal("closing the ledger", zap.Error(err))
	}
}

// buildAgent wires the gemini-backed extractor into the gateway client.
func buildAgent(ctx context.Context, config *Config, logger *zap.Logger) (*droid.Client, error) {
	cfg := config.AI.Gemini

	keyFile := cfg.APIKeyFile
	if keyFile == "" {
		keyFile = viper.GetString("ai.gemini.api-key-file")
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.APIKey,
		File:  keyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key, ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Model, cfg.MaxRetries, logger.With(
		zap.String("provider", "gemini"),
		zap.String("model", cfg.Model),
	))
	if err != nil {
		return nil, err
	}

	extractor := droid.NewExtractor(generator, logger)
	return droid.New(config.Gateway.URL, config.Gateway.UserAgent, extractor, logger), nil
}

func printReport(report *session.Report) {
	fmt.Println(titleStyle.Render("Session Report"))

	for _, res := range report.Sources {
		fmt.Printf("%s\n", labelStyle.Render(res.Source))
		fmt.Printf("  Found: %s\n", valueStyle.Render(fmt.Sprintf("%d", res.Found)))
		fmt.Printf("  Matched: %s\n", valueStyle.Render(fmt.Sprintf("%d", res.Matched)))
		fmt.Printf("  Submitted: %s\n", valueStyle.Render(fmt.Sprintf("%d", res.Submitted)))
		for _, e := range res.Errors {
			fmt.Printf("  Error: %s\n", valueStyle.Render(e))
		}
	}

	if report.Mail != nil {
		fmt.Printf("%s\n", labelStyle.Render("Notifications"))
		fmt.Printf("  Checked: %s\n", valueStyle.Render(fmt.Sprintf("%d", report.Mail.Checked)))
		for _, update := range report.Mail.Updates {
			fmt.Printf("  %s: %s\n", update.Kind, valueStyle.Render(update.Subject))
		}
		for _, e := range report.Mail.Errors {
			fmt.Printf("  Error: %s\n", valueStyle.Render(e))
		}
	}

	found, matched, submitted, errors := report.Totals()
	fmt.Printf("%s\n", labelStyle.Render("Totals"))
	fmt.Printf("  Found %d, matched %d, submitted %d, errors %d\n", found, matched, submitted, errors)
}
