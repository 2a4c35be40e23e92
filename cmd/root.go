package cmd

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"jobdroid/internal/runner"
)

const (
	app = "jobdroid"

	defaultBudget      = 10
	defaultCooldown    = 30 * time.Second
	defaultTaskTimeout = 5 * time.Minute
	defaultLedgerPath  = "jobdroid.db"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			MarginTop(1).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")).
			Bold(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("7"))
)

type Config struct {
	Ledger      *LedgerConfig    `mapstructure:"ledger"`
	Cooldown    time.Duration    `mapstructure:"cooldown"`
	TaskTimeout time.Duration    `mapstructure:"task-timeout"`
	Gateway     *GatewayConfig   `mapstructure:"gateway"`
	AI          *AIConfig        `mapstructure:"ai"`
	Applicant   *ApplicantConfig `mapstructure:"applicant"`
	Profile     *ProfileConfig   `mapstructure:"profile"`
	Sources     []*SourceConfig  `mapstructure:"sources"`
}

type LedgerConfig struct {
	Path string `mapstructure:"path"`
}

type GatewayConfig struct {
	URL       string `mapstructure:"url"`
	UserAgent string `mapstructure:"user-agent"`
}

type AIConfig struct {
	Gemini *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	MaxRetries int    `mapstructure:"max-retries"`
}

type ApplicantConfig struct {
	Name  string `mapstructure:"name"`
	Email string `mapstructure:"email"`
	Phone string `mapstructure:"phone"`
}

type ProfileConfig struct {
	Titles           []string          `mapstructure:"titles"`
	Keywords         []string          `mapstructure:"keywords"`
	ExcludedKeywords []string          `mapstructure:"excluded-keywords"`
	Locations        []string          `mapstructure:"locations"`
	Experience       *ExperienceConfig `mapstructure:"experience"`
}

type ExperienceConfig struct {
	MinYears int `mapstructure:"min-years"`
	MaxYears int `mapstructure:"max-years"`
}

type SourceConfig struct {
	Name    string `mapstructure:"name"`
	App     string `mapstructure:"app"`
	Search  string `mapstructure:"search"`
	Budget  int    `mapstructure:"budget"`
	Enabled bool   `mapstructure:"enabled"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "jobdroid discovers job postings through a phone automation agent and applies to the ones matching your profile",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is jobdroid.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Only run, stats and status need a config. Skip initialization for
	// the rest so `jobdroid version` works without a config file.
	if runCmd.CalledAs() == "" && statsCmd.CalledAs() == "" && statusCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}
	if config == nil {
		return nil, errors.New("config is required")
	}

	config.applyDefaults()
	return config, nil
}

// applyDefaults fills the fields every command relies on.
func (c *Config) applyDefaults() {
	if c.Ledger == nil {
		c.Ledger = &LedgerConfig{}
	}
	if c.Ledger.Path == "" {
		c.Ledger.Path = defaultLedgerPath
	}
	if c.Cooldown <= 0 {
		c.Cooldown = defaultCooldown
	}
	if c.TaskTimeout <= 0 {
		c.TaskTimeout = defaultTaskTimeout
	}
	if c.Applicant == nil {
		c.Applicant = &ApplicantConfig{}
	}
}

// validateSession rejects configurations a session cannot run with. Only
// the run command needs this; stats and status work off the ledger alone.
func (c *Config) validateSession() error {
	if c.Gateway == nil || c.Gateway.URL == "" {
		return errors.New("gateway.url is required")
	}
	if c.AI == nil || c.AI.Gemini == nil {
		return errors.New("ai.gemini section is required")
	}
	if c.Profile == nil {
		return errors.New("profile section is required")
	}
	if len(c.Sources) == 0 {
		return errors.New("at least one source is required")
	}

	if c.Profile.Experience == nil {
		c.Profile.Experience = &ExperienceConfig{MaxYears: 1}
	}
	exp := c.Profile.Experience
	if exp.MinYears < 0 || exp.MaxYears < 0 {
		return errors.New("profile.experience years must not be negative")
	}
	if exp.MinYears > exp.MaxYears {
		return fmt.Errorf("profile.experience.min-years (%d) exceeds max-years (%d)", exp.MinYears, exp.MaxYears)
	}

	for i, src := range c.Sources {
		if src == nil || src.Name == "" {
			return fmt.Errorf("sources[%d]: name is required", i)
		}
		if src.Budget <= 0 {
			src.Budget = defaultBudget
		}
	}

	return nil
}

// runnerSources converts the configured sources to runner inputs.
func (c *Config) runnerSources() []runner.Source {
	sources := make([]runner.Source, 0, len(c.Sources))
	for _, src := range c.Sources {
		sources = append(sources, runner.Source{
			Name:    src.Name,
			App:     src.App,
			Search:  src.Search,
			Budget:  src.Budget,
			Enabled: src.Enabled,
		})
	}
	return sources
}
