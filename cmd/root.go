package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/avasquez/searchledger/internal/config"
	"github.com/avasquez/searchledger/internal/search"
	"github.com/avasquez/searchledger/internal/store"
)

var (
	cfgPath string
	envPath string
	build   = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "searchledger",
	Short: "Quota-aware bulk search against the Google Custom Search API",
	Long: `searchledger runs keyword searches against the Google Custom Search API,
records every request and result in SQLite, and keeps a daily usage ledger
so batches stay inside the free tier and the configured quota.

Commands:
  searchledger search    One-off search with pagination
  searchledger bulk      One-time bulk search over a keyword list
  searchledger schedule  Run bulk searches on a fixed interval
  searchledger usage     Show today's quota consumption
  searchledger recent    Browse recent requests and their results`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "searchledger.yaml",
		"Path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&envPath, "env", ".env",
		"Path to the .env file with credentials")
}

// SetBuild records the build string set via ldflags in main.
func SetBuild(b string) {
	if b != "" {
		build = b
	}
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app bundles the wired-up components every command needs.
type app struct {
	cfg    *config.Config
	store  *store.Store
	client *search.Client
}

func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
}

// openApp loads config, opens the store and builds the search client.
func openApp() (*app, error) {
	cfg, err := config.Load(cfgPath, envPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	st, err := store.NewStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &app{
		cfg:    cfg,
		store:  st,
		client: search.NewClient(cfg, st),
	}, nil
}

// requireConfigured fails fast with every missing option listed.
func (a *app) requireConfigured() error {
	errs := a.cfg.Validate()
	if len(errs) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString("configuration is incomplete:")
	for _, err := range errs {
		sb.WriteString("\n  - ")
		sb.WriteString(err.Error())
	}
	return fmt.Errorf("%s", sb.String())
}

// promptConfirm asks an operator yes/no question on the terminal.
// Used as the orchestrator's confirmation port.
func promptConfirm(question string) bool {
	fmt.Printf("%s (yes/NO): ", question)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "yes" || answer == "y"
}
