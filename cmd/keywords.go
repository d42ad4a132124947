package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var keywordsCmd = &cobra.Command{
	Use:   "keywords",
	Short: "Show the configured keyword list",
	RunE:  runKeywords,
}

var keywordsSaveCmd = &cobra.Command{
	Use:   "save <file>",
	Short: "Write the configured keywords to a file, one per line",
	Args:  cobra.ExactArgs(1),
	RunE:  runKeywordsSave,
}

var keywordsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the configured keywords with the file's contents",
	Args:  cobra.ExactArgs(1),
	RunE:  runKeywordsImport,
}

func init() {
	keywordsCmd.AddCommand(keywordsSaveCmd)
	keywordsCmd.AddCommand(keywordsImportCmd)
	rootCmd.AddCommand(keywordsCmd)
}

func runKeywords(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Printf("Configured keywords (%d):\n", len(a.cfg.Keywords))
	for i, kw := range a.cfg.Keywords {
		fmt.Printf("  %2d. %s\n", i+1, kw)
	}
	return nil
}

func runKeywordsSave(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := saveKeywordsFile(args[0], a.cfg.Keywords); err != nil {
		return err
	}
	fmt.Printf("Saved %d keywords to %s\n", len(a.cfg.Keywords), args[0])
	return nil
}

func runKeywordsImport(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	keywords, err := loadKeywordsFile(args[0])
	if err != nil {
		return err
	}
	if len(keywords) == 0 {
		return fmt.Errorf("no keywords in %s", args[0])
	}

	a.cfg.Keywords = keywords
	if err := a.cfg.Save(cfgPath); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	fmt.Printf("Imported %d keywords into %s\n", len(keywords), cfgPath)
	return nil
}

// loadKeywordsFile reads keywords from a file, one per line, skipping
// blank lines.
func loadKeywordsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var keywords []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if kw := strings.TrimSpace(scanner.Text()); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return keywords, scanner.Err()
}

// saveKeywordsFile writes keywords to a file, one per line.
func saveKeywordsFile(path string, keywords []string) error {
	var sb strings.Builder
	for _, kw := range keywords {
		sb.WriteString(kw)
		sb.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(sb.String()), 0644)
}
