package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobradar/internal/adapter"
	"github.com/amishk599/jobradar/internal/config"
	"github.com/amishk599/jobradar/internal/model"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the supported job boards",
	Long:  "Prints every supported board with its configured status, rate limit and native filters.",
	RunE:  runSources,
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}

func runSources(cmd *cobra.Command, args []string) error {
	cfg, _ := mustSetup()
	w := cmd.OutOrStdout()

	configured := make(map[string]config.SourceConfig, len(cfg.Sources))
	for _, s := range cfg.Sources {
		configured[s.Name] = s
	}

	fmt.Fprintf(w, "%-17s %-9s %-10s %-6s %-7s %s\n", "Source", "Status", "Interval", "Burst", "Remote", "Language")
	fmt.Fprintln(w, strings.Repeat("─", 60))

	enabled := 0
	for _, name := range adapter.Names() {
		a, err := adapter.New(name)
		if err != nil {
			return err
		}
		status, interval, burst := "disabled", "-", "-"
		if s, ok := configured[name]; ok && s.Enabled {
			status = "enabled"
			interval = s.RateInterval.String()
			burst = fmt.Sprint(s.Burst)
			enabled++
		}
		fmt.Fprintf(w, "%-17s %-9s %-10s %-6s %-7s %s\n", name, status, interval, burst,
			filterMode(a.SupportsRemoteFilter()), languageModes(a))
	}

	fmt.Fprintf(w, "\nTotal: %d sources (%d enabled)\n", len(adapter.Names()), enabled)
	return nil
}

func filterMode(b bool) string {
	if b {
		return "native"
	}
	return "local"
}

// languageModes lists the language filters the board applies natively.
func languageModes(a model.SiteAdapter) string {
	var native []string
	for _, f := range []model.LanguageFilter{model.LanguageOnlyEN, model.LanguageOnlyDE} {
		if a.SupportsLanguageFilter(f) {
			native = append(native, string(f))
		}
	}
	if len(native) == 0 {
		return "local"
	}
	return "native " + strings.Join(native, ",") + ", else local"
}
