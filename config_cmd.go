package main

import (
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/cloudboss/cloudboss/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(newConfigShowCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display effective configuration after all overrides",
		Long: `Display the effective configuration after defaults, the config file,
.env files, environment variables and flags are applied. Tokens and keys
are never shown; only the names of the variables that hold them.`,
		Args: cobra.NoArgs,
		RunE: runConfigShow,
	}
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cc := cliContextFrom(cmd.Context())
	if cc == nil || cc.Cfg == nil {
		return fmt.Errorf("no configuration loaded")
	}

	if cc.Flags.JSON {
		return printJSON(os.Stdout, cc.Cfg.Config)
	}

	return renderEffective(os.Stdout, cc.Cfg)
}

// renderEffective writes the resolved configuration as TOML, preceded by
// a comment naming the file it came from.
func renderEffective(w io.Writer, rc *config.ResolvedConfig) error {
	fmt.Fprintf(w, "# config file: %s\n", rc.ConfigPath)

	if rc.Token != "" {
		fmt.Fprintf(w, "# token: from %s\n", rc.TokenEnv())
	}

	if err := toml.NewEncoder(w).Encode(rc.Config); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	return nil
}
