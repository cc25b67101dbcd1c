package cmd

import (
	"fmt"
	"io"

	"github.com/nerdneilsfield/telegram-style-bot/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newStylesCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "styles [config]",
		Short:        "List the style catalog in carousel order",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			configFile := defaultConfigPath
			if len(args) == 1 {
				configFile = args[0]
			}
			cfg, err := loadConfig(configFile, zap.NewNop())
			if err != nil {
				return err
			}
			return printStyles(cmd.OutOrStdout(), cfg)
		},
	}
}

func printStyles(w io.Writer, cfg *config.Config) error {
	catalog, err := cfg.Catalog()
	if err != nil {
		return err
	}
	for i, s := range catalog.All() {
		fmt.Fprintf(w, "%d. %-24s id=%s\n", i+1, s.Name, s.ID)
		if s.PromptPrefix != "" {
			fmt.Fprintf(w, "   prefix: %q\n", s.PromptPrefix)
		}
		if s.PreviewURL != "" {
			fmt.Fprintf(w, "   preview: %s\n", s.PreviewURL)
		}
	}
	return nil
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "check [config]",
		Short:        "Validate the configuration and print it with secrets masked",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			configFile := defaultConfigPath
			if len(args) == 1 {
				configFile = args[0]
			}
			cfg, err := loadConfig(configFile, zap.NewNop())
			if err != nil {
				return err
			}
			config.PrintConfig(cmd.OutOrStdout(), cfg)
			fmt.Fprintln(cmd.OutOrStdout(), "Config OK")
			return nil
		},
	}
}
