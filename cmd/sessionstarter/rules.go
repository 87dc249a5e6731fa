package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sessionstarter/internal/classify"
	"sessionstarter/internal/config"
)

func newRulesCmd(d deps) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List the helper-function rules in priority order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			c := classify.New(classify.Prefixes{
				ImportJump:   cfg.Rename.ImportJumpPrefix,
				Wrapper:      cfg.Rename.WrapperPrefix,
				GlobalAssign: cfg.Rename.GlobalAssignPrefix,
			})
			for i, r := range c.Rules() {
				fmt.Fprintf(d.stdout, "%d  %-14s %s\n", i+1, r.Kind, r.Prefix)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "TOML config file (defaults to the built-in config)")
	return cmd
}
