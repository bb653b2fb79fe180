package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "validate the config file and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(configPath)
		},
	}
}

// runCheck loads the config and runs the selected module's Init/Destroy
// cycle once, surfacing any config or storage-open error without leaving
// the process running (spec.md §6 CLI: "operator CLI... for local testing
// convenience").
func runCheck(path string) error {
	cfg, err := loadServerConfig(path)
	if err != nil {
		return err
	}
	cfg = applyModuleFlag(cfg, moduleFlag)
	m, raw, err := buildModule(cfg)
	if err != nil {
		return err
	}
	if err := m.Init(raw); err != nil {
		return errors.Wrap(err, "chimerad: module init")
	}
	m.Destroy()

	fmt.Printf("chimerad: config OK for module %q\n", cfg.Module)
	return nil
}
