// Command chimerad hosts the cairn and demofs back ends behind the VFS
// dispatch pipeline for local testing and operations (spec.md §6 "CLI
// surface... purely for local testing/ops convenience; it is not part of
// the wire protocol surface"). There is no NFS/SMB front end here — that
// is explicitly out of scope.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	moduleFlag string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "chimerad",
		Short: "chimera VFS back-end host",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to JSON config file")
	root.PersistentFlags().StringVar(&moduleFlag, "module", "", "back end to run, cairn or demofs (overrides the config file's \"module\" key)")
	_ = root.MarkPersistentFlagRequired("config")

	root.AddCommand(newServeCmd())
	root.AddCommand(newCheckCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
