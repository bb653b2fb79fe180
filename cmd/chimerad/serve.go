package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/chimera-nas/chimera/vfs"
	"github.com/chimera-nas/chimera/vfs/sched"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the configured module until terminated",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}
}

func runServe(path string) error {
	cfg, err := loadServerConfig(path)
	if err != nil {
		return err
	}
	cfg = applyModuleFlag(cfg, moduleFlag)
	m, raw, err := buildModule(cfg)
	if err != nil {
		return err
	}

	log := logrus.WithField("module", cfg.Module)
	if err := m.Init(raw); err != nil {
		return errors.Wrap(err, "chimerad: module init")
	}
	defer m.Destroy()

	dispatcher := vfs.NewDispatcher()
	if err := dispatcher.Register(m); err != nil {
		return errors.Wrap(err, "chimerad: registering module")
	}

	s := sched.New(cfg.Workers, 1024)
	defer s.Shutdown()

	for i := 0; i < s.NumWorkers(); i++ {
		if err := m.WorkerInit(s.Worker(i)); err != nil {
			return errors.Wrapf(err, "chimerad: worker %d init", i)
		}
	}
	defer func() {
		for i := 0; i < s.NumWorkers(); i++ {
			m.WorkerDestroy(s.Worker(i))
		}
	}()

	log.WithField("workers", cfg.Workers).Info("chimerad: ready")

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc

	log.Info("chimerad: shutting down")
	return nil
}
