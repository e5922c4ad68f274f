package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"

	"github.com/san-kum/bbngrid/internal/batch"
	"github.com/san-kum/bbngrid/internal/card"
	"github.com/san-kum/bbngrid/internal/config"
	"github.com/san-kum/bbngrid/internal/grid"
	"github.com/san-kum/bbngrid/internal/metrics"
	"github.com/san-kum/bbngrid/internal/server"
	"github.com/san-kum/bbngrid/internal/storage"
	"github.com/san-kum/bbngrid/internal/tui"
)

const logFilename = "bbngrid.log"

var errCancelled = errors.New("batch cancelled")

// execute runs one batch to the end and prints where its results are.
func execute(ctx context.Context, cfg *config.Config, common *card.Common, set *grid.Set) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	m := metrics.New()
	if err := m.Register(reg); err != nil {
		return err
	}

	store := storage.New(cfg.DataDir)
	if err := store.Init(); err != nil {
		return err
	}

	ctrl := batch.NewController(
		batch.WithSaver(store),
		batch.WithRecorder(m),
		batch.WithEvents(256),
	)

	if cfg.Listen != "" {
		srvCtx, cancel := context.WithCancel(context.Background())
		defer cancel()
		srv := server.New(ctrl, reg)
		go func() {
			if err := srv.ListenAndServe(srvCtx, cfg.Listen); err != nil {
				log.WithError(err).Error("http server failed")
			}
		}()
	}

	spec := batch.Spec{
		Grids:       set,
		Common:      common,
		Executable:  cfg.Executable,
		WorkDir:     cfg.WorkDir,
		Build:       cfg.Build,
		MaxParallel: cfg.Workers,
		Timeout:     cfg.JobTimeout,
		Markers:     cfg.Markers,
	}

	var snap batch.Snapshot
	if useTUI {
		closeLog, err := logToFolder(cfg, common.Templates.Folder)
		if err != nil {
			return err
		}
		defer closeLog()

		if err := ctrl.Start(ctx, spec); err != nil {
			return err
		}
		if err := tui.Run(ctrl); err != nil {
			ctrl.Stop()
			return err
		}
		snap = ctrl.Wait()
	} else {
		if err := ctrl.Start(ctx, spec); err != nil {
			return err
		}
		snap = follow(ctrl, set.Total())
	}

	report(snap)
	if snap.Phase == batch.Cancelled {
		return errCancelled
	}
	return nil
}

// logToFolder sends logs to a file in the batch folder while the terminal
// belongs to the progress view.
func logToFolder(cfg *config.Config, folder string) (func(), error) {
	if err := os.MkdirAll(folder, 0755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(filepath.Join(folder, logFilename), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	if err := config.ConfigureLogging(cfg.Log.Level, cfg.Log.Format, f); err != nil {
		f.Close()
		return nil, err
	}
	return func() {
		log.SetOutput(os.Stderr)
		f.Close()
	}, nil
}

// follow drives a progress bar from the batch events when stderr is a
// terminal, and waits for the batch to end.
func follow(ctrl *batch.Controller, total int) batch.Snapshot {
	waitc := make(chan batch.Snapshot, 1)
	go func() { waitc <- ctrl.Wait() }()

	if !isatty.IsTerminal(os.Stderr.Fd()) || total == 0 {
		return <-waitc
	}

	bar := progressbar.Default(int64(total), "running jobs")
	events := ctrl.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if ev.ID >= 0 {
				_ = bar.Add(1)
			}
		case snap := <-waitc:
			_ = bar.Set(snap.Finished + snap.Failed)
			_ = bar.Finish()
			fmt.Fprintln(os.Stderr)
			return snap
		}
	}
}

func report(snap batch.Snapshot) {
	fmt.Printf("batch %s %s: %d finished, %d failed of %d\n",
		snap.Tag, snap.Phase, snap.Finished, snap.Failed, snap.Total)
	s := snap.Summary
	if s == nil {
		return
	}
	if s.Aggregate != "" {
		fmt.Printf("results: %s\n", s.Aggregate)
	}
	if s.Remediation != "" {
		fmt.Printf("re-run instructions: %s\n", s.Remediation)
	}
}
