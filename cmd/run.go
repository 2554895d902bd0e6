package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/scitags/dropwatch-go/dropmon"
	"github.com/scitags/dropwatch-go/internal/kernel"
	"github.com/scitags/dropwatch-go/netlink"
)

func loadResolver(c *OutputConfig) dropmon.Resolver {
	if !c.Symbols {
		return nil
	}

	k, err := kernel.LoadKallsyms(c.KallsymsPath)
	if err != nil {
		slog.Warn("couldn't load kernel symbols, reporting raw addresses", "err", err)
		return nil
	}
	if k.Len() == 0 {
		slog.Warn("no usable kernel symbols (check kernel.kptr_restrict), reporting raw addresses", "path", c.KallsymsPath)
		return nil
	}

	slog.Debug("loaded kernel symbols", "n", k.Len())
	return k
}

func loadSoftnet(procPath string) dropmon.DropCounter {
	s, err := kernel.NewSoftnet(procPath)
	if err != nil {
		slog.Warn("softnet stats unavailable", "err", err)
		return nil
	}
	if _, err := s.Dropped(); err != nil {
		slog.Warn("softnet stats unavailable", "err", err)
		return nil
	}
	return s
}

func run(c *Config, format dropmon.Format) error {
	conn, err := netlink.Open(c.Netlink)
	if err != nil {
		return fmt.Errorf("error setting up the netlink socket: %w", err)
	}
	defer conn.Close()
	slog.Debug("opened netlink socket", "conn", conn, "family", conn.FamilyID())

	softnet := loadSoftnet(c.ProcPath)

	metrics, err := createMetrics(c, softnet)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmds := make(chan string)
	pipeEnabled := c.Plugins != nil && c.Plugins.Np != nil

	opts := dropmon.Options{
		Prompter: &chanPrompter{prompt: c.Prompt, out: os.Stdout, cmds: cmds, done: ctx.Done()},
		Reporter: dropmon.NewReporter(format, os.Stdout, loadResolver(c.Output)),
		Softnet:  softnet,
	}
	var metricsHandler http.Handler
	if metrics != nil {
		opts.Observer = metrics
		metricsHandler = metrics.Handler()
		defer metrics.Cleanup()
	}

	m := dropmon.New(conn, conn.FamilyID(), opts)

	plugins, err := createPlugins(c, m, metricsHandler, cmds)
	if err != nil {
		return err
	}
	if err := initPlugins(plugins); err != nil {
		return err
	}

	doneChan := make(chan struct{})
	for _, plugin := range plugins {
		go plugin.Run(doneChan)
	}
	defer func() {
		close(doneChan)
		cleanupPlugins(plugins)
	}()

	go scanCommands(os.Stdin, cmds, ctx.Done(), pipeEnabled)

	// SIGINT stops monitoring while SIGTERM tears everything down.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		for {
			select {
			case sig := <-sigChan:
				if sig == syscall.SIGTERM {
					slog.Info("got SIGTERM, terminating")
					cancel()
					return
				}
				m.Interrupt()
			case <-ctx.Done():
				return
			}
		}
	}()

	err = m.Run(ctx)

	slog.Info("shutting down")

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
