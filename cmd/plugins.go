package main

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/scitags/dropwatch-go/plugins/api"
	"github.com/scitags/dropwatch-go/plugins/np"
	"github.com/scitags/dropwatch-go/types"
)

func createPlugins(c *Config, ctl api.Controller, metrics http.Handler, cmds chan<- string) ([]types.Plugin, error) {
	plugins := []types.Plugin{}

	if c.Plugins != nil {
		if c.Plugins.Api != nil {
			p, err := api.NewApiPlugin(c.Plugins.Api, ctl, metrics)
			if err != nil {
				return nil, fmt.Errorf("error initialising the api plugin: %w", err)
			}
			plugins = append(plugins, p)
		}

		if c.Plugins.Np != nil {
			p, err := np.NewNamedPipePlugin(c.Plugins.Np, cmds)
			if err != nil {
				return nil, fmt.Errorf("error initialising the named pipe plugin: %w", err)
			}
			plugins = append(plugins, p)
		}
	}

	return plugins, nil
}

func initPlugins(plugins []types.Plugin) error {
	for _, plugin := range plugins {
		if err := plugin.Init(); err != nil {
			return fmt.Errorf("error setting up plugin %s: %w", plugin, err)
		}
	}
	return nil
}

func cleanupPlugins(plugins []types.Plugin) {
	for _, plugin := range plugins {
		if err := plugin.Cleanup(); err != nil {
			slog.Error("error cleaning up plugin", "plugin", plugin, "err", err)
		}
	}
}
