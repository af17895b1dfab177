package main

import (
	"context"
	"fmt"

	"prdash/internal/model"

	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"
)

type startGlazedCommand struct {
	*cmds.CommandDescription
}

type startSettings struct {
	Dir      string `glazed.parameter:"dir"`
	Project  string `glazed.parameter:"project"`
	Registry string `glazed.parameter:"registry"`
	Kind     string `glazed.parameter:"kind"`
	Item     string `glazed.parameter:"item"`
}

func newStartGlazedCommand() (cmds.Command, error) {
	flags := append(targetFlags(),
		parameters.NewParameterDefinition(
			"kind",
			parameters.ParameterTypeString,
			parameters.WithHelp("Process kind: run|review|qa"),
			parameters.WithDefault("run"),
		),
		parameters.NewParameterDefinition(
			"item",
			parameters.ParameterTypeString,
			parameters.WithHelp("Optional PRD item hint passed to the agent"),
			parameters.WithDefault(""),
		),
	)
	return &startGlazedCommand{
		CommandDescription: cmds.NewCommandDescription(
			"start",
			cmds.WithShort("Launch an executor, reviewer, or qa process"),
			cmds.WithLong("Spawn a detached agent process for the project, refusing when one of the same kind is already running."),
			cmds.WithFlags(flags...),
		),
	}, nil
}

func (c *startGlazedCommand) Run(ctx context.Context, parsedLayers *layers.ParsedLayers) error {
	settings := &startSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, settings); err != nil {
		return err
	}
	kind, err := model.ParseProcessKind(settings.Kind)
	if err != nil {
		return err
	}
	service, err := newLocalService(&targetSettings{Dir: settings.Dir, Project: settings.Project, Registry: settings.Registry})
	if err != nil {
		return err
	}
	defer service.Shutdown()

	result, err := service.Start(ctx, settings.Project, kind, settings.Item)
	if err != nil {
		return err
	}
	fmt.Printf("Started %s (pid %d)\n", result.Kind, result.Pid)
	return nil
}

var _ cmds.BareCommand = &startGlazedCommand{}

type clearLockGlazedCommand struct {
	*cmds.CommandDescription
}

type clearLockSettings struct {
	Dir      string `glazed.parameter:"dir"`
	Project  string `glazed.parameter:"project"`
	Registry string `glazed.parameter:"registry"`
	Kind     string `glazed.parameter:"kind"`
}

func newClearLockGlazedCommand() (cmds.Command, error) {
	flags := append(targetFlags(),
		parameters.NewParameterDefinition(
			"kind",
			parameters.ParameterTypeString,
			parameters.WithHelp("Lock to clear: run|review"),
			parameters.WithDefault("run"),
		),
	)
	return &clearLockGlazedCommand{
		CommandDescription: cmds.NewCommandDescription(
			"clear-lock",
			cmds.WithShort("Remove a stale advisory lock"),
			cmds.WithLong("Verify the lock holder is gone, remove the lock file, and delete orphaned PRD claims."),
			cmds.WithFlags(flags...),
		),
	}, nil
}

func (c *clearLockGlazedCommand) Run(ctx context.Context, parsedLayers *layers.ParsedLayers) error {
	settings := &clearLockSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, settings); err != nil {
		return err
	}
	kind, err := model.ParseProcessKind(settings.Kind)
	if err != nil {
		return err
	}
	service, err := newLocalService(&targetSettings{Dir: settings.Dir, Project: settings.Project, Registry: settings.Registry})
	if err != nil {
		return err
	}
	defer service.Shutdown()

	result, err := service.ClearLock(ctx, settings.Project, kind)
	if err != nil {
		return err
	}
	fmt.Printf("Cleared %s lock", kind)
	if result.RemovedClaims > 0 {
		fmt.Printf(", removed %d orphaned claim(s)", result.RemovedClaims)
	}
	fmt.Println()
	return nil
}

var _ cmds.BareCommand = &clearLockGlazedCommand{}

type retryGlazedCommand struct {
	*cmds.CommandDescription
}

type retrySettings struct {
	Dir      string `glazed.parameter:"dir"`
	Project  string `glazed.parameter:"project"`
	Registry string `glazed.parameter:"registry"`
	Item     string `glazed.parameter:"item"`
}

func newRetryGlazedCommand() (cmds.Command, error) {
	flags := append(targetFlags(),
		parameters.NewParameterDefinition(
			"item",
			parameters.ParameterTypeString,
			parameters.WithHelp("Completed PRD item to move back to pending"),
			parameters.WithRequired(true),
		),
	)
	return &retryGlazedCommand{
		CommandDescription: cmds.NewCommandDescription(
			"retry",
			cmds.WithShort("Move a completed PRD item back to pending"),
			cmds.WithFlags(flags...),
		),
	}, nil
}

func (c *retryGlazedCommand) Run(ctx context.Context, parsedLayers *layers.ParsedLayers) error {
	settings := &retrySettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, settings); err != nil {
		return err
	}
	service, err := newLocalService(&targetSettings{Dir: settings.Dir, Project: settings.Project, Registry: settings.Registry})
	if err != nil {
		return err
	}
	defer service.Shutdown()

	if err := service.RetryItem(ctx, settings.Project, settings.Item); err != nil {
		return err
	}
	fmt.Printf("Moved %s back to pending\n", settings.Item)
	return nil
}

var _ cmds.BareCommand = &retryGlazedCommand{}

type cronGlazedCommand struct {
	*cmds.CommandDescription
	install bool
}

func newCronInstallGlazedCommand() (cmds.Command, error) {
	return &cronGlazedCommand{
		CommandDescription: cmds.NewCommandDescription(
			"cron-install",
			cmds.WithShort("Install the scheduled executor crontab entry"),
			cmds.WithFlags(targetFlags()...),
		),
		install: true,
	}, nil
}

func newCronUninstallGlazedCommand() (cmds.Command, error) {
	return &cronGlazedCommand{
		CommandDescription: cmds.NewCommandDescription(
			"cron-uninstall",
			cmds.WithShort("Remove the scheduled executor crontab entry"),
			cmds.WithFlags(targetFlags()...),
		),
	}, nil
}

func (c *cronGlazedCommand) Run(ctx context.Context, parsedLayers *layers.ParsedLayers) error {
	settings := &targetSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, settings); err != nil {
		return err
	}
	service, err := newLocalService(settings)
	if err != nil {
		return err
	}
	defer service.Shutdown()

	if c.install {
		if err := service.CronInstall(ctx, settings.Project); err != nil {
			return err
		}
		fmt.Println("Installed crontab entry")
		return nil
	}
	if err := service.CronUninstall(ctx, settings.Project); err != nil {
		return err
	}
	fmt.Println("Removed crontab entry")
	return nil
}

var _ cmds.BareCommand = &cronGlazedCommand{}
