package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"prdash/internal/config"
	"prdash/internal/orchestrator"
	"prdash/internal/project"
	"prdash/internal/server"
	"prdash/internal/serviceapi"

	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"
)

// targetSettings selects which project a command operates on: a single
// directory, or an entry from a registry file.
type targetSettings struct {
	Dir      string `glazed.parameter:"dir"`
	Project  string `glazed.parameter:"project"`
	Registry string `glazed.parameter:"registry"`
}

func targetFlags() []*parameters.ParameterDefinition {
	return []*parameters.ParameterDefinition{
		parameters.NewParameterDefinition(
			"dir",
			parameters.ParameterTypeString,
			parameters.WithHelp("Project directory (ignored when --registry is set)"),
			parameters.WithDefault("."),
		),
		parameters.NewParameterDefinition(
			"project",
			parameters.ParameterTypeString,
			parameters.WithHelp("Project name (optional with a single project)"),
			parameters.WithDefault(""),
		),
		parameters.NewParameterDefinition(
			"registry",
			parameters.ParameterTypeString,
			parameters.WithHelp("Path to a multi-project registry file"),
			parameters.WithDefault(""),
		),
	}
}

func newLocalService(settings *targetSettings) (*serviceapi.LocalCore, error) {
	var registry *project.Registry
	var err error
	if strings.TrimSpace(settings.Registry) != "" {
		registry, err = project.NewFromFile(settings.Registry)
	} else {
		registry, err = project.NewSingle(settings.Project, settings.Dir)
	}
	if err != nil {
		return nil, err
	}
	return serviceapi.NewLocalCore(registry, orchestrator.Options{}), nil
}

func parseDurationSetting(flagName string, value string) (time.Duration, error) {
	duration, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid --%s duration %q: %w", flagName, value, err)
	}
	return duration, nil
}

type serveGlazedCommand struct {
	*cmds.CommandDescription
}

type serveSettings struct {
	Addr            string `glazed.parameter:"addr"`
	Dir             string `glazed.parameter:"dir"`
	Project         string `glazed.parameter:"project"`
	Registry        string `glazed.parameter:"registry"`
	PollInterval    string `glazed.parameter:"poll-interval"`
	FetchTimeout    string `glazed.parameter:"fetch-timeout"`
	LogPeriod       string `glazed.parameter:"log-period"`
	BufferSize      int    `glazed.parameter:"buffer-size"`
	ShutdownTimeout string `glazed.parameter:"shutdown-timeout"`
}

func newServeGlazedCommand() (cmds.Command, error) {
	flags := append(targetFlags(),
		parameters.NewParameterDefinition(
			"addr",
			parameters.ParameterTypeString,
			parameters.WithHelp("HTTP listen address"),
			parameters.WithDefault(":3000"),
		),
		parameters.NewParameterDefinition(
			"poll-interval",
			parameters.ParameterTypeString,
			parameters.WithHelp("Status poll interval override, e.g. 2s (empty uses each project's config)"),
			parameters.WithDefault(""),
		),
		parameters.NewParameterDefinition(
			"fetch-timeout",
			parameters.ParameterTypeString,
			parameters.WithHelp("Per-poll snapshot fetch timeout"),
			parameters.WithDefault("10s"),
		),
		parameters.NewParameterDefinition(
			"log-period",
			parameters.ParameterTypeString,
			parameters.WithHelp("Watcher summary log period"),
			parameters.WithDefault("1m"),
		),
		parameters.NewParameterDefinition(
			"buffer-size",
			parameters.ParameterTypeInteger,
			parameters.WithHelp("Per-subscriber event buffer size"),
			parameters.WithDefault(8),
		),
		parameters.NewParameterDefinition(
			"shutdown-timeout",
			parameters.ParameterTypeString,
			parameters.WithHelp("Graceful shutdown timeout"),
			parameters.WithDefault("5s"),
		),
	)
	return &serveGlazedCommand{
		CommandDescription: cmds.NewCommandDescription(
			"serve",
			cmds.WithShort("Run the dashboard API server"),
			cmds.WithLong("Start the prdash HTTP API, status watchers, and web UI."),
			cmds.WithFlags(flags...),
		),
	}, nil
}

func (c *serveGlazedCommand) Run(ctx context.Context, parsedLayers *layers.ParsedLayers) error {
	settings := &serveSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, settings); err != nil {
		return err
	}

	var pollInterval time.Duration
	if strings.TrimSpace(settings.PollInterval) != "" {
		parsed, err := parseDurationSetting("poll-interval", settings.PollInterval)
		if err != nil {
			return err
		}
		pollInterval = parsed
	}
	fetchTimeout, err := parseDurationSetting("fetch-timeout", settings.FetchTimeout)
	if err != nil {
		return err
	}
	logPeriod, err := parseDurationSetting("log-period", settings.LogPeriod)
	if err != nil {
		return err
	}
	shutdownTimeout, err := parseDurationSetting("shutdown-timeout", settings.ShutdownTimeout)
	if err != nil {
		return err
	}

	runtime, err := server.NewRuntime(server.Options{
		Addr:            settings.Addr,
		ProjectDir:      settings.Dir,
		ProjectName:     settings.Project,
		RegistryPath:    settings.Registry,
		PollInterval:    pollInterval,
		FetchTimeout:    fetchTimeout,
		LogPeriod:       logPeriod,
		BufferSize:      settings.BufferSize,
		ShutdownTimeout: shutdownTimeout,
	})
	if err != nil {
		return err
	}

	fmt.Printf("prdash serve listening on %s\n", settings.Addr)
	return runtime.Run(ctx)
}

var _ cmds.BareCommand = &serveGlazedCommand{}

type statusGlazedCommand struct {
	*cmds.CommandDescription
}

func newStatusGlazedCommand() (cmds.Command, error) {
	return &statusGlazedCommand{
		CommandDescription: cmds.NewCommandDescription(
			"status",
			cmds.WithShort("Print a one-shot project status snapshot"),
			cmds.WithLong("Derive and print the project's processes, PRD items, pull requests, and crontab entry."),
			cmds.WithFlags(targetFlags()...),
		),
	}, nil
}

func (c *statusGlazedCommand) Run(ctx context.Context, parsedLayers *layers.ParsedLayers) error {
	settings := &targetSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, settings); err != nil {
		return err
	}
	service, err := newLocalService(settings)
	if err != nil {
		return err
	}
	defer service.Shutdown()

	snapshot, err := service.Status(ctx, settings.Project)
	if err != nil {
		return err
	}
	printSnapshot(snapshot)
	return nil
}

func printSnapshot(snapshot serviceapi.Snapshot) {
	fmt.Printf("Project: %s (%s)\n", snapshot.ProjectName, snapshot.ProjectDir)
	fmt.Println("Processes:")
	for _, process := range snapshot.Processes {
		if process.Running {
			fmt.Printf("  %-10s running (pid %d)\n", process.Name, process.Pid)
		} else {
			fmt.Printf("  %-10s idle\n", process.Name)
		}
	}
	fmt.Printf("PRD items (%d):\n", len(snapshot.PRDs))
	for _, item := range snapshot.PRDs {
		fmt.Printf("  [%s] %s\n", item.Status, item.Name)
	}
	if len(snapshot.PRDs) == 0 {
		fmt.Println("  - none")
	}
	fmt.Printf("Pull requests (%d):\n", len(snapshot.PullRequests))
	for _, pr := range snapshot.PullRequests {
		fmt.Printf("  #%d %-8s %s (%s)\n", pr.Number, pr.State, pr.Title, pr.HeadRef)
	}
	if len(snapshot.PullRequests) == 0 {
		fmt.Println("  - none")
	}
	if snapshot.Crontab.Installed {
		fmt.Printf("Crontab: installed (%s)\n", strings.Join(snapshot.Crontab.Entries, "; "))
	} else {
		fmt.Println("Crontab: not installed")
	}
}

var _ cmds.BareCommand = &statusGlazedCommand{}

type projectsGlazedCommand struct {
	*cmds.CommandDescription
}

func newProjectsGlazedCommand() (cmds.Command, error) {
	return &projectsGlazedCommand{
		CommandDescription: cmds.NewCommandDescription(
			"projects",
			cmds.WithShort("List registered projects"),
			cmds.WithFlags(targetFlags()...),
		),
	}, nil
}

func (c *projectsGlazedCommand) Run(ctx context.Context, parsedLayers *layers.ParsedLayers) error {
	_ = ctx
	settings := &targetSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, settings); err != nil {
		return err
	}
	service, err := newLocalService(settings)
	if err != nil {
		return err
	}
	defer service.Shutdown()

	projects := service.Projects()
	for _, info := range projects {
		fmt.Printf("%-20s %s\n", info.Name, info.Dir)
	}
	if len(projects) == 0 {
		fmt.Println("no projects registered")
	}
	return nil
}

var _ cmds.BareCommand = &projectsGlazedCommand{}

type configInitGlazedCommand struct {
	*cmds.CommandDescription
}

type configInitSettings struct {
	Path string `glazed.parameter:"path"`
}

func newConfigInitGlazedCommand() (cmds.Command, error) {
	return &configInitGlazedCommand{
		CommandDescription: cmds.NewCommandDescription(
			"config-init",
			cmds.WithShort("Write a default project config file"),
			cmds.WithLong("Create a default prdash config file at the target path."),
			cmds.WithFlags(
				parameters.NewParameterDefinition(
					"path",
					parameters.ParameterTypeString,
					parameters.WithHelp("Path to config file"),
					parameters.WithDefault(config.DefaultPath),
				),
			),
		),
	}, nil
}

func (c *configInitGlazedCommand) Run(ctx context.Context, parsedLayers *layers.ParsedLayers) error {
	_ = ctx
	settings := &configInitSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, settings); err != nil {
		return err
	}
	if err := config.SaveDefault(settings.Path); err != nil {
		return err
	}
	fmt.Printf("Wrote default config to %s\n", settings.Path)
	return nil
}

var _ cmds.BareCommand = &configInitGlazedCommand{}
