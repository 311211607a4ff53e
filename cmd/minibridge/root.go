package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"minibridge/internal/bridge"
	"minibridge/internal/config"
	"minibridge/internal/ics"
	appLog "minibridge/internal/log"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	mode       string
	marker     string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "minibridge",
		Short: "Filter school timetables by teacher and export them as iCalendar",
		Long: `minibridge reads one or more timetable .ics files, detects the teachers
named in event descriptions and writes a calendar holding only the events
of the selected teachers.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "config file (default $"+config.EnvPath+" or "+config.DefaultPath+")")
	pf.StringVar(&g.mode, "mode", "", "teacher extraction mode: regex or marker (overrides config)")
	pf.StringVar(&g.marker, "marker", "", "marker line for --mode=marker (overrides config)")
	pf.StringVar(&g.logLevel, "log-level", "", "debug, info, warn or error (overrides config)")

	root.AddCommand(
		newServeCmd(g),
		newTeachersCmd(g),
		newExportCmd(g),
	)
	return root
}

// app is the wiring shared by the subcommands.
type app struct {
	cfg    *config.Config
	parser *ics.Parser
	svc    *bridge.Service
}

// setup loads the config, applies flag overrides and builds the service.
func (g *globalFlags) setup() (*app, error) {
	path := config.ResolvePath(g.configPath)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}

	if g.mode != "" {
		cfg.Extraction.Mode = g.mode
	}
	if g.marker != "" {
		cfg.Extraction.Marker = g.marker
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))

	ex, err := cfg.Extractor()
	if err != nil {
		return nil, err
	}
	parser, err := ics.NewParser(ics.ParserOptions{
		Extractor:    ex,
		CacheEntries: cfg.Cache.MaxEntries,
	})
	if err != nil {
		return nil, err
	}

	appLog.Debug("effective config",
		"config_path", path,
		"mode", cfg.Extraction.Mode,
		"annotate", cfg.Export.Annotate,
		"include_timezone", cfg.Export.IncludeTimezone,
		"cache_entries", cfg.Cache.MaxEntries,
	)

	return &app{
		cfg:    cfg,
		parser: parser,
		svc:    bridge.NewService(parser, cfg.BuildOptions()),
	}, nil
}
