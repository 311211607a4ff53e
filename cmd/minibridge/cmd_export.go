package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"minibridge/internal/bridge"
	"minibridge/internal/capture"
	"minibridge/internal/ics"
	appLog "minibridge/internal/log"
)

type exportFlags struct {
	teachers   []string
	out        string
	annotate   bool
	noTimezone bool
	png        string
}

func newExportCmd(g *globalFlags) *cobra.Command {
	f := &exportFlags{}
	cmd := &cobra.Command{
		Use:   "export FILE...",
		Short: "Write the events of the selected teachers to a new .ics file",
		Example: `  minibridge export -t "DUPONT, Jean" edt_P1_A3.ics edt_P1_A4.ics
  minibridge export -t "DUPONT, Jean" -t "MARTIN, Paul" --annotate -o - edt.ics`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.setup()
			if err != nil {
				return err
			}
			uploads, loadErrs := ics.LoadFiles(args)
			if len(uploads) == 0 {
				return fmt.Errorf("%w: %w", bridge.ErrNoFiles, errors.Join(loadErrs...))
			}
			for _, e := range loadErrs {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipped: %v\n", e)
			}

			opts := a.svc.Defaults()
			if cmd.Flags().Changed("annotate") {
				opts.Annotate = f.annotate
			}
			if f.noTimezone {
				opts.IncludeTimezone = false
			}

			exp, err := a.svc.ExportWith(uploads, f.teachers, opts)
			if err != nil {
				return err
			}

			switch f.out {
			case "-":
				if _, err := cmd.OutOrStdout().Write(exp.Body); err != nil {
					return err
				}
			default:
				path := f.out
				if path == "" {
					path = exp.Filename
				}
				if err := os.WriteFile(path, exp.Body, 0o644); err != nil {
					return fmt.Errorf("write export: %w", err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "%d events written to %s\n", len(exp.Rows), path)
			}

			if f.png != "" {
				page, err := capture.RenderPreviewHTML(strings.Join(f.teachers, " · "), exp.Rows)
				if err != nil {
					return err
				}
				if _, err := capture.CapturePNG(cmd.Context(), page, capture.CaptureOptions{OutputPath: f.png}); err != nil {
					return fmt.Errorf("capture preview: %w", err)
				}
				appLog.Info("preview captured", "path", f.png)
			}
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringArrayVarP(&f.teachers, "teacher", "t", nil, `teacher to keep, as listed by "teachers" (repeatable)`)
	fl.StringVarP(&f.out, "out", "o", "", `output path, "-" for stdout (default: named after the teachers)`)
	fl.BoolVar(&f.annotate, "annotate", false, "append [promo - class - group] to event summaries (overrides config)")
	fl.BoolVar(&f.noTimezone, "no-timezone", false, "omit the Europe/Paris VTIMEZONE block")
	fl.StringVar(&f.png, "png", "", "also render a PNG preview of the selected events with headless Chromium")
	return cmd
}
