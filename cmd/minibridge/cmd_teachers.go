package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"minibridge/internal/bridge"
	"minibridge/internal/ics"
)

func newTeachersCmd(g *globalFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "teachers FILE...",
		Short: "List the teachers named in timetable files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.setup()
			if err != nil {
				return err
			}
			uploads, loadErrs := ics.LoadFiles(args)
			if len(uploads) == 0 {
				return fmt.Errorf("%w: %w", bridge.ErrNoFiles, errors.Join(loadErrs...))
			}

			cat, err := a.svc.Teachers(uploads)
			if cat != nil {
				for _, e := range loadErrs {
					cat.Rejected = append(cat.Rejected, rejectionOf(e))
				}
			}
			if err != nil && cat == nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if encErr := enc.Encode(cat); encErr != nil {
					return encErr
				}
				return err
			}

			out, diag := cmd.OutOrStdout(), cmd.ErrOrStderr()
			for _, t := range cat.Teachers {
				fmt.Fprintln(out, t)
			}
			for _, f := range cat.Files {
				fmt.Fprintf(diag, "%s: %d events (promo %q, class %q)\n", f.Filename, f.Events, f.Promo, f.Class)
			}
			for _, r := range cat.Rejected {
				fmt.Fprintf(diag, "%s: rejected: %s\n", r.Filename, r.Error)
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full catalog as JSON")
	return cmd
}

// rejectionOf turns a LoadFiles error into a catalog entry.
func rejectionOf(err error) bridge.Rejection {
	var fe *ics.FileError
	if errors.As(err, &fe) {
		return bridge.Rejection{Filename: fe.Filename, Error: fe.Err.Error()}
	}
	return bridge.Rejection{Error: err.Error()}
}
