package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"hostelattendance/internal/app"
	"hostelattendance/internal/attendance"
	"hostelattendance/internal/identity"
	"hostelattendance/internal/report"
)

var exportOpts struct {
	format string
	date   string
	room   string
	name   string
	badge  string
	out    string
}

// exportCmd writes an attendance report
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write an attendance report to a file",
	Long: `Export attendance records as csv, pdf or xlsx.

Filters combine: --date 2024-01-31 --room 101 exports room 101 on that day.
Without --out the file is written to attendance.<format> in the current
directory.`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	f := exportCmd.Flags()
	f.StringVar(&exportOpts.format, "format", "csv", "csv, pdf or xlsx")
	f.StringVar(&exportOpts.date, "date", "", "day to export (YYYY-MM-DD)")
	f.StringVar(&exportOpts.room, "room", "", "exact room number")
	f.StringVar(&exportOpts.name, "name", "", "name substring")
	f.StringVar(&exportOpts.badge, "badge", "", "student id substring")
	f.StringVarP(&exportOpts.out, "out", "o", "", "output path")
}

func runExport(cmd *cobra.Command, _ []string) error {
	format, err := report.ParseFormat(exportOpts.format)
	if err != nil {
		return err
	}
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	filter, err := exportFilter(loc)
	if err != nil {
		return err
	}

	backends, err := app.Open(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = backends.Close() }()

	people := identity.NewService(backends.People, cfg.BcryptCost)
	svc := attendance.NewService(backends.Ledger, people, attendance.WithLocation(loc), attendance.WithLogger(logger))
	entries, err := svc.List(cmd.Context(), filter)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := report.Write(&buf, format, report.Rows(entries, loc)); err != nil {
		return err
	}
	path := exportOpts.out
	if path == "" {
		path = format.Filename()
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return err
	}
	abs, _ := filepath.Abs(path)
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d records to %s\n", len(entries), abs)
	return nil
}

func exportFilter(loc *time.Location) (attendance.Filter, error) {
	f := attendance.Filter{Room: exportOpts.room, Name: exportOpts.name, Badge: exportOpts.badge}
	if exportOpts.date != "" {
		day, err := attendance.ParseDay(exportOpts.date, loc)
		if err != nil {
			return f, fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
		}
		f.Day = &day
	}
	return f, nil
}
