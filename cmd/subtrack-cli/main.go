package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/GiGurra/boa/pkg/boa"

	"subtrack/internal/catalog"
	"subtrack/internal/core"
	"subtrack/internal/export"
	"subtrack/internal/report"
)

type Params struct {
	Catalog  string `descr:"YAML catalog file, defaults to the built-in subscriptions" optional:"true"`
	Ghost    bool   `descr:"Enable ghost mode" optional:"true"`
	Exclude  string `descr:"Comma separated subscription ids to remove in ghost mode" optional:"true"`
	Dark     bool   `descr:"Use the dark theme" optional:"true"`
	Format   string `descr:"Output format" alts:"table,json,xlsx" strict:"true" default:"table"`
	Out      string `descr:"Output file for xlsx" default:"subtrack.xlsx"`
	Currency string `descr:"ISO 4217 currency code for formatting" default:"USD"`
}

func main() {
	boa.NewCmdT[Params]("subtrack-cli").
		WithShort("Show the subscription dashboard in the terminal").
		WithLong("Renders yearly subscription costs, totals and the per-category breakdown. Ghost mode with --exclude shows totals without the given subscriptions.").
		WithRunFunc(func(params *Params) {
			if err := run(params); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		}).
		Run()
}

func run(params *Params) error {
	cat := catalog.Default()
	if params.Catalog != "" {
		var err error
		cat, err = catalog.LoadFile(params.Catalog)
		if err != nil {
			return err
		}
	}

	code := strings.ToUpper(params.Currency)
	if !core.KnownCurrency(code) {
		return fmt.Errorf("unknown currency %q", params.Currency)
	}

	excluded, err := parseIDs(params.Exclude)
	if err != nil {
		return err
	}
	snap, err := buildSnapshot(cat, params.Dark, params.Ghost, excluded)
	if err != nil {
		return err
	}
	snap.Currency = core.NewCurrency(code)

	switch params.Format {
	case "json":
		return report.WriteJSON(os.Stdout, snap)
	case "xlsx":
		f, err := os.Create(params.Out)
		if err != nil {
			return fmt.Errorf("create %s: %w", params.Out, err)
		}
		if err := export.WriteXLSX(f, snap); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("close %s: %w", params.Out, err)
		}
		fmt.Printf("Wrote %s\n", params.Out)
		return nil
	default:
		report.WriteTable(os.Stdout, snap, report.Options{})
		return nil
	}
}

// buildSnapshot replays the flags as dashboard events on a fresh view.
func buildSnapshot(cat *catalog.Catalog, dark, ghost bool, excluded []int) (export.Snapshot, error) {
	d := core.NewDashboard(cat.All())
	if dark {
		d.ToggleTheme()
	}
	if ghost {
		d.ToggleGhostMode()
	}
	seen := make(map[int]bool, len(excluded))
	for _, id := range excluded {
		if !cat.Has(id) {
			return export.Snapshot{}, fmt.Errorf("subscription %d: %w", id, catalog.ErrUnknownID)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		d.ToggleSubscription(id)
	}
	st, ov := d.View()
	return export.Snapshot{Subscriptions: d.Subscriptions(), State: st, Overview: ov}, nil
}

// parseIDs parses "1, 3" into ids. Empty input means none.
func parseIDs(s string) ([]int, error) {
	var ids []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid subscription id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
