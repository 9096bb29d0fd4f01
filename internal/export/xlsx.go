// Package export writes dashboard snapshots as spreadsheets.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"subtrack/internal/core"
)

const (
	SubscriptionsSheet = "Subscriptions"
	CategorySheet      = "By Category"
)

// Snapshot is what gets exported: the full catalog, the view state and its
// derived overview.
type Snapshot struct {
	Subscriptions []core.Subscription
	State         core.State
	Overview      core.Overview
	Currency      core.Currency
}

// WriteXLSX writes snap as a workbook with one row per subscription and one
// row per category.
func WriteXLSX(w io.Writer, snap Snapshot) error {
	f, err := Build(snap)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Build assembles the workbook in memory.
func Build(snap Snapshot) (*excelize.File, error) {
	cur := snap.Currency
	if cur.Code == "" {
		cur = core.NewCurrency("USD")
	}

	f := excelize.NewFile()
	first := f.GetSheetName(f.GetActiveSheetIndex())
	if err := f.SetSheetName(first, SubscriptionsSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeSubscriptions(f, snap, cur); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.NewSheet(CategorySheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("create sheet %s: %w", CategorySheet, err)
	}
	if err := writeCategories(f, snap, cur); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func writeSubscriptions(f *excelize.File, snap Snapshot, cur core.Currency) error {
	header := []interface{}{"ID", "Name", "Category", "Yearly Cost", "Next Payment", "Included"}
	if err := f.SetSheetRow(SubscriptionsSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := 2
	for _, s := range snap.Subscriptions {
		included := "yes"
		if snap.State.Dimmed(s.ID) {
			included = "no"
		}
		values := []interface{}{
			s.ID,
			s.Name,
			s.Category,
			s.YearlyCost.Float(),
			core.FormatDate(s.NextPayment),
			included,
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SubscriptionsSheet, cell, &values); err != nil {
			return fmt.Errorf("write subscription %d: %w", s.ID, err)
		}
		row++
	}

	row++
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	total := []interface{}{"Total Annual Cost", "", "", snap.Overview.Total.Float(), cur.Format(snap.Overview.Total)}
	if err := f.SetSheetRow(SubscriptionsSheet, cell, &total); err != nil {
		return fmt.Errorf("write total: %w", err)
	}
	return f.SetColWidth(SubscriptionsSheet, "B", "C", 20)
}

func writeCategories(f *excelize.File, snap Snapshot, cur core.Currency) error {
	header := []interface{}{"Category", "Yearly Cost", "Formatted", "Color"}
	if err := f.SetSheetRow(CategorySheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, c := range snap.Overview.ByCategory {
		values := []interface{}{c.Name, c.Amount.Float(), cur.Format(c.Amount), c.Color}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(CategorySheet, cell, &values); err != nil {
			return fmt.Errorf("write category %s: %w", c.Name, err)
		}
	}
	return nil
}
