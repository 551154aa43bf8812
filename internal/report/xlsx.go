// Package report renders close summaries for printing or export.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"register-shift-service/internal/remote"
)

const SheetName = "Close Summary"

const timeLayout = "2006-01-02 15:04"

// WriteCloseSummary writes s as a two-column workbook: label, value.
func WriteCloseSummary(w io.Writer, s *remote.CloseSummary, loc *time.Location) error {
	if s == nil {
		return fmt.Errorf("no close summary to export")
	}
	if loc == nil {
		loc = time.Local
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return err
	}

	money, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return err
	}

	rows := []struct {
		label string
		value interface{}
	}{
		{"Shift", s.ShiftID},
		{"Opened", formatTime(s.OpenedAt, loc)},
		{"Closed", formatTime(s.ClosedAt, loc)},
		{"Opening balance", amount(s.OpeningBalance)},
		{"Cash sales", amount(s.CashTotal)},
		{"Non-cash sales", amount(s.NonCashTotal)},
		{"Tax", amount(s.Tax)},
		{"Discount", amount(s.Discount)},
		{"Other costs", amount(s.OtherCosts)},
		{"Transactions", s.TransactionCount},
		{"Closing balance", optionalAmount(s.ClosingBalance)},
	}

	for i, row := range rows {
		labelCell, _ := excelize.CoordinatesToCellName(1, i+1)
		valueCell, _ := excelize.CoordinatesToCellName(2, i+1)
		if err := f.SetCellValue(SheetName, labelCell, row.label); err != nil {
			return err
		}
		if err := f.SetCellValue(SheetName, valueCell, row.value); err != nil {
			return err
		}
		if _, ok := row.value.(float64); ok {
			if err := f.SetCellStyle(SheetName, valueCell, valueCell, money); err != nil {
				return err
			}
		}
	}

	if err := f.SetColWidth(SheetName, "A", "A", 20); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetName, "B", "B", 22); err != nil {
		return err
	}

	return f.Write(w)
}

func amount(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

// optionalAmount leaves the cell blank when the server sent no figure.
func optionalAmount(d decimal.NullDecimal) interface{} {
	if !d.Valid {
		return ""
	}
	return amount(d.Decimal)
}

func formatTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(loc).Format(timeLayout)
}
