// Package export renders calendars as spreadsheets.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"courtside/internal/grid"
	"courtside/internal/interval"
)

const maxSheetName = 31

// Excel forbids these in sheet names.
var sheetNameReplacer = strings.NewReplacer(":", "_", "\\", "_", "/", "_", "?", "_", "*", "_", "[", "_", "]", "_")

var kindFill = map[grid.Kind]string{
	grid.KindAvailable: "C6EFCE",
	grid.KindInvite:    "FFEB9C",
	grid.KindOthers:    "BDD7EE",
}

// WeekWriter lays out classified days as one spreadsheet: a row per quarter
// hour and a column per date.
type WeekWriter struct {
	file   *excelize.File
	sheet  string
	styles map[grid.Kind]int
}

func NewWeekWriter(title string) (*WeekWriter, error) {
	title = sheetNameReplacer.Replace(title)
	if title == "" {
		title = "Calendar"
	}
	if len(title) > maxSheetName {
		title = title[:maxSheetName]
	}

	f := excelize.NewFile()
	f.SetSheetName("Sheet1", title)

	w := &WeekWriter{file: f, sheet: title, styles: make(map[grid.Kind]int, len(kindFill))}
	for kind, color := range kindFill {
		style, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}},
		})
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("style %s: %w", kind, err)
		}
		w.styles[kind] = style
	}
	return w, nil
}

// WriteDays fills the sheet. Every day must render the same hours, which is
// the case for days produced by one grid call.
func (w *WeekWriter) WriteDays(days []grid.Day) error {
	if err := w.writeHeader(days); err != nil {
		return err
	}
	if len(days) == 0 {
		return nil
	}

	row := 2
	for h, hour := range days[0].Hours {
		for q := 0; q < interval.QuartersInHour; q++ {
			label, err := interval.FromMinutes(hour.Hour*60 + q*interval.QuarterMinutes)
			if err != nil {
				return err
			}
			if err := w.set(1, row, label.String()); err != nil {
				return err
			}
			for col, day := range days {
				if h >= len(day.Hours) {
					return fmt.Errorf("day %s has %d hours, want %d", day.Date, len(day.Hours), len(days[0].Hours))
				}
				if err := w.writeQuarter(col+2, row, day.Hours[h].Quarters[q]); err != nil {
					return err
				}
			}
			row++
		}
	}
	return nil
}

func (w *WeekWriter) writeHeader(days []grid.Day) error {
	if err := w.set(1, 1, "Time"); err != nil {
		return err
	}
	for i, d := range days {
		if err := w.set(i+2, 1, fmt.Sprintf("%s %s", d.Date.Weekday().String()[:3], d.Date.ISO())); err != nil {
			return err
		}
	}

	style, err := w.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		end, _ := excelize.CoordinatesToCellName(len(days)+1, 1)
		_ = w.file.SetCellStyle(w.sheet, "A1", end, style)
	}
	_ = w.file.SetPanes(w.sheet, &excelize.Panes{Freeze: true, XSplit: 1, YSplit: 1, TopLeftCell: "B2", ActivePane: "bottomRight"})
	return nil
}

func (w *WeekWriter) writeQuarter(col, row int, q grid.QuarterInfo) error {
	value := CellText(q)
	if value == "" {
		return nil
	}
	if err := w.set(col, row, value); err != nil {
		return err
	}
	if style, ok := w.styles[q.Kind]; ok {
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return err
		}
		return w.file.SetCellStyle(w.sheet, cell, cell, style)
	}
	return nil
}

func (w *WeekWriter) set(col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return w.file.SetCellValue(w.sheet, cell, value)
}

// Save writes the workbook to wr.
func (w *WeekWriter) Save(wr io.Writer) error {
	return w.file.Write(wr)
}

func (w *WeekWriter) Close() error {
	return w.file.Close()
}

// CellText is the text shown for a quarter. Unavailable quarters are blank.
func CellText(q grid.QuarterInfo) string {
	switch q.Kind {
	case grid.KindAvailable:
		return "available"
	case grid.KindInvite:
		return fmt.Sprintf("invite (%s)", q.InviteStatus)
	case grid.KindOthers:
		return fmt.Sprintf("%d available", q.Count)
	default:
		return ""
	}
}

// WriteWeek renders days into a workbook written to wr.
func WriteWeek(wr io.Writer, title string, days []grid.Day) error {
	w, err := NewWeekWriter(title)
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.WriteDays(days); err != nil {
		return err
	}
	return w.Save(wr)
}
