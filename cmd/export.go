package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/xuri/excelize/v2"

	"github.com/m1ggy/time-doctor-monday.com-integration/internal/model"
)

var (
	exportRunID  string
	exportFormat string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a run's per-user outcomes",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportRunID, "run", "", "Run ID (defaults to the latest run)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "Output format: csv, json, md, xlsx")
	exportCmd.Flags().StringVar(&exportOutput, "output", "", "Write to this file instead of stdout")
}

// exportColumns are the columns of the csv, md and xlsx formats.
var exportColumns = []string{
	"email", "name", "group", "record_id", "result",
	"clock_in", "clock_out", "date", "total_worked_hours", "reason",
}

func runExport(cmd *cobra.Command, args []string) error {
	write, ok := exporters[exportFormat]
	if !ok {
		return fmt.Errorf("unknown --format %q (want csv, json, md or xlsx)", exportFormat)
	}

	ctx := cmd.Context()
	led, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer led.Close()

	var run model.Run
	if exportRunID != "" {
		run, err = led.GetRun(ctx, exportRunID)
	} else {
		run, err = led.LatestRun(ctx)
	}
	if err != nil {
		return err
	}
	outcomes, err := led.ListOutcomes(ctx, run.ID)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if exportOutput != "" {
		f, err := os.Create(exportOutput)
		if err != nil {
			return fmt.Errorf("creating %s: %w", exportOutput, err)
		}
		defer f.Close()
		w = f
	}
	if err := write(w, run, outcomes); err != nil {
		return fmt.Errorf("writing %s export: %w", exportFormat, err)
	}
	if exportOutput != "" {
		fmt.Fprintf(os.Stderr, "Exported %d outcome(s) of run %s to %s.\n", len(outcomes), run.ID, exportOutput)
	}
	return nil
}

type exporter func(w io.Writer, run model.Run, outcomes []model.Outcome) error

var exporters = map[string]exporter{
	"csv":  writeCSV,
	"json": writeJSON,
	"md":   writeMarkdown,
	"xlsx": writeXLSX,
}

// outcomeRow returns o's cells in exportColumns order.
func outcomeRow(o model.Outcome) []string {
	return []string{
		o.Email, o.Name, o.Group, o.RecordID, string(o.Result),
		fieldText(o.Fields["clock_in"]),
		fieldText(o.Fields["clock_out"]),
		fieldText(o.Fields["date"]),
		fieldText(o.Fields["total_worked_hours"]),
		o.Reason,
	}
}

func writeCSV(w io.Writer, run model.Run, outcomes []model.Outcome) error {
	if _, err := fmt.Fprintln(w, strings.Join(exportColumns, ",")); err != nil {
		return err
	}
	for _, o := range outcomes {
		row := outcomeRow(o)
		for i := range row {
			row[i] = csvEscape(row[i])
		}
		if _, err := fmt.Fprintln(w, strings.Join(row, ",")); err != nil {
			return err
		}
	}
	return nil
}

// csvEscape quotes a field containing a comma, quote or line break.
func csvEscape(s string) string {
	if !strings.ContainsAny(s, ",\"\r\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func writeJSON(w io.Writer, run model.Run, outcomes []model.Outcome) error {
	if outcomes == nil {
		outcomes = []model.Outcome{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Run      model.Run       `json:"run"`
		Outcomes []model.Outcome `json:"outcomes"`
	}{run, outcomes})
}

func writeMarkdown(w io.Writer, run model.Run, outcomes []model.Outcome) error {
	title := run.Period
	if run.DryRun {
		title += " (dry run)"
	}
	fmt.Fprintf(w, "## %s\n\n", title)
	fmt.Fprintf(w, "Run `%s`, reference %s\n\n", run.ID, run.Reference.Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(w, "| %s |\n", strings.Join(exportColumns, " | "))
	fmt.Fprintf(w, "|%s\n", strings.Repeat("---|", len(exportColumns)))
	for _, o := range outcomes {
		row := outcomeRow(o)
		for i := range row {
			row[i] = strings.ReplaceAll(row[i], "|", `\|`)
		}
		if _, err := fmt.Fprintf(w, "| %s |\n", strings.Join(row, " | ")); err != nil {
			return err
		}
	}
	return nil
}

const xlsxSheet = "Outcomes"

func writeXLSX(w io.Writer, run model.Run, outcomes []model.Outcome) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", xlsxSheet); err != nil {
		return err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return err
	}
	for col, header := range exportColumns {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(xlsxSheet, cell, header); err != nil {
			return err
		}
		if err := f.SetCellStyle(xlsxSheet, cell, cell, headerStyle); err != nil {
			return err
		}
	}

	for i, o := range outcomes {
		for col, value := range outcomeRow(o) {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(xlsxSheet, cell, value); err != nil {
				return err
			}
		}
	}

	if err := f.SetColWidth(xlsxSheet, "A", "A", 30); err != nil {
		return err
	}
	if err := f.SetPanes(xlsxSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}
	if err := f.SetDocProps(&excelize.DocProperties{
		Title:       run.Period,
		Description: "tdsync run " + run.ID,
	}); err != nil {
		return err
	}

	_, err = f.WriteTo(w)
	return err
}
