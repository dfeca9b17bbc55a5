package export

import (
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/tealeg/xlsx"

	"github.com/ternau/fluxdata/dataset"
)

func excelDataset(t *testing.T) *dataset.Dataset {
	t.Helper()

	ds := dataset.New(map[string]string{
		"site_name": "AdelaideRiver",
		"time_step": "30",
	})
	times := []time.Time{
		time.Date(2009, 1, 1, 0, 30, 0, 0, time.UTC),
		time.Date(2009, 1, 1, 1, 0, 0, 0, time.UTC),
		time.Date(2009, 1, 1, 1, 30, 0, 0, time.UTC),
	}
	ds.SetTime(times, nil)
	ds.AddVariable("station_name", nil, map[string]string{"value": "Adelaide River"})
	ds.AddVariable("AH", []float64{17.1, 17.2, 17.3}, map[string]string{
		"long_name": "Absolute humidity", "units": "g/m^3"})
	ds.AddVariable("AH_QCFlag", []float64{0, 1, 0}, map[string]string{"units": "-"})
	ds.AddVariable("Fsd", []float64{0, 5.5, 80.25}, map[string]string{
		"long_name": "Down-welling shortwave radiation", "units": "W/m^2"})
	return ds
}

func TestExcel(t *testing.T) {
	ds := excelDataset(t)
	path := filepath.Join(t.TempDir(), "AdelaideRiver.xlsx")

	got, err := Excel(path, ds)
	if err != nil {
		t.Fatalf("Excel() error: %v", err)
	}
	if got != path {
		t.Errorf("Excel() = %q, want %q", got, path)
	}

	wb, err := xlsx.OpenFile(path)
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	for _, name := range []string{"Attr", "Data", "Flag"} {
		if wb.Sheet[name] == nil {
			t.Fatalf("workbook missing sheet %q", name)
		}
	}

	attr := wb.Sheet["Attr"]
	if got := attr.Rows[0].Cells[0].Value; got != "Global attributes" {
		t.Errorf("Attr first cell = %q, want Global attributes", got)
	}

	data := wb.Sheet["Data"]
	// Rows 0..2: long names, units, variable names; columns follow
	// declaration order with the time axis first.
	nameRow := data.Rows[2]
	for i, want := range []string{"xlDateTime", "AH", "Fsd"} {
		if got := nameRow.Cells[i].Value; got != want {
			t.Errorf("Data name row cell %d = %q, want %q", i, got, want)
		}
	}
	unitRow := data.Rows[1]
	if got := unitRow.Cells[1].Value; got != "g/m^3" {
		t.Errorf("Data unit row cell 1 = %q, want g/m^3", got)
	}

	first := data.Rows[3]
	if got := first.Cells[0].Value; got != "01/01/2009 00:30" {
		t.Errorf("Data first timestamp = %q, want 01/01/2009 00:30", got)
	}
	ah, err := first.Cells[1].Float()
	if err != nil {
		t.Fatalf("AH cell: %v", err)
	}
	if math.Abs(ah-17.1) > 1e-9 {
		t.Errorf("AH cell = %v, want 17.1", ah)
	}

	flag := wb.Sheet["Flag"]
	// Only AH has a QC companion.
	header := flag.Rows[0]
	if len(header.Cells) != 2 || header.Cells[1].Value != "AH" {
		t.Errorf("Flag header = %v, want [xlDateTime AH]", header.Cells)
	}
	fv, err := flag.Rows[2].Cells[1].Int()
	if err != nil {
		t.Fatalf("flag cell: %v", err)
	}
	if fv != 1 {
		t.Errorf("flag cell = %d, want 1", fv)
	}
}

func TestExcelRequiresXlsxExtension(t *testing.T) {
	ds := excelDataset(t)
	_, err := Excel(filepath.Join(t.TempDir(), "out.xls"), ds)
	var exp *ExportError
	if !errors.As(err, &exp) {
		t.Fatalf("Excel() error = %v, want *ExportError", err)
	}
}

func TestExcelMissingDirectory(t *testing.T) {
	ds := excelDataset(t)
	_, err := Excel(filepath.Join(t.TempDir(), "missing", "out.xlsx"), ds)
	var exp *ExportError
	if !errors.As(err, &exp) {
		t.Fatalf("Excel() error = %v, want *ExportError", err)
	}
}
