// Package export serialises flux datasets to Excel workbooks and OneFlux
// CSV files.
package export

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tealeg/xlsx"

	"github.com/ternau/fluxdata/dataset"
)

// TimeLayout is how timestamps render in workbook and CSV cells.
const TimeLayout = "02/01/2006 15:04"

// Excel writes a three-sheet workbook: "Attr" (global then per-variable
// attributes), "Data" (one column per data variable, rows in time order)
// and "Flag" (the paired quality-control flags). Column order follows
// variable declaration order. The target path must end in .xlsx and its
// directory must already exist.
func Excel(path string, ds *dataset.Dataset) (string, error) {
	if !strings.HasSuffix(path, ".xlsx") {
		return "", &ExportError{Path: path, Err: fmt.Errorf("output file must have .xlsx extension")}
	}

	wb := xlsx.NewFile()
	if err := addAttrSheet(wb, ds); err != nil {
		return "", &ExportError{Path: path, Err: err}
	}
	if err := addDataSheet(wb, ds); err != nil {
		return "", &ExportError{Path: path, Err: err}
	}
	if err := addFlagSheet(wb, ds); err != nil {
		return "", &ExportError{Path: path, Err: err}
	}

	if err := wb.Save(path); err != nil {
		return "", &ExportError{Path: path, Err: err}
	}
	return path, nil
}

// addAttrSheet writes global attributes followed by per-variable
// attributes, both alphabetical for stable output.
func addAttrSheet(wb *xlsx.File, ds *dataset.Dataset) error {
	sheet, err := wb.AddSheet("Attr")
	if err != nil {
		return err
	}

	sheet.AddRow().AddCell().Value = "Global attributes"
	for _, key := range sortedKeys(ds.Attrs) {
		row := sheet.AddRow()
		row.AddCell().Value = key
		row.AddCell().Value = ds.Attrs[key]
	}

	sheet.AddRow()
	sheet.AddRow().AddCell().Value = "Variable attributes"
	for _, name := range ds.DataVariables() {
		v, _ := ds.Var(name)
		row := sheet.AddRow()
		row.AddCell().Value = name
		for i, key := range sortedKeys(v.Attrs) {
			if i > 0 {
				row = sheet.AddRow()
				row.AddCell() // name column left blank under the variable
			}
			row.AddCell().Value = key
			row.AddCell().Value = v.Attrs[key]
		}
	}
	return nil
}

func addDataSheet(wb *xlsx.File, ds *dataset.Dataset) error {
	sheet, err := wb.AddSheet("Data")
	if err != nil {
		return err
	}

	names := dataColumns(ds)

	// Row 0: long names, row 1: units, row 2: variable names.
	longRow, unitRow, nameRow := sheet.AddRow(), sheet.AddRow(), sheet.AddRow()
	longRow.AddCell()
	unitRow.AddCell()
	nameRow.AddCell().Value = "xlDateTime"
	for _, name := range names {
		v, _ := ds.Var(name)
		longRow.AddCell().Value = v.Attrs["long_name"]
		unitRow.AddCell().Value = v.Attrs["units"]
		nameRow.AddCell().Value = name
	}

	for i, t := range ds.Time {
		row := sheet.AddRow()
		row.AddCell().Value = t.Format(TimeLayout)
		for _, name := range names {
			v, _ := ds.Var(name)
			if i < len(v.Data) {
				row.AddCell().SetFloat(v.Data[i])
			} else {
				row.AddCell()
			}
		}
	}
	return nil
}

func addFlagSheet(wb *xlsx.File, ds *dataset.Dataset) error {
	sheet, err := wb.AddSheet("Flag")
	if err != nil {
		return err
	}

	var names []string
	for _, name := range dataColumns(ds) {
		if ds.Has(name + dataset.QCFlagSuffix) {
			names = append(names, name)
		}
	}

	header := sheet.AddRow()
	header.AddCell().Value = "xlDateTime"
	for _, name := range names {
		header.AddCell().Value = name
	}

	for i, t := range ds.Time {
		row := sheet.AddRow()
		row.AddCell().Value = t.Format(TimeLayout)
		for _, name := range names {
			v, _ := ds.Var(name + dataset.QCFlagSuffix)
			if i < len(v.Data) {
				row.AddCell().SetInt(int(v.Data[i]))
			} else {
				row.AddCell()
			}
		}
	}
	return nil
}

// dataColumns is the data variables minus their QC flag companions, in
// declaration order.
func dataColumns(ds *dataset.Dataset) []string {
	var out []string
	for _, name := range ds.DataVariables() {
		if strings.HasSuffix(name, dataset.QCFlagSuffix) {
			continue
		}
		out = append(out, name)
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
