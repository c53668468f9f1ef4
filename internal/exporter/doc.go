// Package exporter writes tables out as files.
//
// Two formats are supported:
//
// CSV: the storage format for uploaded and derived datasets. Missing and NaN
// cells are written as empty fields so the file loads back with the same
// missing cells. An optional UTF-8 BOM helps Excel recognize the encoding.
//
// XLSX: a single-sheet workbook produced with excelize's stream writer, used
// by the export endpoint.
//
// Example usage:
//
//	var buf bytes.Buffer
//	err := exporter.WriteCSV(&buf, table, exporter.WriteOptions{BOMPrefix: true})
//
//	err = exporter.Write(w, exporter.FormatXLSX, table)
package exporter
