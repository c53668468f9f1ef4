// Package dataprocessing is the cleaning and view engine for tabular data.
// It turns delimited text into a typed Table, summarizes it, applies
// missing-value remediation rules and serves windows of rows as JSON-safe
// records.
//
// # Architecture
//
// The package is organized into five components:
//
// 1. Loader: parses delimited text, normalizes the header and infers a kind per column
// 2. Summarizer: row/column counts, per-column missing counts and duplicate rows
// 3. Rules: per-column missing-value classifications and remediation actions
// 4. Cleaner: duplicate removal, rules in order, then column removal
// 5. View: head, tail and range windows over a table
//
// Every path from a Table to the outside goes through Coerce, which maps
// cells to nil, int64, float64, string or []any.
//
// # Usage
//
// Loading and summarizing:
//
//	table, err := dataprocessing.Load(r, dataprocessing.DefaultLoadOptions())
//	if err != nil {
//	    return err
//	}
//	stats := dataprocessing.Summarize(table)
//
// Cleaning:
//
//	cleaner := dataprocessing.NewCleaner(logger)
//	result, err := cleaner.Clean(table, dataprocessing.CleaningRequest{
//	    SourceID:       "people.csv",
//	    DropDuplicates: true,
//	    Rules: []dataprocessing.Rule{
//	        {Column: "age", Classification: dataprocessing.ClassNull, Action: dataprocessing.ActionMean},
//	    },
//	})
//
// Viewing:
//
//	view, err := dataprocessing.View(table, dataprocessing.ViewRequest{Kind: dataprocessing.ViewTail, N: 5})
//
// # Missing Values
//
// A cell is Missing when its field matches one of the active missing tokens.
// Float columns may also hold NaN when a NaN literal is not a missing token.
// The rule classifications are overlapping views over these cells:
//
//	- null:   the cell is Missing
//	- nan:    the cell is NaN, or Missing in a numeric column
//	- empty:  the text rendering is ""
//	- na:     the text rendering is NA, N/A, na or n/a
//	- custom: the text rendering equals the rule's replacement literal
//
// Rules that cannot apply are skipped without error and the skip is recorded
// in the RuleOutcome.
//
// # Error Handling
//
// Malformed input is reported as *ParseError with the line number when known.
// Unknown view kinds wrap ErrInvalidViewKind. Unexpected failures during
// cleaning, including panics, surface as *ProcessingError.
package dataprocessing
