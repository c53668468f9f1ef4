package testutil

import (
	"fmt"
	"strings"
)

// Sample datasets shared by service and handler tests.
const (
	// PeopleCSV has a duplicate row and missing values in both columns.
	PeopleCSV = "age,city\n25,NY\n25,NY\n,LA\n40,\n"

	// ScoresCSV is fully numeric with one missing score.
	ScoresCSV = "id,score\n1,10\n2,\n3,20\n4,30\n"

	// RaggedCSV has a row wider than its header.
	RaggedCSV = "a,b\n1,2\n3,4,5\n"
)

// NumberedCSV returns a single-column dataset "n" holding 0..rows-1.
func NumberedCSV(rows int) string {
	var b strings.Builder
	b.WriteString("n\n")
	for i := 0; i < rows; i++ {
		fmt.Fprintf(&b, "%d\n", i)
	}
	return b.String()
}
