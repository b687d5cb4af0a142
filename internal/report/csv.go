package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/wonny/rebalancer/internal/contracts"
)

// WriteCSV writes one row per record: the date and the cumulative return in
// percent of the portfolio and of each benchmark.
func WriteCSV(w io.Writer, records []contracts.ReturnRecord) error {
	names, values := percentSeries(records)

	cw := csv.NewWriter(w)
	header := append([]string{"Date"}, names...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := make([]string, len(header))
	for j, r := range records {
		row[0] = r.Date.Format(contracts.DateLayout)
		for i := range names {
			row[i+1] = strconv.FormatFloat(values[i][j], 'f', 2, 64)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", j, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
