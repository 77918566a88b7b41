package journal

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/models"
)

// WriteCSV exports the journal matrix: one row per date, an "ath" column
// naming the columns that peak on that date, and a trailing since_ath row.
func WriteCSV(w io.Writer, j *models.Journal) error {
	writer := csv.NewWriter(w)

	header := append([]string{"date"}, j.Symbols...)
	header = append(header, "total", "ath")
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, row := range j.Rows {
		rec := make([]string, 0, len(header))
		rec = append(rec, common.FormatDate(row.Date))
		var marks []string
		for _, sym := range j.Symbols {
			rec = append(rec, money(row.Values[sym]))
			if row.ATH[sym] {
				marks = append(marks, sym)
			}
		}
		if row.TotalATH {
			marks = append(marks, "total")
		}
		rec = append(rec, money(row.Total), strings.Join(marks, " "))
		if err := writer.Write(rec); err != nil {
			return err
		}
	}

	summary := make([]string, 0, len(header))
	summary = append(summary, "since_ath")
	for _, sym := range j.Symbols {
		summary = append(summary, money(j.Summary.SymbolSinceATH[sym]))
	}
	summary = append(summary, money(j.Summary.SinceATH), common.FormatDate(j.Summary.PeakDate))
	if err := writer.Write(summary); err != nil {
		return err
	}

	writer.Flush()
	return writer.Error()
}

func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}
