package audit

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var csvHeader = []string{"URL", "Status", "Title", "Meta Description", "H1", "Load Time (ms)", "Issues"}

// WriteCSV writes one row per page. Issues are joined with "; ".
func WriteCSV(w io.Writer, pages []Page) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, p := range pages {
		row := []string{
			p.URL,
			strconv.Itoa(p.StatusCode),
			deref(p.Title),
			deref(p.MetaDescription),
			deref(p.H1),
			strconv.FormatInt(p.LoadTime, 10),
			strings.Join(p.Issues, "; "),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
