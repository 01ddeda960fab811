package reporting

import (
	"fmt"
	"strings"

	"tradestream/internal/domain"
	"tradestream/internal/storage"
)

// RenderCSV renders daily activity as CSV string.
func RenderCSV(days []storage.DayActivity) string {
	var sb strings.Builder

	// Header
	sb.WriteString("day,accepted,rejected,processed\n")

	// Rows
	for _, day := range days {
		sb.WriteString(fmt.Sprintf("%s,%d,%d,%d\n",
			domain.FormatDate(day.Day),
			day.Accepted,
			day.Rejected,
			day.Accepted+day.Rejected,
		))
	}

	return sb.String()
}
