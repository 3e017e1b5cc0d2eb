package notify

import (
	"fmt"
	"time"
)

func formatDate(t time.Time) string {
	return t.Format("02.01.2006")
}

func formatTimeRange(start, end time.Time) string {
	return fmt.Sprintf("%s-%s", start.Format("15:04"), end.Format("15:04"))
}
