package events

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strconv"
	"strings"
	"time"

	"campusevents/internal/auth"
)

// CSVHeader is the first line of every export.
const CSVHeader = "ID,Title,Category,Venue,Start DateTime,End DateTime,Capacity,Status"

// ExportCSV renders all events as UTF-8 CSV.
func (s *Service) ExportCSV(ctx context.Context, who auth.Identity) ([]byte, error) {
	if !who.Can(auth.CapExportEvents) {
		return nil, ErrForbidden
	}
	evts, err := s.FindAllEvents(ctx)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, evts, s.now()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteCSV writes the header and one row per event. Status is derived from
// now: Upcoming when the start is after now, Past otherwise, Unknown without
// a start.
func WriteCSV(w io.Writer, evts []Event, now time.Time) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(CSVHeader)
	bw.WriteByte('\n')
	for _, e := range evts {
		fields := [...]string{
			strconv.FormatInt(e.ID, 10),
			csvField(e.Title),
			csvField(e.Category),
			csvField(e.Venue),
			formatLocal(e.StartsAt),
			formatLocal(e.EndsAt),
			capacityText(e.MaxCapacity),
			statusText(e, now),
		}
		bw.WriteString(strings.Join(fields[:], ","))
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// csvField quotes s only when it contains a comma, a double quote or a
// newline, doubling embedded quotes.
func csvField(s string) string {
	if !strings.ContainsAny(s, ",\"\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func capacityText(c *int) string {
	if c == nil {
		return "Unlimited"
	}
	return strconv.Itoa(*c)
}

func statusText(e Event, now time.Time) string {
	switch {
	case e.StartsAt == nil:
		return "Unknown"
	case e.StartsAt.After(now):
		return "Upcoming"
	default:
		return "Past"
	}
}

// formatLocal renders an ISO-8601 local date-time, dropping seconds when
// they and the fraction are zero. A fraction prints in the shortest group of
// three digits that holds it: 18:30, 18:30:15, 18:30:15.500, 18:30:15.123456.
func formatLocal(t *time.Time) string {
	if t == nil {
		return ""
	}
	u := t.UTC()
	if u.Second() == 0 && u.Nanosecond() == 0 {
		return u.Format("2006-01-02T15:04")
	}
	switch ns := u.Nanosecond(); {
	case ns == 0:
		return u.Format("2006-01-02T15:04:05")
	case ns%1_000_000 == 0:
		return u.Format("2006-01-02T15:04:05.000")
	case ns%1_000 == 0:
		return u.Format("2006-01-02T15:04:05.000000")
	default:
		return u.Format("2006-01-02T15:04:05.000000000")
	}
}
