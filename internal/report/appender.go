package report

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/xchpool-tools/xchpool-stats/internal/estimate"
	"github.com/xchpool-tools/xchpool-stats/internal/util"
)

// Columns of the log file in row order
var Columns = []string{
	"timestamp",
	"total_space",
	"pool_space",
	"expected_blocks_period",
	"expected_blocks_elapsed",
	"actual_blocks",
	"ahead_behind",
	"points",
	"member_netspace",
	"poolshare",
	"price",
	"payout_to_date",
	"projected_total_payout",
}

// Separator terminates every field, including the last one of a row
const Separator = ";"

// Appender appends one row per report to a log file
type Appender struct {
	path string
}

// NewAppender creates an appender for path
func NewAppender(path string) *Appender {
	return &Appender{path: path}
}

// Path returns the log file path
func (a *Appender) Path() string {
	return a.path
}

// Append writes r as one row, preceded by the header when the file is new
func (a *Appender) Append(r *estimate.Report) error {
	_, err := os.Stat(a.path)
	writeHeader := errors.Is(err, fs.ErrNotExist)
	if err != nil && !writeHeader {
		return fmt.Errorf("stat log file: %w", err)
	}

	f, err := os.OpenFile(a.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	var sb strings.Builder
	if writeHeader {
		sb.WriteString(formatRow(Columns))
	}
	sb.WriteString(formatRow(Row(r)))

	if _, err := f.WriteString(sb.String()); err != nil {
		return fmt.Errorf("write log file: %w", err)
	}
	util.Debugf("appended report row to %s", a.path)
	return f.Close()
}

// Row returns the log fields of r in column order
func Row(r *estimate.Report) []string {
	return []string{
		strconv.FormatInt(r.Timestamp.Unix(), 10),
		formatFloat(r.TotalSpace),
		formatFloat(r.PoolSpace),
		formatFloat(r.ExpectedBlocksPeriod),
		formatFloat(r.ExpectedBlocksElapsed),
		strconv.FormatInt(r.ActualBlocks, 10),
		formatFloat(r.AheadBehind),
		strconv.FormatInt(r.Points, 10),
		formatFloat(r.MemberNetspace),
		formatFloat(r.PoolShare),
		formatFloat(r.Price),
		formatFloat(r.PayoutToDate),
		formatFloat(r.ProjectedTotal),
	}
}

func formatRow(fields []string) string {
	var sb strings.Builder
	for _, field := range fields {
		sb.WriteString(field)
		sb.WriteString(Separator)
	}
	sb.WriteString("\n")
	return sb.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
