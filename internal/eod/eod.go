package eod

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"trend-trading-bot/internal/interfaces"
	"trend-trading-bot/internal/tradelog"
)

type eodSummarizer struct {
	now func() time.Time
}

var _ interfaces.EodSummarizer = (*eodSummarizer)(nil)

// SummarizeDay writes the order totals for the UTC day of t, one row per
// symbol and side plus a TOTAL row. It returns "" when no orders were placed.
func (s *eodSummarizer) SummarizeDay(t time.Time) (string, error) {
	entries, err := tradelog.ReadDay(t)
	if err != nil {
		return "", err
	}

	aggs := map[string]*aggRow{}
	for _, e := range entries {
		key := e.Symbol + "|" + e.Side
		row := aggs[key]
		if row == nil {
			row = &aggRow{Symbol: e.Symbol, Side: e.Side}
			aggs[key] = row
		}
		row.Orders++
		row.TotalSize += e.Size
		row.Notional += e.Size * e.Price
	}
	if len(aggs) == 0 {
		return "", nil
	}

	keys := make([]string, 0, len(aggs))
	for k := range aggs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	outPath := eodCSVPath(t)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", err
	}
	out, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer out.Close()

	w := csv.NewWriter(out)
	headers := []string{"symbol", "side", "orders", "total_size", "avg_price", "notional"}
	if err := w.Write(headers); err != nil {
		return "", err
	}

	var totalOrders int
	var totalNotional float64
	for _, k := range keys {
		r := aggs[k]
		rec := []string{
			r.Symbol,
			r.Side,
			strconv.Itoa(r.Orders),
			strconv.FormatFloat(r.TotalSize, 'f', -1, 64),
			fmt.Sprintf("%.4f", r.avgPrice()),
			fmt.Sprintf("%.2f", r.Notional),
		}
		if err := w.Write(rec); err != nil {
			return "", err
		}
		totalOrders += r.Orders
		totalNotional += r.Notional
	}
	if err := w.Write([]string{"TOTAL", "", strconv.Itoa(totalOrders), "", "", fmt.Sprintf("%.2f", totalNotional)}); err != nil {
		return "", err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return outPath, nil
}

// ShouldRunNow reports whether yesterday (UTC) has a journal but no summary.
func (s *eodSummarizer) ShouldRunNow() (bool, time.Time) {
	day := utcDay(s.now()).AddDate(0, 0, -1)
	if _, err := os.Stat(eodCSVPath(day)); !errors.Is(err, os.ErrNotExist) {
		return false, day
	}
	if _, err := os.Stat(tradelog.DailyFilepath(day)); err != nil {
		return false, day
	}
	return true, day
}
