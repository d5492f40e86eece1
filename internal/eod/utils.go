package eod

import (
	"path/filepath"
	"time"

	"trend-trading-bot/internal/tradelog"
)

func utcDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func eodCSVPath(t time.Time) string {
	return filepath.Join(tradelog.LogDir(), "eod", t.UTC().Format("2006-01-02")+".csv")
}
