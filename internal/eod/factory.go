package eod

import (
	"time"

	"trend-trading-bot/internal/interfaces"
)

func NewSummarizer() interfaces.EodSummarizer {
	return &eodSummarizer{now: time.Now}
}
