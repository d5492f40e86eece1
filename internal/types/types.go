package types

import (
	"math"
	"time"
)

// Bar is one sampled interval of OHLCV data.
type Bar struct {
	Ts                             time.Time
	Open, High, Low, Close, Volume float64
}

// Indicators holds the derived columns of a Series. Every slice is aligned
// index-for-index with Series.Bars; warm-up rows are NaN.
type Indicators struct {
	MACD       []float64
	MACDSignal []float64
	MACDHist   []float64
	EMAFast    []float64
	EMASlow    []float64
	ATR        []float64
}

// Series is a bar history plus its derived indicator columns.
type Series struct {
	Bars       []Bar
	Indicators Indicators
}

// Len returns the number of bars in the series.
func (s Series) Len() int { return len(s.Bars) }

// LastClose returns the close of the most recent bar, or NaN for an empty series.
func (s Series) LastClose() float64 {
	if len(s.Bars) == 0 {
		return math.NaN()
	}
	return s.Bars[len(s.Bars)-1].Close
}

// Last returns the most recent value of col, or NaN when col is empty.
func Last(col []float64) float64 {
	if len(col) == 0 {
		return math.NaN()
	}
	return col[len(col)-1]
}

type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
	SideNone  Side = "NONE"
)

// Signal is the decision for the current cycle together with the ATR
// multipliers to use for protective levels.
type Signal struct {
	Side           Side    `json:"side"`
	StopLossMult   float64 `json:"sl_atr"`
	TakeProfitMult float64 `json:"tp_atr"`
}

// Levels are protective prices. A zero value means that leg is suppressed.
type Levels struct {
	Stop   float64 `json:"stop"`
	Target float64 `json:"target"`
}

// Position is the venue's view of current exposure for the traded instrument.
// Qty is signed: positive for long, negative for short.
type Position struct {
	Symbol string  `json:"symbol"`
	Qty    float64 `json:"qty"`
}

func (p Position) Open() bool { return p.Qty != 0 }

type OrderReq struct {
	Symbol      string  `json:"symbol"`
	Side        Side    `json:"side"`
	Size        float64 `json:"size"`
	StopPrice   float64 `json:"stop_price,omitempty"`
	TargetPrice float64 `json:"target_price,omitempty"`
	ClientID    string  `json:"client_id,omitempty"`
}

type OrderConfirmation struct {
	OrderID string   `json:"order_id"`
	Status  string   `json:"status"`
	Legs    []string `json:"legs,omitempty"`
}

// Stage is the furthest Execution Gate state a cycle reached.
type Stage string

const (
	StageIdle       Stage = "IDLE"
	StageEvaluating Stage = "EVALUATING"
	StageSizing     Stage = "SIZING"
	StageSubmitting Stage = "SUBMITTING"
)

const (
	ReasonNoSignal         = "no_signal"
	ReasonPositionOpen     = "position_open"
	ReasonSizeBelowMinimum = "size_below_minimum"
	ReasonSubmitted        = "submitted"
)

type CycleResult struct {
	Symbol string             `json:"symbol"`
	Time   time.Time          `json:"time"`
	Price  float64            `json:"price"`
	Signal Signal             `json:"signal"`
	Stage  Stage              `json:"stage"`
	Size   float64            `json:"size,omitempty"`
	Levels Levels             `json:"levels,omitempty"`
	Order  *OrderConfirmation `json:"order,omitempty"`
	Reason string             `json:"reason"`
}
