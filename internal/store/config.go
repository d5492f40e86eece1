package store

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"trend-trading-bot/internal/ta"
	"trend-trading-bot/internal/types"

	"gopkg.in/yaml.v3"
)

type IndicatorConfig struct {
	MACDFast   int `yaml:"macd_fast"`
	MACDSlow   int `yaml:"macd_slow"`
	MACDSignal int `yaml:"macd_signal"`
	EMAFast    int `yaml:"ema_fast"`
	EMASlow    int `yaml:"ema_slow"`
	ATRPeriod  int `yaml:"atr_period"`
}

// WarmUp returns the number of bars needed before every indicator has a
// defined value on the last row.
func (ic IndicatorConfig) WarmUp() int {
	n := ta.MACDWarmUp(ic.MACDSlow, ic.MACDSignal)
	if w := ta.EMAWarmUp(ic.EMAFast); w > n {
		n = w
	}
	if w := ta.EMAWarmUp(ic.EMASlow); w > n {
		n = w
	}
	if w := ta.ATRWarmUp(ic.ATRPeriod); w > n {
		n = w
	}
	return n
}

type RiskConfig struct {
	RiskPct       float64 `yaml:"risk_pct"`
	MinSize       float64 `yaml:"min_size"`
	StopLossATR   float64 `yaml:"sl_atr"`
	TakeProfitATR float64 `yaml:"tp_atr"`
	// ATRPeriod mirrors indicators.atr_period; the volatility lookback is
	// configured once.
	ATRPeriod int `yaml:"-"`
}

type BybitConfig struct {
	Testnet      bool   `yaml:"testnet"`
	Category     string `yaml:"category"`
	RecvWindowMs int    `yaml:"recv_window_ms"`
	BaseURL      string `yaml:"base_url"`
}

type KiteConfig struct {
	Exchange        string `yaml:"exchange"`
	InstrumentToken int    `yaml:"instrument_token"`
	Product         string `yaml:"product"`
	BaseURL         string `yaml:"base_url"`
}

type PaperConfig struct {
	StartingBalance float64 `yaml:"starting_balance"`
	StartPrice      float64 `yaml:"start_price"`
	Seed            int64   `yaml:"seed"`
}

type Config struct {
	Mode        string          `yaml:"mode"`
	Gateway     string          `yaml:"gateway"`
	Symbol      string          `yaml:"symbol"`
	PollSeconds int             `yaml:"poll_seconds"`
	Limit       int             `yaml:"limit"`
	Timeframe   string          `yaml:"timeframe"`
	Leverage    int             `yaml:"leverage"`
	MetricsAddr string          `yaml:"metrics_addr"`
	Indicators  IndicatorConfig `yaml:"indicators"`
	Risk        RiskConfig      `yaml:"risk"`
	Bybit       BybitConfig     `yaml:"bybit"`
	Kite        KiteConfig      `yaml:"kite"`
	Paper       PaperConfig     `yaml:"paper"`
}

// PollInterval is the wait between decision cycles.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollSeconds) * time.Second
}

var timeframes = map[string]time.Duration{
	"1m":  time.Minute,
	"3m":  3 * time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"2h":  2 * time.Hour,
	"4h":  4 * time.Hour,
	"1d":  24 * time.Hour,
}

// Venue limits the generic checks cannot see. Kite has no 2h or 4h candles
// and Bybit returns at most 1000 klines per request.
var (
	unsupportedTimeframes = map[string][]string{
		"KITE": {"2h", "4h"},
	}
	maxHistory = map[string]int{
		"BYBIT": 1000,
	}
)

// TimeframeDuration returns the bar length for a supported timeframe.
func TimeframeDuration(tf string) (time.Duration, bool) {
	d, ok := timeframes[tf]
	return d, ok
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", types.ErrInvalidConfiguration, fmt.Sprintf(format, args...))
}

func (c *Config) Validate() error {
	if c.Mode != "DRY_RUN" && c.Mode != "LIVE" {
		return invalid("mode '%s': must be 'DRY_RUN' or 'LIVE'", c.Mode)
	}
	if c.Gateway != "PAPER" && c.Gateway != "BYBIT" && c.Gateway != "KITE" {
		return invalid("gateway '%s': must be 'PAPER', 'BYBIT' or 'KITE'", c.Gateway)
	}
	if strings.TrimSpace(c.Symbol) == "" {
		return invalid("symbol cannot be empty")
	}
	if c.PollSeconds <= 0 {
		return invalid("poll_seconds must be positive, got %d", c.PollSeconds)
	}
	if _, ok := TimeframeDuration(c.Timeframe); !ok {
		return invalid("unsupported timeframe '%s'", c.Timeframe)
	}
	if slices.Contains(unsupportedTimeframes[c.Gateway], c.Timeframe) {
		return invalid("timeframe '%s' is not offered by the %s gateway", c.Timeframe, c.Gateway)
	}

	ind := c.Indicators
	for name, v := range map[string]int{
		"macd_fast":   ind.MACDFast,
		"macd_slow":   ind.MACDSlow,
		"macd_signal": ind.MACDSignal,
		"ema_fast":    ind.EMAFast,
		"ema_slow":    ind.EMASlow,
		"atr_period":  ind.ATRPeriod,
	} {
		if v <= 0 {
			return invalid("indicators.%s must be positive, got %d", name, v)
		}
	}
	if ind.MACDFast >= ind.MACDSlow {
		return invalid("indicators.macd_fast (%d) must be below macd_slow (%d)", ind.MACDFast, ind.MACDSlow)
	}
	if ind.EMAFast >= ind.EMASlow {
		return invalid("indicators.ema_fast (%d) must be below ema_slow (%d)", ind.EMAFast, ind.EMASlow)
	}
	if w := ind.WarmUp(); c.Limit < w {
		return invalid("limit %d is below the longest indicator warm-up of %d bars", c.Limit, w)
	}
	if n, ok := maxHistory[c.Gateway]; ok && c.Limit > n {
		return invalid("limit %d exceeds the %d bars the %s gateway returns per request", c.Limit, n, c.Gateway)
	}

	if c.Risk.RiskPct <= 0 || c.Risk.RiskPct > 100 {
		return invalid("risk.risk_pct must be between 0-100, got %.2f", c.Risk.RiskPct)
	}
	if c.Risk.MinSize < 0 {
		return invalid("risk.min_size cannot be negative, got %g", c.Risk.MinSize)
	}
	if c.Risk.StopLossATR < 0 || c.Risk.TakeProfitATR < 0 {
		return invalid("risk.sl_atr and risk.tp_atr cannot be negative")
	}

	switch c.Gateway {
	case "KITE":
		if c.Kite.InstrumentToken <= 0 {
			return invalid("kite.instrument_token is required for the KITE gateway")
		}
	case "PAPER":
		if c.Paper.StartingBalance <= 0 || c.Paper.StartPrice <= 0 {
			return invalid("paper.starting_balance and paper.start_price must be positive")
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = "DRY_RUN"
	}
	if c.Gateway == "" {
		c.Gateway = "PAPER"
	}
	if c.PollSeconds == 0 {
		c.PollSeconds = 60
	}
	if c.Timeframe == "" {
		c.Timeframe = "1h"
	}
	if c.Leverage == 0 {
		c.Leverage = 1
	}
	if c.Limit == 0 {
		c.Limit = 300
	}
	ind := &c.Indicators
	if ind.MACDFast == 0 && ind.MACDSlow == 0 && ind.MACDSignal == 0 {
		ind.MACDFast, ind.MACDSlow, ind.MACDSignal = 12, 26, 9
	}
	if ind.EMAFast == 0 && ind.EMASlow == 0 {
		ind.EMAFast, ind.EMASlow = 50, 200
	}
	if ind.ATRPeriod == 0 {
		ind.ATRPeriod = 14
	}
	if c.Bybit.Category == "" {
		c.Bybit.Category = "linear"
	}
	if c.Bybit.RecvWindowMs == 0 {
		c.Bybit.RecvWindowMs = 5000
	}
	if c.Kite.Exchange == "" {
		c.Kite.Exchange = "NSE"
	}
	if c.Kite.Product == "" {
		c.Kite.Product = "MIS"
	}
	if c.Paper.StartingBalance == 0 {
		c.Paper.StartingBalance = 10000
	}
	if c.Paper.StartPrice == 0 {
		c.Paper.StartPrice = 50000
	}
	c.Gateway = strings.ToUpper(c.Gateway)
	c.Mode = strings.ToUpper(c.Mode)
	c.Risk.ATRPeriod = c.Indicators.ATRPeriod
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read config: %w", types.ErrInvalidConfiguration, err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("%w: decode yaml: %w", types.ErrInvalidConfiguration, err)
	}

	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}
