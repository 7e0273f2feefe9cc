package models

import (
	"fmt"
	"time"
)

// Bar represents one OHLCV observation for a ticker at a given interval.
// Primary key in the store is (ticker, interval, timestamp); upserting the
// same key overwrites price/volume/source fields.
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Ticker    string    `json:"ticker"`
	Interval  string    `json:"interval"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	AdjClose  float64   `json:"adj_close"`
	Source    string    `json:"source"`
}

// Validate checks OHLC consistency. The store does not enforce this;
// connectors must validate before write and drop bars that fail.
func (b *Bar) Validate() error {
	if b.Ticker == "" {
		return fmt.Errorf("ticker empty")
	}
	if b.Timestamp.IsZero() {
		return fmt.Errorf("timestamp zero")
	}
	if b.High < b.Open || b.High < b.Close || b.High < b.Low {
		return fmt.Errorf("high %f below open/close/low", b.High)
	}
	if b.Low > b.Open || b.Low > b.Close {
		return fmt.Errorf("low %f above open/close", b.Low)
	}
	if b.Volume < 0 {
		return fmt.Errorf("negative volume")
	}
	return nil
}

// Tick is a single streaming price observation.
type Tick struct {
	Ticker    string
	Timestamp int64 // unix seconds
	Price     float64
	Volume    float64
}
