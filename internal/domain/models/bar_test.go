package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestBarJSONKeysAreSnakeCase(t *testing.T) {
	b := Bar{
		Timestamp: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		Ticker:    "AAPL",
		Interval:  "1d",
		Open:      100, High: 101, Low: 99, Close: 100.5,
		Volume:   1000,
		AdjClose: 100.5,
		Source:   "yahoo",
	}
	raw, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var keys map[string]interface{}
	if err := json.Unmarshal(raw, &keys); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, want := range []string{"timestamp", "ticker", "interval", "open", "high", "low", "close", "volume", "adj_close", "source"} {
		if _, ok := keys[want]; !ok {
			t.Fatalf("missing key %q in %s", want, raw)
		}
	}
	if _, ok := keys["AdjClose"]; ok {
		t.Fatalf("PascalCase key leaked into %s", raw)
	}
}

func TestBarValidate(t *testing.T) {
	good := Bar{Timestamp: time.Now(), Ticker: "AAPL", Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 1}
	if err := good.Validate(); err != nil {
		t.Fatalf("valid bar rejected: %v", err)
	}

	bad := good
	bad.High = bad.Low - 1
	if err := bad.Validate(); err == nil {
		t.Fatalf("high below low accepted")
	}

	bad = good
	bad.Volume = -1
	if err := bad.Validate(); err == nil {
		t.Fatalf("negative volume accepted")
	}
}
