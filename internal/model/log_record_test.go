package model

import (
	"fmt"
	"testing"
)

func TestLogRecordTopic0(t *testing.T) {
	rec := LogRecord{Topics: []string{"0xaaa", "0xbbb"}}
	if got := rec.Topic0(); got != "0xaaa" {
		t.Fatalf("topic0 = %s", got)
	}
	if got := (LogRecord{}).Topic0(); got != "" {
		t.Fatalf("topic-less log topic0 = %q, want empty", got)
	}
}

func TestLogRecordBefore(t *testing.T) {
	cases := []struct {
		a, b LogRecord
		want bool
	}{
		{LogRecord{BlockNumber: 1, LogIndex: 9}, LogRecord{BlockNumber: 2, LogIndex: 0}, true},
		{LogRecord{BlockNumber: 2, LogIndex: 0}, LogRecord{BlockNumber: 1, LogIndex: 9}, false},
		{LogRecord{BlockNumber: 5, LogIndex: 3}, LogRecord{BlockNumber: 5, LogIndex: 4}, true},
		{LogRecord{BlockNumber: 5, LogIndex: 4}, LogRecord{BlockNumber: 5, LogIndex: 4}, false},
	}
	for i, tc := range cases {
		if got := tc.a.Before(tc.b); got != tc.want {
			t.Fatalf("case %d: before = %v, want %v", i, got, tc.want)
		}
	}
}

func TestNewDecodeError(t *testing.T) {
	rec := LogRecord{
		ChainID:     56,
		BlockNumber: 42,
		TxHash:      "0xdef456",
		LogIndex:    12,
		Address:     "0x1111111111111111111111111111111111111111",
		Topics:      []string{"0xtopic"},
	}

	de := NewDecodeError(rec, fmt.Errorf("unsupported topic0"))
	if de.BlockNumber != 42 || de.TxHash != "0xdef456" || de.LogIndex != 12 {
		t.Fatalf("log identity lost: %+v", de)
	}
	if de.Topic0 != "0xtopic" {
		t.Fatalf("topic0 = %s", de.Topic0)
	}
	if de.Error != "unsupported topic0" {
		t.Fatalf("error = %s", de.Error)
	}
}
