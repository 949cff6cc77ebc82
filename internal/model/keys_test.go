package model

import "testing"

func TestSwapPairKeyCanonicalOrder(t *testing.T) {
	idAB, a1, b1 := SwapPairKey("0xaa", "0xbb")
	idBA, a2, b2 := SwapPairKey("0xbb", "0xaa")
	if idAB != idBA {
		t.Fatalf("pair keys differ by direction: %s vs %s", idAB, idBA)
	}
	if a1 != a2 || b1 != b2 {
		t.Fatalf("canonical tokens differ: %s/%s vs %s/%s", a1, b1, a2, b2)
	}
	if a1 != "0xaa" || b1 != "0xbb" {
		t.Fatalf("tokens not lexicographic: %s/%s", a1, b1)
	}
}

func TestDayBucket(t *testing.T) {
	if got := DayBucket(0); got != 0 {
		t.Fatalf("DayBucket(0) = %d", got)
	}
	if got := DayBucket(86399); got != 0 {
		t.Fatalf("DayBucket(86399) = %d, want 0", got)
	}
	if got := DayBucket(86400); got != 86400 {
		t.Fatalf("DayBucket(86400) = %d, want 86400", got)
	}
	if got := DayBucket(200000); got != 172800 {
		t.Fatalf("DayBucket(200000) = %d, want 172800", got)
	}
}

func TestTimestampLogIndex(t *testing.T) {
	a := TimestampLogIndex(100, 9999)
	b := TimestampLogIndex(101, 0)
	if a >= b {
		t.Fatalf("sort key does not order across seconds: %d >= %d", a, b)
	}
	if TimestampLogIndex(100, 1) >= TimestampLogIndex(100, 2) {
		t.Fatalf("sort key does not order within a second")
	}
}

func TestSwapKeyFormats(t *testing.T) {
	if got := SwapKey("0xdead", 7); got != "0xdead-7" {
		t.Fatalf("SwapKey = %s", got)
	}
	if got := VirtualSwapKey("0xdead", 7, "0x01"); got != "0xdead-7-0x01" {
		t.Fatalf("VirtualSwapKey = %s", got)
	}
	if got := TokenPriceKey("0x01", "0xaa", "0xbb", 42); got != "0x01-0xaa-0xbb-42" {
		t.Fatalf("TokenPriceKey = %s", got)
	}
}
