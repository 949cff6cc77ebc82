package ingest

import "testing"

func TestParseAddressesNormalizes(t *testing.T) {
	got, err := ParseAddresses([]string{
		" 0x1000000000000000000000000000000000000001 ",
		"",
		"0xAAAA000000000000000000000000000000000002",
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("addresses = %d, want 2 (blank skipped)", len(got))
	}
	if got[1].Hex() != "0xAaAa000000000000000000000000000000000002" {
		t.Fatalf("address = %s", got[1].Hex())
	}
}

func TestParseAddressesRejectsGarbage(t *testing.T) {
	if _, err := ParseAddresses([]string{"0x1234"}); err == nil {
		t.Fatalf("short address accepted")
	}
	if _, err := ParseAddresses([]string{"not-an-address"}); err == nil {
		t.Fatalf("non-hex address accepted")
	}
}

func TestParseTopic0Strict(t *testing.T) {
	full := "0x" + "ab" + "00000000000000000000000000000000000000000000000000000000000000"
	got, err := ParseTopic0([]string{full, " "})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("topics = %d, want 1", len(got))
	}
	if got[0].Hex() != full {
		t.Fatalf("topic = %s", got[0].Hex())
	}

	if _, err := ParseTopic0([]string{"0xabcd"}); err == nil {
		t.Fatalf("short topic accepted")
	}
	if _, err := ParseTopic0([]string{"zzzz"}); err == nil {
		t.Fatalf("non-hex topic accepted")
	}
}
