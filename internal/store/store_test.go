package store

import (
	"testing"

	"poolscope/internal/model"
)

func TestLoadMissing(t *testing.T) {
	s := New()
	if _, ok := s.Pool("0x01"); ok {
		t.Fatalf("missing pool reported present")
	}
	if _, ok := s.Swap("0xaa-1"); ok {
		t.Fatalf("missing swap reported present")
	}
}

func TestSaveOverwrites(t *testing.T) {
	s := New()
	s.SavePool(&model.Pool{ID: "0x01", SwapsCount: 1})
	s.SavePool(&model.Pool{ID: "0x01", SwapsCount: 2})

	p, ok := s.Pool("0x01")
	if !ok {
		t.Fatalf("pool missing")
	}
	if p.SwapsCount != 2 {
		t.Fatalf("swaps count = %d, want the overwrite", p.SwapsCount)
	}
	if len(s.Pools()) != 1 {
		t.Fatalf("overwrite duplicated the record")
	}
}

func TestDeletePoolToken(t *testing.T) {
	s := New()
	s.SavePoolToken(&model.PoolToken{ID: "0x01-0xaa"})
	s.DeletePoolToken("0x01-0xaa")
	if _, ok := s.PoolToken("0x01-0xaa"); ok {
		t.Fatalf("deleted pool token still present")
	}
}

func TestProtocolSingleton(t *testing.T) {
	s := New()
	p := s.Protocol()
	if p.ID != model.ProtocolID {
		t.Fatalf("protocol id = %s", p.ID)
	}
	p.PoolCount = 3
	if s.Protocol().PoolCount != 3 {
		t.Fatalf("protocol accessor must return the same instance")
	}
}

func TestIterationSorted(t *testing.T) {
	s := New()
	for _, id := range []string{"0x0c", "0x0a", "0x0b"} {
		s.SavePool(&model.Pool{ID: id})
	}
	pools := s.Pools()
	if len(pools) != 3 {
		t.Fatalf("pools = %d, want 3", len(pools))
	}
	for i, want := range []string{"0x0a", "0x0b", "0x0c"} {
		if pools[i].ID != want {
			t.Fatalf("pools[%d] = %s, want %s", i, pools[i].ID, want)
		}
	}
}
