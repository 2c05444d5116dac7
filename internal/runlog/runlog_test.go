package runlog

import (
	"strconv"
	gosync "sync"
	"testing"

	"github.com/tovald/stocksync/internal/sync"
)

func rep(id string) sync.RunReport {
	return sync.RunReport{ID: id, State: sync.StateDone}
}

func TestLogNewestFirst(t *testing.T) {
	l := New(5)
	l.Add(rep("a"))
	l.Add(rep("b"))
	l.Add(rep("c"))

	last, ok := l.Last()
	if !ok || last.ID != "c" {
		t.Fatalf("expected newest run c, got %+v ok=%v", last, ok)
	}
	recent := l.Recent(2)
	if len(recent) != 2 || recent[0].ID != "c" || recent[1].ID != "b" {
		t.Fatalf("unexpected recent: %+v", recent)
	}
}

func TestLogEvictsOldest(t *testing.T) {
	l := New(2)
	l.Add(rep("a"))
	l.Add(rep("b"))
	l.Add(rep("c"))
	if l.Len() != 2 {
		t.Fatalf("expected 2 retained, got %d", l.Len())
	}
	all := l.Recent(0)
	if all[0].ID != "c" || all[1].ID != "b" {
		t.Fatalf("oldest must be evicted: %+v", all)
	}
}

func TestLogEmpty(t *testing.T) {
	l := New(3)
	if _, ok := l.Last(); ok {
		t.Fatalf("empty log must report no last run")
	}
	if got := l.Recent(0); len(got) != 0 {
		t.Fatalf("expected no reports, got %d", len(got))
	}
}

func TestLogConcurrentAdds(t *testing.T) {
	l := New(100)
	var wg gosync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			l.Add(rep(strconv.Itoa(n)))
		}(i)
	}
	wg.Wait()
	if l.Len() != 50 {
		t.Fatalf("expected 50 reports, got %d", l.Len())
	}
}
