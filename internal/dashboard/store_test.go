package dashboard

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func fireEntry(t *testing.T, ls *logStore, msg string, data logrus.Fields) {
	t.Helper()
	entry := &logrus.Entry{
		Time:    time.Now(),
		Level:   logrus.InfoLevel,
		Message: msg,
		Data:    data,
	}
	if err := ls.Fire(entry); err != nil {
		t.Fatalf("Fire returned error: %v", err)
	}
}

func TestLogStoreKeepsMostRecentOldestFirst(t *testing.T) {
	ls := newLogStore(3)

	for i := 0; i < 5; i++ {
		fireEntry(t, ls, fmt.Sprintf("line %d", i), nil)
	}

	snap := ls.snapshot()
	if len(snap) != 3 {
		t.Fatalf("snapshot length = %d, want 3", len(snap))
	}
	for i, want := range []string{"line 2", "line 3", "line 4"} {
		if snap[i].Message != want {
			t.Errorf("snapshot[%d] = %q, want %q", i, snap[i].Message, want)
		}
	}
}

func TestLogStorePartialRing(t *testing.T) {
	ls := newLogStore(10)
	fireEntry(t, ls, "only", nil)

	snap := ls.snapshot()
	if len(snap) != 1 || snap[0].Message != "only" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestLogStoreExtractsComponentAndFields(t *testing.T) {
	ls := newLogStore(10)
	fireEntry(t, ls, "dial failed", logrus.Fields{
		"component": "feed",
		"error":     errors.New("connection refused"),
		"attempt":   3,
	})

	snap := ls.snapshot()
	if len(snap) != 1 {
		t.Fatalf("snapshot length = %d", len(snap))
	}
	record := snap[0]
	if record.Component != "feed" {
		t.Errorf("component = %q", record.Component)
	}
	if _, ok := record.Fields["component"]; ok {
		t.Error("component must not be duplicated into fields")
	}
	if record.Fields["error"] != "connection refused" {
		t.Errorf("error field not stringified: %v", record.Fields["error"])
	}
}

func TestLogStoreIgnoresEntriesAfterClose(t *testing.T) {
	ls := newLogStore(10)
	fireEntry(t, ls, "before", nil)
	ls.close()
	fireEntry(t, ls, "after", nil)

	snap := ls.snapshot()
	if len(snap) != 1 || snap[0].Message != "before" {
		t.Fatalf("entries after close must be dropped: %+v", snap)
	}
}
