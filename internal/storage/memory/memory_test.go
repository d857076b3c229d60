package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/chrissnell/lantern/internal/buffer"
	"github.com/chrissnell/lantern/internal/types"
)

func TestMemoryEngine(t *testing.T) {
	s := New(buffer.New(0), nil)
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	c := s.StartStorageEngine(ctx, &wg)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		c <- types.Reading{SensorID: "a", Location: "Downtown", Timestamp: base.Add(time.Duration(i) * time.Second)}
	}

	deadline := time.Now().Add(5 * time.Second)
	for s.Buffer.Len() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("buffered %d of 3 readings", s.Buffer.Len())
		}
		time.Sleep(5 * time.Millisecond)
	}

	got, err := s.Snapshot(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Errorf("snapshot has %d readings, want 3", len(got))
	}
	if h := s.CheckHealth(ctx); h.Message != "3 readings buffered" {
		t.Errorf("health message = %q", h.Message)
	}

	cancel()
	wg.Wait()
}
