package history

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func TestEventJSONShape(t *testing.T) {
	e := Event{Type: EventLaunch, OccurredAt: time.Unix(0, 0).UTC(), Record: Record{Key: "PIV_1", PID: 7, Name: "shotA", FinalNum: 50}}
	b, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["type"] != "launch" {
		t.Fatalf("type: %v", m["type"])
	}
	rec := m["record"].(map[string]any)
	if rec["key"] != "PIV_1" || rec["final_num"].(float64) != 50 {
		t.Fatalf("record: %v", rec)
	}
	if _, ok := rec["error"]; ok {
		t.Fatalf("empty error should be omitted: %v", rec)
	}
}

func TestMemoryConcurrentSend(t *testing.T) {
	var m Memory
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = m.Send(context.Background(), Event{Type: EventLaunch, Record: Record{PID: i}})
		}(i)
	}
	wg.Wait()
	if got := len(m.Events()); got != 20 {
		t.Fatalf("expected 20 events, got %d", got)
	}
}
