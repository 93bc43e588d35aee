package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestRecordTiming(t *testing.T) {
	c := NewCollector()

	c.RecordTiming(OpVectorSearch, 10*time.Millisecond)
	c.RecordTiming(OpVectorSearch, 30*time.Millisecond)
	c.RecordTiming(OpVectorSearch, 20*time.Millisecond)

	snap := c.Snapshot()
	if snap.VectorSearch == nil {
		t.Fatal("expected vector_search snapshot")
	}
	if snap.VectorSearch.Count != 3 {
		t.Errorf("count = %d, want 3", snap.VectorSearch.Count)
	}
	if snap.VectorSearch.MinTimeMs != 10 || snap.VectorSearch.MaxTimeMs != 30 {
		t.Errorf("min/max = %d/%d, want 10/30", snap.VectorSearch.MinTimeMs, snap.VectorSearch.MaxTimeMs)
	}
	if snap.VectorSearch.AvgTimeMs != 20 {
		t.Errorf("avg = %f, want 20", snap.VectorSearch.AvgTimeMs)
	}
}

func TestRecordLLMUsage(t *testing.T) {
	c := NewCollector()

	c.RecordLLMUsage(OpLLMStream, 100*time.Millisecond, 500, 120)
	c.RecordLLMUsage(OpLLMStream, 200*time.Millisecond, 700, 80)

	snap := c.Snapshot()
	if snap.LLMStream == nil {
		t.Fatal("expected llm_stream snapshot")
	}
	if snap.LLMStream.TotalInputTokens == nil || *snap.LLMStream.TotalInputTokens != 1200 {
		t.Errorf("total input tokens = %v, want 1200", snap.LLMStream.TotalInputTokens)
	}
	if snap.LLMStream.MinOutputTokens == nil || *snap.LLMStream.MinOutputTokens != 80 {
		t.Errorf("min output tokens = %v, want 80", snap.LLMStream.MinOutputTokens)
	}
	if snap.LLMStream.MaxInputTokens == nil || *snap.LLMStream.MaxInputTokens != 700 {
		t.Errorf("max input tokens = %v, want 700", snap.LLMStream.MaxInputTokens)
	}
}

func TestSnapshot_EmptyOpsOmitted(t *testing.T) {
	c := NewCollector()
	c.RecordTiming(OpIngest, time.Second)

	snap := c.Snapshot()
	if snap.Ingest == nil {
		t.Error("expected ingest snapshot")
	}
	if snap.Embedding != nil || snap.Parse != nil || snap.DBQuery != nil {
		t.Error("expected unrecorded operations to be nil")
	}
	if snap.UptimeSeconds < 0 {
		t.Errorf("uptime = %f", snap.UptimeSeconds)
	}
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	c := NewCollector()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.RecordTiming(OpEmbedding, time.Millisecond)
			}
		}()
	}
	wg.Wait()

	snap := c.Snapshot()
	if snap.Embedding == nil || snap.Embedding.Count != 1000 {
		t.Errorf("expected 1000 recordings, got %+v", snap.Embedding)
	}
}
