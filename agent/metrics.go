package agent

import (
	"encoding/json"
	"math"
	"time"
)

const (
	PathToolCall = "Tool Call"
	PathRAG      = "RAG"
)

// Metrics records how a query was answered. Durations are reported in
// seconds rounded to milliseconds.
type Metrics struct {
	Path          string
	RetrievalTime time.Duration
	TotalTime     time.Duration
	// STTTime is filled in by callers that transcribed the query first.
	STTTime time.Duration
}

// Map renders the metrics with their wire names. retrieval_time is present
// only on the RAG path and stt_time only when set.
func (m Metrics) Map() map[string]any {
	out := map[string]any{
		"path":       m.Path,
		"total_time": seconds(m.TotalTime),
	}
	if m.Path == PathRAG {
		out["retrieval_time"] = seconds(m.RetrievalTime)
	}
	if m.STTTime > 0 {
		out["stt_time"] = seconds(m.STTTime)
	}
	return out
}

func (m Metrics) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Map())
}

func seconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*1000) / 1000
}
