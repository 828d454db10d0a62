package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestResponse_ErrorEnvelope(t *testing.T) {
	resp := Response{
		Status:    "error",
		RequestID: "req_1",
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Error:     NewNotFoundError("job", "job_1"),
	}
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	out := string(data)
	for _, want := range []string{`"status":"error"`, `"code":"NOT_FOUND"`, `"data":null`} {
		if !strings.Contains(out, want) {
			t.Errorf("envelope %s missing %s", out, want)
		}
	}
}
