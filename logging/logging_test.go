package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestLoggerInit(t *testing.T) {
	if err := Init("debug", "text"); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	if Get() == nil {
		t.Fatal("logger is nil after initialization")
	}

	if err := Init("verbose", "text"); err == nil {
		t.Error("expected error for unknown level")
	}
	_ = SetLevelString("info")
}

func TestLoggerJSON(t *testing.T) {
	_ = SetLevelString("info")
	var buf bytes.Buffer
	logger := New(&buf, "json").Named("analyzer")

	logger.Info(context.Background(), "analysis complete",
		String("url", "https://example.com"),
		Int("overall", 61),
		Error(errors.New("boom")),
	)

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}
	if line["msg"] != "analysis complete" {
		t.Errorf("msg = %v", line["msg"])
	}
	if line["component"] != "analyzer" {
		t.Errorf("component = %v", line["component"])
	}
	if line["error"] != "boom" {
		t.Errorf("error = %v", line["error"])
	}
	if src, _ := line["source"].(string); !strings.Contains(src, "logging_test.go") {
		t.Errorf("source = %q, want caller file", src)
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "text")

	_ = SetLevelString("warn")
	defer SetLevelString("info")

	logger.Info(context.Background(), "hidden")
	logger.Warn(context.Background(), "shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line logged at warn level: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warn line missing: %s", out)
	}
}

func TestStatistics(t *testing.T) {
	dir := t.TempDir()

	t.Run("tracks analyses and errors", func(t *testing.T) {
		s := NewStatistics(dir, false)
		s.TrackVisitor("10.0.0.1")
		s.TrackVisitor("10.0.0.2")
		s.TrackVisitor("10.0.0.1")
		s.TrackAnalysis("https://example.com/", 100, false)
		s.TrackAnalysis("https://example.com", 300, true)

		if got := s.UniqueVisitorsCount(); got != 2 {
			t.Errorf("UniqueVisitorsCount() = %d, want 2", got)
		}
		if got := s.ErrorRate(); got != 50 {
			t.Errorf("ErrorRate() = %v, want 50", got)
		}
		if s.AverageLoadTime != 200 {
			t.Errorf("AverageLoadTime = %v, want 200", s.AverageLoadTime)
		}
		if got := s.TopURLs(5)["https://example.com"]; got != 2 {
			t.Errorf("popular count = %d, want 2", got)
		}
	})

	t.Run("snapshot hides popular urls outside dev mode", func(t *testing.T) {
		prod := NewStatistics(t.TempDir(), false)
		if _, ok := prod.Snapshot()["popularUrls"]; ok {
			t.Error("popularUrls exposed outside dev mode")
		}
		dev := NewStatistics(t.TempDir(), true)
		if _, ok := dev.Snapshot()["popularUrls"]; !ok {
			t.Error("popularUrls missing in dev mode")
		}
	})

	t.Run("persists across restarts", func(t *testing.T) {
		s := NewStatistics(dir, false)
		s.TrackAnalysis("https://persist.example.org/pricing", 50, false)
		before := s.AnalysisRequests
		if err := s.Save(); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		reloaded := NewStatistics(dir, false)
		if reloaded.AnalysisRequests != before {
			t.Errorf("AnalysisRequests = %d, want %d", reloaded.AnalysisRequests, before)
		}
		if reloaded.PopularURLs["https://persist.example.org/pricing"] != 1 {
			t.Errorf("PopularURLs = %v", reloaded.PopularURLs)
		}
	})
}

func TestCleanURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://example.com/", "https://example.com"},
		{"https://example.com/blog/?q=1", "https://example.com/blog"},
		{"http://localhost:3000/page", ""},
		{"https://example.com/api/analyze", ""},
		{"not a url", ""},
	}
	for _, tt := range tests {
		if got := cleanURL(tt.in); got != tt.want {
			t.Errorf("cleanURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
