package logging

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestDefaultLogPath(t *testing.T) {
	p := DefaultLogPath()
	if filepath.Base(p) != "server.log" {
		t.Errorf("DefaultLogPath should end with server.log, got: %s", p)
	}
	if !strings.Contains(p, filepath.Join(".snipsearch", "logs")) {
		t.Errorf("DefaultLogPath should live under .snipsearch/logs, got: %s", p)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != "info" {
		t.Errorf("expected level 'info', got: %s", cfg.Level)
	}
	if cfg.MaxSizeMB != 10 || cfg.MaxFiles != 5 {
		t.Errorf("expected 10MB x 5 files, got: %dMB x %d", cfg.MaxSizeMB, cfg.MaxFiles)
	}
	if !cfg.WriteToStderr {
		t.Error("expected WriteToStderr to be true")
	}
}

func TestServeConfig_NeverWritesStderr(t *testing.T) {
	cfg := ServeConfig("debug")

	if cfg.WriteToStderr {
		t.Error("serve logging must not write to stderr")
	}
	if cfg.Level != "debug" {
		t.Errorf("expected level 'debug', got: %s", cfg.Level)
	}
}

func TestSetup_WritesJSONToFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "nested", "test.log")

	logger, cleanup, err := Setup(Config{Level: "info", FilePath: logPath})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	logger.Debug("hidden_event")
	logger.Info("search_complete", slog.String("term", "retry"), slog.Int("results", 3))
	cleanup()

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read log: %v", err)
	}
	if strings.Contains(string(data), "hidden_event") {
		t.Error("debug record should be filtered at info level")
	}
	e := ParseLine(strings.TrimSpace(string(data)))
	if !e.IsValid || e.Msg != "search_complete" {
		t.Fatalf("expected a JSON search_complete record, got: %q", data)
	}
	if e.Attrs["term"] != "retry" || e.Attrs["results"] != float64(3) {
		t.Errorf("unexpected attrs: %v", e.Attrs)
	}
}

func TestLevelFromString(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		if got := LevelFromString(in); got != want {
			t.Errorf("LevelFromString(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFindLogFile(t *testing.T) {
	if _, err := FindLogFile(filepath.Join(t.TempDir(), "missing.log")); err == nil {
		t.Error("expected error for missing explicit path")
	}

	p := filepath.Join(t.TempDir(), "server.log")
	if err := os.WriteFile(p, []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := FindLogFile(p)
	if err != nil || got != p {
		t.Errorf("FindLogFile(%q) = %q, %v", p, got, err)
	}
}

// ============================================================================
// Writer Tests
// ============================================================================

func newSmallWriter(t *testing.T, maxFiles int) (*RotatingWriter, string) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "rotate.log")
	w, err := NewRotatingWriter(logPath, 1, maxFiles)
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}
	w.maxSize = 1024
	t.Cleanup(func() { _ = w.Close() })
	return w, logPath
}

func TestRotatingWriter_Rotation(t *testing.T) {
	w, logPath := newSmallWriter(t, 3)
	first := bytes.Repeat([]byte("a"), 800)
	second := bytes.Repeat([]byte("b"), 800)

	if _, err := w.Write(first); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if _, err := w.Write(second); err != nil {
		t.Fatalf("second write failed: %v", err)
	}

	rotated, err := os.ReadFile(logPath + ".1")
	if err != nil {
		t.Fatalf("rotated file .1 should exist: %v", err)
	}
	if !bytes.Equal(rotated, first) {
		t.Error("rotated file should hold the first write")
	}
	current, _ := os.ReadFile(logPath)
	if !bytes.Equal(current, second) {
		t.Error("current file should hold the second write")
	}
}

func TestRotatingWriter_MaxFilesLimit(t *testing.T) {
	w, logPath := newSmallWriter(t, 2)
	chunk := bytes.Repeat([]byte("y"), 1000)

	for i := 0; i < 6; i++ {
		if _, err := w.Write(chunk); err != nil {
			t.Fatalf("write %d failed: %v", i, err)
		}
	}

	for _, suffix := range []string{".1", ".2"} {
		if _, err := os.Stat(logPath + suffix); err != nil {
			t.Errorf("rotated file %s should exist", suffix)
		}
	}
	if _, err := os.Stat(logPath + ".3"); !os.IsNotExist(err) {
		t.Error("rotated file .3 should not exist (beyond maxFiles)")
	}
}

func TestRotatingWriter_AppendsToExistingFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "existing.log")
	if err := os.WriteFile(logPath, []byte("old\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := NewRotatingWriter(logPath, 1, 3)
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}
	_, _ = w.Write([]byte("new\n"))
	_ = w.Close()

	data, _ := os.ReadFile(logPath)
	if string(data) != "old\nnew\n" {
		t.Errorf("expected append, got: %q", data)
	}
}

func TestRotatingWriter_WriteAfterClose(t *testing.T) {
	w, _ := newSmallWriter(t, 3)
	if err := w.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if _, err := w.Write([]byte("late")); err == nil {
		t.Error("expected error writing to closed writer")
	}
	if err := w.Close(); err != nil {
		t.Errorf("second close should be a no-op, got: %v", err)
	}
}

func TestRotatingWriter_ConcurrentWrites(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "concurrent.log")
	w, err := NewRotatingWriter(logPath, 10, 3)
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}
	defer w.Close()
	w.SetSyncEach(false)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _ = fmt.Fprintf(w, `{"id":%d,"iter":%d,"msg":"test"}`+"\n", id, j)
			}
		}(i)
	}
	wg.Wait()

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("log file should exist: %v", err)
	}
	if got := strings.Count(string(data), "\n"); got != 1000 {
		t.Errorf("expected 1000 lines, got %d", got)
	}
}

// ============================================================================
// Viewer Tests
// ============================================================================

const sampleLog = `{"time":"2026-03-01T10:00:00.000Z","level":"DEBUG","msg":"reconcile_complete","metadata_hits":2}
{"time":"2026-03-01T10:00:01.000Z","level":"INFO","msg":"search_complete","term":"retry","results":2}
not json at all
{"time":"2026-03-01T10:00:02.000Z","level":"WARN","msg":"stale_index_entry_removed","snippet_id":"S9"}
{"time":"2026-03-01T10:00:03.000Z","level":"ERROR","msg":"index_refresh_failed","index":"files"}
`

func writeSample(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "server.log")
	if err := os.WriteFile(p, []byte(sampleLog), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestParseLine(t *testing.T) {
	e := ParseLine(`{"time":"2026-03-01T10:00:01.000Z","level":"INFO","msg":"search_complete","term":"retry"}`)

	if !e.IsValid {
		t.Fatal("expected valid entry")
	}
	if e.Level != "INFO" || e.Msg != "search_complete" {
		t.Errorf("unexpected entry: %+v", e)
	}
	if !e.Time.Equal(time.Date(2026, 3, 1, 10, 0, 1, 0, time.UTC)) {
		t.Errorf("unexpected time: %v", e.Time)
	}
	if _, ok := e.Attrs["msg"]; ok {
		t.Error("standard fields should not appear in attrs")
	}

	if ParseLine("plain text").IsValid {
		t.Error("plain text should not parse")
	}
}

func TestViewer_Tail(t *testing.T) {
	p := writeSample(t)
	v := NewViewer(ViewerConfig{}, &bytes.Buffer{})

	entries, err := v.Tail(p, 2)
	if err != nil {
		t.Fatalf("Tail failed: %v", err)
	}
	if len(entries) != 2 || entries[0].Msg != "stale_index_entry_removed" || entries[1].Msg != "index_refresh_failed" {
		t.Errorf("expected the last two entries, got: %+v", entries)
	}
}

func TestViewer_Filters(t *testing.T) {
	p := writeSample(t)

	tests := []struct {
		name string
		cfg  ViewerConfig
		want []string
	}{
		{name: "level", cfg: ViewerConfig{Level: "warn"}, want: []string{"stale_index_entry_removed", "index_refresh_failed"}},
		{name: "event", cfg: ViewerConfig{Event: "search_complete"}, want: []string{"search_complete"}},
		{name: "pattern", cfg: ViewerConfig{Pattern: regexp.MustCompile(`S9`)}, want: []string{"stale_index_entry_removed"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := NewViewer(tt.cfg, &bytes.Buffer{}).Tail(p, 100)
			if err != nil {
				t.Fatalf("Tail failed: %v", err)
			}
			var got []string
			for _, e := range entries {
				got = append(got, e.Msg)
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestViewer_FormatEntry(t *testing.T) {
	v := NewViewer(ViewerConfig{NoColor: true}, &bytes.Buffer{})

	got := v.FormatEntry(ParseLine(`{"time":"2026-03-01T10:00:01.000Z","level":"INFO","msg":"search_complete","term":"retry","results":2}`))

	want := "10:00:01.000 INFO  search_complete results=2 term=retry"
	if got != want {
		t.Errorf("FormatEntry = %q, want %q", got, want)
	}
	if raw := v.FormatEntry(ParseLine("plain")); raw != "plain" {
		t.Errorf("invalid entries should print raw, got %q", raw)
	}
}

func TestViewer_Print(t *testing.T) {
	var buf bytes.Buffer
	v := NewViewer(ViewerConfig{NoColor: true}, &buf)

	v.Print([]LogEntry{ParseLine("a"), ParseLine("b")})

	if buf.String() != "a\nb\n" {
		t.Errorf("unexpected output: %q", buf.String())
	}
}

func TestViewer_Follow(t *testing.T) {
	p := writeSample(t)
	v := NewViewer(ViewerConfig{Event: "search_complete"}, &bytes.Buffer{})

	ctx, cancel := context.WithCancel(context.Background())
	entries := make(chan LogEntry, 4)
	done := make(chan error, 1)
	go func() { done <- v.Follow(ctx, p, entries) }()

	// Give Follow time to seek to the end before appending.
	time.Sleep(150 * time.Millisecond)
	f, err := os.OpenFile(p, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = f.WriteString(`{"time":"2026-03-01T10:01:00.000Z","level":"INFO","msg":"index_refresh_complete"}` + "\n")
	_, _ = f.WriteString(`{"time":"2026-03-01T10:01:01.000Z","level":"INFO","msg":"search_complete","term":"new"}` + "\n")
	_ = f.Close()

	select {
	case e := <-entries:
		if e.Attrs["term"] != "new" {
			t.Errorf("expected the appended search, got: %+v", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for followed entry")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Follow returned error: %v", err)
	}
}
