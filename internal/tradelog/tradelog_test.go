package tradelog

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestAppendAndReadDay(t *testing.T) {
	t.Setenv("TRADER_LOG_DIR", t.TempDir())

	if err := Append(Entry{Symbol: "BTCUSDT", Side: "LONG", Size: 0.002, Price: 50000, Stop: 49000, Target: 52000, OrderID: "o-1", Status: "submitted"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := Append(Entry{Symbol: "BTCUSDT", Side: "SHORT", Size: 0.001, Price: 51000, OrderID: "o-2", Status: "submitted"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	got, err := ReadDay(time.Now())
	if err != nil {
		t.Fatalf("ReadDay failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(got))
	}
	if got[0].OrderID != "o-1" || got[0].Stop != 49000 {
		t.Errorf("Unexpected first entry: %+v", got[0])
	}
	if got[1].Time == "" {
		t.Error("Expected Append to stamp the entry time")
	}
}

func TestReadDayMissingJournal(t *testing.T) {
	t.Setenv("TRADER_LOG_DIR", t.TempDir())

	got, err := ReadDay(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Expected no error for a missing journal, got %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected no entries, got %d", len(got))
	}
}

func TestReadDaySkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TRADER_LOG_DIR", dir)
	day := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)

	content := "not json\n{\"symbol\":\"BTCUSDT\",\"side\":\"LONG\",\"size\":1,\"price\":10,\"order_id\":\"x\"}\n"
	if err := os.WriteFile(filepath.Join(dir, "2024-03-05.txt"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := ReadDay(day)
	if err != nil {
		t.Fatalf("ReadDay failed: %v", err)
	}
	if len(got) != 1 || got[0].OrderID != "x" {
		t.Errorf("Expected only the valid line, got %+v", got)
	}
}

func TestCompressOlder(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TRADER_LOG_DIR", dir)

	old := filepath.Join(dir, "2020-01-01.txt")
	fresh := filepath.Join(dir, "2099-01-01.txt")
	for _, p := range []string{old, fresh} {
		if err := os.WriteFile(p, []byte("{\"order_id\":\"a\"}\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	past := time.Now().AddDate(0, 0, -30)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatal(err)
	}

	if err := CompressOlder(7); err != nil {
		t.Fatalf("CompressOlder failed: %v", err)
	}

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("Expected old journal to be removed after compression")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("Expected fresh journal to be kept")
	}

	f, err := os.Open(old + ".gz")
	if err != nil {
		t.Fatalf("Expected gzip file: %v", err)
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("Invalid gzip: %v", err)
	}
	b, _ := io.ReadAll(zr)
	if string(b) != "{\"order_id\":\"a\"}\n" {
		t.Errorf("Unexpected decompressed content: %q", b)
	}
}
