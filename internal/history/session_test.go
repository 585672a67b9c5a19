package history

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/pierrec/lz4/v4"
)

func mozLz4Compress(t *testing.T, data []byte) []byte {
	t.Helper()
	buf := make([]byte, lz4.CompressBlockBound(len(data)))
	var c lz4.Compressor
	n, err := c.CompressBlock(data, buf)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}

	out := make([]byte, 0, 12+n)
	out = append(out, mozLz4Magic...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(data)))
	return append(out, buf[:n]...)
}

func TestDecompressMozLz4_RoundTrip(t *testing.T) {
	original := []byte(`{"windows":[{"tabs":[]}]}`)
	compressed := mozLz4Compress(t, original)

	got, err := DecompressMozLz4(compressed)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if string(got) != string(original) {
		t.Errorf("round trip mismatch: %q", got)
	}
}

func TestDecompressMozLz4_Invalid(t *testing.T) {
	if _, err := DecompressMozLz4([]byte("short")); err == nil {
		t.Error("expected error for truncated data")
	}
	bad := append([]byte("notMozza"), 0, 0, 0, 0)
	if _, err := DecompressMozLz4(bad); err == nil {
		t.Error("expected error for wrong magic")
	}
}

func TestParseSessionHistory(t *testing.T) {
	raw := `{
  "windows": [
    {
      "tabs": [
        {
          "entries": [
            {"url": "https://old.example.com", "title": "Old"},
            {"url": "https://current.example.com", "title": "Current"}
          ],
          "index": 2,
          "lastAccessed": 1700000000000
        },
        {
          "entries": [],
          "index": 1,
          "lastAccessed": 1700000100000
        },
        {
          "entries": [{"url": "https://only.example.com", "title": "Only"}],
          "index": 99,
          "lastAccessed": 1700000200000
        }
      ]
    }
  ]
}`

	entries, err := ParseSessionHistory([]byte(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("expected 2 entries (empty tab skipped), got %d", len(entries))
	}
	// index picks the current page, not the first entry.
	if entries[0].URL != "https://current.example.com" {
		t.Errorf("expected current page, got %q", entries[0].URL)
	}
	if !entries[0].LastVisitTime.Equal(time.UnixMilli(1700000000000)) {
		t.Errorf("lastVisitTime mismatch: %v", entries[0].LastVisitTime)
	}
	if entries[0].VisitCount != 1 {
		t.Errorf("session entries count as one visit, got %d", entries[0].VisitCount)
	}
	// Out-of-range index clamps to the last entry.
	if entries[1].URL != "https://only.example.com" {
		t.Errorf("expected clamped entry, got %q", entries[1].URL)
	}
}
