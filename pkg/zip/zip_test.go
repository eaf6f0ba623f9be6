package zip

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteStoresEntriesInOrder(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.png")
	b := filepath.Join(dir, "b.png")
	if err := os.WriteFile(a, []byte("first"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte("second"), 0o644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := Write(&buf, []Entry{{Name: "0.png", Path: a}, {Name: "1.png", Path: b}}); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}
	want := []struct{ name, body string }{{"0.png", "first"}, {"1.png", "second"}}
	if len(zr.File) != len(want) {
		t.Fatalf("archive has %d entries, want %d", len(zr.File), len(want))
	}
	for i, f := range zr.File {
		if f.Name != want[i].name {
			t.Fatalf("entry %d name = %q, want %q", i, f.Name, want[i].name)
		}
		if f.Method != zip.Store {
			t.Fatalf("entry %d method = %d, want store", i, f.Method)
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		body, _ := io.ReadAll(rc)
		rc.Close()
		if string(body) != want[i].body {
			t.Fatalf("entry %d body = %q", i, body)
		}
	}
}

func TestWriteMissingFile(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, []Entry{{Name: "x.png", Path: filepath.Join(t.TempDir(), "missing.png")}}); err == nil {
		t.Fatal("expected error for missing file")
	}
}
