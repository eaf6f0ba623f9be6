package zip

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"time"
)

// Entry is one file on disk to place in an archive under Name.
type Entry struct {
	Name     string
	Path     string
	Modified time.Time
}

// Write streams entries into a zip archive on w. Images are already
// compressed, so entries are stored rather than deflated.
func Write(w io.Writer, entries []Entry) error {
	zw := zip.NewWriter(w)
	for _, e := range entries {
		if err := addFile(zw, e); err != nil {
			_ = zw.Close()
			return err
		}
	}
	return zw.Close()
}

func addFile(zw *zip.Writer, e Entry) error {
	f, err := os.Open(e.Path)
	if err != nil {
		return fmt.Errorf("zip: open %s: %w", e.Name, err)
	}
	defer f.Close()

	hdr := &zip.FileHeader{Name: e.Name, Method: zip.Store}
	if !e.Modified.IsZero() {
		hdr.Modified = e.Modified
	}
	dst, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("zip: add %s: %w", e.Name, err)
	}
	if _, err := io.Copy(dst, f); err != nil {
		return fmt.Errorf("zip: write %s: %w", e.Name, err)
	}
	return nil
}
