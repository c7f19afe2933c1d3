// Package archive bundles a flat directory of generated files into a single
// downloadable zip.
package archive

import (
	"archive/zip"
	"compress/flate"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// CompressDir writes every regular file directly under srcDir into a zip at
// destPath, using maximum compression and base names only (no directory
// prefixes inside the archive). Subdirectories are ignored: batch output
// directories are flat by construction.
//
// CompressDir returns nil only after both the zip writer and the underlying
// file report a clean close, meaning the archive is fully flushed to disk.
// On any error the half-written archive is removed.
func CompressDir(srcDir, destPath string) (err error) {
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return fmt.Errorf("read archive source %s: %w", srcDir, err)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create archive %s: %w", destPath, err)
	}
	defer func() {
		if err != nil {
			out.Close()
			os.Remove(destPath)
		}
	}()

	zw := zip.NewWriter(out)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.BestCompression)
	})

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		if err = addFile(zw, filepath.Join(srcDir, name), name); err != nil {
			return fmt.Errorf("archive %s: %w", name, err)
		}
	}

	if err = zw.Close(); err != nil {
		return fmt.Errorf("finalize archive %s: %w", destPath, err)
	}
	if err = out.Close(); err != nil {
		return fmt.Errorf("flush archive %s: %w", destPath, err)
	}
	return nil
}

func addFile(zw *zip.Writer, path, name string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	header := &zip.FileHeader{Name: name, Method: zip.Deflate}
	if info, err := src.Stat(); err == nil {
		header.Modified = info.ModTime()
	}

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}
