// Build-time tool that fetches the native libraries the ORT build tag
// needs: the ONNX Runtime shared library and the HuggingFace tokenizers
// static library for the current platform.
//
// Optional env: ORT_VERSION        (default "1.23.2")
//               ORT_LIB_DIR        (default "./lib")
//               TOKENIZERS_VERSION (default "1.24.0")
//
// Usage: go run ./tools/download-ort
package main

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const (
	defaultORTVersion        = "1.23.2"
	defaultTokenizersVersion = "1.24.0"
)

// library describes one native library to install into the lib dir.
type library struct {
	name     string // file name written to the lib dir
	url      string // release archive to fetch it from
	describe string
}

func main() {
	destDir := envOr("ORT_LIB_DIR", "./lib")
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "create directory: %v\n", err)
		os.Exit(1)
	}

	libs, err := platformLibraries(
		envOr("ORT_VERSION", defaultORTVersion),
		envOr("TOKENIZERS_VERSION", defaultTokenizersVersion),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	for _, lib := range libs {
		if err := install(lib, destDir); err != nil {
			fmt.Fprintf(os.Stderr, "%s download failed: %v\n", lib.describe, err)
			os.Exit(1)
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// platformLibraries returns the download set for the current GOOS/GOARCH.
func platformLibraries(ortVersion, tokVersion string) ([]library, error) {
	var ortArchive, ortLib, tokArchive string

	switch key := runtime.GOOS + "/" + runtime.GOARCH; key {
	case "linux/amd64":
		ortArchive, ortLib = fmt.Sprintf("onnxruntime-linux-x64-%s.tgz", ortVersion), "libonnxruntime.so"
		tokArchive = "libtokenizers.linux-amd64.tar.gz"
	case "linux/arm64":
		ortArchive, ortLib = fmt.Sprintf("onnxruntime-linux-aarch64-%s.tgz", ortVersion), "libonnxruntime.so"
		tokArchive = "libtokenizers.linux-arm64.tar.gz"
	case "darwin/arm64":
		ortArchive, ortLib = fmt.Sprintf("onnxruntime-osx-arm64-%s.tgz", ortVersion), "libonnxruntime.dylib"
		tokArchive = "libtokenizers.darwin-arm64.tar.gz"
	case "darwin/amd64":
		ortArchive, ortLib = fmt.Sprintf("onnxruntime-osx-x86_64-%s.tgz", ortVersion), "libonnxruntime.dylib"
		tokArchive = "libtokenizers.darwin-x86_64.tar.gz"
	default:
		return nil, fmt.Errorf("no prebuilt libraries for %s", key)
	}

	return []library{
		{
			name: ortLib,
			url: fmt.Sprintf("https://github.com/microsoft/onnxruntime/releases/download/v%s/%s",
				ortVersion, ortArchive),
			describe: "ONNX Runtime " + ortVersion,
		},
		{
			name: "libtokenizers.a",
			url: fmt.Sprintf("https://github.com/daulet/tokenizers/releases/download/v%s/%s",
				tokVersion, tokArchive),
			describe: "tokenizers " + tokVersion,
		},
	}, nil
}

func install(lib library, destDir string) error {
	destPath := filepath.Join(destDir, lib.name)
	if _, statErr := os.Stat(destPath); statErr == nil {
		fmt.Printf("%s already exists at %s, skipping\n", lib.describe, destPath)
		return nil
	}

	fmt.Printf("Downloading %s from %s\n", lib.describe, lib.url)

	delay := 2 * time.Second
	var err error
	for attempt := 0; attempt < 4; attempt++ {
		if attempt > 0 {
			fmt.Fprintf(os.Stderr, "retry in %s: %v\n", delay, err)
			time.Sleep(delay)
			delay *= 2
		}
		if err = fetchAndExtract(lib.url, destDir, lib.name); err == nil {
			fmt.Printf("%s installed to %s\n", lib.describe, destPath)
			return nil
		}
	}
	return err
}

func fetchAndExtract(url, destDir, filename string) error {
	resp, err := http.Get(url) //nolint:gosec
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d for %s", resp.StatusCode, url)
	}

	return extractTgz(resp.Body, destDir, filename)
}

func extractTgz(body io.Reader, destDir, filename string) error {
	gz, err := gzip.NewReader(body)
	if err != nil {
		return fmt.Errorf("gzip reader: %w", err)
	}
	defer gz.Close() //nolint:errcheck

	// Strip extension to match versioned variants like libonnxruntime.1.23.2.dylib
	nameWithoutExt := strings.TrimSuffix(filename, filepath.Ext(filename))

	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("tar read: %w", err)
		}

		// Symlinks and directories are skipped; only the real file counts.
		if header.Typeflag != tar.TypeReg {
			continue
		}

		base := filepath.Base(header.Name)
		if base != filename && !strings.HasPrefix(base, nameWithoutExt+".") {
			continue
		}

		return writeFile(filepath.Join(destDir, filename), tr)
	}

	return fmt.Errorf("%s not found in archive", filename)
}

func writeFile(path string, src io.Reader) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}

	return out.Close()
}
