package ingest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/urfave/cli/v2"

	"github.com/ashishroygit/medical-chatbot-enterprise/manifest"
)

func PDF(ctx *cli.Context) error {
	p, err := newPipeline(ctx)
	if err != nil {
		return err
	}

	files, err := listFiles(p.dataDir, ".pdf")
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no PDF files found in %s", p.dataDir)
	}

	for _, file := range files {
		path := filepath.Join(p.dataDir, file)
		guid, err := fileGUID(path)
		if err != nil {
			return err
		}
		if p.known(guid) {
			fmt.Printf("skipping existing file %s\n", file)
			continue
		}

		text, err := extractPDFText(path)
		if err != nil {
			return err
		}

		err = p.ingest(ctx.Context, source{
			SourceData: manifest.SourceData{
				Kind:     "pdf",
				Title:    strings.TrimSuffix(file, filepath.Ext(file)),
				Filename: file,
				GUID:     guid,
			},
			Text: text,
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func extractPDFText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open pdf %s: %w", path, err)
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract text from %s: %w", path, err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("failed to read text from %s: %w", path, err)
	}
	return strings.ReplaceAll(buf.String(), "\x00", ""), nil
}

// listFiles returns the names of regular files in dir whose extension is one of exts,
// compared case-insensitively.
func listFiles(dir string, exts ...string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("could not read files in data directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		for _, want := range exts {
			if ext == want {
				files = append(files, entry.Name())
				break
			}
		}
	}
	return files, nil
}
