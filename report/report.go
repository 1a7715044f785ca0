// CLAUDE:SUMMARY Report writer: persists composite PNGs and results.json for a run, optionally assembles them into a PDF.
// Package report persists a comparison run to disk: one highlight composite
// per compared offset, a machine-readable results.json, and optionally a
// single PDF stitching the composites together for review.
package report

import (
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/hazyhaar/viewdiff/compare"
)

// Output lists everything a Write call produced.
type Output struct {
	JSONPath       string   `json:"json_path"`
	CompositePaths []string `json:"composite_paths"`
	// PDFPath is empty when PDF assembly is disabled or no composites exist.
	PDFPath string `json:"pdf_path,omitempty"`
}

// Writer persists run results into a directory.
type Writer struct {
	dir    string
	pdf    bool
	logger *slog.Logger
}

// Option configures a Writer.
type Option func(*Writer)

// WithPDF enables assembling all composites into report.pdf.
func WithPDF(enabled bool) Option {
	return func(w *Writer) { w.pdf = enabled }
}

// WithLogger overrides the default slog logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Writer) { w.logger = l }
}

// NewWriter creates a Writer rooted at dir. The directory is created on the
// first Write.
func NewWriter(dir string, opts ...Option) *Writer {
	w := &Writer{dir: dir, logger: slog.Default()}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Write persists the run. Records without a composite (capture or diff
// failures) still appear in results.json; they simply have no image file.
func (w *Writer) Write(res *compare.RunResult) (*Output, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("report: create dir: %w", err)
	}

	out := &Output{}
	label := fileLabel(res.Summary.ViewportLabel)

	for _, rec := range res.Records {
		if rec.Composite == nil {
			continue
		}
		path := filepath.Join(w.dir, fmt.Sprintf("%s_%03d.png", label, rec.Index))
		if err := writePNG(path, rec.Composite); err != nil {
			return nil, err
		}
		out.CompositePaths = append(out.CompositePaths, path)
	}

	jsonPath := filepath.Join(w.dir, "results.json")
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("report: encode results: %w", err)
	}
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("report: write results: %w", err)
	}
	out.JSONPath = jsonPath

	if w.pdf && len(out.CompositePaths) > 0 {
		pdfPath := filepath.Join(w.dir, "report.pdf")
		if err := api.ImportImagesFile(out.CompositePaths, pdfPath, nil, nil); err != nil {
			// The PDF is a convenience artifact; its failure must not lose
			// the PNGs and JSON already on disk.
			w.logger.Warn("report: pdf assembly failed", "error", err)
		} else {
			out.PDFPath = pdfPath
		}
	}

	w.logger.Info("report: run persisted",
		"dir", w.dir, "composites", len(out.CompositePaths), "pdf", out.PDFPath != "")
	return out, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create %s: %w", filepath.Base(path), err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("report: encode %s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("report: close %s: %w", filepath.Base(path), err)
	}
	return nil
}

// fileLabel turns a viewport label into a safe file stem.
func fileLabel(label string) string {
	if label == "" {
		return "viewport"
	}
	var b strings.Builder
	for _, r := range strings.ToLower(label) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
