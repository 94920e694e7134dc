package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"

	"nhp/internal/domain"
	"nhp/internal/logger"
	"nhp/internal/port"
)

// PageReader returns the text layer of every page in order.
type PageReader func(data []byte) ([]string, error)

// Extractor reads the PDF text layer and falls back to OCR for pages with too little text.
type Extractor struct {
	readPages    PageReader
	rasterizer   port.Rasterizer
	ocr          port.OCR
	minPageChars int
	timeout      time.Duration
}

type Option func(*Extractor)

// WithOCR enables the rasterize-and-recognize fallback.
func WithOCR(r port.Rasterizer, o port.OCR) Option {
	return func(e *Extractor) {
		e.rasterizer = r
		e.ocr = o
	}
}

func WithPageReader(r PageReader) Option {
	return func(e *Extractor) { e.readPages = r }
}

// WithTimeout bounds each rasterize and recognize call.
func WithTimeout(d time.Duration) Option {
	return func(e *Extractor) { e.timeout = d }
}

func NewExtractor(minPageChars int, opts ...Option) *Extractor {
	e := &Extractor{
		readPages:    ReadPages,
		minPageChars: minPageChars,
		timeout:      2 * time.Minute,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Extractor) Extract(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", &domain.ExtractionError{Reason: "empty document"}
	}
	if mt := mimetype.Detect(data); !mt.Is("application/pdf") {
		return "", &domain.ExtractionError{Reason: "unsupported format " + mt.String()}
	}

	pages, err := e.readPages(data)
	if err != nil {
		return "", &domain.ExtractionError{Reason: "unreadable PDF", Err: err}
	}
	if len(pages) == 0 {
		return "", &domain.ExtractionError{Reason: "document has no pages"}
	}

	for i := range pages {
		pages[i] = CleanText(pages[i])
	}

	var sparse []int
	for i, p := range pages {
		if len([]rune(p)) < e.minPageChars {
			sparse = append(sparse, i)
		}
	}
	if len(sparse) > 0 && e.ocr != nil && e.rasterizer != nil {
		e.recognizePages(ctx, data, pages, sparse)
	}

	var nonEmpty []string
	for _, p := range pages {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	text := strings.Join(nonEmpty, "\n\n")
	if strings.TrimSpace(text) == "" {
		return "", &domain.ExtractionError{Reason: "no usable text found by text extraction or OCR"}
	}
	return text, nil
}

// recognizePages replaces the text of each sparse page with its OCR result when longer.
// The scratch directory is removed on every return path.
func (e *Extractor) recognizePages(ctx context.Context, data []byte, pages []string, sparse []int) {
	log := logger.FromContext(ctx)

	dir, err := os.MkdirTemp("", "nhp-ocr-*")
	if err != nil {
		log.Warn("OCR skipped", "error", err)
		return
	}
	defer os.RemoveAll(dir)

	pdfPath := filepath.Join(dir, "input.pdf")
	if err := os.WriteFile(pdfPath, data, 0600); err != nil {
		log.Warn("OCR skipped", "error", err)
		return
	}

	for _, i := range sparse {
		text, err := e.recognizePage(ctx, pdfPath, i+1, dir)
		if err != nil {
			log.Warn("OCR failed for page", "page", i+1, "error", err)
			continue
		}
		if text = CleanText(text); len(text) > len(pages[i]) {
			log.Debug("page recovered by OCR", "page", i+1, "chars", len(text))
			pages[i] = text
		}
	}
}

func (e *Extractor) recognizePage(ctx context.Context, pdfPath string, page int, dir string) (string, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	img, err := e.rasterizer.Rasterize(ctx, pdfPath, page, dir)
	if err == nil {
		var text string
		text, err = e.ocr.Recognize(ctx, img)
		if err == nil {
			return text, nil
		}
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "", fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}
	return "", err
}

// ReadPages extracts the text layer with ledongthuc/pdf. Reader panics on malformed
// input are returned as errors.
func ReadPages(data []byte) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	n := r.NumPage()
	pages = make([]string, 0, n)
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, text)
	}
	return pages, nil
}

// CleanText normalizes line endings, trims trailing spaces and collapses blank runs.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t\f\v")
		if strings.TrimSpace(line) == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
