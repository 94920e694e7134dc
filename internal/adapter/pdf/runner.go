package pdf

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"nhp/internal/metrics"
	"nhp/internal/port"
)

// ExecRunner runs commands on the host.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return stdout.Bytes(), nil
}

// Pdftoppm renders PDF pages to PNG with poppler's pdftoppm.
type Pdftoppm struct {
	runner port.CommandRunner
	binary string
	dpi    int
}

func NewPdftoppm(runner port.CommandRunner, binary string, dpi int) *Pdftoppm {
	if binary == "" {
		binary = "pdftoppm"
	}
	if dpi <= 0 {
		dpi = 300
	}
	return &Pdftoppm{runner: runner, binary: binary, dpi: dpi}
}

// Rasterize writes outDir/page-N.png for the 1-based page N.
func (p *Pdftoppm) Rasterize(ctx context.Context, pdfPath string, page int, outDir string) (string, error) {
	prefix := filepath.Join(outDir, "page-"+strconv.Itoa(page))
	n := strconv.Itoa(page)
	_, err := p.runner.Run(ctx, p.binary,
		"-f", n, "-l", n,
		"-r", strconv.Itoa(p.dpi),
		"-png", "-singlefile",
		pdfPath, prefix,
	)
	if err != nil {
		return "", fmt.Errorf("failed to rasterize page %d: %w", page, err)
	}
	return prefix + ".png", nil
}

// Tesseract recognizes page images with the tesseract CLI.
type Tesseract struct {
	runner  port.CommandRunner
	binary  string
	lang    string
	metrics *metrics.Metrics
}

func NewTesseract(runner port.CommandRunner, binary, lang string, m *metrics.Metrics) *Tesseract {
	if binary == "" {
		binary = "tesseract"
	}
	if lang == "" {
		lang = "eng"
	}
	return &Tesseract{runner: runner, binary: binary, lang: lang, metrics: m}
}

func (t *Tesseract) Recognize(ctx context.Context, imagePath string) (string, error) {
	start := time.Now()
	out, err := t.runner.Run(ctx, t.binary, imagePath, "stdout", "-l", t.lang)
	t.metrics.ObserveCall(metrics.CapabilityOCR, start, err)
	if err != nil {
		return "", fmt.Errorf("failed to recognize %s: %w", filepath.Base(imagePath), err)
	}
	return string(out), nil
}
