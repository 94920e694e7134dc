package port

import "context"

// CommandRunner runs an external program and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// Rasterizer renders one page of a PDF file to an image file and returns its path.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdfPath string, page int, outDir string) (string, error)
}

// OCR recognizes the text of a single page image.
type OCR interface {
	Recognize(ctx context.Context, imagePath string) (string, error)
}
