// Package ocr wraps text extraction from screenshot images. The rest of
// the system only ever sees the extracted text, never the pixels.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// Engine extracts text from an image file.
type Engine interface {
	ExtractText(ctx context.Context, imagePath string) (string, error)
}

// Tesseract shells out to the tesseract binary. ROOM screenshots are
// Japanese, so the default language is jpn.
type Tesseract struct {
	Binary string
	Lang   string
}

// NewTesseract creates a Tesseract engine. Empty arguments fall back to
// "tesseract" and "jpn".
func NewTesseract(binary, lang string) *Tesseract {
	if binary == "" {
		binary = "tesseract"
	}
	if lang == "" {
		lang = "jpn"
	}
	return &Tesseract{Binary: binary, Lang: lang}
}

func (t *Tesseract) ExtractText(ctx context.Context, imagePath string) (string, error) {
	cmd := exec.CommandContext(ctx, t.Binary, imagePath, "stdout", "-l", t.Lang)

	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("ocr %s: %w: %s", imagePath, err, stderr.String())
	}
	return out.String(), nil
}
