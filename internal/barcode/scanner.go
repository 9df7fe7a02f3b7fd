package barcode

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"strings"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
)

// TextReader returns the text tokens an OCR service finds in an image.
type TextReader interface {
	DetectText(ctx context.Context, image []byte) ([]string, error)
}

// Scanner decodes EAN/UPC barcodes locally and, when that fails, falls back to
// OCR looking for a printed 8 to 13 digit code.
type Scanner struct {
	readers []gozxing.Reader
	hints   map[gozxing.DecodeHintType]interface{}
	ocr     TextReader
}

// NewScanner creates a Scanner. ocr may be nil.
func NewScanner(ocr TextReader) *Scanner {
	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	return &Scanner{
		readers: []gozxing.Reader{
			oned.NewMultiFormatUPCEANReader(hints),
			oned.NewCode128Reader(),
		},
		hints: hints,
		ocr:   ocr,
	}
}

// Decode returns the barcode found in data, or "" when there is none.
func (s *Scanner) Decode(ctx context.Context, data []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	if code := s.decodeImage(img); code != "" {
		return code, nil
	}

	if s.ocr == nil {
		return "", nil
	}
	tokens, err := s.ocr.DetectText(ctx, data)
	if err != nil {
		return "", fmt.Errorf("failed to detect text: %w", err)
	}
	return FindCode(tokens), nil
}

func (s *Scanner) decodeImage(img image.Image) string {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		log.Printf("Failed to binarize image: %v", err)
		return ""
	}

	for _, r := range s.readers {
		result, err := r.Decode(bmp, s.hints)
		if err != nil {
			continue
		}
		if code := Normalize(result.GetText()); code != "" {
			return code
		}
	}
	return ""
}

// FindCode returns the first token made only of 8 to 13 digits.
func FindCode(tokens []string) string {
	for _, t := range tokens {
		if t = strings.TrimSpace(t); IsCandidate(t) {
			return t
		}
	}
	return ""
}
