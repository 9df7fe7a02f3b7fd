package barcode

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
)

type stubTextReader struct {
	tokens []string
	err    error
	calls  int
}

func (s *stubTextReader) DetectText(ctx context.Context, image []byte) ([]string, error) {
	s.calls++
	return s.tokens, s.err
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode PNG: %v", err)
	}
	return buf.Bytes()
}

func blankImage() image.Image {
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(0, 0, color.Black)
	return img
}

func TestScanner(t *testing.T) {
	t.Run("DecodesEAN13", func(t *testing.T) {
		matrix, err := oned.NewEAN13Writer().Encode("4006381333931", gozxing.BarcodeFormat_EAN_13, 400, 120, nil)
		if err != nil {
			t.Fatalf("Failed to render barcode: %v", err)
		}
		ocr := &stubTextReader{}

		code, err := NewScanner(ocr).Decode(context.Background(), encodePNG(t, matrix))
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if code != "4006381333931" {
			t.Errorf("Expected '4006381333931', got '%s'", code)
		}
		if ocr.calls != 0 {
			t.Errorf("Expected OCR to be skipped, got %d calls", ocr.calls)
		}
	})

	t.Run("FallsBackToOCR", func(t *testing.T) {
		ocr := &stubTextReader{tokens: []string{"Milk", "3.2%", "1234567", "4607001771562"}}
		code, err := NewScanner(ocr).Decode(context.Background(), encodePNG(t, blankImage()))
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if code != "4607001771562" {
			t.Errorf("Expected OCR code, got '%s'", code)
		}
	})

	t.Run("NothingFound", func(t *testing.T) {
		code, err := NewScanner(nil).Decode(context.Background(), encodePNG(t, blankImage()))
		if err != nil || code != "" {
			t.Errorf("Expected no code and no error, got '%s' (%v)", code, err)
		}
	})

	t.Run("OCRFailure", func(t *testing.T) {
		ocr := &stubTextReader{err: errors.New("quota exceeded")}
		if _, err := NewScanner(ocr).Decode(context.Background(), encodePNG(t, blankImage())); err == nil {
			t.Fatal("Expected OCR error to be returned, got nil")
		}
	})

	t.Run("NotAnImage", func(t *testing.T) {
		if _, err := NewScanner(nil).Decode(context.Background(), []byte("not an image")); err == nil {
			t.Fatal("Expected an error for invalid image data, got nil")
		}
	})
}

func TestFindCode(t *testing.T) {
	tests := []struct {
		tokens []string
		want   string
	}{
		{[]string{"abc", "12345678"}, "12345678"},
		{[]string{"1234567"}, ""},
		{[]string{"12345678901234"}, ""},
		{[]string{"46070017715a2", " 4607001771562 "}, "4607001771562"},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := FindCode(tt.tokens); got != tt.want {
			t.Errorf("FindCode(%v): expected '%s', got '%s'", tt.tokens, tt.want, got)
		}
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize(" 4 600000-123456\n"); got != "4600000123456" {
		t.Errorf("Expected '4600000123456', got '%s'", got)
	}
}
