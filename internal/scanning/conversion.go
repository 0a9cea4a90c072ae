package scanning

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// DefaultDPI is the resolution PDF pages are rasterized at
const DefaultDPI = 200

// Decoder turns an uploaded document into an RGB image the model can read
type Decoder struct {
	DPI float64
}

// NewDecoder creates a Decoder rendering PDFs at DefaultDPI
func NewDecoder() *Decoder {
	return &Decoder{DPI: DefaultDPI}
}

// Decode converts a PDF (first page only), HEIC/HEIF, JPEG, PNG or GIF into an
// opaque RGBA image
func (d *Decoder) Decode(data []byte, fileName string, contentType string) (image.Image, error) {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	ext := strings.ToLower(filepath.Ext(fileName))

	var (
		img image.Image
		err error
	)
	switch {
	case ext == ".pdf" || mimeType == "application/pdf":
		img, err = d.pdfToImage(data)
	case isHEICFormat(data) || isHEICMimeType(mimeType):
		img, err = heic.Decode(bytes.NewReader(data))
		if err != nil {
			err = fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
	default:
		img, _, err = image.Decode(bytes.NewReader(data))
		if err != nil {
			// Provide more helpful error message for unsupported formats
			if strings.Contains(err.Error(), "unknown format") {
				err = fmt.Errorf("unsupported image format. Supported formats: JPEG, PNG, GIF, HEIC, HEIF, PDF. Error: %w", err)
			} else {
				err = fmt.Errorf("decoding image: %w", err)
			}
		}
	}
	if err != nil {
		return nil, err
	}

	return toRGB(img), nil
}

// pdfToImage renders the first page of a PDF
func (d *Decoder) pdfToImage(pdfData []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	if doc.NumPage() < 1 {
		return nil, fmt.Errorf("PDF has no pages")
	}

	dpi := d.DPI
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	img, err := doc.ImageDPI(0, dpi)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}
	return img, nil
}

// toRGB flattens any transparency onto white and returns an RGBA copy
func toRGB(src image.Image) *image.RGBA {
	bounds := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Over)
	return dst
}

// encodePNG encodes an image for transport to a model API
func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// isHEICFormat checks if the image data is in HEIC/HEIF format
// HEIC files typically start with specific magic bytes
func isHEICFormat(data []byte) bool {
	if len(data) < 12 {
		return false
	}
	// ftyp box with brand 'heic', 'heif', 'mif1', 'msf1'
	if string(data[4:8]) == "ftyp" {
		brand := string(data[8:12])
		if brand == "heic" || brand == "heif" || brand == "mif1" || brand == "msf1" {
			return true
		}
	}
	return false
}

// isHEICMimeType checks if the MIME type indicates HEIC/HEIF format
func isHEICMimeType(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}
