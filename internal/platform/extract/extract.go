// Package extract turns uploaded medical reports into plain text: PDFs are
// read directly and images go through Tesseract OCR.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/otiai10/gosseract/v2"
)

var ErrUnsupported = errors.New("unsupported file type")

// TextExtractor pulls text out of one kind of document.
type TextExtractor interface {
	Extract(data []byte) (string, error)
}

// PDF extracts the text layer of a PDF document.
type PDF struct{}

func (PDF) Extract(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	var buf strings.Builder
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}

// OCR recognises text in an image. A Tesseract client is not safe for
// concurrent use, so each call gets its own.
type OCR struct {
	Language string
}

func (o OCR) Extract(data []byte) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if o.Language != "" {
		if err := client.SetLanguage(o.Language); err != nil {
			return "", fmt.Errorf("set ocr language: %w", err)
		}
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("load image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("ocr: %w", err)
	}
	return text, nil
}

// Kind classifies a MIME type for decoding.
type Kind int

const (
	KindUnsupported Kind = iota
	KindPDF
	KindImage
)

func KindOf(mimeType string) Kind {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	switch {
	case mimeType == "application/pdf":
		return KindPDF
	case strings.HasPrefix(mimeType, "image/"):
		return KindImage
	default:
		return KindUnsupported
	}
}

// Decoder routes a document to the extractor for its MIME type.
type Decoder struct {
	PDF   TextExtractor
	Image TextExtractor
}

func NewDecoder(ocrLanguage string) *Decoder {
	return &Decoder{PDF: PDF{}, Image: OCR{Language: ocrLanguage}}
}

// Decode returns the document text. The error wraps ErrUnsupported when the
// MIME type has no extractor.
func (d *Decoder) Decode(mimeType string, data []byte) (string, Kind, error) {
	kind := KindOf(mimeType)
	var ex TextExtractor
	switch kind {
	case KindPDF:
		ex = d.PDF
	case KindImage:
		ex = d.Image
	}
	if ex == nil {
		return "", kind, fmt.Errorf("%w: %s", ErrUnsupported, mimeType)
	}
	text, err := ex.Extract(data)
	return text, kind, err
}
