package extract

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/gen2brain/go-fitz"

	"github.com/dcallies/voucher-sync/internal/ocr"
)

// MediaTypePDF and MediaTypeImage classify candidate documents.
const (
	MediaTypePDF   = "pdf"
	MediaTypeImage = "image"
)

// rasterize converts document bytes into one PNG page image per page. PDFs
// are rendered page-by-page via mupdf; images are passed through as a
// single page.
func rasterize(data []byte, mediaType string, dpi, maxPages int) ([]ocr.Page, error) {
	if mediaType == MediaTypeImage {
		return []ocr.Page{{Image: data, Index: 0, DPI: dpi}}, nil
	}

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if maxPages > 0 && pageCount > maxPages {
		pageCount = maxPages
	}

	pages := make([]ocr.Page, 0, pageCount)
	for i := 0; i < pageCount; i++ {
		img, err := doc.Image(i)
		if err != nil {
			return nil, fmt.Errorf("failed to render page %d: %w", i, err)
		}

		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("failed to encode page %d: %w", i, err)
		}

		pages = append(pages, ocr.Page{Image: buf.Bytes(), Index: i, DPI: dpi})
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("document has no pages")
	}
	return pages, nil
}
