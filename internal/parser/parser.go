package parser

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"

	"rag-chatbot/internal/models"
)

// LoadPDF reads every page of the PDF at filePath in physical order
func LoadPDF(filePath string) (*models.Document, error) {
	if ext := strings.ToLower(filepath.Ext(filePath)); ext != ".pdf" {
		return nil, fmt.Errorf("%w: unsupported file format %q", models.ErrLoad, ext)
	}

	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrLoad, err)
	}
	defer f.Close()

	// Get file size for reader initialization
	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrLoad, err)
	}

	return LoadPDFReader(f, stat.Size(), filePath)
}

// LoadPDFReader is LoadPDF for content that is already open; source is
// recorded on every page.
func LoadPDFReader(r io.ReaderAt, size int64, source string) (doc *models.Document, err error) {
	// the pdf package panics on some malformed inputs
	defer func() {
		if rec := recover(); rec != nil {
			doc = nil
			err = fmt.Errorf("%w: %s: malformed pdf: %v", models.ErrLoad, source, rec)
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", models.ErrLoad, source, err)
	}

	numPages := reader.NumPage()
	doc = &models.Document{
		Source:     source,
		TotalPages: numPages,
	}
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: page %d: %w", models.ErrLoad, source, i, err)
		}
		if strings.TrimSpace(pageText) == "" {
			log.Debug().Str("source", source).Int("page", i).Msg("Skipping page without text")
			continue
		}
		doc.Pages = append(doc.Pages, models.Page{
			Source: source,
			Number: i,
			Text:   pageText,
		})
	}

	if len(doc.Pages) == 0 {
		return nil, fmt.Errorf("%w: %s: no extractable text", models.ErrLoad, source)
	}

	log.Debug().Str("source", source).Int("pages", numPages).Int("text_pages", len(doc.Pages)).Msg("Loaded pdf")
	return doc, nil
}
