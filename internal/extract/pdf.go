package extract

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

// extractPDF extracts one fragment per page. A page with no text yields a
// placeholder fragment so the page count stays reconstructable; a page-level
// extraction error yields an error placeholder instead of aborting the file.
func (e *Extractor) extractPDF(path string) ([]Fragment, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}

	totalPages := r.NumPage()
	frags := make([]Fragment, 0, totalPages)
	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		text, err := pageText(r, pageNum)
		title := fmt.Sprintf("Page %d", pageNum)
		switch {
		case err != nil:
			frags = append(frags, Fragment{
				Text:         fmt.Sprintf("[Page %d - Error processing: %v]", pageNum, err),
				PageNumber:   pageNum,
				Topic:        "Error Page",
				SectionTitle: title,
			})
		case strings.TrimSpace(text) == "":
			frags = append(frags, Fragment{
				Text:         fmt.Sprintf("[Page %d - No text content]", pageNum),
				PageNumber:   pageNum,
				Topic:        "Empty Page",
				SectionTitle: title,
			})
		default:
			trimmed := strings.TrimSpace(text)
			frags = append(frags, Fragment{
				Text:         trimmed,
				PageNumber:   pageNum,
				Topic:        DetectTopic(trimmed),
				SectionTitle: title,
			})
		}
	}
	return frags, nil
}

// pageText extracts the plain text of a single page. ledongthuc/pdf panics on
// some malformed content streams, so a recover converts that into a per-page error.
func pageText(r *pdf.Reader, pageNum int) (text string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%v", p)
		}
	}()
	page := r.Page(pageNum)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}
