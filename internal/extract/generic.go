package extract

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/lu4p/cat"
	"github.com/xuri/excelize/v2"
)

// extractGeneric is the catch-all extractor for formats without a dedicated
// path (.txt, .rtf, .doc, unknown) and the fallback when a dedicated extractor
// fails. Content sniffing routes recognizable payloads to the right extractor
// regardless of extension; everything else degrades to a printable-text scrape.
// The result is a single fragment titled "Document Content".
func (e *Extractor) extractGeneric(path, ext string) ([]Fragment, error) {
	if ext == ".rtf" {
		if text, err := cat.File(path); err == nil {
			return genericFragment(text), nil
		}
		// fall through to content sniffing
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	mime := mimetype.Detect(data)
	switch {
	case mime.Is("application/pdf"):
		return e.extractPDF(path)
	case mime.Is("application/vnd.openxmlformats-officedocument.wordprocessingml.document"):
		return e.extractDOCX(path)
	case mime.Is("application/vnd.openxmlformats-officedocument.presentationml.presentation"):
		return e.extractPPTX(path)
	case mime.Is("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"):
		text, err := sheetText(data)
		if err != nil {
			return nil, err
		}
		return genericFragment(text), nil
	case mime.Is("text/plain") || isPlainText(ext, data):
		return genericFragment(string(data)), nil
	}

	return genericFragment(scrapePrintable(data)), nil
}

func genericFragment(text string) []Fragment {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return []Fragment{{
		Text:         text,
		Topic:        DetectTopic(text),
		SectionTitle: "Document Content",
	}}
}

// sheetText flattens all sheets of a workbook: cells tab-joined, rows
// newline-joined, sheets separated by a blank line.
func sheetText(data []byte) (string, error) {
	wb, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("open workbook: %w", err)
	}
	defer wb.Close()

	var sb strings.Builder
	for _, sheet := range wb.GetSheetList() {
		rows, err := wb.GetRows(sheet)
		if err != nil {
			continue
		}
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, "\t"))
			if line != "" {
				sb.WriteString(line)
				sb.WriteByte('\n')
			}
		}
		sb.WriteByte('\n')
	}
	return strings.TrimSpace(sb.String()), nil
}

func isPlainText(ext string, data []byte) bool {
	return ext == ".txt" && utf8.Valid(data)
}

// scrapePrintable pulls runs of printable text out of an opaque binary. Runs
// shorter than 4 characters are dropped to keep structural noise out. This is
// the last resort for legacy binary formats such as .doc.
func scrapePrintable(data []byte) string {
	var sb strings.Builder
	var run []byte
	flush := func() {
		if len(bytes.TrimSpace(run)) >= 4 {
			sb.Write(bytes.TrimSpace(run))
			sb.WriteByte('\n')
		}
		run = run[:0]
	}
	for _, b := range data {
		if b >= 0x20 && b < 0x7f || b == '\t' {
			run = append(run, b)
		} else {
			flush()
		}
	}
	flush()
	return strings.TrimSpace(sb.String())
}
