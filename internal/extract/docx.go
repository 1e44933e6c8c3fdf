package extract

import (
	"archive/zip"
	"fmt"
	"io"
	"regexp"
	"strings"
)

const sectionFlushSize = 5000

var (
	wtRunRe     = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)
	paragraphRe = regexp.MustCompile(`</w:p>`)
)

// extractDOCX reads word/document.xml from the DOCX package and splits the
// text into sections of roughly sectionFlushSize characters, flushed at
// paragraph boundaries. Each section becomes one fragment titled "Section K".
func (e *Extractor) extractDOCX(path string) ([]Fragment, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open DOCX: %w", err)
	}
	defer r.Close()

	var docXML []byte
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("open document.xml: %w", err)
			}
			docXML, err = io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return nil, fmt.Errorf("read document.xml: %w", err)
			}
			break
		}
	}
	if docXML == nil {
		return nil, fmt.Errorf("no word/document.xml in %s", path)
	}

	var frags []Fragment
	var section strings.Builder
	sectionNum := 1

	flush := func() {
		text := strings.TrimSpace(section.String())
		section.Reset()
		if text == "" {
			return
		}
		frags = append(frags, Fragment{
			Text:         text,
			Topic:        DetectTopic(text),
			SectionTitle: fmt.Sprintf("Section %d", sectionNum),
		})
		sectionNum++
	}

	for _, para := range paragraphRe.Split(string(docXML), -1) {
		var runs []string
		for _, m := range wtRunRe.FindAllStringSubmatch(para, -1) {
			runs = append(runs, decodeXMLEntities(m[1]))
		}
		text := strings.TrimSpace(strings.Join(runs, ""))
		if text == "" {
			continue
		}
		if section.Len() > 0 {
			section.WriteByte('\n')
		}
		section.WriteString(text)
		if section.Len() > sectionFlushSize {
			flush()
		}
	}
	flush()

	return frags, nil
}

var xmlEntityReplacer = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
)

func decodeXMLEntities(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	return xmlEntityReplacer.Replace(s)
}
