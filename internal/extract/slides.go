package extract

import (
	"archive/zip"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	atRunRe     = regexp.MustCompile(`<a:t[^>]*>([^<]*)</a:t>`)
	slideFileRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
	slideMarkRe = regexp.MustCompile(`Slide \d+`)
)

// extractSlides produces one fragment per non-empty slide, numbered
// sequentially from 1. PPTX packages are read directly; legacy PPT files go
// through the generic extractor and are split on "Slide N" markers.
func (e *Extractor) extractSlides(path, ext string) ([]Fragment, error) {
	if ext == ".pptx" {
		return e.extractPPTX(path)
	}
	return e.extractPPT(path)
}

func (e *Extractor) extractPPTX(path string) ([]Fragment, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open PPTX: %w", err)
	}
	defer r.Close()

	type slideFile struct {
		num  int
		file *zip.File
	}
	var slides []slideFile
	for _, f := range r.File {
		m := slideFileRe.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		slides = append(slides, slideFile{num: n, file: f})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	var frags []Fragment
	slideNum := 0
	for _, s := range slides {
		rc, err := s.file.Open()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}

		var runs []string
		for _, m := range atRunRe.FindAllStringSubmatch(string(data), -1) {
			runs = append(runs, decodeXMLEntities(m[1]))
		}
		text := strings.TrimSpace(strings.Join(runs, "\n"))
		if text == "" {
			continue
		}
		slideNum++
		frags = append(frags, Fragment{
			Text:         text,
			SlideNumber:  slideNum,
			Topic:        DetectTopic(text),
			SectionTitle: fmt.Sprintf("Slide %d", slideNum),
		})
	}
	return frags, nil
}

func (e *Extractor) extractPPT(path string) ([]Fragment, error) {
	frags, err := e.extractGeneric(path, ".ppt")
	if err != nil {
		return nil, err
	}
	if len(frags) == 0 {
		return nil, nil
	}

	var out []Fragment
	slideNum := 0
	for _, segment := range slideMarkRe.Split(frags[0].Text, -1) {
		text := strings.TrimSpace(segment)
		if text == "" {
			continue
		}
		slideNum++
		out = append(out, Fragment{
			Text:         text,
			SlideNumber:  slideNum,
			Topic:        DetectTopic(text),
			SectionTitle: fmt.Sprintf("Slide %d", slideNum),
		})
	}
	return out, nil
}
