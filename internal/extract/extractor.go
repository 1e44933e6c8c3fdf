// Package extract provides text extraction from study-material document formats.
//
// Extraction produces ordered fragments tagged with a position marker (page,
// slide, or section). Extraction never fails hard: malformed input falls back
// to a generic best-effort pass, and an empty result means "no content
// produced" rather than an error.
package extract

import (
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Fragment is one extracted unit of text with its position within the source
// document. PageNumber and SlideNumber are 0 when absent.
type Fragment struct {
	Text         string
	PageNumber   int
	SlideNumber  int
	Topic        string
	SectionTitle string
}

// supportedExtensions are the source formats accepted for extraction.
// ZIP archives are handled one level up by the archive unpacker.
var supportedExtensions = map[string]bool{
	".pdf":  true,
	".doc":  true,
	".docx": true,
	".ppt":  true,
	".pptx": true,
	".txt":  true,
	".rtf":  true,
}

// IsSupported reports whether the filename has a supported source extension.
func IsSupported(name string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(name))]
}

// Extractor extracts content fragments from document files.
type Extractor struct {
	logger *zap.Logger // optional; when set, logs per-file failures
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithLogger sets a logger for extraction failure events.
func WithLogger(l *zap.Logger) ExtractorOption {
	return func(e *Extractor) { e.logger = l }
}

// NewExtractor returns a new Extractor.
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract reads the file at path and returns its content as ordered fragments.
// declaredName (the original filename) decides format dispatch; path may be a
// transient file with a synthetic name. Malformed input never produces an
// error: on a format-level failure the generic extractor is tried, and if that
// also fails the result is empty.
func (e *Extractor) Extract(path, declaredName string) []Fragment {
	ext := strings.ToLower(filepath.Ext(declaredName))

	var frags []Fragment
	var err error
	switch ext {
	case ".pdf":
		frags, err = e.extractPDF(path)
	case ".docx":
		frags, err = e.extractDOCX(path)
	case ".ppt", ".pptx":
		frags, err = e.extractSlides(path, ext)
	default:
		frags, err = e.extractGeneric(path, ext)
	}
	if err == nil {
		return frags
	}

	if e.logger != nil {
		e.logger.Warn("extraction failed, trying generic fallback",
			zap.String("name", declaredName), zap.Error(err))
	}
	frags, err = e.extractGeneric(path, ext)
	if err != nil {
		if e.logger != nil {
			e.logger.Warn("generic fallback extraction failed",
				zap.String("name", declaredName), zap.Error(err))
		}
		return nil
	}
	return frags
}
