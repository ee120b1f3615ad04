package scanning

import (
	"context"
	"image"
)

// Level trades recognition speed for accuracy
type Level int

const (
	LevelAccurate Level = iota
	LevelFast
)

func (l Level) String() string {
	if l == LevelFast {
		return "fast"
	}
	return "accurate"
}

// DefaultLanguages are the candidate languages offered to recognizers
var DefaultLanguages = []string{"en-US", "fr-FR", "de-DE", "es-ES", "it-IT", "pt-BR", "nl-NL"}

// Options controls a recognition request
type Options struct {
	Level              Level
	LanguageCorrection bool
	Languages          []string
}

// DefaultOptions prioritises accuracy with language correction enabled
func DefaultOptions() Options {
	return Options{
		Level:              LevelAccurate,
		LanguageCorrection: true,
		Languages:          DefaultLanguages,
	}
}

// Recognizer defines the interface for optical character recognition
type Recognizer interface {
	// RecognizeText returns the top candidate of each detected text region,
	// newline-joined in the order the engine reports them
	RecognizeText(ctx context.Context, img image.Image, opts Options) (string, error)
	// Close closes the recognizer and releases resources
	Close() error
}

// Nop is a Recognizer that never finds text, used when no OCR backend is configured
type Nop struct{}

func (Nop) RecognizeText(context.Context, image.Image, Options) (string, error) { return "", nil }

func (Nop) Close() error { return nil }
