package tts

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	citationRe   = regexp.MustCompile(`\[\d+\](?:\[\d+\])*`)
	linkRe       = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	boldRe       = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	italicRe     = regexp.MustCompile(`\*([^*]+)\*`)
	underBoldRe  = regexp.MustCompile(`__([^_]+)__`)
	underlineRe  = regexp.MustCompile(`_([^_]+)_`)
	spaceRe      = regexp.MustCompile(`\s+`)
	spacePunctRe = regexp.MustCompile(`\s+([.,;:!?])`)
)

// CleanForSpeech strips citation markers and markdown from text so the
// synthesizer does not read them out.
//
//	"El **sol** es una estrella [1][2]." -> "El sol es una estrella."
func CleanForSpeech(text string) string {
	text = citationRe.ReplaceAllString(text, "")
	text = linkRe.ReplaceAllString(text, "$1")
	text = boldRe.ReplaceAllString(text, "$1")
	text = italicRe.ReplaceAllString(text, "$1")
	text = underBoldRe.ReplaceAllString(text, "$1")
	text = underlineRe.ReplaceAllString(text, "$1")
	text = strings.ReplaceAll(text, "`", "")
	text = spaceRe.ReplaceAllString(text, " ")
	text = spacePunctRe.ReplaceAllString(text, "$1")
	return strings.TrimSpace(text)
}

// FileExtension returns the file extension for a response format.
func FileExtension(format string) string {
	if format == FormatWAV {
		return ".wav"
	}
	return ".mp3"
}

// SaveAudio writes an audio payload to filename, creating its directory.
func SaveAudio(data []byte, filename string) error {
	if len(data) == 0 {
		return fmt.Errorf("audio data is empty")
	}

	dir := filepath.Dir(filename)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write audio file %s: %w", filename, err)
	}
	return nil
}
