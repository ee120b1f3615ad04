package scanning

import (
	"fmt"
	"strings"
)

// recognitionPrompt is the shared prompt used by all LLM providers for text recognition
const recognitionPrompt = `You are an OCR engine. Read every piece of text visible in the image, which is a photographed or scanned document.

Split the text into regions (one region per printed line), ordered top to bottom in reading order. For each region give up to 3 candidate transcriptions, best first.

Return ONLY valid JSON in this exact format:
{
  "regions": [
    {"candidates": ["best transcription", "alternative"]}
  ]
}

Important:
- Transcribe exactly what is printed; do not summarise or translate
- Keep numbers, currency symbols and dates exactly as printed
- If there is no text, return {"regions": []}
- Do not include any text before or after the JSON
- Do not use markdown code blocks`

// buildPrompt appends the request options to the shared prompt
func buildPrompt(opts Options) string {
	var b strings.Builder
	b.WriteString(recognitionPrompt)
	b.WriteString("\n\nSettings:\n")
	if opts.Level == LevelAccurate {
		b.WriteString("- Prioritise accuracy over speed; examine small print carefully\n")
	} else {
		b.WriteString("- Prioritise speed; skip text that is illegible\n")
	}
	if opts.LanguageCorrection {
		b.WriteString("- Correct obvious misreadings using the document language\n")
	} else {
		b.WriteString("- Do not correct spelling; report characters as seen\n")
	}
	if len(opts.Languages) > 0 {
		fmt.Fprintf(&b, "- Expected languages: %s\n", strings.Join(opts.Languages, ", "))
	}
	return b.String()
}
