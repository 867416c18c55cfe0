package provider

import (
	"context"
	"fmt"
	"strings"
)

// GenerateParams carries the note-type specific settings for one call.
type GenerateParams struct {
	AIContext   string
	Environment string
}

// Translator normalises note text into the target language before generation.
// Mocking this interface in tests gives full control over translation
// behaviour without making real HTTP calls.
type Translator interface {
	Translate(ctx context.Context, text, targetLanguage string) (string, error)
}

// Generator abstracts the external AI text-generation service.
type Generator interface {
	Generate(ctx context.Context, params GenerateParams, text string) (string, error)
}

// systemPrompt builds the instruction sent ahead of the clinician's note.
func systemPrompt(p GenerateParams) string {
	var b strings.Builder
	b.WriteString("You are a clinical documentation assistant. ")
	b.WriteString("Read the clinician's free-text note and produce a concise differential diagnosis ")
	b.WriteString("with supporting findings and suggested next steps.")
	if p.AIContext != "" {
		fmt.Fprintf(&b, "\nClinical context: %s", p.AIContext)
	}
	if p.Environment != "" {
		fmt.Fprintf(&b, "\nCare setting: %s", p.Environment)
	}
	return b.String()
}
