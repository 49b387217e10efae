package facts

import (
	"fmt"
	"strings"
)

// extractionSystemPrompt frames the extractor role and output contract
const extractionSystemPrompt = `You are a structured fact extractor for an evidence repository.
You read document text and emit facts as a single JSON object with keys
"claims", "metrics", "constraints" and "risks". Every fact must quote its
supporting text in "evidence_quote" and reference supporting span IDs in
"span_refs" when span context is provided. Use only predicates, metric names
and risk types from the vocabulary given. Respond with JSON only - no prose,
no markdown fences.`

// buildExtractionPrompt renders the user prompt for one extraction run.
// priorOutput carries the level k-1 results: the model builds upon them
// rather than re-emitting them.
func buildExtractionPrompt(vocab *Vocabulary, level int, documentText string, spanContext string, priorOutput string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Extraction profile: %s (%s). Extraction level: %d of %d.\n\n",
		vocab.ProfileName, vocab.ProfileCode, level, MaxLevel)

	sb.WriteString("Allowed claim predicates:\n")
	for _, p := range vocab.Predicates(level) {
		fmt.Fprintf(&sb, "- %s (%s): %s\n", p.Name, p.ClaimType, p.Description)
	}

	sb.WriteString("\nAllowed metric names:\n")
	for _, m := range vocab.Metrics(level) {
		fmt.Fprintf(&sb, "- %s (category: %s, unit: %s)\n", m.Name, m.Category, m.Unit)
	}

	risks := vocab.Risks(level)
	if len(risks) > 0 {
		sb.WriteString("\nAllowed risk types:\n")
		for _, r := range risks {
			fmt.Fprintf(&sb, "- %s (category: %s)\n", r.Name, r.Category)
		}
	} else {
		sb.WriteString("\nDo not emit risks at this level; return an empty \"risks\" array.\n")
	}

	sb.WriteString("\nCertainty values: definite, probable, possible, speculative.\n")
	sb.WriteString("Source reliability values: audited, official, internal, third_party, unknown.\n")

	if priorOutput != "" {
		sb.WriteString("\nFacts already extracted at the previous level are below. ")
		sb.WriteString("Build upon them - surface additional facts this level's vocabulary allows; do not duplicate.\n")
		sb.WriteString(priorOutput)
		sb.WriteString("\n")
	}

	if spanContext != "" {
		sb.WriteString("\nSpan reference list (id: excerpt):\n")
		sb.WriteString(spanContext)
		sb.WriteString("\n")
	}

	sb.WriteString("\nDocument text:\n---\n")
	sb.WriteString(documentText)
	sb.WriteString("\n---\n")
	return sb.String()
}

// credibilitySystemPrompt frames the credibility assessment pass
const credibilitySystemPrompt = `You assess document credibility. Respond with a single JSON object:
{"truthfulness_score": 0.0-1.0, "bias_score": 0.0-1.0, "reasoning": "...", "flags": [...]}.
truthfulness_score reflects how verifiable and internally consistent the
content is; bias_score reflects promotional or one-sided framing (higher
means more biased). JSON only.`

func buildCredibilityPrompt(documentText string) string {
	return "Assess the credibility of this document:\n---\n" + documentText + "\n---\n"
}
