package facts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVocabularyForKnownProfiles(t *testing.T) {
	for _, code := range Profiles() {
		vocab, err := VocabularyFor(code)
		require.NoError(t, err, code)
		assert.Equal(t, code, vocab.ProfileCode)
	}
}

func TestVocabularyForDefaultsToGeneral(t *testing.T) {
	vocab, err := VocabularyFor("")
	require.NoError(t, err)
	assert.Equal(t, "general", vocab.ProfileCode)

	_, err = VocabularyFor("crypto")
	assert.Error(t, err)
}

// Levels are cumulative: everything surfaced at level k-1 is surfaced at
// level k
func TestVocabularyLevelsMonotone(t *testing.T) {
	for _, code := range Profiles() {
		vocab, err := VocabularyFor(code)
		require.NoError(t, err)

		for level := 2; level <= MaxLevel; level++ {
			prevMetrics := metricNames(vocab.Metrics(level - 1))
			currMetrics := metricNames(vocab.Metrics(level))
			for name := range prevMetrics {
				assert.Contains(t, currMetrics, name, "%s level %d drops metric %s", code, level, name)
			}
			assert.GreaterOrEqual(t, len(currMetrics), len(prevMetrics))

			prevPreds := len(vocab.Predicates(level - 1))
			assert.GreaterOrEqual(t, len(vocab.Predicates(level)), prevPreds)
		}
	}
}

func TestRisksOnlyAtLevelTwoPlus(t *testing.T) {
	vocab, err := VocabularyFor("general")
	require.NoError(t, err)
	assert.Empty(t, vocab.Risks(1))
	assert.NotEmpty(t, vocab.Risks(2))
	assert.GreaterOrEqual(t, len(vocab.Risks(4)), len(vocab.Risks(2)))
}

func TestDomainProfilesExtendGeneral(t *testing.T) {
	general, _ := VocabularyFor("general")
	vc, _ := VocabularyFor("vc")

	assert.Greater(t, len(vc.Metrics(1)), len(general.Metrics(1)))

	names := metricNames(vc.Metrics(2))
	assert.Contains(t, names, "arr")
	assert.Contains(t, names, "burn_rate")
	assert.Contains(t, names, "runway_months")
}

func TestPromptEnumeratesVocabulary(t *testing.T) {
	vocab, _ := VocabularyFor("vc")
	prompt := buildExtractionPrompt(vocab, 2, "Document body.", "span_1: excerpt", "")

	assert.Contains(t, prompt, "arr")
	assert.Contains(t, prompt, "operates_in")
	assert.Contains(t, prompt, "market_risk")
	assert.Contains(t, prompt, "Document body.")
	assert.Contains(t, prompt, "span_1: excerpt")
}

func TestPromptLevelOneForbidsRisks(t *testing.T) {
	vocab, _ := VocabularyFor("general")
	prompt := buildExtractionPrompt(vocab, 1, "text", "", "")
	assert.Contains(t, prompt, "Do not emit risks at this level")
}

func TestPromptCarriesPriorLevelOutput(t *testing.T) {
	vocab, _ := VocabularyFor("general")
	prior := `{"claims":[{"predicate":"operates_in"}]}`
	prompt := buildExtractionPrompt(vocab, 2, "text", "", prior)
	assert.Contains(t, prompt, "Build upon them")
	assert.Contains(t, prompt, prior)
}

func TestStripJSONFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripJSONFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripJSONFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripJSONFences(`{"a":1}`))
}

func TestParseEnumsFallBack(t *testing.T) {
	assert.Equal(t, "probable", string(parseCertainty("very sure")))
	assert.Equal(t, "definite", string(parseCertainty("definite")))
	assert.Equal(t, "unknown", string(parseReliability("gossip")))
	assert.Equal(t, "medium", string(parseSeverity("catastrophic")))
	assert.Equal(t, "critical", string(parseSeverity("critical")))
}

func metricNames(defs []MetricDefinition) map[string]bool {
	names := make(map[string]bool, len(defs))
	for _, d := range defs {
		names[d.Name] = true
	}
	return names
}
