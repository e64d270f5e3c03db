package rag

import "fmt"

// queryTemplates is the fixed paraphrase sequence. The identity variant
// always comes first so the original question is always searched.
var queryTemplates = []string{
	"%s",
	"Explain %s",
	"What does %s mean?",
	"Definition of %s",
}

// ExpandQuery produces up to k paraphrased query variants for the question.
// Deterministic and stateless; k values beyond the template count are capped.
func ExpandQuery(question string, k int) []string {
	if k <= 0 {
		k = 1
	}
	if k > len(queryTemplates) {
		k = len(queryTemplates)
	}
	variants := make([]string, 0, k)
	for _, tmpl := range queryTemplates[:k] {
		variants = append(variants, fmt.Sprintf(tmpl, question))
	}
	return variants
}
