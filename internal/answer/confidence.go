package answer

import "strings"

// PostProcessor rewrites a generated answer before it reaches the user. It
// is a textual heuristic layered on top of the model contract, so callers
// can swap it out or chain their own.
type PostProcessor interface {
	Process(answer string) string
}

// DefaultReferral is appended to low-confidence answers.
const DefaultReferral = "If you need more help with this, please contact our support team."

// lowConfidencePhrases are the stock admissions the system prompt tells
// models to emit when the documents do not contain an answer.
var lowConfidencePhrases = []string{
	"i don't have that information",
	"not in my knowledge base",
	"i don't have access to that",
	"the documents don't mention",
	"no information about that in the documents",
}

type confidenceMarker struct {
	referral string
	phrases  []string
}

// NewConfidenceMarker returns a PostProcessor that detects the "I don't
// know" phrasings and appends a human-contact referral once.
func NewConfidenceMarker(referral string) PostProcessor {
	if referral == "" {
		referral = DefaultReferral
	}
	return &confidenceMarker{referral: referral, phrases: lowConfidencePhrases}
}

func (p *confidenceMarker) Process(answer string) string {
	lowered := strings.ToLower(answer)
	if strings.Contains(lowered, strings.ToLower(p.referral)) {
		return answer
	}
	for _, phrase := range p.phrases {
		if strings.Contains(lowered, phrase) {
			return answer + "\n\n" + p.referral
		}
	}
	return answer
}

// NopPostProcessor passes answers through untouched.
type NopPostProcessor struct{}

func (NopPostProcessor) Process(answer string) string { return answer }
