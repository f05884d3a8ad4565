package scoring

// Enhanced takes domain, keyword and strategic fit from the qualitative
// assessment and the rest from the rules.
type Enhanced struct{}

// Mode implements Scorer.
func (Enhanced) Mode() Mode { return ModeEnhanced }

// Score implements Scorer. An invalid assessment falls back to deterministic scoring.
func (Enhanced) Score(in Input) Breakdown {
	if !in.Assessment.Valid() {
		return Deterministic{}.Score(in)
	}

	b := Deterministic{}.Score(in)
	b.Mode = ModeEnhanced
	for i := range b.Scores {
		switch b.Scores[i].Criterion {
		case DomainMatch:
			b.Scores[i].Value = in.Assessment.DomainFit
			b.Scores[i].Note = "assessed"
		case KeywordMatch:
			b.Scores[i].Value = in.Assessment.KeywordFit
			b.Scores[i].Note = "assessed"
		case StrategicAlignment:
			b.Scores[i].Value = in.Assessment.StrategicFit
			b.Scores[i].Note = "assessed"
		}
	}
	b.Rationale = in.Assessment.Rationale
	return finish(b, in.Call)
}
