package scoring

// RegistryInputs carries unresolved public-registry event counts: court
// actions, tax delinquencies, lien filings and similar records.
type RegistryInputs struct {
	UnresolvedTotal  int `json:"unresolved_total"`
	UnresolvedSevere int `json:"unresolved_severe"`
}

// RegistryScorer penalizes open public-registry events, with severe
// (HIGH/CRITICAL) events counted twice: once in the total, once with the
// severity surcharge.
type RegistryScorer struct{}

func (RegistryScorer) Channel() Channel { return ChannelPublicRegistry }

// Score applies 100 − 15·N_total − 20·N_severe, floored at 0.
func (RegistryScorer) Score(snap *CustomerSnapshot) (ChannelResult, error) {
	in := snap.Registry
	if in == nil {
		return unavailable(ChannelPublicRegistry, "no registry snapshot"), nil
	}
	if in.UnresolvedTotal < 0 || in.UnresolvedSevere < 0 {
		return ChannelResult{}, invalidInputf(ChannelPublicRegistry, "negative event count")
	}
	if in.UnresolvedSevere > in.UnresolvedTotal {
		return ChannelResult{}, invalidInputf(ChannelPublicRegistry,
			"severe count %d exceeds total %d", in.UnresolvedSevere, in.UnresolvedTotal)
	}

	raw := 100 - 15*float64(in.UnresolvedTotal) - 20*float64(in.UnresolvedSevere)
	return scored(ChannelPublicRegistry, raw, nil), nil
}
