package scoring

// SupplyChainScorer converts the propagated chain default probability into
// a sub-score. The propagation itself runs once per period over the whole
// portfolio graph; by the time a snapshot reaches this scorer its ChainPD
// is already the fixed-point estimate.
type SupplyChainScorer struct{}

func (SupplyChainScorer) Channel() Channel { return ChannelSupplyChain }

// Score applies 100 − 100·ChainPD, clamped to [0,100]. A snapshot without
// a chain PD (company absent from the period's graph) is unavailable. A
// non-converged estimate still scores, with the cap noted as a warning.
func (SupplyChainScorer) Score(snap *CustomerSnapshot) (ChannelResult, error) {
	if snap.ChainPD == nil {
		return unavailable(ChannelSupplyChain, "no supply-chain graph node"), nil
	}
	pd := *snap.ChainPD
	if pd < 0 || pd > 1 {
		return ChannelResult{}, invalidInputf(ChannelSupplyChain, "chain PD %.6f outside [0,1]", pd)
	}

	var warnings []string
	if !snap.ChainPDConverged {
		warnings = append(warnings, "propagation hit iteration cap; best estimate used")
	}

	raw := 100 - 100*pd
	return scored(ChannelSupplyChain, raw, warnings), nil
}
