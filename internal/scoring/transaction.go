package scoring

// TransactionInputs carries account-behavior metrics averaged over the
// trailing three periods.
type TransactionInputs struct {
	LimitUtilization float64 `json:"limit_utilization"`
	PaymentDelayDays float64 `json:"payment_delay_days"`
	DepositOutflow   float64 `json:"deposit_outflow_rate"`
	OverdraftCount   float64 `json:"overdraft_count"`
}

// TransactionScorer scores day-to-day banking behavior: credit line
// utilization, payment delays, deposit outflow, and overdraft incidence.
type TransactionScorer struct{}

func (TransactionScorer) Channel() Channel { return ChannelTransaction }

// Score applies 100 − 40·U − 0.5·D − 30·O − 5·OD, clamped to [0,100].
// Negative metrics are rejected; utilization and outflow ratios above 1
// are bounded to 1 and noted as a data-quality warning.
func (TransactionScorer) Score(snap *CustomerSnapshot) (ChannelResult, error) {
	in := snap.Transaction
	if in == nil {
		return unavailable(ChannelTransaction, "no transaction window"), nil
	}
	if in.LimitUtilization < 0 || in.PaymentDelayDays < 0 || in.DepositOutflow < 0 || in.OverdraftCount < 0 {
		return ChannelResult{}, invalidInputf(ChannelTransaction, "negative metric in window")
	}

	var warnings []string
	util, c := clampRatio(in.LimitUtilization)
	if c {
		warnings = append(warnings, "limit_utilization bounded to [0,1]")
	}
	outflow, c := clampRatio(in.DepositOutflow)
	if c {
		warnings = append(warnings, "deposit_outflow_rate bounded to [0,1]")
	}

	raw := 100 - 40*util - 0.5*in.PaymentDelayDays - 30*outflow - 5*in.OverdraftCount
	return scored(ChannelTransaction, raw, warnings), nil
}
