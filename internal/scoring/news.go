package scoring

// NewsInputs carries sentiment aggregates over the trailing three periods.
// ArticleCount is the number of articles behind the averages; a zero count
// means there is nothing to average.
type NewsInputs struct {
	AvgSentiment  float64 `json:"avg_sentiment"`
	NegativeRatio float64 `json:"negative_ratio"`
	ArticleCount  int     `json:"article_count"`
}

// NewsScorer maps media sentiment onto the score scale: a neutral press
// sits at 50, uniformly positive coverage reaches 100, and a fully
// negative article mix drags the score down by 30 points.
type NewsScorer struct{}

func (NewsScorer) Channel() Channel { return ChannelNews }

// Score applies 50 + 50·S_avg − 30·R_neg, clamped to [0,100].
func (NewsScorer) Score(snap *CustomerSnapshot) (ChannelResult, error) {
	in := snap.News
	if in == nil {
		return unavailable(ChannelNews, "no news window"), nil
	}
	if in.ArticleCount == 0 {
		return unavailable(ChannelNews, "no articles in window"), nil
	}
	if in.ArticleCount < 0 {
		return ChannelResult{}, invalidInputf(ChannelNews, "negative article count %d", in.ArticleCount)
	}
	if in.AvgSentiment < -1 || in.AvgSentiment > 1 {
		return ChannelResult{}, invalidInputf(ChannelNews, "sentiment %.4f outside [-1,1]", in.AvgSentiment)
	}
	if in.NegativeRatio < 0 {
		return ChannelResult{}, invalidInputf(ChannelNews, "negative ratio %.4f below 0", in.NegativeRatio)
	}

	var warnings []string
	neg, c := clampRatio(in.NegativeRatio)
	if c {
		warnings = append(warnings, "negative_ratio bounded to [0,1]")
	}

	raw := 50 + 50*in.AvgSentiment - 30*neg
	return scored(ChannelNews, raw, warnings), nil
}
