package pipeline

import (
	"time"

	"jobflow/internal/identity"
	"jobflow/internal/models"
)

// Tier labels for prioritization. Operators sort companies into tiers
// in the config file; anything unlisted is "other".
const (
	TierTarget  = "target"
	TierStretch = "stretch"
	TierKnown   = "known"
	TierOther   = "other"
)

const (
	bonusTarget  = 25.0
	bonusStretch = 20.0
	bonusKnown   = 12.0
	bonusOther   = 5.0

	freshnessCap    = 20.0
	freshnessPerDay = 2.0
)

// TierList holds the operator's company tiers. Matching is by
// normalized equality, so "Café Labs" and "cafe labs" land in the same
// tier.
type TierList struct {
	Target  []string
	Stretch []string
	Known   []string
}

// TierOf returns the tier label for a company name.
func (tl TierList) TierOf(company string) string {
	needle := identity.Normalize(company)
	if needle == "" {
		return TierOther
	}
	switch {
	case containsNormalized(tl.Target, needle):
		return TierTarget
	case containsNormalized(tl.Stretch, needle):
		return TierStretch
	case containsNormalized(tl.Known, needle):
		return TierKnown
	}
	return TierOther
}

func containsNormalized(names []string, needle string) bool {
	for _, n := range names {
		if identity.Normalize(n) == needle {
			return true
		}
	}
	return false
}

// ScoreBreakdown explains a candidate's priority so run output can show
// why one listing was auto-prepped over another.
type ScoreBreakdown struct {
	Base      float64 `json:"base"`
	TierBonus float64 `json:"tier_bonus"`
	Freshness float64 `json:"freshness"`
	Total     float64 `json:"total"`
	Tier      string  `json:"tier"`
}

// Prioritize computes a listing's auto-prep priority: its qualifier
// score, plus a company-tier bonus, plus a freshness bonus that decays
// two points per day since posting and bottoms out at zero. A listing
// with no posting date gets no freshness bonus rather than a guess.
func Prioritize(l *models.Listing, tiers TierList, now time.Time) ScoreBreakdown {
	b := ScoreBreakdown{Tier: TierOther}
	if l == nil {
		return b
	}
	if l.Score != nil {
		b.Base = *l.Score
	}

	b.Tier = tiers.TierOf(l.Company)
	switch b.Tier {
	case TierTarget:
		b.TierBonus = bonusTarget
	case TierStretch:
		b.TierBonus = bonusStretch
	case TierKnown:
		b.TierBonus = bonusKnown
	default:
		b.TierBonus = bonusOther
	}

	if posted, ok := models.ParseTime(l.PostedAt); ok {
		days := now.Sub(posted).Hours() / 24
		freshness := freshnessCap - freshnessPerDay*days
		if freshness < 0 {
			freshness = 0
		}
		if freshness > freshnessCap {
			freshness = freshnessCap
		}
		b.Freshness = freshness
	}

	b.Total = b.Base + b.TierBonus + b.Freshness
	return b
}
