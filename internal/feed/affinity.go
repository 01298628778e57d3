package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/deusflow/joyfeed/internal/storage"
)

const (
	DefaultAffinityWindowDays = 7

	dwellThreshold  = 10
	dwellWeight     = 0.3
	scrollThreshold = 70
	scrollBonus     = 2
)

// AffinityEstimator derives per-category interest from recent views and dwell.
type AffinityEstimator struct {
	prefs storage.PreferenceStore
}

func NewAffinityEstimator(prefs storage.PreferenceStore) *AffinityEstimator {
	return &AffinityEstimator{prefs: prefs}
}

type affinityAcc struct {
	views  int
	dwells int
	dwell  float64
	scroll float64
}

// Estimate returns the affinity per category over the last windowDays.
// Dwell and scroll means only cover views that have a dwell record.
func (e *AffinityEstimator) Estimate(ctx context.Context, userID int64, windowDays int) (map[int]float64, error) {
	if windowDays <= 0 {
		windowDays = DefaultAffinityWindowDays
	}
	inter, err := e.prefs.RecentInteractions(ctx, userID, time.Duration(windowDays)*24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("failed to load interactions: %w", err)
	}

	acc := make(map[int]*affinityAcc)
	for _, in := range inter {
		if in.CategoryID == 0 {
			continue
		}
		a := acc[in.CategoryID]
		if a == nil {
			a = &affinityAcc{}
			acc[in.CategoryID] = a
		}
		a.views++
		if in.HasDwell {
			a.dwells++
			a.dwell += in.DwellSeconds
			a.scroll += in.ScrollPercent
		}
	}

	out := make(map[int]float64, len(acc))
	for cat, a := range acc {
		score := float64(a.views)
		if a.dwells > 0 {
			meanDwell := a.dwell / float64(a.dwells)
			if meanDwell > dwellThreshold {
				score += meanDwell * dwellWeight
			}
			if a.scroll/float64(a.dwells) > scrollThreshold {
				score += scrollBonus
			}
		}
		out[cat] = round1(score)
	}
	return out, nil
}
