// Package services – vote aggregation.
package services

import (
	"math"

	"github.com/biolinkhq/go-biolink-backend/internal/domain"
)

// OptionResult is the tally for a single poll option.
type OptionResult struct {
	ID         string  `json:"id"`
	Label      string  `json:"label"`
	Votes      int64   `json:"votes"`
	Percentage float64 `json:"percentage"`
}

// PollResults is the full computed result set for a poll.
type PollResults struct {
	PollID     string         `json:"poll_id"`
	TotalVotes int64          `json:"total_votes"`
	Options    []OptionResult `json:"options"`
}

// ComputeResults tallies votes against the poll's current option list. It is
// a pure function: callers read the vote set fresh, nothing is cached.
//
// Semantics:
//   - A counter is initialized per current option id; vote entries naming an
//     option that has since been removed are silently dropped from the tally,
//     never an error.
//   - TotalVotes is the number of submissions, not the sum of option
//     counters: a multi-choice ballot counts once toward the total while
//     contributing to several options, so percentages can legitimately sum
//     past 100.
//   - Percentage is count/TotalVotes*100 rounded to 2 decimals, or 0 when
//     nobody has voted.
//   - Output preserves the poll's configured option order; it is not a
//     sorted leaderboard.
func ComputeResults(poll *domain.Poll, votes []domain.PollVote) PollResults {
	counters := make(map[string]int64, len(poll.Options))
	for _, opt := range poll.Options {
		counters[opt.ID] = 0
	}

	for _, v := range votes {
		for _, optionID := range v.SelectedOptionIDs {
			if _, ok := counters[optionID]; !ok {
				continue
			}
			counters[optionID]++
		}
	}

	totalVotes := int64(len(votes))
	options := make([]OptionResult, 0, len(poll.Options))
	for _, opt := range poll.Options {
		count := counters[opt.ID]
		var pct float64
		if totalVotes > 0 {
			pct = round2(float64(count) / float64(totalVotes) * 100)
		}
		options = append(options, OptionResult{
			ID:         opt.ID,
			Label:      opt.Label,
			Votes:      count,
			Percentage: pct,
		})
	}

	return PollResults{
		PollID:     poll.ID,
		TotalVotes: totalVotes,
		Options:    options,
	}
}

// round2 rounds to two decimal places, half away from zero.
func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
