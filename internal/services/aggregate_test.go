package services

import (
	"testing"

	"github.com/biolinkhq/go-biolink-backend/internal/domain"
)

func tallyPoll() *domain.Poll {
	return &domain.Poll{
		ID: "p1",
		Options: domain.PollOptions{
			{ID: "a", Label: "Alpha"},
			{ID: "b", Label: "Beta"},
			{ID: "c", Label: "Gamma"},
		},
	}
}

func ballot(ids ...string) domain.PollVote {
	return domain.PollVote{SelectedOptionIDs: ids}
}

func TestComputeResults_Basic(t *testing.T) {
	res := ComputeResults(tallyPoll(), []domain.PollVote{
		ballot("a"), ballot("a"), ballot("b"),
	})

	if res.PollID != "p1" || res.TotalVotes != 3 {
		t.Fatalf("header wrong: %+v", res)
	}
	if len(res.Options) != 3 {
		t.Fatalf("expected 3 option rows, got %d", len(res.Options))
	}
	if res.Options[0].Votes != 2 || res.Options[0].Percentage != 66.67 {
		t.Fatalf("option a: %+v", res.Options[0])
	}
	if res.Options[1].Votes != 1 || res.Options[1].Percentage != 33.33 {
		t.Fatalf("option b: %+v", res.Options[1])
	}
	if res.Options[2].Votes != 0 || res.Options[2].Percentage != 0 {
		t.Fatalf("option c: %+v", res.Options[2])
	}
}

func TestComputeResults_ZeroVotes(t *testing.T) {
	res := ComputeResults(tallyPoll(), nil)
	if res.TotalVotes != 0 {
		t.Fatalf("total = %d", res.TotalVotes)
	}
	for _, o := range res.Options {
		if o.Votes != 0 || o.Percentage != 0 {
			t.Fatalf("expected zeroed row, got %+v", o)
		}
	}
}

func TestComputeResults_StaleOptionDropped(t *testing.T) {
	// "z" was removed from the option list after this ballot was cast. The
	// entry drops out of the tally silently but the ballot still counts
	// toward the total.
	res := ComputeResults(tallyPoll(), []domain.PollVote{
		ballot("a"), ballot("z"),
	})
	if res.TotalVotes != 2 {
		t.Fatalf("total = %d, want 2", res.TotalVotes)
	}
	if res.Options[0].Votes != 1 || res.Options[0].Percentage != 50 {
		t.Fatalf("option a: %+v", res.Options[0])
	}
	var sum int64
	for _, o := range res.Options {
		sum += o.Votes
	}
	if sum != 1 {
		t.Fatalf("stale id leaked into a counter: sum=%d", sum)
	}
}

func TestComputeResults_MultiChoicePercentagesExceedHundred(t *testing.T) {
	// One multi-choice ballot touches two options; each reads 100%.
	res := ComputeResults(tallyPoll(), []domain.PollVote{
		ballot("a", "b"),
	})
	if res.TotalVotes != 1 {
		t.Fatalf("total = %d, want 1", res.TotalVotes)
	}
	if res.Options[0].Percentage != 100 || res.Options[1].Percentage != 100 {
		t.Fatalf("per-option percentages: %+v", res.Options)
	}
}

func TestComputeResults_PreservesConfiguredOrder(t *testing.T) {
	// "c" leads the tally yet stays in third position.
	res := ComputeResults(tallyPoll(), []domain.PollVote{
		ballot("c"), ballot("c"), ballot("a"),
	})
	if res.Options[0].ID != "a" || res.Options[1].ID != "b" || res.Options[2].ID != "c" {
		t.Fatalf("order changed: %+v", res.Options)
	}
}

func TestRound2(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{66.666666, 66.67},
		{33.333333, 33.33},
		{100, 100},
		{0, 0},
		{12.341, 12.34},
	}
	for _, tc := range cases {
		if got := round2(tc.in); got != tc.want {
			t.Fatalf("round2(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
