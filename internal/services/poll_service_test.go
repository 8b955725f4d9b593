package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/biolinkhq/go-biolink-backend/internal/domain"
	"github.com/biolinkhq/go-biolink-backend/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:pollsvc_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := db.AutoMigrate(
		&domain.Bio{}, &domain.Poll{}, &domain.PollVote{},
		&domain.Form{}, &domain.FormAnswer{},
		&domain.Billing{}, &domain.EmailLead{}, &domain.Idempotency{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedBio(t *testing.T, db *gorm.DB, id, userID, slug string) *domain.Bio {
	t.Helper()
	b := &domain.Bio{ID: id, UserID: userID, Slug: slug}
	if err := db.Create(b).Error; err != nil {
		t.Fatalf("seed bio: %v", err)
	}
	return b
}

func newPollService(db *gorm.DB) *PollService {
	return &PollService{
		DB:    db,
		Plans: &PlanService{DB: db},
		Leads: &DBLeadCapture{DB: db},
	}
}

func strp(s string) *string { return &s }
func boolp(b bool) *bool    { return &b }

func twoOptions() []PollOptionInput {
	return []PollOptionInput{
		{ID: "a", Label: "Option A"},
		{ID: "b", Label: "Option B"},
	}
}

func TestPollCreate_Success(t *testing.T) {
	db := newTestDB(t)
	seedBio(t, db, "b1", "u1", "jane")
	svc := newPollService(db)

	p, err := svc.Create(context.Background(), "u1", "b1", PollInput{
		Title:   strp("  Favorite track?  "),
		Options: twoOptions(),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.Title != "Favorite track?" {
		t.Fatalf("title not trimmed: %q", p.Title)
	}
	if !p.IsActive || !p.ShowResultsPublic || p.AllowMultipleChoices {
		t.Fatalf("unexpected defaults: %+v", p)
	}
	if p.ChartType != "bar" {
		t.Fatalf("chart type default: %q", p.ChartType)
	}
	if len(p.ChartColors) != len(DefaultChartColors) {
		t.Fatalf("expected default palette, got %v", p.ChartColors)
	}
	if p.Votes != 0 {
		t.Fatalf("fresh poll votes = %d", p.Votes)
	}
}

func TestPollCreate_PositionalOptionIDs(t *testing.T) {
	db := newTestDB(t)
	seedBio(t, db, "b1", "u1", "jane")
	svc := newPollService(db)

	p, err := svc.Create(context.Background(), "u1", "b1", PollInput{
		Title: strp("t"),
		Options: []PollOptionInput{
			{Label: "First"},
			{Label: "   "}, // dropped
			{Label: "Third"},
		},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(p.Options) != 2 {
		t.Fatalf("expected 2 options, got %d", len(p.Options))
	}
	if p.Options[0].ID != "option-1" || p.Options[1].ID != "option-3" {
		t.Fatalf("positional ids wrong: %+v", p.Options)
	}
}

func TestPollCreate_Validation(t *testing.T) {
	db := newTestDB(t)
	seedBio(t, db, "b1", "u1", "jane")
	svc := newPollService(db)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "u1", "b1", PollInput{Options: twoOptions()}); !errors.Is(err, ErrTitleRequired) {
		t.Fatalf("expected ErrTitleRequired, got %v", err)
	}
	if _, err := svc.Create(ctx, "u1", "b1", PollInput{
		Title:   strp("t"),
		Options: []PollOptionInput{{ID: "a", Label: "only one"}},
	}); !errors.Is(err, ErrTooFewOptions) {
		t.Fatalf("expected ErrTooFewOptions, got %v", err)
	}
	if _, err := svc.Create(ctx, "uX", "b1", PollInput{Title: strp("t"), Options: twoOptions()}); !errors.Is(err, ErrBioNotFound) {
		t.Fatalf("expected ErrBioNotFound for foreign bio, got %v", err)
	}
}

func TestPollCreate_FreePlanQuota(t *testing.T) {
	db := newTestDB(t)
	seedBio(t, db, "b1", "u1", "jane")
	svc := newPollService(db)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "u1", "b1", PollInput{Title: strp("one"), Options: twoOptions()}); err != nil {
		t.Fatalf("first Create: %v", err)
	}

	_, err := svc.Create(ctx, "u1", "b1", PollInput{Title: strp("two"), Options: twoOptions()})
	le, okLim := AsLimitExceeded(err)
	if !okLim {
		t.Fatalf("expected LimitExceededError, got %v", err)
	}
	if le.Plan != domain.PlanFree || le.Limit != 1 || le.Kind != KindPolls {
		t.Fatalf("unexpected limit payload: %+v", le)
	}
}

func TestPollCreate_ProPlanQuota(t *testing.T) {
	db := newTestDB(t)
	seedBio(t, db, "b1", "u1", "jane")
	now := time.Now().UTC()
	if err := repo.CreateBilling(context.Background(), db, &domain.Billing{
		UserID:    "u1",
		Plan:      domain.PlanPro,
		StartDate: now.Add(-time.Hour),
		EndDate:   now.Add(24 * time.Hour),
	}); err != nil {
		t.Fatalf("seed billing: %v", err)
	}
	svc := newPollService(db)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if _, err := svc.Create(ctx, "u1", "b1", PollInput{Title: strp(fmt.Sprintf("p%d", i)), Options: twoOptions()}); err != nil {
			t.Fatalf("Create %d under pro plan: %v", i, err)
		}
	}
	_, err := svc.Create(ctx, "u1", "b1", PollInput{Title: strp("p5"), Options: twoOptions()})
	if le, okLim := AsLimitExceeded(err); !okLim || le.Limit != 4 {
		t.Fatalf("expected pro limit 4, got %v", err)
	}
}

func TestPollUpdate_Partial(t *testing.T) {
	db := newTestDB(t)
	seedBio(t, db, "b1", "u1", "jane")
	svc := newPollService(db)
	ctx := context.Background()

	p, err := svc.Create(ctx, "u1", "b1", PollInput{Title: strp("before"), Options: twoOptions()})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	upd, err := svc.Update(ctx, "u1", p.ID, PollInput{
		Title:    strp("after"),
		IsActive: boolp(false),
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if upd.Title != "after" || upd.IsActive {
		t.Fatalf("update not applied: %+v", upd)
	}
	if len(upd.Options) != 2 {
		t.Fatalf("options should be untouched, got %+v", upd.Options)
	}

	// Blank title on update is rejected, not treated as "unchanged".
	if _, err := svc.Update(ctx, "u1", p.ID, PollInput{Title: strp("   ")}); !errors.Is(err, ErrTitleRequired) {
		t.Fatalf("expected ErrTitleRequired, got %v", err)
	}
}

func TestPollGet_ForeignOwnerLooksMissing(t *testing.T) {
	db := newTestDB(t)
	seedBio(t, db, "b1", "owner", "jane")
	svc := newPollService(db)
	ctx := context.Background()

	p, err := svc.Create(ctx, "owner", "b1", PollInput{Title: strp("t"), Options: twoOptions()})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.Get(ctx, "intruder", p.ID); !errors.Is(err, ErrPollNotFound) {
		t.Fatalf("expected ErrPollNotFound for foreign owner, got %v", err)
	}
	if _, err := svc.Get(ctx, "owner", "missing"); !errors.Is(err, ErrPollNotFound) {
		t.Fatalf("expected ErrPollNotFound for missing id, got %v", err)
	}
}

func TestPollVote_SuccessAndReceipt(t *testing.T) {
	db := newTestDB(t)
	seedBio(t, db, "b1", "u1", "jane")
	svc := newPollService(db)
	ctx := context.Background()

	p, err := svc.Create(ctx, "u1", "b1", PollInput{Title: strp("t"), Options: twoOptions()})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	receipt, err := svc.Vote(ctx, p.ID, VoteInput{OptionIDs: []string{"a"}}, SubmitMeta{IP: "203.0.113.7"})
	if err != nil {
		t.Fatalf("Vote: %v", err)
	}
	if !receipt.Success || receipt.PollID != p.ID || !receipt.ShowResults {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}
	if receipt.Results == nil || receipt.Results.TotalVotes != 1 {
		t.Fatalf("receipt should carry fresh results, got %+v", receipt.Results)
	}

	fresh, err := repo.GetPoll(ctx, db, p.ID)
	if err != nil {
		t.Fatalf("reload poll: %v", err)
	}
	if fresh.Votes != 1 {
		t.Fatalf("counter = %d, want 1", fresh.Votes)
	}
	rows, err := repo.CountPollVotes(ctx, db, p.ID)
	if err != nil || rows != 1 {
		t.Fatalf("vote rows = %d (%v), want 1", rows, err)
	}
}

func TestPollVote_DuplicateFingerprint(t *testing.T) {
	db := newTestDB(t)
	seedBio(t, db, "b1", "u1", "jane")
	svc := newPollService(db)
	ctx := context.Background()

	p, err := svc.Create(ctx, "u1", "b1", PollInput{Title: strp("t"), Options: twoOptions()})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	meta := SubmitMeta{IP: "198.51.100.4"}
	if _, err := svc.Vote(ctx, p.ID, VoteInput{OptionIDs: []string{"a"}}, meta); err != nil {
		t.Fatalf("first Vote: %v", err)
	}

	// Same fingerprint, different selection: the constraint is the arbiter.
	_, err = svc.Vote(ctx, p.ID, VoteInput{OptionIDs: []string{"b"}}, meta)
	if !errors.Is(err, ErrAlreadyVoted) {
		t.Fatalf("expected ErrAlreadyVoted, got %v", err)
	}

	fresh, _ := repo.GetPoll(ctx, db, p.ID)
	if fresh.Votes != 1 {
		t.Fatalf("counter advanced on rejected vote: %d", fresh.Votes)
	}
	rows, _ := repo.CountPollVotes(ctx, db, p.ID)
	if rows != 1 {
		t.Fatalf("vote rows = %d, want 1", rows)
	}
}

func TestPollVote_DistinctFingerprintsKeepCounterConsistent(t *testing.T) {
	db := newTestDB(t)
	seedBio(t, db, "b1", "u1", "jane")
	svc := newPollService(db)
	ctx := context.Background()

	p, err := svc.Create(ctx, "u1", "b1", PollInput{Title: strp("t"), Options: twoOptions()})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	const n = 10
	for i := 0; i < n; i++ {
		meta := SubmitMeta{IP: fmt.Sprintf("192.0.2.%d", i+1)}
		if _, err := svc.Vote(ctx, p.ID, VoteInput{OptionIDs: []string{"a"}}, meta); err != nil {
			t.Fatalf("vote %d: %v", i, err)
		}
	}

	fresh, _ := repo.GetPoll(ctx, db, p.ID)
	rows, _ := repo.CountPollVotes(ctx, db, p.ID)
	if fresh.Votes != n || rows != n {
		t.Fatalf("counter %d / rows %d, want %d", fresh.Votes, rows, n)
	}
}

func TestPollVote_ClosedAndWindow(t *testing.T) {
	db := newTestDB(t)
	seedBio(t, db, "b1", "u1", "jane")
	svc := newPollService(db)
	ctx := context.Background()

	inactive, err := svc.Create(ctx, "u1", "b1", PollInput{
		Title: strp("t"), Options: twoOptions(), IsActive: boolp(false),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Vote(ctx, inactive.ID, VoteInput{OptionIDs: []string{"a"}}, SubmitMeta{IP: "1.1.1.1"}); !errors.Is(err, ErrPollClosed) {
		t.Fatalf("expected ErrPollClosed for inactive poll, got %v", err)
	}

	// Window ended in the past: availability is evaluated lazily at vote
	// time, no status field flips anywhere.
	past := time.Now().UTC().Add(-time.Hour)
	if _, err := svc.Update(ctx, "u1", inactive.ID, PollInput{IsActive: boolp(true), EndsAt: &past}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, err := svc.Vote(ctx, inactive.ID, VoteInput{OptionIDs: []string{"a"}}, SubmitMeta{IP: "1.1.1.1"}); !errors.Is(err, ErrPollClosed) {
		t.Fatalf("expected ErrPollClosed after window end, got %v", err)
	}

	if _, err := svc.Vote(ctx, "missing", VoteInput{OptionIDs: []string{"a"}}, SubmitMeta{}); !errors.Is(err, ErrPollNotFound) {
		t.Fatalf("expected ErrPollNotFound, got %v", err)
	}
}

func TestPollVote_BallotValidation(t *testing.T) {
	db := newTestDB(t)
	seedBio(t, db, "b1", "u1", "jane")
	svc := newPollService(db)
	ctx := context.Background()

	p, err := svc.Create(ctx, "u1", "b1", PollInput{
		Title:        strp("t"),
		Options:      twoOptions(),
		RequireName:  boolp(true),
		RequireEmail: boolp(true),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	cases := []struct {
		name string
		in   VoteInput
		want error
	}{
		{"empty selection", VoteInput{OptionIDs: []string{" ", ""}}, ErrNoOptionSelected},
		{"multiple on single-choice", VoteInput{OptionIDs: []string{"a", "b"}}, ErrMultipleNotAllowed},
		{"unknown option", VoteInput{OptionIDs: []string{"zz"}}, ErrInvalidOption},
		{"missing name", VoteInput{OptionIDs: []string{"a"}}, ErrNameRequired},
		{"missing email", VoteInput{OptionIDs: []string{"a"}, Name: "Jane"}, ErrEmailRequired},
	}
	for _, tc := range cases {
		if _, err := svc.Vote(ctx, p.ID, tc.in, SubmitMeta{IP: "2.2.2.2"}); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}

	// Every rejection above happened before any write.
	rows, _ := repo.CountPollVotes(ctx, db, p.ID)
	if rows != 0 {
		t.Fatalf("rejected ballots persisted %d rows", rows)
	}
	fresh, _ := repo.GetPoll(ctx, db, p.ID)
	if fresh.Votes != 0 {
		t.Fatalf("counter advanced on rejected ballots: %d", fresh.Votes)
	}
}

func TestPollVote_DuplicateSelectionCollapses(t *testing.T) {
	db := newTestDB(t)
	seedBio(t, db, "b1", "u1", "jane")
	svc := newPollService(db)
	ctx := context.Background()

	p, err := svc.Create(ctx, "u1", "b1", PollInput{Title: strp("t"), Options: twoOptions()})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// ["a","a"] dedupes to one id and passes the single-choice gate.
	receipt, err := svc.Vote(ctx, p.ID, VoteInput{OptionIDs: []string{"a", "a"}}, SubmitMeta{IP: "3.3.3.3"})
	if err != nil {
		t.Fatalf("Vote: %v", err)
	}
	if receipt.Results.Options[0].Votes != 1 {
		t.Fatalf("deduped ballot should count once: %+v", receipt.Results)
	}
}

func TestPollVote_LeadCapture(t *testing.T) {
	db := newTestDB(t)
	seedBio(t, db, "b1", "u1", "jane")
	svc := newPollService(db)
	ctx := context.Background()

	mk := func(title string) *domain.Poll {
		p, err := svc.Create(ctx, "u1", "b1", PollInput{
			Title:        strp(title),
			Options:      twoOptions(),
			RequireEmail: boolp(true),
		})
		if err != nil {
			t.Fatalf("Create %s: %v", title, err)
		}
		return p
	}

	// Pro plan so the bio can carry two polls.
	now := time.Now().UTC()
	if err := repo.CreateBilling(ctx, db, &domain.Billing{
		UserID: "u1", Plan: domain.PlanPro,
		StartDate: now.Add(-time.Hour), EndDate: now.Add(time.Hour),
	}); err != nil {
		t.Fatalf("seed billing: %v", err)
	}

	p1, p2 := mk("one"), mk("two")

	if _, err := svc.Vote(ctx, p1.ID, VoteInput{OptionIDs: []string{"a"}, Email: "Voter@Example.COM"}, SubmitMeta{}); err != nil {
		t.Fatalf("vote p1: %v", err)
	}

	var lead domain.EmailLead
	if err := db.Where("bio_id = ?", "b1").First(&lead).Error; err != nil {
		t.Fatalf("lead not captured: %v", err)
	}
	if lead.Email != "voter@example.com" || lead.Source != "poll" {
		t.Fatalf("unexpected lead: %+v", lead)
	}

	// Same email on a second poll: vote succeeds, duplicate lead swallowed.
	if _, err := svc.Vote(ctx, p2.ID, VoteInput{OptionIDs: []string{"b"}, Email: "voter@example.com"}, SubmitMeta{}); err != nil {
		t.Fatalf("vote p2 with duplicate lead email: %v", err)
	}
	var count int64
	db.Model(&domain.EmailLead{}).Where("bio_id = ?", "b1").Count(&count)
	if count != 1 {
		t.Fatalf("lead rows = %d, want 1", count)
	}
}

func TestPollGetPublic_UnavailableLooksMissing(t *testing.T) {
	db := newTestDB(t)
	seedBio(t, db, "b1", "u1", "jane")
	svc := newPollService(db)
	ctx := context.Background()

	p, err := svc.Create(ctx, "u1", "b1", PollInput{
		Title: strp("t"), Options: twoOptions(), IsActive: boolp(false),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.GetPublic(ctx, p.ID); !errors.Is(err, ErrPollNotFound) {
		t.Fatalf("expected ErrPollNotFound for unavailable poll, got %v", err)
	}
	if _, err := svc.GetPublic(ctx, "missing"); !errors.Is(err, ErrPollNotFound) {
		t.Fatalf("expected ErrPollNotFound for missing poll, got %v", err)
	}
}

func TestPollPublicResults_PrivateAndPublic(t *testing.T) {
	db := newTestDB(t)
	seedBio(t, db, "b1", "u1", "jane")
	svc := newPollService(db)
	ctx := context.Background()

	p, err := svc.Create(ctx, "u1", "b1", PollInput{
		Title:             strp("t"),
		Options:           twoOptions(),
		ShowResultsPublic: boolp(false),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.PublicResults(ctx, p.ID); !errors.Is(err, ErrResultsPrivate) {
		t.Fatalf("expected ErrResultsPrivate, got %v", err)
	}

	// Owner still sees them.
	if _, err := svc.Results(ctx, "u1", p.ID); err != nil {
		t.Fatalf("owner Results: %v", err)
	}

	if _, err := svc.Update(ctx, "u1", p.ID, PollInput{ShowResultsPublic: boolp(true)}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	res, err := svc.PublicResults(ctx, p.ID)
	if err != nil {
		t.Fatalf("PublicResults after opening: %v", err)
	}
	if res.PollID != p.ID {
		t.Fatalf("unexpected results: %+v", res)
	}
}

func TestPollDelete_CascadesVotes(t *testing.T) {
	db := newTestDB(t)
	seedBio(t, db, "b1", "u1", "jane")
	svc := newPollService(db)
	ctx := context.Background()

	p, err := svc.Create(ctx, "u1", "b1", PollInput{Title: strp("t"), Options: twoOptions()})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Vote(ctx, p.ID, VoteInput{OptionIDs: []string{"a"}}, SubmitMeta{IP: "9.9.9.9"}); err != nil {
		t.Fatalf("Vote: %v", err)
	}

	if err := svc.Delete(ctx, "u1", p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(ctx, "u1", p.ID); !errors.Is(err, ErrPollNotFound) {
		t.Fatalf("poll still readable after delete: %v", err)
	}

	// The delete must be a real DELETE so the FK cascade removes the votes.
	rows, err := repo.CountPollVotes(ctx, db, p.ID)
	if err != nil {
		t.Fatalf("CountPollVotes: %v", err)
	}
	if rows != 0 {
		t.Fatalf("vote rows remain after poll deletion: %d", rows)
	}
	var orphanPolls int64
	if err := db.Table("polls").Where("id = ?", p.ID).Count(&orphanPolls).Error; err != nil {
		t.Fatalf("count polls: %v", err)
	}
	if orphanPolls != 0 {
		t.Fatalf("poll row remains after deletion (soft delete?): %d", orphanPolls)
	}
}

func TestNormalizeChartColors(t *testing.T) {
	got := normalizeChartColors([]string{" #fff ", "#A1B2C3", "red", "#12345"})
	if len(got) != 2 || got[0] != "#fff" || got[1] != "#A1B2C3" {
		t.Fatalf("unexpected palette: %v", got)
	}

	// All invalid -> default palette.
	def := normalizeChartColors([]string{"blue", ""})
	if len(def) != len(DefaultChartColors) {
		t.Fatalf("expected default palette, got %v", def)
	}

	// Cap at twelve.
	many := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		many = append(many, fmt.Sprintf("#%06x", i))
	}
	if got := normalizeChartColors(many); len(got) != maxChartColors {
		t.Fatalf("palette not capped: %d", len(got))
	}
}

func TestIsDuplicate(t *testing.T) {
	if !isDuplicate(gorm.ErrDuplicatedKey) {
		t.Fatalf("gorm.ErrDuplicatedKey not detected")
	}
	if !isDuplicate(errors.New("UNIQUE constraint failed: poll_votes.poll_id, poll_votes.voter_fingerprint")) {
		t.Fatalf("sqlite message not detected")
	}
	if !isDuplicate(errors.New(`duplicate key value violates unique constraint "ux"`)) {
		t.Fatalf("postgres message not detected")
	}
	if isDuplicate(errors.New("disk I/O error")) {
		t.Fatalf("unrelated error misclassified")
	}
}
