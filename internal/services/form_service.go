// Package services – FormService
//
// This file implements the FormService, which governs the lifecycle of forms
// and the public submission path. Unlike the poll path there is no duplicate
// guard: forms accept unlimited repeat submissions by design. Each accepted
// submission advances the form's counter atomically, recomputes the owner's
// cross-form milestone total by aggregate query, and emits two notifier
// events (per-submission and milestone).
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"github.com/biolinkhq/go-biolink-backend/internal/domain"
	"github.com/biolinkhq/go-biolink-backend/internal/repo"
)

// FormService implements the use-cases around forms and their answers.
type FormService struct {
	// DB is the database handle used for all form operations.
	DB *gorm.DB
	// Plans gates creation on the owner's subscription quota.
	Plans *PlanService
	// Notifier receives fire-and-forget submission and milestone events.
	Notifier Notifier
}

// FormInput carries the owner-editable form definition. On update, nil
// pointer fields are left unchanged.
type FormInput struct {
	Title       *string
	Description *string
	Fields      []domain.FormField
	IsActive    *bool
}

// Create inserts a new form under bioID after verifying ownership and plan
// quota, sharing one transaction between the check and the insert.
func (s *FormService) Create(ctx context.Context, userID, bioID string, in FormInput) (*domain.Form, error) {
	var created *domain.Form
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bio, err := repo.GetBio(ctx, tx, bioID, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBioNotFound
			}
			return err
		}

		if err := s.Plans.CheckCreateAllowed(ctx, tx, bio, KindForms, time.Now().UTC()); err != nil {
			return err
		}

		title := ""
		if in.Title != nil {
			title = strings.TrimSpace(*in.Title)
		}
		if title == "" {
			return ErrTitleRequired
		}

		f := &domain.Form{
			BioID:       bio.ID,
			Title:       title,
			Description: in.Description,
			Fields:      domain.FormFields(in.Fields),
			IsActive:    boolOr(in.IsActive, true),
		}
		created, err = repo.CreateForm(ctx, tx, f)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ListPage returns a page of the bio's forms plus the total count, enforcing
// ownership.
func (s *FormService) ListPage(ctx context.Context, userID, bioID string, page, pageSize int) ([]domain.Form, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	if _, err := repo.GetBio(ctx, s.DB, bioID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, ErrBioNotFound
		}
		return nil, 0, err
	}

	total, err := repo.CountForms(ctx, s.DB, bioID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Form{}, 0, nil
	}
	items, err := repo.ListFormsPage(ctx, s.DB, bioID, (page-1)*pageSize, pageSize)
	return items, total, err
}

// Get returns a form owned by userID, or ErrFormNotFound.
func (s *FormService) Get(ctx context.Context, userID, formID string) (*domain.Form, error) {
	return s.ownedForm(ctx, s.DB, userID, formID)
}

// Update applies a partial definition to a form owned by userID.
func (s *FormService) Update(ctx context.Context, userID, formID string, in FormInput) (*domain.Form, error) {
	var updated *domain.Form
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.ownedForm(ctx, tx, userID, formID)
		if err != nil {
			return err
		}

		updates := map[string]any{}
		if in.Title != nil {
			t := strings.TrimSpace(*in.Title)
			if t == "" {
				return ErrTitleRequired
			}
			updates["title"] = t
		}
		if in.Description != nil {
			updates["description"] = *in.Description
		}
		if in.Fields != nil {
			updates["fields"] = domain.FormFields(in.Fields)
		}
		if in.IsActive != nil {
			updates["is_active"] = *in.IsActive
		}

		if len(updates) > 0 {
			if err := repo.UpdateForm(ctx, tx, current.ID, updates); err != nil {
				return err
			}
		}
		updated, err = repo.GetForm(ctx, tx, current.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a form owned by userID; its answers cascade.
func (s *FormService) Delete(ctx context.Context, userID, formID string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.ownedForm(ctx, tx, userID, formID); err != nil {
			return err
		}
		return repo.DeleteForm(ctx, tx, formID)
	})
}

// Answers returns a page of recorded answers plus the total, enforcing
// ownership.
func (s *FormService) Answers(ctx context.Context, userID, formID string, page, pageSize int) ([]domain.FormAnswer, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if _, err := s.ownedForm(ctx, s.DB, userID, formID); err != nil {
		return nil, 0, err
	}
	total, err := repo.CountFormAnswers(ctx, s.DB, formID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.FormAnswer{}, 0, nil
	}
	items, err := repo.ListFormAnswersPage(ctx, s.DB, formID, (page-1)*pageSize, pageSize)
	return items, total, err
}

// Submit records one public submission.
//
// Pipeline: form exists (ErrFormNotFound), form active (ErrFormInactive),
// then insert + atomic submissions increment in one transaction. There is no
// duplicate check — repeat submissions are allowed by design.
//
// After commit the milestone total is recomputed as SUM(submissions) across
// every form of the bio (an aggregate query, not a maintained counter, so it
// always reflects committed state), and two events go to the notifier: the
// per-submission event with variables mapped from the field schema, and the
// milestone event carrying the recomputed total. Notifier failures are
// logged, never surfaced.
func (s *FormService) Submit(ctx context.Context, formID string, answers map[string]any, meta SubmitMeta) (*domain.FormAnswer, error) {
	var (
		form   *domain.Form
		answer *domain.FormAnswer
	)

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		form, err = repo.GetForm(ctx, tx, formID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrFormNotFound
			}
			return err
		}
		if !form.IsActive {
			return ErrFormInactive
		}

		a := &domain.FormAnswer{
			FormID:  form.ID,
			Answers: domain.JSONMap(answers),
		}
		if ip := strings.TrimSpace(meta.IP); ip != "" {
			a.IPAddress = &ip
		}
		if ua := strings.TrimSpace(meta.UserAgent); ua != "" {
			a.UserAgent = &ua
		}
		answer, err = repo.CreateFormAnswer(ctx, tx, a)
		if err != nil {
			return err
		}
		return repo.IncrementFormSubmissions(ctx, tx, form.ID)
	})
	if err != nil {
		return nil, err
	}

	// Milestone total: recomputed by aggregate query, race-tolerant by
	// construction. A failed read only degrades the milestone event.
	total, err := repo.TotalSubmissions(ctx, s.DB, form.BioID)
	if err != nil {
		total = 0
	}

	variables, subscriberEmail := mapAnswerVariables(form.Fields, answers)
	variables["form_id"] = form.ID
	variables["form_title"] = form.Title
	if subscriberEmail != "" {
		variables["email"] = subscriberEmail
	}

	emitAsync(s.Notifier, Event{
		BioID:      form.BioID,
		ResourceID: form.ID,
		Kind:       EventFormSubmit,
		TotalCount: form.Submissions + 1,
		Payload:    variables,
	})
	emitAsync(s.Notifier, Event{
		BioID:      form.BioID,
		ResourceID: form.ID,
		Kind:       EventFormSubmitMilestone,
		TotalCount: total,
		Payload:    map[string]any{"milestone_count": total},
	})

	return answer, nil
}

// ownedForm loads a form and verifies the caller owns its bio. Both a
// missing form and foreign ownership come back as ErrFormNotFound.
func (s *FormService) ownedForm(ctx context.Context, db *gorm.DB, userID, formID string) (*domain.Form, error) {
	f, err := repo.GetForm(ctx, db, formID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFormNotFound
		}
		return nil, err
	}
	if _, err := repo.GetBio(ctx, db, f.BioID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFormNotFound
		}
		return nil, err
	}
	return f, nil
}

// unsafeVarChars matches everything that may not appear in an automation
// variable name.
var unsafeVarChars = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// mapAnswerVariables turns submitted values into automation variables keyed
// both by field id and by a variable-friendly form of the field label
// ("First Name" -> "First_Name", "Prénom" -> "Prenom"). It also performs the
// smart email detection: a value on a field typed "email" (or whose label
// mentions email) that looks like an address becomes the subscriber email.
func mapAnswerVariables(fields domain.FormFields, answers map[string]any) (map[string]any, string) {
	variables := make(map[string]any, len(fields)*2)
	subscriberEmail := ""

	for _, field := range fields {
		value, ok := answers[field.ID]
		if !ok || value == nil {
			continue
		}
		if safe := safeVarName(field.Label); safe != "" {
			variables[safe] = value
		}
		variables[field.ID] = value

		if subscriberEmail == "" && looksLikeEmailField(field) {
			if s, ok := value.(string); ok && strings.Contains(s, "@") {
				subscriberEmail = strings.TrimSpace(s)
			}
		}
	}
	return variables, subscriberEmail
}

// looksLikeEmailField reports whether a field plausibly captures an email.
func looksLikeEmailField(f domain.FormField) bool {
	return f.Type == "email" || strings.Contains(strings.ToLower(f.Label), "email")
}

// labelFolder strips diacritics so accented labels still yield ASCII variable
// names before the unsafe-character collapse.
var labelFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// safeVarName normalizes a field label into an automation variable name:
// accents folded, runs of non-alphanumerics collapsed to single underscores,
// leading/trailing underscores trimmed.
func safeVarName(label string) string {
	folded, _, err := transform.String(labelFolder, label)
	if err != nil {
		folded = label
	}
	return strings.Trim(unsafeVarChars.ReplaceAllString(folded, "_"), "_")
}
