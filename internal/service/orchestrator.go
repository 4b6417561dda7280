package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mealsnap/backend/internal/models"
)

// draftSession holds one entry session: the draft, the preview bytes for an
// attached image, and the generation counter that arbitrates overlapping
// pipeline runs.
type draftSession struct {
	mu      sync.Mutex
	draft   MealDraft
	preview *NormalizedImage
	gen     uint64
}

// Orchestrator sequences the meal-capture pipeline for each draft session:
// normalize -> upload -> analyze on the image path, a direct analyze on the
// text path. Completions carry the generation captured at trigger time and
// are discarded if a later trigger has superseded them, so the last trigger
// wins even when a slow response lands late.
type Orchestrator struct {
	mu       sync.Mutex
	sessions map[string]*draftSession

	normalizer Normalizer
	analysis   AnalysisService
	assets     AssetUploader
	meals      MealWriter

	now func() time.Time
}

// NewOrchestrator creates the orchestrator with its injected collaborators.
// One instance is constructed at startup and shared by all sessions.
func NewOrchestrator(normalizer Normalizer, analysis AnalysisService, assets AssetUploader, meals MealWriter) *Orchestrator {
	return &Orchestrator{
		sessions:   make(map[string]*draftSession),
		normalizer: normalizer,
		analysis:   analysis,
		assets:     assets,
		meals:      meals,
		now:        time.Now,
	}
}

// CreateDraft opens a new entry session. The meal slot defaults from the
// wall-clock hour, the timestamp from the creation time; both stay
// user-overridable.
func (o *Orchestrator) CreateDraft() MealDraft {
	now := o.now()
	draft := MealDraft{
		ID:        uuid.New().String(),
		Slot:      models.SlotForHour(now.Hour()),
		EatenAt:   now,
		State:     StateIdle,
		CreatedAt: now,
	}

	o.mu.Lock()
	o.sessions[draft.ID] = &draftSession{draft: draft}
	o.mu.Unlock()

	return draft
}

// GetDraft returns a snapshot of the draft for the given session
func (o *Orchestrator) GetDraft(id string) (MealDraft, error) {
	s, err := o.session(id)
	if err != nil {
		return MealDraft{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft, nil
}

// Preview returns the normalized image held by the session, if any. The
// preview never outlives the image ref: it is released when the image is
// cleared and when the draft finalizes.
func (o *Orchestrator) Preview(id string) (*NormalizedImage, error) {
	s, err := o.session(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.preview == nil {
		return nil, ErrDraftNotFound
	}
	return s.preview, nil
}

// AttachImage runs the image path: normalize, upload, analyze, merge. The
// returned draft reflects the session after this run either applied or was
// superseded; err reports this run's stage failure, nil if it succeeded or
// was discarded as stale.
func (o *Orchestrator) AttachImage(ctx context.Context, id, filename string, data []byte) (MealDraft, error) {
	s, err := o.session(id)
	if err != nil {
		return MealDraft{}, err
	}

	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.draft.State = StateNormalizing
	s.draft.LastError = ""
	s.mu.Unlock()

	normalized, err := o.normalizer.Normalize(filename, data)
	if err != nil {
		return o.fail(s, gen, err, func(d *MealDraft) {
			// normalization failed: no image ref to keep
			s.preview = nil
			d.HasImage = false
			d.ImageURL = ""
		})
	}

	applied := o.apply(s, gen, func(d *MealDraft) {
		s.preview = normalized
		d.HasImage = true
		d.State = StateUploading
	})
	if !applied {
		return o.snapshot(s), nil
	}

	publicURL, err := o.assets.Upload(ctx, normalized)
	if err != nil {
		// upload failure keeps the local preview visible
		return o.fail(s, gen, err, nil)
	}

	o.apply(s, gen, func(d *MealDraft) {
		d.ImageURL = publicURL
		d.State = StateAnalyzing
	})

	result, err := o.analysis.Analyze(ctx, publicURL, "")
	if err != nil {
		// prior numeric values stay untouched
		return o.fail(s, gen, err, nil)
	}

	o.apply(s, gen, func(d *MealDraft) {
		d.applyAnalysis(result, true)
		d.State = StateReady
	})
	return o.snapshot(s), nil
}

// RecalculateFromText runs the text path: the user's ingredient text goes
// straight to analysis, skipping normalization and upload. The analysis
// result overwrites calories and macros but never the text itself.
func (o *Orchestrator) RecalculateFromText(ctx context.Context, id, text string) (MealDraft, error) {
	s, err := o.session(id)
	if err != nil {
		return MealDraft{}, err
	}

	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.draft.Ingredients = text
	s.draft.State = StateAnalyzing
	s.draft.LastError = ""
	s.mu.Unlock()

	result, err := o.analysis.Analyze(ctx, "", text)
	if err != nil {
		return o.fail(s, gen, err, nil)
	}

	o.apply(s, gen, func(d *MealDraft) {
		d.applyAnalysis(result, false)
		d.State = StateReady
	})
	return o.snapshot(s), nil
}

// DraftEdits carries the user's manual field edits; nil fields are untouched
type DraftEdits struct {
	Slot        *models.MealSlot `json:"slot"`
	EatenAt     *time.Time       `json:"eaten_at"`
	Ingredients *string          `json:"ingredients"`
	Calories    *float64         `json:"calories"`
	Protein     *float64         `json:"protein"`
	Carbs       *float64         `json:"carbs"`
	Fat         *float64         `json:"fat"`
}

// UpdateDraft applies manual edits directly, with no pipeline re-entry.
// Negative numerics are clamped to zero.
func (o *Orchestrator) UpdateDraft(id string, edits DraftEdits) (MealDraft, error) {
	s, err := o.session(id)
	if err != nil {
		return MealDraft{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d := &s.draft
	if edits.Slot != nil {
		d.Slot = *edits.Slot
	}
	if edits.EatenAt != nil {
		d.EatenAt = *edits.EatenAt
	}
	if edits.Ingredients != nil {
		d.Ingredients = *edits.Ingredients
	}
	if edits.Calories != nil {
		d.Calories = nonNegative(*edits.Calories)
	}
	if edits.Protein != nil {
		d.Macros.Protein = nonNegative(*edits.Protein)
	}
	if edits.Carbs != nil {
		d.Macros.Carbs = nonNegative(*edits.Carbs)
	}
	if edits.Fat != nil {
		d.Macros.Fat = nonNegative(*edits.Fat)
	}

	return s.draft, nil
}

// ClearImage drops the image ref and releases the preview. Bumping the
// generation also supersedes any image pipeline still in flight.
func (o *Orchestrator) ClearImage(id string) (MealDraft, error) {
	s, err := o.session(id)
	if err != nil {
		return MealDraft{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	s.preview = nil
	s.draft.HasImage = false
	s.draft.ImageURL = ""
	if s.draft.State == StateNormalizing || s.draft.State == StateUploading || s.draft.State == StateAnalyzing {
		s.draft.State = StateIdle
	}
	return s.draft, nil
}

// Finalize constructs the insert-only meal record from the draft and writes
// it attributed to userID (the unknown-user sentinel when identity could not
// be resolved). Success ends the session and releases the preview; failure
// leaves the draft intact so the user can retry without redoing analysis.
func (o *Orchestrator) Finalize(ctx context.Context, id, userID string) (*models.Meal, error) {
	s, err := o.session(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	switch s.draft.State {
	case StateNormalizing, StateUploading, StateAnalyzing:
		s.mu.Unlock()
		return nil, ErrPipelineBusy
	}
	if userID == "" {
		userID = models.UnknownUserID
	}
	meal := &models.Meal{
		UserID:      userID,
		Slot:        s.draft.Slot,
		EatenAt:     s.draft.EatenAt,
		Ingredients: s.draft.Ingredients,
		Calories:    s.draft.Calories,
		Protein:     s.draft.Macros.Protein,
		Carbs:       s.draft.Macros.Carbs,
		Fat:         s.draft.Macros.Fat,
		ImageURL:    s.draft.ImageURL,
	}
	s.mu.Unlock()

	if err := o.meals.Create(ctx, meal); err != nil {
		s.mu.Lock()
		s.draft.State = StateReady
		s.draft.LastError = err.Error()
		s.mu.Unlock()
		return nil, err
	}

	o.mu.Lock()
	delete(o.sessions, id)
	o.mu.Unlock()

	log.Printf("[Orchestrator] draft %s saved as meal %s for user %s", id, meal.ID, userID)
	return meal, nil
}

// DiscardDraft drops a session without saving
func (o *Orchestrator) DiscardDraft(id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.sessions[id]; !ok {
		return ErrDraftNotFound
	}
	delete(o.sessions, id)
	return nil
}

func (o *Orchestrator) session(id string) (*draftSession, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.sessions[id]
	if !ok {
		return nil, ErrDraftNotFound
	}
	return s, nil
}

// apply runs mutate under the session lock only if gen is still the latest
// issued generation. A stale completion is silently discarded.
func (o *Orchestrator) apply(s *draftSession, gen uint64, mutate func(*MealDraft)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		log.Printf("[Orchestrator] discarding stale completion for draft %s (gen %d, latest %d)", s.draft.ID, gen, s.gen)
		return false
	}
	mutate(&s.draft)
	return true
}

// fail records a stage error on the draft if this run is still current. The
// stage error is returned only when it applied; a superseded run's error
// must not surface over the newer run's state.
func (o *Orchestrator) fail(s *draftSession, gen uint64, stageErr error, extra func(*MealDraft)) (MealDraft, error) {
	applied := o.apply(s, gen, func(d *MealDraft) {
		d.State = StateError
		d.LastError = stageErr.Error()
		if extra != nil {
			extra(d)
		}
	})
	if !applied {
		return o.snapshot(s), nil
	}
	return o.snapshot(s), stageErr
}

func (o *Orchestrator) snapshot(s *draftSession) MealDraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}
