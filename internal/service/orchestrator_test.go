package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mealsnap/backend/internal/models"
)

type stubNormalizer struct {
	err error
}

func (s *stubNormalizer) Normalize(name string, data []byte) (*NormalizedImage, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &NormalizedImage{
		Name:        name,
		ContentType: "image/jpeg",
		Data:        []byte("normalized"),
		Width:       640,
		Height:      480,
		ModifiedAt:  time.Now(),
	}, nil
}

type stubAnalysis struct {
	fn func(ctx context.Context, imageURL, text string) (*AnalysisResult, error)
}

func (s *stubAnalysis) Analyze(ctx context.Context, imageURL, text string) (*AnalysisResult, error) {
	return s.fn(ctx, imageURL, text)
}

type stubUploader struct {
	url string
	err error
}

func (s *stubUploader) Upload(ctx context.Context, img *NormalizedImage) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.url, nil
}

type memMealStore struct {
	mu    sync.Mutex
	meals []*models.Meal
	err   error
}

func (m *memMealStore) Create(ctx context.Context, meal *models.Meal) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meals = append(m.meals, meal)
	return nil
}

func fixedResult(calories float64) *AnalysisResult {
	return &AnalysisResult{
		Calories:    calories,
		Macros:      Macronutrients{Protein: 14, Carbs: 20, Fat: 10},
		Ingredients: []string{"eggs", "toast"},
	}
}

func newTestOrchestrator(analysis AnalysisService, uploader AssetUploader, meals MealWriter) *Orchestrator {
	if analysis == nil {
		analysis = &stubAnalysis{fn: func(ctx context.Context, imageURL, text string) (*AnalysisResult, error) {
			return fixedResult(220), nil
		}}
	}
	if uploader == nil {
		uploader = &stubUploader{url: "https://bucket.s3.amazonaws.com/meal-images/1-meal.jpg"}
	}
	if meals == nil {
		meals = &memMealStore{}
	}
	return NewOrchestrator(&stubNormalizer{}, analysis, uploader, meals)
}

func TestOrchestrator_CreateDraftDefaults(t *testing.T) {
	o := newTestOrchestrator(nil, nil, nil)
	morning := time.Date(2025, 3, 10, 8, 30, 0, 0, time.UTC)
	o.now = func() time.Time { return morning }

	draft := o.CreateDraft()

	assert.NotEmpty(t, draft.ID)
	assert.Equal(t, models.SlotBreakfast, draft.Slot)
	assert.Equal(t, morning, draft.EatenAt)
	assert.Equal(t, StateIdle, draft.State)
	assert.Zero(t, draft.Calories)
	assert.Zero(t, draft.Macros.Protein)
}

func TestOrchestrator_ImagePath(t *testing.T) {
	o := newTestOrchestrator(nil, nil, nil)
	draft := o.CreateDraft()

	updated, err := o.AttachImage(context.Background(), draft.ID, "meal.jpg", []byte("raw"))

	require.NoError(t, err)
	assert.Equal(t, StateReady, updated.State)
	assert.True(t, updated.HasImage)
	assert.Equal(t, "https://bucket.s3.amazonaws.com/meal-images/1-meal.jpg", updated.ImageURL)
	assert.Equal(t, 220.0, updated.Calories)
	assert.Equal(t, Macronutrients{Protein: 14, Carbs: 20, Fat: 10}, updated.Macros)
	// the image path populates the ingredients from analysis
	assert.Equal(t, "eggs, toast", updated.Ingredients)

	preview, err := o.Preview(draft.ID)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", preview.ContentType)
}

func TestOrchestrator_TextPathKeepsUserText(t *testing.T) {
	o := newTestOrchestrator(nil, nil, nil)
	draft := o.CreateDraft()

	updated, err := o.RecalculateFromText(context.Background(), draft.ID, "2 eggs, 1 toast")

	require.NoError(t, err)
	assert.Equal(t, StateReady, updated.State)
	assert.Equal(t, 220.0, updated.Calories)
	assert.Equal(t, Macronutrients{Protein: 14, Carbs: 20, Fat: 10}, updated.Macros)
	// the user's own text is never overwritten by the text path
	assert.Equal(t, "2 eggs, 1 toast", updated.Ingredients)
}

func TestOrchestrator_AnalysisFailureKeepsPriorValues(t *testing.T) {
	analysis := &stubAnalysis{fn: func(ctx context.Context, imageURL, text string) (*AnalysisResult, error) {
		return nil, &AnalysisServiceError{StatusCode: 500, Body: "boom"}
	}}
	o := newTestOrchestrator(analysis, nil, nil)
	draft := o.CreateDraft()

	cal := 500.0
	_, err := o.UpdateDraft(draft.ID, DraftEdits{Calories: &cal})
	require.NoError(t, err)

	updated, err := o.AttachImage(context.Background(), draft.ID, "meal.jpg", []byte("raw"))

	var svcErr *AnalysisServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, StateError, updated.State)
	assert.Equal(t, 500.0, updated.Calories, "prior numbers must survive an analysis failure")

	// upload already succeeded, so the local preview is still shown
	preview, previewErr := o.Preview(draft.ID)
	require.NoError(t, previewErr)
	assert.NotNil(t, preview)
}

func TestOrchestrator_NormalizeFailureClearsImage(t *testing.T) {
	o := NewOrchestrator(&stubNormalizer{err: ErrImageDecode}, &stubAnalysis{fn: func(ctx context.Context, imageURL, text string) (*AnalysisResult, error) {
		t.Fatal("analysis must not run when normalization fails")
		return nil, nil
	}}, &stubUploader{}, &memMealStore{})
	draft := o.CreateDraft()

	updated, err := o.AttachImage(context.Background(), draft.ID, "broken.jpg", []byte("raw"))

	assert.ErrorIs(t, err, ErrImageDecode)
	assert.Equal(t, StateError, updated.State)
	assert.False(t, updated.HasImage)

	_, previewErr := o.Preview(draft.ID)
	assert.ErrorIs(t, previewErr, ErrDraftNotFound)
}

func TestOrchestrator_UploadFailureKeepsPreview(t *testing.T) {
	o := newTestOrchestrator(nil, &stubUploader{err: ErrUpload}, nil)
	draft := o.CreateDraft()

	updated, err := o.AttachImage(context.Background(), draft.ID, "meal.jpg", []byte("raw"))

	assert.ErrorIs(t, err, ErrUpload)
	assert.Equal(t, StateError, updated.State)
	assert.Empty(t, updated.ImageURL)

	preview, previewErr := o.Preview(draft.ID)
	require.NoError(t, previewErr)
	assert.NotNil(t, preview, "upload failure must not erase the local preview")
}

func TestOrchestrator_StaleCompletionDiscarded(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	analysis := &stubAnalysis{fn: func(ctx context.Context, imageURL, text string) (*AnalysisResult, error) {
		if imageURL != "" {
			// run A, the image path: block until run B has finished
			close(entered)
			<-release
			return fixedResult(999), nil
		}
		return fixedResult(300), nil
	}}
	o := newTestOrchestrator(analysis, nil, nil)
	draft := o.CreateDraft()

	done := make(chan MealDraft, 1)
	go func() {
		d, err := o.AttachImage(context.Background(), draft.ID, "meal.jpg", []byte("raw"))
		assert.NoError(t, err, "a superseded run must not surface an error")
		done <- d
	}()

	<-entered

	// run B supersedes run A while A's analysis is still in flight
	updated, err := o.RecalculateFromText(context.Background(), draft.ID, "salad")
	require.NoError(t, err)
	assert.Equal(t, 300.0, updated.Calories)

	close(release)
	<-done

	final, err := o.GetDraft(draft.ID)
	require.NoError(t, err)
	assert.Equal(t, 300.0, final.Calories, "run A's late result must not clobber run B's")
	assert.Equal(t, "salad", final.Ingredients)
	assert.Equal(t, StateReady, final.State)
}

func TestOrchestrator_MergeOverwritesWithZero(t *testing.T) {
	analysis := &stubAnalysis{fn: func(ctx context.Context, imageURL, text string) (*AnalysisResult, error) {
		// the backend omitted calories; the client already defaulted it to 0
		return &AnalysisResult{Macros: Macronutrients{Protein: 5, Carbs: 8, Fat: 2}, Ingredients: []string{"apple"}}, nil
	}}
	o := newTestOrchestrator(analysis, nil, nil)
	draft := o.CreateDraft()

	cal := 500.0
	_, err := o.UpdateDraft(draft.ID, DraftEdits{Calories: &cal})
	require.NoError(t, err)

	updated, err := o.RecalculateFromText(context.Background(), draft.ID, "an apple")

	require.NoError(t, err)
	assert.Equal(t, 0.0, updated.Calories, "a missing calorie field replaces the prior value with 0")
}

func TestOrchestrator_UpdateDraft(t *testing.T) {
	o := newTestOrchestrator(nil, nil, nil)
	draft := o.CreateDraft()

	slot := models.SlotDinner
	when := time.Date(2025, 3, 10, 20, 15, 0, 0, time.UTC)
	text := "soup"
	negative := -12.5

	updated, err := o.UpdateDraft(draft.ID, DraftEdits{
		Slot:        &slot,
		EatenAt:     &when,
		Ingredients: &text,
		Calories:    &negative,
		Protein:     &negative,
	})

	require.NoError(t, err)
	assert.Equal(t, models.SlotDinner, updated.Slot)
	assert.Equal(t, when, updated.EatenAt)
	assert.Equal(t, "soup", updated.Ingredients)
	assert.Zero(t, updated.Calories, "negative edits clamp to zero")
	assert.Zero(t, updated.Macros.Protein)
}

func TestOrchestrator_ClearImageReleasesPreview(t *testing.T) {
	o := newTestOrchestrator(nil, nil, nil)
	draft := o.CreateDraft()

	_, err := o.AttachImage(context.Background(), draft.ID, "meal.jpg", []byte("raw"))
	require.NoError(t, err)

	updated, err := o.ClearImage(draft.ID)
	require.NoError(t, err)
	assert.False(t, updated.HasImage)
	assert.Empty(t, updated.ImageURL)

	_, previewErr := o.Preview(draft.ID)
	assert.ErrorIs(t, previewErr, ErrDraftNotFound)
}

func TestOrchestrator_Finalize(t *testing.T) {
	t.Run("should persist the record and end the session", func(t *testing.T) {
		store := &memMealStore{}
		o := newTestOrchestrator(nil, nil, store)
		draft := o.CreateDraft()

		_, err := o.AttachImage(context.Background(), draft.ID, "meal.jpg", []byte("raw"))
		require.NoError(t, err)

		meal, err := o.Finalize(context.Background(), draft.ID, "user-123")

		require.NoError(t, err)
		assert.Equal(t, "user-123", meal.UserID)
		assert.Equal(t, 220.0, meal.Calories)
		assert.Equal(t, 14.0, meal.Protein)
		assert.Equal(t, "eggs, toast", meal.Ingredients)
		assert.NotEmpty(t, meal.ImageURL)
		assert.Len(t, store.meals, 1)

		_, err = o.GetDraft(draft.ID)
		assert.ErrorIs(t, err, ErrDraftNotFound)
		_, err = o.Preview(draft.ID)
		assert.ErrorIs(t, err, ErrDraftNotFound)
	})

	t.Run("should fall back to the unknown-user sentinel", func(t *testing.T) {
		store := &memMealStore{}
		o := newTestOrchestrator(nil, nil, store)
		draft := o.CreateDraft()

		meal, err := o.Finalize(context.Background(), draft.ID, "")

		require.NoError(t, err)
		assert.Equal(t, models.UnknownUserID, meal.UserID)
	})

	t.Run("should keep the draft on persistence failure", func(t *testing.T) {
		store := &memMealStore{err: ErrPersistence}
		o := newTestOrchestrator(nil, nil, store)
		draft := o.CreateDraft()

		_, err := o.RecalculateFromText(context.Background(), draft.ID, "soup")
		require.NoError(t, err)

		meal, err := o.Finalize(context.Background(), draft.ID, "user-123")

		assert.Nil(t, meal)
		assert.ErrorIs(t, err, ErrPersistence)

		kept, getErr := o.GetDraft(draft.ID)
		require.NoError(t, getErr)
		assert.Equal(t, StateReady, kept.State)
		assert.Equal(t, "soup", kept.Ingredients)

		// the user can retry without redoing analysis
		store.err = nil
		retried, retryErr := o.Finalize(context.Background(), draft.ID, "user-123")
		require.NoError(t, retryErr)
		assert.Equal(t, "soup", retried.Ingredients)
	})

	t.Run("should refuse while a pipeline stage is in flight", func(t *testing.T) {
		entered := make(chan struct{})
		release := make(chan struct{})
		analysis := &stubAnalysis{fn: func(ctx context.Context, imageURL, text string) (*AnalysisResult, error) {
			close(entered)
			<-release
			return fixedResult(220), nil
		}}
		o := newTestOrchestrator(analysis, nil, nil)
		draft := o.CreateDraft()

		go func() {
			_, _ = o.RecalculateFromText(context.Background(), draft.ID, "soup")
		}()
		<-entered

		_, err := o.Finalize(context.Background(), draft.ID, "user-123")
		assert.ErrorIs(t, err, ErrPipelineBusy)

		close(release)
	})
}

func TestOrchestrator_DiscardDraft(t *testing.T) {
	o := newTestOrchestrator(nil, nil, nil)
	draft := o.CreateDraft()

	require.NoError(t, o.DiscardDraft(draft.ID))
	assert.ErrorIs(t, o.DiscardDraft(draft.ID), ErrDraftNotFound)

	_, err := o.GetDraft(draft.ID)
	assert.ErrorIs(t, err, ErrDraftNotFound)
}

func TestOrchestrator_UnknownDraft(t *testing.T) {
	o := newTestOrchestrator(nil, nil, nil)

	_, err := o.GetDraft("nope")
	assert.ErrorIs(t, err, ErrDraftNotFound)

	_, err = o.AttachImage(context.Background(), "nope", "meal.jpg", []byte("raw"))
	assert.ErrorIs(t, err, ErrDraftNotFound)

	_, err = o.RecalculateFromText(context.Background(), "nope", "soup")
	assert.ErrorIs(t, err, ErrDraftNotFound)

	_, err = o.Finalize(context.Background(), "nope", "user-123")
	assert.ErrorIs(t, err, ErrDraftNotFound)
}

func TestOrchestrator_ErrorLeavesDraftEditable(t *testing.T) {
	analysis := &stubAnalysis{fn: func(ctx context.Context, imageURL, text string) (*AnalysisResult, error) {
		return nil, errors.New("transient")
	}}
	o := newTestOrchestrator(analysis, nil, nil)
	draft := o.CreateDraft()

	_, err := o.RecalculateFromText(context.Background(), draft.ID, "soup")
	require.Error(t, err)

	// manual edits and a save are still possible after a stage failure
	cal := 250.0
	updated, err := o.UpdateDraft(draft.ID, DraftEdits{Calories: &cal})
	require.NoError(t, err)
	assert.Equal(t, 250.0, updated.Calories)

	meal, err := o.Finalize(context.Background(), draft.ID, "user-123")
	require.NoError(t, err)
	assert.Equal(t, 250.0, meal.Calories)
}
