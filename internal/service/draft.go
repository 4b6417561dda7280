package service

import (
	"strings"
	"time"

	"github.com/mealsnap/backend/internal/models"
)

// PipelineState tracks where a draft's capture pipeline currently is
type PipelineState string

const (
	StateIdle        PipelineState = "idle"
	StateNormalizing PipelineState = "normalizing"
	StateUploading   PipelineState = "uploading"
	StateAnalyzing   PipelineState = "analyzing"
	StateReady       PipelineState = "ready"
	StateError       PipelineState = "error"
)

// Macronutrients is a protein/carbs/fat breakdown in grams
type Macronutrients struct {
	Protein float64 `json:"protein"`
	Carbs   float64 `json:"carbs"`
	Fat     float64 `json:"fat"`
}

// MealDraft is the in-memory meal entry under construction. It is owned by
// the orchestrator for the lifetime of one entry session and mutated only
// under the session lock.
type MealDraft struct {
	ID          string          `json:"id"`
	Slot        models.MealSlot `json:"slot"`
	EatenAt     time.Time       `json:"eaten_at"`
	Ingredients string          `json:"ingredients"`
	Calories    float64         `json:"calories"`
	Macros      Macronutrients  `json:"macronutrients"`
	ImageURL    string          `json:"image_url,omitempty"`
	HasImage    bool            `json:"has_image"`
	State       PipelineState   `json:"state"`
	LastError   string          `json:"last_error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// applyAnalysis merges an analysis result into the draft. Calories and
// macros are always overwritten; a field the response lacked arrives as 0
// and replaces the prior value. Only the image path overwrites the
// ingredients text, text-path recalculation never touches what the user
// is editing.
func (d *MealDraft) applyAnalysis(res *AnalysisResult, overwriteIngredients bool) {
	d.Calories = res.Calories
	d.Macros = res.Macros
	if overwriteIngredients {
		d.Ingredients = joinIngredients(res.Ingredients)
	}
}

func joinIngredients(items []string) string {
	return strings.Join(items, ", ")
}
