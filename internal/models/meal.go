package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UnknownUserID is the sentinel writer identity used when the auth
// collaborator cannot resolve the current user at save time.
const UnknownUserID = "unknown"

// MealSlot identifies which meal of the day a record belongs to
type MealSlot string

const (
	SlotBreakfast      MealSlot = "breakfast"
	SlotLunch          MealSlot = "lunch"
	SlotAfternoonSnack MealSlot = "afternoon-snack"
	SlotSnack          MealSlot = "snack"
	SlotDinner         MealSlot = "dinner"
	SlotLateSnack      MealSlot = "late-snack"
)

// Valid reports whether s is one of the known meal slots
func (s MealSlot) Valid() bool {
	switch s {
	case SlotBreakfast, SlotLunch, SlotAfternoonSnack, SlotSnack, SlotDinner, SlotLateSnack:
		return true
	}
	return false
}

// SlotForHour maps a wall-clock hour to the default meal slot.
// Breakpoints: morning <10, midday <14, afternoon <17, snack <20, dinner <23.
func SlotForHour(hour int) MealSlot {
	switch {
	case hour < 10:
		return SlotBreakfast
	case hour < 14:
		return SlotLunch
	case hour < 17:
		return SlotAfternoonSnack
	case hour < 20:
		return SlotSnack
	case hour < 23:
		return SlotDinner
	default:
		return SlotLateSnack
	}
}

// Meal is a finalized meal record. Rows are insert-only: edits before save
// mutate the draft, never a stored row.
type Meal struct {
	ID          uuid.UUID `gorm:"type:varchar(36);primarykey" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UserID      string    `gorm:"size:64;not null;index" json:"user_id"`
	Slot        MealSlot  `gorm:"size:32;not null" json:"slot"`
	EatenAt     time.Time `gorm:"not null" json:"eaten_at"`
	Ingredients string    `gorm:"type:text" json:"ingredients"`
	Calories    float64   `gorm:"type:float" json:"calories"`
	Protein     float64   `gorm:"type:float" json:"protein"`
	Carbs       float64   `gorm:"type:float" json:"carbs"`
	Fat         float64   `gorm:"type:float" json:"fat"`
	ImageURL    string    `gorm:"size:512" json:"image_url"`
}

// BeforeCreate assigns a fresh ID so inserts work on both postgres and sqlite
func (m *Meal) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
