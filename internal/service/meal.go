package service

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mealsnap/backend/internal/models"
)

// DailySummary aggregates one day of saved meals for the dashboard
type DailySummary struct {
	Date     string  `json:"date"`
	Meals    int64   `json:"meals"`
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

// MealService persists finalized meal records. Writes are insert-only:
// saving the same draft twice produces two independent rows, never an
// update of the first.
type MealService struct {
	db *gorm.DB
}

// NewMealService creates a new MealService instance
func NewMealService(db *gorm.DB) *MealService {
	return &MealService{db: db}
}

// Create inserts a finalized meal record
func (s *MealService) Create(ctx context.Context, meal *models.Meal) error {
	if err := s.db.WithContext(ctx).Create(meal).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

// ListByUser returns the user's saved meals, newest first
func (s *MealService) ListByUser(ctx context.Context, userID string) ([]*models.Meal, error) {
	var meals []models.Meal
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("eaten_at DESC").
		Find(&meals).Error
	if err != nil {
		return nil, err
	}

	result := make([]*models.Meal, len(meals))
	for i := range meals {
		result[i] = &meals[i]
	}
	return result, nil
}

// DailySummary totals calories and macros for the user's meals on the given day
func (s *MealService) DailySummary(ctx context.Context, userID string, day time.Time) (*DailySummary, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.Add(24 * time.Hour)

	summary := &DailySummary{Date: start.Format("2006-01-02")}
	row := s.db.WithContext(ctx).
		Model(&models.Meal{}).
		Select("COUNT(*) as meals, COALESCE(SUM(calories),0) as calories, COALESCE(SUM(protein),0) as protein, COALESCE(SUM(carbs),0) as carbs, COALESCE(SUM(fat),0) as fat").
		Where("user_id = ? AND eaten_at >= ? AND eaten_at < ?", userID, start, end).
		Row()
	if err := row.Scan(&summary.Meals, &summary.Calories, &summary.Protein, &summary.Carbs, &summary.Fat); err != nil {
		return nil, err
	}

	return summary, nil
}
