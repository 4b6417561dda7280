package service

import (
	"context"
	"time"

	"github.com/mealsnap/backend/internal/models"
	"github.com/mealsnap/backend/internal/types"
)

// Normalizer rescales and re-encodes an uploaded image
type Normalizer interface {
	Normalize(name string, data []byte) (*NormalizedImage, error)
}

// AnalysisService estimates nutritional content from an image URL or
// ingredient text; exactly one of the two is non-empty per call
type AnalysisService interface {
	Analyze(ctx context.Context, imageURL, text string) (*AnalysisResult, error)
}

// AssetUploader stores a normalized image and returns its public URL
type AssetUploader interface {
	Upload(ctx context.Context, img *NormalizedImage) (string, error)
}

// MealWriter persists finalized meal records
type MealWriter interface {
	Create(ctx context.Context, meal *models.Meal) error
}

// MealReader serves saved meals back to the dashboard
type MealReader interface {
	ListByUser(ctx context.Context, userID string) ([]*models.Meal, error)
	DailySummary(ctx context.Context, userID string, day time.Time) (*DailySummary, error)
}

// IAuthService defines the authentication collaborator consumed by the API
type IAuthService interface {
	Register(ctx context.Context, name, email, password string) (string, error)
	Login(ctx context.Context, email, password string) (string, error)
	ValidateToken(token string) (*types.TokenClaims, error)
}
