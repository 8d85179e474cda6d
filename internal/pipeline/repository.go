package pipeline

import (
	"context"

	"SafeStack/internal/models"

	"gorm.io/gorm"
)

// GormRepository implements the pipeline repositories on top of internal/models.
type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// Policies returns the policy view of the repository.
func (r *GormRepository) Policies() PolicyRepository { return gormPolicies{r.db} }
func (r *GormRepository) Videos() VideoRepository { return gormVideos{r.db} }
func (r *GormRepository) Alerts() AlertRepository { return gormAlerts{r.db} }

type gormPolicies struct{ db *gorm.DB }

func (p gormPolicies) ListAll(ctx context.Context) ([]models.Policy, error) {
	return models.ListCatalogPolicies(p.db.WithContext(ctx))
}

func (p gormPolicies) FindByTitle(ctx context.Context, title string) (*models.Policy, error) {
	return models.FindPolicyByTitle(p.db.WithContext(ctx), title)
}

func (p gormPolicies) Get(ctx context.Context, id uint) (*models.Policy, error) {
	return models.GetPolicy(p.db.WithContext(ctx), id)
}

func (p gormPolicies) UpdateDescription(ctx context.Context, id uint, description string) (*models.Policy, error) {
	return models.UpdatePolicyDescription(p.db.WithContext(ctx), id, description)
}

type gormVideos struct{ db *gorm.DB }

func (v gormVideos) Create(ctx context.Context, url string) (uint, error) {
	video, err := models.CreateVideo(v.db.WithContext(ctx), url)
	if err != nil {
		return 0, err
	}
	return video.ID, nil
}

type gormAlerts struct{ db *gorm.DB }

func (a gormAlerts) Create(ctx context.Context, in models.NewAlert) (uint, error) {
	alert, err := models.CreateAlert(a.db.WithContext(ctx), in)
	if err != nil {
		return 0, err
	}
	return alert.ID, nil
}

func (a gormAlerts) AttachAmendedImages(ctx context.Context, id uint, urls []string) error {
	return models.AttachAmendedImages(a.db.WithContext(ctx), id, urls)
}

func (a gormAlerts) Get(ctx context.Context, id uint) (*models.AlertView, error) {
	return models.GetAlert(a.db.WithContext(ctx), id)
}
