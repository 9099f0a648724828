// Package orchestrator drives the per-camera algorithm lifecycle: it starts
// idle algorithms, dispatches the actions their results select and re-arms
// them after a cooldown.
package orchestrator

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/Capitan-Parrot/camera-orchestrator/internal/gateway"
	"github.com/Capitan-Parrot/camera-orchestrator/internal/models"
	"github.com/Capitan-Parrot/camera-orchestrator/internal/scheduler"
)

const DefaultCooldown = 15 * time.Second

// StatusStore changes algorithm statuses. Gateway calls made with the
// context InTx passes to fn belong to the same transaction when the gateway
// writes to the store.
type StatusStore interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
	CompareAndSetStatus(ctx context.Context, cameraID, algorithm string, expected, next models.AlgorithmStatus) (bool, error)
}

type Repository interface {
	StatusStore
	GetCamera(ctx context.Context, cameraID string) (models.Camera, error)
	MarkRearmDue(ctx context.Context, cameraID, algorithm string, due time.Time) error
}

// Archiver keeps a copy of every result callback.
type Archiver interface {
	ArchiveResult(ctx context.Context, cameraID string, results map[string]string) error
}

type Config struct {
	// Cooldown is the delay between dispatching a result's actions and
	// re-arming the algorithm.
	Cooldown time.Duration
	// CallbackBaseURL is the public address workers post results to.
	CallbackBaseURL string
}

type Service struct {
	repo     Repository
	gw       gateway.Gateway
	sched    scheduler.Scheduler
	rearmer  *Rearmer
	archiver Archiver
	cfg      Config
}

type Option func(*Service)

func WithArchiver(a Archiver) Option {
	return func(s *Service) { s.archiver = a }
}

func New(repo Repository, gw gateway.Gateway, sched scheduler.Scheduler, cfg Config, opts ...Option) *Service {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	cfg.CallbackBaseURL = strings.TrimRight(cfg.CallbackBaseURL, "/")

	s := &Service{
		repo:    repo,
		gw:      gw,
		sched:   sched,
		rearmer: NewRearmer(repo, gw),
		cfg:     cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ResultCallbackURL is where workers post results for the camera.
func (s *Service) ResultCallbackURL(cameraID string) string {
	return s.cfg.CallbackBaseURL + "/api/cameras/" + cameraID + "/result"
}

func sortedKeys[V any](m map[string]V) []string {
	keys := lo.Keys(m)
	slices.Sort(keys)
	return keys
}
