package app

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"honourus/internal/config"
	"honourus/internal/repo"
)

// ResolvePolicy returns the stored policy, seeding the default template on
// first start. A non-empty file replaces the stored policy.
func ResolvePolicy(ctx context.Context, r repo.Repo, file string) (*config.Config, error) {
	if file != "" {
		cfg, err := config.FromFile(file)
		if err != nil {
			return nil, err
		}
		if err := r.PutPolicy(ctx, cfg); err != nil {
			return nil, fmt.Errorf("store policy: %w", err)
		}
		log.WithField("file", file).Info("policy imported")
		return cfg, nil
	}
	cfg, err := r.GetPolicy(ctx)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	cfg = config.Default()
	if err := r.PutPolicy(ctx, cfg); err != nil {
		return nil, fmt.Errorf("seed policy: %w", err)
	}
	log.Info("seeded default policy")
	return cfg, nil
}
