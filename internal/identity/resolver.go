package identity

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"cookiegram/internal/cache"
	"cookiegram/internal/middleware"
	"cookiegram/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// BatchResult is the outcome of a best-effort batch lookup. Every requested
// ID lands in exactly one of Users or Failed.
type BatchResult struct {
	Users  map[string]*User
	Failed []string
}

// Complete reports whether every ID resolved.
func (b BatchResult) Complete() bool {
	return len(b.Failed) == 0
}

// Resolver fronts a Provider with a Redis cache and bounded batch fan-out.
type Resolver struct {
	provider    Provider
	ttl         time.Duration
	concurrency int
}

// NewResolver wraps p. ttl <= 0 disables caching; concurrency < 1 means 1.
func NewResolver(p Provider, ttl time.Duration, concurrency int) *Resolver {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Resolver{provider: p, ttl: ttl, concurrency: concurrency}
}

// Lookup resolves one ID, serving from cache when possible.
func (r *Resolver) Lookup(ctx context.Context, id string) (*User, error) {
	var u User
	if r.ttl > 0 {
		err := cache.GetJSON(ctx, cache.IdentityKey(id), &u)
		if err == nil {
			observability.IdentityLookups.WithLabelValues("cache", "hit").Inc()
			return &u, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			middleware.Logger.WarnContext(ctx, "identity cache read failed", slog.String("external_id", id), slog.String("error", err.Error()))
		}
	}

	fetched, err := r.provider.GetUser(ctx, id)
	if err != nil {
		outcome := "error"
		if errors.Is(err, ErrNotFound) {
			outcome = "not_found"
		}
		observability.IdentityLookups.WithLabelValues("remote", outcome).Inc()
		return nil, err
	}
	observability.IdentityLookups.WithLabelValues("remote", "ok").Inc()

	if r.ttl > 0 {
		if err := cache.SetJSON(ctx, cache.IdentityKey(id), fetched, r.ttl); err != nil {
			middleware.Logger.WarnContext(ctx, "identity cache write failed", slog.String("external_id", id), slog.String("error", err.Error()))
		}
	}
	return fetched, nil
}

// LookupMany resolves ids with at most the configured number of concurrent
// provider calls. Duplicates are looked up once. Failures are reported in
// Failed, in first-seen order, and never abort the batch.
func (r *Resolver) LookupMany(ctx context.Context, ids []string) BatchResult {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	ctx, end := observability.StartSpan(ctx, "identity.LookupMany", attribute.Int("identity.ids", len(unique)))

	var mu sync.Mutex
	found := make(map[string]*User, len(unique))
	errs := make(map[string]error)

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for _, id := range unique {
		g.Go(func() error {
			u, err := r.Lookup(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs[id] = err
				return nil
			}
			found[id] = u
			return nil
		})
	}
	_ = g.Wait()

	res := BatchResult{Users: found, Failed: []string{}}
	for _, id := range unique {
		if err, ok := errs[id]; ok {
			res.Failed = append(res.Failed, id)
			middleware.Logger.WarnContext(ctx, "identity lookup failed", slog.String("external_id", id), slog.String("error", err.Error()))
		}
	}

	var spanErr error
	if !res.Complete() {
		spanErr = errors.New("partial identity batch")
	}
	end(spanErr)
	return res
}

// UpdateName forwards to the provider and drops the cached profile.
func (r *Resolver) UpdateName(ctx context.Context, id, firstName, lastName string) (*User, error) {
	u, err := r.provider.UpdateName(ctx, id, firstName, lastName)
	if err != nil {
		return nil, err
	}
	cache.InvalidateIdentity(ctx, id)
	return u, nil
}

// UpdateProfileImage forwards the image to the provider and drops the cached profile.
func (r *Resolver) UpdateProfileImage(ctx context.Context, id, filename string, image io.Reader) (*User, error) {
	u, err := r.provider.UploadProfileImage(ctx, id, filename, image)
	if err != nil {
		return nil, err
	}
	cache.InvalidateIdentity(ctx, id)
	return u, nil
}
