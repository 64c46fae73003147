// Package services assembles dashboard profiles from the upstream platform.
package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"xpdash/internal/aggregate"
	"xpdash/internal/auth"
	"xpdash/internal/cache"
	"xpdash/internal/core"
	"xpdash/internal/graphql"
	"xpdash/internal/log"
	"xpdash/internal/storage"
)

// Upstream is the subset of the GraphQL client the profile needs.
type Upstream interface {
	User(ctx context.Context, token string) (core.User, error)
	XPTransactions(ctx context.Context, token string) ([]core.TransactionRecord, error)
	AuditTransactions(ctx context.Context, token string) ([]core.TransactionRecord, error)
	SkillTransactions(ctx context.Context, token string) ([]core.TransactionRecord, error)
}

// SyncPublisher announces saved snapshots to the export worker.
type SyncPublisher interface {
	PublishSnapshotSync(ctx context.Context, userID, version int64) error
}

// Profile is everything the dashboard shows for one user.
type Profile struct {
	User         core.User                `json:"user"`
	TotalXP      int64                    `json:"totalXP"`
	TotalXPLabel string                   `json:"totalXPLabel"`
	Transactions []core.TransactionRecord `json:"-"`
	Buckets      []core.MonthlyBucket     `json:"buckets"`
	Skills       []core.SkillScore        `json:"skills"`
	Audit        core.AuditSummary        `json:"audit"`
	Version      int64                    `json:"version,omitempty"`
	FetchedAt    time.Time                `json:"fetchedAt"`
	Stale        bool                     `json:"stale"`
}

// ProfileService loads profiles, caching them per user and keeping the last
// good one as a snapshot.
type ProfileService struct {
	upstream   Upstream
	store      storage.SnapshotStore
	publisher  SyncPublisher
	aggregator aggregate.Aggregator
	cache      cache.Cache[Profile]
	logger     *log.Logger
	now        func() time.Time
}

type ProfileServiceConfig struct {
	CacheSize int
	CacheTTL  time.Duration
	Location  *time.Location
}

// NewProfileService wires the service. store and publisher may be nil.
func NewProfileService(upstream Upstream, store storage.SnapshotStore, publisher SyncPublisher, cfg ProfileServiceConfig, logger *log.Logger) *ProfileService {
	if cfg.CacheSize < 1 {
		cfg.CacheSize = 256
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &ProfileService{
		upstream:   upstream,
		store:      store,
		publisher:  publisher,
		aggregator: aggregate.New(cfg.Location),
		cache:      cache.NewLRU[Profile](cfg.CacheSize, cfg.CacheTTL),
		logger:     logger.WithComponent(log.ComponentProfile),
		now:        time.Now,
	}
}

// Cache exposes the profile cache so it can be swept periodically. It is nil
// when the cache cannot purge expired entries.
func (s *ProfileService) Cache() cache.Cleaner {
	c, _ := s.cache.(cache.Cleaner)
	return c
}

// Load returns the profile for the session behind token.
func (s *ProfileService) Load(ctx context.Context, token string) (Profile, error) {
	sess, err := auth.ParseSession(token)
	if err != nil {
		return Profile{}, err
	}
	key := cacheKey(sess.UserID)
	if p, ok := s.cache.Get(key); ok {
		return p, nil
	}

	p, err := s.fetch(ctx, token)
	if err != nil {
		if errors.Is(err, graphql.ErrUnauthorized) || ctx.Err() != nil {
			return Profile{}, err
		}
		if stale, ok := s.fromSnapshot(ctx, sess.UserID); ok {
			s.logger.WarnContext(ctx, "Serving stored snapshot after upstream failure",
				log.FieldUserID, sess.UserID,
				log.FieldError, err)
			return stale, nil
		}
		return Profile{}, err
	}

	p.Version = s.persist(ctx, p)
	s.cache.Set(key, p)

	log.NewStructuredLogger(s.logger).LogProfileLoaded(ctx, p.User.ID, p.User.Login, p.Version, p.TotalXP, false)
	return p, nil
}

// Invalidate drops the cached profile of userID so the next Load refetches.
func (s *ProfileService) Invalidate(userID int64) {
	s.cache.Delete(cacheKey(userID))
}

func (s *ProfileService) fetch(ctx context.Context, token string) (Profile, error) {
	var (
		user   core.User
		xp     []core.TransactionRecord
		audits []core.TransactionRecord
		skills []core.SkillScore
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		user, err = s.upstream.User(gctx, token)
		if err != nil {
			return fmt.Errorf("fetch user: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		xp, err = s.upstream.XPTransactions(gctx, token)
		if err != nil {
			return fmt.Errorf("fetch xp transactions: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		audits, err = s.upstream.AuditTransactions(gctx, token)
		if err != nil {
			return fmt.Errorf("fetch audit transactions: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		tx, err := s.upstream.SkillTransactions(gctx, token)
		if err != nil {
			// the radar still renders with zero scores
			s.logger.WarnContext(ctx, "Skill fetch failed, using zero scores", log.FieldError, err)
			skills = core.ZeroSkills()
			return nil
		}
		skills = aggregate.SkillScores(tx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return Profile{}, err
	}

	return s.build(user, xp, skills, aggregate.AuditRatio(audits), s.now()), nil
}

func (s *ProfileService) build(user core.User, xp []core.TransactionRecord, skills []core.SkillScore, audit core.AuditSummary, fetchedAt time.Time) Profile {
	total := s.aggregator.TotalXP(xp)
	return Profile{
		User:         user,
		TotalXP:      total,
		TotalXPLabel: core.FormatMegabytes(total),
		Transactions: xp,
		Buckets:      s.aggregator.AggregateMonthly(xp),
		Skills:       skills,
		Audit:        audit,
		FetchedAt:    fetchedAt,
	}
}

// persist saves the snapshot and announces it. Failures are logged; the
// freshly fetched profile is still served.
func (s *ProfileService) persist(ctx context.Context, p Profile) int64 {
	if s.store == nil {
		return 0
	}
	version, err := s.store.SaveSnapshot(ctx, core.Snapshot{
		UserID:       p.User.ID,
		Login:        p.User.Login,
		Email:        p.User.Email,
		FetchedAt:    p.FetchedAt,
		Transactions: p.Transactions,
		Skills:       p.Skills,
		Audit:        p.Audit,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to save snapshot", log.FieldUserID, p.User.ID, log.FieldError, err)
		return 0
	}

	if s.publisher == nil {
		s.logger.DebugContext(ctx, "AMQP client not available, skipping sync message")
		return version
	}
	if err := s.publisher.PublishSnapshotSync(ctx, p.User.ID, version); err != nil {
		// the worker sweep exports pending snapshots later
		s.logger.ErrorContext(ctx, "Failed to publish sync message",
			log.FieldUserID, p.User.ID,
			log.FieldVersion, version,
			log.FieldError, err)
	}
	return version
}

func (s *ProfileService) fromSnapshot(ctx context.Context, userID int64) (Profile, bool) {
	if s.store == nil {
		return Profile{}, false
	}
	snap, err := s.store.LoadSnapshot(ctx, userID)
	if err != nil {
		if !errors.Is(err, storage.ErrSnapshotNotFound) {
			s.logger.ErrorContext(ctx, "Failed to load snapshot", log.FieldUserID, userID, log.FieldError, err)
		}
		return Profile{}, false
	}

	skills := snap.Skills
	if len(skills) == 0 {
		skills = core.ZeroSkills()
	}
	p := s.build(snap.User(), snap.Transactions, skills, snap.Audit, snap.FetchedAt)
	p.Version = snap.Version
	p.Stale = true
	return p, true
}

func cacheKey(userID int64) string {
	return strconv.FormatInt(userID, 10)
}
