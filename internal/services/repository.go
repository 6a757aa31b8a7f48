package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// RemoteFilter narrows a remote read. An empty filter returns every record.
type RemoteFilter struct {
	SessionID string
}

// RemoteStore is the durable multi-tenant table the repository writes through
// to. Records are addressed by partition key (team) and row key (session ID).
// Implementations must treat duplicate-key puts and missing-row deletes as
// success, and must surface outages as ErrorUnavailable so the repository can
// fall back to the local cache.
type RemoteStore interface {
	Put(ctx context.Context, rec *AssessmentRecord) error
	List(ctx context.Context, filter RemoteFilter) ([]*AssessmentRecord, error)
	Delete(ctx context.Context, team, sessionID string) error
}

// LocalCache is the process-local mirror of every record this installation
// has seen. It is a single-device resilience measure, not a source of truth:
// reachable remote data always supersedes it on reads.
type LocalCache interface {
	Upsert(rec *AssessmentRecord) error
	List() ([]*AssessmentRecord, error)
	Remove(sessionID string) error
}

// DefaultRetentionDays is the read-time retention window for dashboards.
const DefaultRetentionDays = 90

// Repository owns create/read/update/delete semantics over assessment
// records: write-through persistence, remote-first reads with offline
// fallback, retention filtering, and per-submitter deduplication.
type Repository struct {
	remote        RemoteStore
	cache         LocalCache
	retentionDays int
	now           func() time.Time
	log           *zap.SugaredLogger
}

type RepositoryConfig struct {
	Remote        RemoteStore
	Cache         LocalCache
	RetentionDays int
	Log           *zap.SugaredLogger
}

func NewRepository(cfg RepositoryConfig) *Repository {
	days := cfg.RetentionDays
	if days <= 0 {
		days = DefaultRetentionDays
	}
	log := cfg.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Repository{
		remote:        cfg.Remote,
		cache:         cfg.Cache,
		retentionDays: days,
		now:           func() time.Time { return time.Now().UTC() },
		log:           log,
	}
}

// SubmitResult reports where a write landed. Offline means the remote store
// was unreachable and the record only exists in the local cache until a later
// submission syncs it.
type SubmitResult struct {
	SessionID string
	Offline   bool
}

// ListOptions selects the read model a caller wants.
type ListOptions struct {
	View          View
	SessionID     string
	Rollup        bool
	RetentionDays int
}

// ListResult is a consistent read over remote or cached data. Offline flags
// that the remote store was unreachable and the records may be stale.
type ListResult struct {
	Records []*AssessmentRecord
	Offline bool
}

// Submit validates and persists a new assessment. The suggested stage is
// always recomputed from the scores; client-supplied values are ignored.
// Writes go to the remote store first and are mirrored to the local cache;
// a remote outage degrades to a cache-only write reported via Offline.
func (r *Repository) Submit(ctx context.Context, rec *AssessmentRecord) (*SubmitResult, error) {
	if rec == nil {
		return nil, NewInvalidError("assessment required")
	}
	if err := validateRecord(rec); err != nil {
		return nil, err
	}
	rec.SuggestedStage = SuggestStage(rec.Scores)
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now()
	}
	return r.persist(ctx, rec)
}

// Finalize re-submits the complete prior record with the submitter's chosen
// stage. It is a last-write-wins replace through the same upsert path as
// Submit, never a partial patch, so the caller must supply the full record.
func (r *Repository) Finalize(ctx context.Context, rec *AssessmentRecord) (*SubmitResult, error) {
	if rec == nil {
		return nil, NewInvalidError("assessment required")
	}
	if err := validateRecord(rec); err != nil {
		return nil, err
	}
	if rec.AssessedStage == nil || *rec.AssessedStage < 1 || *rec.AssessedStage > 5 {
		return nil, NewInvalidError("assessedStage must be between 1 and 5")
	}
	if rec.CreatedAt.IsZero() {
		return nil, NewInvalidError("createdAt of the original submission is required")
	}
	rec.SuggestedStage = SuggestStage(rec.Scores)
	rec.Finalized = true
	return r.persist(ctx, rec)
}

func (r *Repository) persist(ctx context.Context, rec *AssessmentRecord) (*SubmitResult, error) {
	if r.remote == nil && r.cache == nil {
		return nil, NewNotConfiguredError("no assessment store configured")
	}
	res := &SubmitResult{SessionID: rec.SessionID}
	if r.remote != nil {
		if err := r.remote.Put(ctx, rec); err != nil {
			if !IsCode(err, ErrorUnavailable) && !IsCode(err, ErrorNotConfigured) {
				return nil, err
			}
			r.log.Warnw("remote store write failed, keeping local copy",
				"sessionId", rec.SessionID, "team", rec.Team, "error", err)
			res.Offline = true
		}
	} else {
		res.Offline = true
	}
	if r.cache != nil {
		if err := r.cache.Upsert(rec); err != nil {
			if res.Offline {
				// Neither store took the write; this is a hard failure.
				return nil, NewUnavailableError("assessment could not be saved: " + err.Error())
			}
			r.log.Warnw("local cache write failed", "sessionId", rec.SessionID, "error", err)
		}
	} else if res.Offline {
		return nil, NewNotConfiguredError("remote store unreachable and no local cache configured")
	}
	return res, nil
}

// List returns the read model for dashboards: remote records when reachable,
// cached records otherwise, filtered to the retention window, sorted by
// newest first, optionally deduplicated to one record per submitter, and
// stripped of names for the public view.
func (r *Repository) List(ctx context.Context, opts ListOptions) (*ListResult, error) {
	records, offline, err := r.fetch(ctx, opts.SessionID)
	if err != nil {
		return nil, err
	}

	days := opts.RetentionDays
	if days <= 0 {
		days = r.retentionDays
	}
	cutoff := r.now().AddDate(0, 0, -days)
	kept := records[:0]
	for _, rec := range records {
		// The boundary is inclusive: a record exactly retention-days old
		// still shows.
		if !rec.CreatedAt.Before(cutoff) {
			kept = append(kept, rec)
		}
	}
	records = kept

	if opts.Rollup {
		records = dedupeBySubmitter(records)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	if opts.View != ViewAdmin {
		out := make([]*AssessmentRecord, 0, len(records))
		for _, rec := range records {
			c := rec.Clone()
			c.SubmitterName = ""
			out = append(out, c)
		}
		records = out
	}

	return &ListResult{Records: records, Offline: offline}, nil
}

func (r *Repository) fetch(ctx context.Context, sessionID string) ([]*AssessmentRecord, bool, error) {
	if r.remote == nil && r.cache == nil {
		return nil, false, NewNotConfiguredError("no assessment store configured")
	}
	if r.remote != nil {
		records, err := r.remote.List(ctx, RemoteFilter{SessionID: sessionID})
		if err == nil {
			return records, false, nil
		}
		if !IsCode(err, ErrorUnavailable) && !IsCode(err, ErrorNotConfigured) {
			return nil, false, err
		}
		r.log.Warnw("remote store read failed, serving cached records", "error", err)
	}
	if r.cache == nil {
		return nil, false, NewUnavailableError("remote store unreachable and no local cache configured")
	}
	cached, err := r.cache.List()
	if err != nil {
		return nil, false, NewUnavailableError("local cache read failed: " + err.Error())
	}
	if sessionID != "" {
		filtered := cached[:0]
		for _, rec := range cached {
			if rec.SessionID == sessionID {
				filtered = append(filtered, rec)
			}
		}
		cached = filtered
	}
	return cached, true, nil
}

// Delete removes a record from both stores. The local removal is what the
// caller observes; a remote failure after the record is gone locally is
// logged rather than surfaced, since the record has stopped showing on this
// device and the next reachable delete is idempotent.
func (r *Repository) Delete(ctx context.Context, team, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" || strings.TrimSpace(team) == "" {
		return NewInvalidError("sessionId and partition key are required")
	}
	if r.remote == nil && r.cache == nil {
		return NewNotConfiguredError("no assessment store configured")
	}
	var remoteErr error
	if r.remote != nil {
		remoteErr = r.remote.Delete(ctx, team, sessionID)
		if remoteErr != nil {
			r.log.Warnw("remote store delete failed", "sessionId", sessionID, "team", team, "error", remoteErr)
		}
	}
	var cacheErr error
	if r.cache != nil {
		cacheErr = r.cache.Remove(sessionID)
		if cacheErr != nil {
			r.log.Warnw("local cache delete failed", "sessionId", sessionID, "error", cacheErr)
		}
	}
	// Success as long as any configured store took the delete.
	if (r.remote != nil && remoteErr == nil) || (r.cache != nil && cacheErr == nil) {
		return nil
	}
	return NewUnavailableError("assessment could not be deleted")
}

// dedupeBySubmitter keeps only the newest record per submitter so retakes and
// in-progress duplicates never double-count in organizational statistics.
// Records without a name fall back to their session ID as the identity.
func dedupeBySubmitter(records []*AssessmentRecord) []*AssessmentRecord {
	latest := make(map[string]*AssessmentRecord, len(records))
	order := make([]string, 0, len(records))
	for _, rec := range records {
		key := rec.SubmitterName
		if key == "" {
			key = rec.SessionID
		}
		prev, ok := latest[key]
		if !ok {
			order = append(order, key)
			latest[key] = rec
			continue
		}
		if rec.CreatedAt.After(prev.CreatedAt) {
			latest[key] = rec
		}
	}
	out := make([]*AssessmentRecord, 0, len(latest))
	for _, key := range order {
		out = append(out, latest[key])
	}
	return out
}

func validateRecord(rec *AssessmentRecord) error {
	missing := []string{}
	if strings.TrimSpace(rec.SubmitterName) == "" {
		missing = append(missing, "submitterName")
	}
	if strings.TrimSpace(rec.Team) == "" {
		missing = append(missing, "team")
	}
	if strings.TrimSpace(rec.SessionID) == "" {
		missing = append(missing, "sessionId")
	}
	if len(missing) > 0 {
		return NewInvalidError("missing required fields: " + strings.Join(missing, ", "))
	}
	if len(rec.Scores) != ScoreCount {
		return NewInvalidError(fmt.Sprintf("scores must contain exactly %d values", ScoreCount))
	}
	for _, s := range rec.Scores {
		if s < 0 || s > ScoreMax {
			return NewInvalidError(fmt.Sprintf("score values must be between 0 and %d", ScoreMax))
		}
	}
	return nil
}
