package services

import (
	"context"
	"testing"
	"time"
)

type stubRemote struct {
	records map[string]*AssessmentRecord // keyed by sessionID
	down    bool
	puts    int
	deletes int
}

func newStubRemote() *stubRemote {
	return &stubRemote{records: map[string]*AssessmentRecord{}}
}

func (s *stubRemote) Put(_ context.Context, rec *AssessmentRecord) error {
	s.puts++
	if s.down {
		return NewUnavailableError("remote down")
	}
	s.records[rec.SessionID] = rec.Clone()
	return nil
}

func (s *stubRemote) List(_ context.Context, filter RemoteFilter) ([]*AssessmentRecord, error) {
	if s.down {
		return nil, NewUnavailableError("remote down")
	}
	out := []*AssessmentRecord{}
	for _, rec := range s.records {
		if filter.SessionID != "" && rec.SessionID != filter.SessionID {
			continue
		}
		out = append(out, rec.Clone())
	}
	return out, nil
}

func (s *stubRemote) Delete(_ context.Context, team, sessionID string) error {
	s.deletes++
	if s.down {
		return NewUnavailableError("remote down")
	}
	delete(s.records, sessionID)
	return nil
}

type stubCache struct {
	records map[string]*AssessmentRecord
	failing bool
}

func newStubCache() *stubCache {
	return &stubCache{records: map[string]*AssessmentRecord{}}
}

func (c *stubCache) Upsert(rec *AssessmentRecord) error {
	if c.failing {
		return context.DeadlineExceeded
	}
	c.records[rec.SessionID] = rec.Clone()
	return nil
}

func (c *stubCache) List() ([]*AssessmentRecord, error) {
	if c.failing {
		return nil, context.DeadlineExceeded
	}
	out := []*AssessmentRecord{}
	for _, rec := range c.records {
		out = append(out, rec.Clone())
	}
	return out, nil
}

func (c *stubCache) Remove(sessionID string) error {
	if c.failing {
		return context.DeadlineExceeded
	}
	delete(c.records, sessionID)
	return nil
}

func newTestRepo(remote *stubRemote, cache *stubCache) *Repository {
	cfg := RepositoryConfig{}
	if remote != nil {
		cfg.Remote = remote
	}
	if cache != nil {
		cfg.Cache = cache
	}
	return NewRepository(cfg)
}

func record(sessionID, team, name string, scores []int, at time.Time) *AssessmentRecord {
	return &AssessmentRecord{
		SessionID:     sessionID,
		Team:          team,
		SubmitterName: name,
		Scores:        scores,
		CreatedAt:     at,
	}
}

func TestSubmitWritesThrough(t *testing.T) {
	remote := newStubRemote()
	cache := newStubCache()
	repo := newTestRepo(remote, cache)

	res, err := repo.Submit(context.Background(), record("s1", "Eng", "Ada", []int{1, 2}, time.Time{}))
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if res.Offline {
		t.Fatalf("expected online result")
	}
	if res.SessionID != "s1" {
		t.Fatalf("unexpected sessionID %q", res.SessionID)
	}
	stored := remote.records["s1"]
	if stored == nil {
		t.Fatalf("record not written to remote")
	}
	if stored.SuggestedStage != 2 {
		t.Fatalf("scores [1,2] should suggest stage 2, got %d", stored.SuggestedStage)
	}
	if stored.CreatedAt.IsZero() {
		t.Fatalf("createdAt not set")
	}
	if cache.records["s1"] == nil {
		t.Fatalf("record not mirrored to cache")
	}
}

func TestSubmitValidation(t *testing.T) {
	repo := newTestRepo(newStubRemote(), newStubCache())
	cases := []*AssessmentRecord{
		record("", "Eng", "Ada", []int{1, 2}, time.Time{}),
		record("s1", "", "Ada", []int{1, 2}, time.Time{}),
		record("s1", "Eng", "", []int{1, 2}, time.Time{}),
		record("s1", "Eng", "Ada", []int{1}, time.Time{}),
		record("s1", "Eng", "Ada", []int{1, 4}, time.Time{}),
		record("s1", "Eng", "Ada", []int{-1, 2}, time.Time{}),
		nil,
	}
	for i, rec := range cases {
		if _, err := repo.Submit(context.Background(), rec); !IsCode(err, ErrorInvalid) {
			t.Fatalf("case %d: expected invalid error, got %v", i, err)
		}
	}
}

func TestSubmitIdempotentUpsert(t *testing.T) {
	remote := newStubRemote()
	repo := newTestRepo(remote, newStubCache())
	at := time.Now().UTC()
	for i := 0; i < 2; i++ {
		if _, err := repo.Submit(context.Background(), record("s1", "Eng", "Ada", []int{1, 2}, at)); err != nil {
			t.Fatalf("Submit %d error: %v", i, err)
		}
	}
	if len(remote.records) != 1 {
		t.Fatalf("expected one logical record, got %d", len(remote.records))
	}
}

func TestSubmitFallsBackWhenRemoteDown(t *testing.T) {
	remote := newStubRemote()
	remote.down = true
	cache := newStubCache()
	repo := newTestRepo(remote, cache)

	res, err := repo.Submit(context.Background(), record("s1", "Eng", "Ada", []int{1, 2}, time.Time{}))
	if err != nil {
		t.Fatalf("Submit should succeed via cache: %v", err)
	}
	if !res.Offline {
		t.Fatalf("expected offline result")
	}
	if cache.records["s1"] == nil {
		t.Fatalf("record not saved to cache")
	}
}

func TestSubmitFailsWhenBothStoresFail(t *testing.T) {
	remote := newStubRemote()
	remote.down = true
	cache := newStubCache()
	cache.failing = true
	repo := newTestRepo(remote, cache)

	if _, err := repo.Submit(context.Background(), record("s1", "Eng", "Ada", []int{1, 2}, time.Time{})); !IsCode(err, ErrorUnavailable) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
}

func TestSubmitNotConfigured(t *testing.T) {
	repo := newTestRepo(nil, nil)
	if _, err := repo.Submit(context.Background(), record("s1", "Eng", "Ada", []int{1, 2}, time.Time{})); !IsCode(err, ErrorNotConfigured) {
		t.Fatalf("expected not_configured error, got %v", err)
	}
}

func TestFinalizeReplacesRecord(t *testing.T) {
	remote := newStubRemote()
	repo := newTestRepo(remote, newStubCache())
	at := time.Now().UTC().Add(-time.Hour)

	if _, err := repo.Submit(context.Background(), record("s1", "Eng", "Ada", []int{1, 2}, at)); err != nil {
		t.Fatalf("Submit error: %v", err)
	}

	chosen := 3
	final := record("s1", "Eng", "Ada", []int{1, 2}, at)
	final.AssessedStage = &chosen
	if _, err := repo.Finalize(context.Background(), final); err != nil {
		t.Fatalf("Finalize error: %v", err)
	}

	stored := remote.records["s1"]
	if !stored.Finalized {
		t.Fatalf("record not finalized")
	}
	if stored.AssessedStage == nil || *stored.AssessedStage != 3 {
		t.Fatalf("assessed stage not stored: %+v", stored.AssessedStage)
	}
	if stored.SuggestedStage != 2 {
		t.Fatalf("suggested stage should stay derived from scores, got %d", stored.SuggestedStage)
	}
	if !stored.CreatedAt.Equal(at) {
		t.Fatalf("createdAt must survive finalization")
	}
	if len(remote.records) != 1 {
		t.Fatalf("finalize must replace, not append")
	}

	// [1,2] suggests 2; choosing 3 is an overestimate.
	prog := ProgressionAccuracy([]*AssessmentRecord{stored})
	if prog.OverestimatedPct != 100 {
		t.Fatalf("expected 100%% overestimated, got %+v", prog)
	}
}

func TestFinalizeValidation(t *testing.T) {
	repo := newTestRepo(newStubRemote(), newStubCache())
	at := time.Now().UTC()

	bad := record("s1", "Eng", "Ada", []int{1, 2}, at)
	if _, err := repo.Finalize(context.Background(), bad); !IsCode(err, ErrorInvalid) {
		t.Fatalf("missing assessedStage should be invalid, got %v", err)
	}

	six := 6
	bad.AssessedStage = &six
	if _, err := repo.Finalize(context.Background(), bad); !IsCode(err, ErrorInvalid) {
		t.Fatalf("assessedStage 6 should be invalid, got %v", err)
	}

	three := 3
	noCreated := record("s1", "Eng", "Ada", []int{1, 2}, time.Time{})
	noCreated.AssessedStage = &three
	if _, err := repo.Finalize(context.Background(), noCreated); !IsCode(err, ErrorInvalid) {
		t.Fatalf("missing createdAt should be invalid, got %v", err)
	}
}

func TestListRetentionBoundary(t *testing.T) {
	remote := newStubRemote()
	repo := newTestRepo(remote, newStubCache())
	now := time.Now().UTC()
	repo.now = func() time.Time { return now }

	onBoundary := record("s1", "Eng", "Ada", []int{1, 1}, now.AddDate(0, 0, -90))
	onBoundary.SuggestedStage = 2
	tooOld := record("s2", "Eng", "Bea", []int{1, 1}, now.AddDate(0, 0, -91))
	tooOld.SuggestedStage = 2
	fresh := record("s3", "Eng", "Cal", []int{1, 1}, now.Add(-time.Hour))
	fresh.SuggestedStage = 2
	for _, rec := range []*AssessmentRecord{onBoundary, tooOld, fresh} {
		remote.records[rec.SessionID] = rec
	}

	res, err := repo.List(context.Background(), ListOptions{View: ViewAdmin})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(res.Records) != 2 {
		t.Fatalf("expected 2 records within retention, got %d", len(res.Records))
	}
	for _, rec := range res.Records {
		if rec.SessionID == "s2" {
			t.Fatalf("record older than 90 days must be filtered")
		}
	}
	// Exactly 90 days old is still included.
	found := false
	for _, rec := range res.Records {
		if rec.SessionID == "s1" {
			found = true
		}
	}
	if !found {
		t.Fatalf("record exactly 90 days old must be included")
	}
}

func TestListSortsNewestFirst(t *testing.T) {
	remote := newStubRemote()
	repo := newTestRepo(remote, newStubCache())
	now := time.Now().UTC()
	for i, id := range []string{"a", "b", "c"} {
		rec := record(id, "Eng", "N"+id, []int{1, 1}, now.Add(-time.Duration(i)*time.Hour))
		remote.records[id] = rec
	}
	res, err := repo.List(context.Background(), ListOptions{View: ViewAdmin})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	for i := 1; i < len(res.Records); i++ {
		if res.Records[i].CreatedAt.After(res.Records[i-1].CreatedAt) {
			t.Fatalf("records not sorted newest first")
		}
	}
}

func TestListRollupDedupesBySubmitter(t *testing.T) {
	remote := newStubRemote()
	repo := newTestRepo(remote, newStubCache())
	now := time.Now().UTC()

	early := record("s1", "Eng", "Ada", []int{1, 1}, now.Add(-2*time.Hour))
	late := record("s2", "Eng", "Ada", []int{2, 2}, now.Add(-time.Hour))
	anon1 := record("s3", "Eng", "", []int{1, 1}, now.Add(-3*time.Hour))
	anon2 := record("s4", "Eng", "", []int{1, 1}, now.Add(-4*time.Hour))
	for _, rec := range []*AssessmentRecord{early, late, anon1, anon2} {
		remote.records[rec.SessionID] = rec
	}

	res, err := repo.List(context.Background(), ListOptions{View: ViewAdmin, Rollup: true})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(res.Records) != 3 {
		t.Fatalf("expected 3 records after dedup, got %d", len(res.Records))
	}
	for _, rec := range res.Records {
		if rec.SubmitterName == "Ada" && rec.SessionID != "s2" {
			t.Fatalf("rollup must keep the latest record per submitter, kept %s", rec.SessionID)
		}
	}
}

func TestListPublicViewStripsNames(t *testing.T) {
	remote := newStubRemote()
	repo := newTestRepo(remote, newStubCache())
	remote.records["s1"] = record("s1", "Eng", "Ada", []int{1, 1}, time.Now().UTC())

	public, err := repo.List(context.Background(), ListOptions{View: ViewPublic})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if public.Records[0].SubmitterName != "" {
		t.Fatalf("public view must strip submitter names")
	}

	admin, err := repo.List(context.Background(), ListOptions{View: ViewAdmin})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if admin.Records[0].SubmitterName != "Ada" {
		t.Fatalf("admin view must keep submitter names")
	}
	// The stored record must not have been mutated by the public read.
	if remote.records["s1"].SubmitterName != "Ada" {
		t.Fatalf("view filtering mutated the stored record")
	}
}

func TestListFallsBackToCache(t *testing.T) {
	remote := newStubRemote()
	cache := newStubCache()
	repo := newTestRepo(remote, cache)

	if _, err := repo.Submit(context.Background(), record("s1", "Eng", "Ada", []int{1, 2}, time.Time{})); err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	remote.down = true

	res, err := repo.List(context.Background(), ListOptions{View: ViewAdmin})
	if err != nil {
		t.Fatalf("List should fall back to cache: %v", err)
	}
	if !res.Offline {
		t.Fatalf("fallback result must be flagged offline")
	}
	if len(res.Records) != 1 || res.Records[0].SessionID != "s1" {
		t.Fatalf("cached record missing from fallback read")
	}
}

func TestListSessionFilterOnCacheFallback(t *testing.T) {
	remote := newStubRemote()
	remote.down = true
	cache := newStubCache()
	cache.records["s1"] = record("s1", "Eng", "Ada", []int{1, 1}, time.Now().UTC())
	cache.records["s2"] = record("s2", "Eng", "Bea", []int{1, 1}, time.Now().UTC())
	repo := newTestRepo(remote, cache)

	res, err := repo.List(context.Background(), ListOptions{View: ViewAdmin, SessionID: "s2"})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(res.Records) != 1 || res.Records[0].SessionID != "s2" {
		t.Fatalf("session filter not applied on fallback: %+v", res.Records)
	}
}

func TestDeleteIdempotent(t *testing.T) {
	remote := newStubRemote()
	cache := newStubCache()
	repo := newTestRepo(remote, cache)

	if err := repo.Delete(context.Background(), "Eng", "missing"); err != nil {
		t.Fatalf("deleting a nonexistent record must succeed: %v", err)
	}
}

func TestDeleteRemovesBothStores(t *testing.T) {
	remote := newStubRemote()
	cache := newStubCache()
	repo := newTestRepo(remote, cache)
	if _, err := repo.Submit(context.Background(), record("s1", "Eng", "Ada", []int{1, 2}, time.Time{})); err != nil {
		t.Fatalf("Submit error: %v", err)
	}

	if err := repo.Delete(context.Background(), "Eng", "s1"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if len(remote.records) != 0 || len(cache.records) != 0 {
		t.Fatalf("record not removed from both stores")
	}
}

func TestDeleteSucceedsLocallyWhenRemoteDown(t *testing.T) {
	remote := newStubRemote()
	cache := newStubCache()
	repo := newTestRepo(remote, cache)
	if _, err := repo.Submit(context.Background(), record("s1", "Eng", "Ada", []int{1, 2}, time.Time{})); err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	remote.down = true

	if err := repo.Delete(context.Background(), "Eng", "s1"); err != nil {
		t.Fatalf("local removal should report success: %v", err)
	}
	if len(cache.records) != 0 {
		t.Fatalf("record not removed from cache")
	}
}

func TestDeleteValidatesParams(t *testing.T) {
	repo := newTestRepo(newStubRemote(), newStubCache())
	if err := repo.Delete(context.Background(), "", "s1"); !IsCode(err, ErrorInvalid) {
		t.Fatalf("expected invalid error, got %v", err)
	}
	if err := repo.Delete(context.Background(), "Eng", ""); !IsCode(err, ErrorInvalid) {
		t.Fatalf("expected invalid error, got %v", err)
	}
}
