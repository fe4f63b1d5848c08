package integrations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/quailyquaily/trustops/audit"
	"github.com/quailyquaily/trustops/evidence"
	"github.com/quailyquaily/trustops/fault"
	"github.com/quailyquaily/trustops/internal/lockmap"
)

const (
	TargetType = "integration"

	ActionConnected    = "integration.connected"
	ActionDisconnected = "integration.disconnected"
	ActionSynced       = "integration.synced"

	DefaultSyncTimeout = 2 * time.Minute
)

// Manager owns integration records. Decrypted credentials leave it only
// through Credentials and the CollectRequest handed to a collector.
type Manager struct {
	store      Store
	codec      Sealer
	trail      Auditor
	sink       EvidenceSink
	collectors map[Provider]Collector
	timeout    time.Duration
	locks      lockmap.Map
	now        func() time.Time
	log        *slog.Logger
}

type Option func(*Manager)

func WithCollector(p Provider, c Collector) Option {
	return func(m *Manager) {
		if c != nil {
			m.collectors[p] = c
		}
	}
}

// WithEvidenceSink routes collected items into evidence review.
func WithEvidenceSink(s EvidenceSink) Option {
	return func(m *Manager) { m.sink = s }
}

func WithSyncTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

func NewManager(store Store, codec Sealer, trail Auditor, opts ...Option) *Manager {
	m := &Manager{
		store:      store,
		codec:      codec,
		trail:      trail,
		collectors: make(map[Provider]Collector),
		timeout:    DefaultSyncTimeout,
		now:        time.Now,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Connect validates raw provider config, seals the access token and stores
// the integration as CONNECTED. Reconnecting an existing id replaces its
// config. The returned record is masked.
func (m *Manager) Connect(ctx context.Context, orgID, id, provider, actorID string, raw map[string]any) (Integration, error) {
	orgID = strings.TrimSpace(orgID)
	id = strings.TrimSpace(id)
	if orgID == "" || id == "" {
		return Integration{}, fmt.Errorf("org id and integration id are required: %w", fault.ErrInvalidInput)
	}
	p, err := ParseProvider(provider)
	if err != nil {
		return Integration{}, err
	}
	cfg, err := ParseConfig(p, raw)
	if err != nil {
		return Integration{}, err
	}
	rawToken := cfg.AccessToken
	if rawToken != "" {
		sealed, err := m.codec.EncryptString(rawToken)
		if err != nil {
			return Integration{}, fmt.Errorf("seal access token: %w", err)
		}
		cfg.AccessToken = sealed
	}

	unlock := m.locks.Lock(id)
	defer unlock()

	now := m.now().UTC()
	in, ok, err := m.store.Get(ctx, id)
	if err != nil {
		return Integration{}, fmt.Errorf("load integration %s: %w", id, err)
	}
	if ok && in.OrgID != orgID {
		return Integration{}, fmt.Errorf("integration %q in org %q: %w", id, orgID, fault.ErrNotFound)
	}
	if !ok {
		in = Integration{ID: id, OrgID: orgID, CreatedAt: now}
	}
	in.Provider = p
	in.Config = &cfg
	in.Status = StatusConnected
	in.LastError = ""
	in.UpdatedAt = now
	if err := m.store.Put(ctx, in); err != nil {
		return Integration{}, fmt.Errorf("store integration %s: %w", id, err)
	}

	meta := map[string]any{"provider": string(p)}
	switch p {
	case ProviderGitHub:
		meta["org"] = cfg.Org
		meta["repos"] = cfg.Repos
		// The trail replaces this with the redaction marker before storage.
		meta["accessToken"] = rawToken
	case ProviderAWS:
		meta["roleArn"] = cfg.RoleARN
		meta["region"] = cfg.Region
		meta["accountId"] = cfg.AccountID
	}
	if _, err := m.trail.Append(ctx, audit.Entry{
		OrgID:      orgID,
		ActorID:    actorID,
		Action:     ActionConnected,
		TargetType: TargetType,
		TargetID:   id,
		Metadata:   meta,
	}); err != nil {
		return in.safe(), err
	}
	m.log.Info("integration_connected", "id", id, "org_id", orgID, "provider", string(p))
	return in.safe(), nil
}

// ReadSafe returns the integration with its token masked.
func (m *Manager) ReadSafe(ctx context.Context, id string) (Integration, error) {
	id = strings.TrimSpace(id)
	in, ok, err := m.store.Get(ctx, id)
	if err != nil {
		return Integration{}, fmt.Errorf("load integration %s: %w", id, err)
	}
	if !ok {
		return Integration{}, fmt.Errorf("integration %q: %w", id, fault.ErrNotFound)
	}
	return in.safe(), nil
}

// Get is ReadSafe scoped to one org.
func (m *Manager) Get(ctx context.Context, orgID, id string) (Integration, error) {
	in, err := m.load(ctx, orgID, id)
	if err != nil {
		return Integration{}, err
	}
	return in.safe(), nil
}

func (m *Manager) List(ctx context.Context, orgID string) ([]Integration, error) {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return nil, fmt.Errorf("org id is required: %w", fault.ErrInvalidInput)
	}
	list, err := m.store.List(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("list integrations: %w", err)
	}
	out := make([]Integration, 0, len(list))
	for _, in := range list {
		out = append(out, in.safe())
	}
	return out, nil
}

// Credentials returns the decrypted config for immediate use by a collector.
func (m *Manager) Credentials(ctx context.Context, orgID, id string) (Config, error) {
	in, err := m.load(ctx, orgID, id)
	if err != nil {
		return Config{}, err
	}
	return m.open(in)
}

func (m *Manager) open(in Integration) (Config, error) {
	if in.Config == nil {
		return Config{}, fmt.Errorf("integration %s has no config: %w", in.ID, fault.ErrInvalidTransition)
	}
	cfg := *in.Config.clone()
	if cfg.AccessToken != "" {
		tok, err := m.codec.DecryptString(cfg.AccessToken)
		if err != nil {
			return Config{}, fmt.Errorf("open access token of %s: %w", in.ID, err)
		}
		cfg.AccessToken = tok
	}
	return cfg, nil
}

// Disconnect drops the stored config entirely and marks the integration
// DISCONNECTED.
func (m *Manager) Disconnect(ctx context.Context, orgID, id, actorID string) (Integration, error) {
	id = strings.TrimSpace(id)
	unlock := m.locks.Lock(id)
	defer unlock()

	in, err := m.load(ctx, orgID, id)
	if err != nil {
		return Integration{}, err
	}
	prev := in.Status
	in.Config = nil
	in.Status = StatusDisconnected
	in.UpdatedAt = m.now().UTC()
	if err := m.store.Put(ctx, in); err != nil {
		return Integration{}, fmt.Errorf("store integration %s: %w", id, err)
	}
	if _, err := m.trail.Append(ctx, audit.Entry{
		OrgID:      in.OrgID,
		ActorID:    actorID,
		Action:     ActionDisconnected,
		TargetType: TargetType,
		TargetID:   id,
		Metadata: map[string]any{
			"provider":       string(in.Provider),
			"previousStatus": string(prev),
		},
	}); err != nil {
		return in.safe(), err
	}
	m.log.Info("integration_disconnected", "id", id, "org_id", in.OrgID)
	return in.safe(), nil
}

type SyncOptions struct {
	ActorID string
	// Timeout bounds the collector call. Zero uses the manager default.
	Timeout time.Duration
}

type SyncResult struct {
	Integration Integration     `json:"integration" yaml:"integration"`
	Success     bool            `json:"success" yaml:"success"`
	Error       string          `json:"error,omitempty" yaml:"error,omitempty"`
	Evidence    []evidence.Item `json:"evidence,omitempty" yaml:"evidence,omitempty"`
	Duration    time.Duration   `json:"duration" yaml:"duration"`
}

// Sync runs the provider collector with decrypted credentials. A collector
// failure or timeout is recorded on the integration (ERROR, lastError) and in
// the SyncResult, not returned as an error. Every call that reaches the
// collector stage appends exactly one integration.synced entry, including one
// whose outcome could not be stored. A SYNCING marker older than the sync
// timeout is treated as stale and does not block a new sync.
func (m *Manager) Sync(ctx context.Context, orgID, id string, opts SyncOptions) (SyncResult, error) {
	id = strings.TrimSpace(id)
	unlock := m.locks.Lock(id)
	defer unlock()

	in, err := m.load(ctx, orgID, id)
	if err != nil {
		return SyncResult{}, err
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = m.timeout
	}
	prior := in.Status
	switch in.Status {
	case StatusDisconnected:
		return SyncResult{}, fmt.Errorf("integration %s is %s: %w", id, in.Status, fault.ErrInvalidTransition)
	case StatusSyncing:
		if !m.syncStale(in, timeout) {
			return SyncResult{}, fmt.Errorf("integration %s is %s: %w", id, in.Status, fault.ErrInvalidTransition)
		}
		// Left over by a crash or a failed outcome write; the collector can no
		// longer be running.
		m.log.Warn("integration_sync_stale", "id", id, "org_id", in.OrgID, "since", in.UpdatedAt)
		prior = StatusConnected
	}
	collector := m.collectors[in.Provider]
	if collector == nil {
		return SyncResult{}, fmt.Errorf("no collector for provider %s: %w", in.Provider, fault.ErrInvalidInput)
	}

	in.Status = StatusSyncing
	in.UpdatedAt = m.now().UTC()
	if err := m.store.Put(ctx, in); err != nil {
		return SyncResult{}, fmt.Errorf("mark integration %s syncing: %w", id, err)
	}

	start := m.now()
	items, syncErr := m.collect(ctx, collector, in, timeout)
	var ingested []evidence.Item
	if syncErr == nil && len(items) > 0 && m.sink != nil {
		ingested, syncErr = m.sink.Ingest(ctx, in.OrgID, items)
		if syncErr != nil {
			syncErr = fmt.Errorf("ingest evidence: %w", syncErr)
		}
	}

	now := m.now().UTC()
	res := SyncResult{Success: syncErr == nil, Evidence: ingested, Duration: now.Sub(start)}
	if syncErr != nil {
		in.Status = StatusError
		in.LastError = syncErr.Error()
		res.Error = in.LastError
		m.log.Warn("integration_sync_failed", "id", id, "org_id", in.OrgID, "error", syncErr.Error())
	} else {
		in.Status = prior
		in.LastSyncAt = &now
		m.log.Info("integration_synced", "id", id, "org_id", in.OrgID, "evidence", len(ingested))
	}
	in.UpdatedAt = now
	// Persist even if the caller's context is gone; a marker left behind goes stale after the timeout.
	var putErr error
	if err := m.store.Put(context.WithoutCancel(ctx), in); err != nil {
		putErr = fmt.Errorf("store sync outcome of %s: %w", id, err)
		res.Success = false
		res.Error = putErr.Error()
		m.log.Error("integration_sync_store_error", "id", id, "org_id", in.OrgID, "error", putErr.Error())
	}
	res.Integration = in.safe()

	meta := map[string]any{
		"provider":      string(in.Provider),
		"success":       res.Success,
		"evidenceCount": len(ingested),
		"durationMs":    res.Duration.Milliseconds(),
	}
	if res.Error != "" {
		meta["error"] = res.Error
	}
	if _, err := m.trail.Append(context.WithoutCancel(ctx), audit.Entry{
		OrgID:      in.OrgID,
		ActorID:    opts.ActorID,
		Action:     ActionSynced,
		TargetType: TargetType,
		TargetID:   id,
		Metadata:   meta,
	}); err != nil {
		return res, errors.Join(putErr, err)
	}
	return res, putErr
}

// syncStale reports whether a stored SYNCING marker has outlived any collector
// call that could have set it. Within one process the id lock already rules out
// an overlapping sync, so only markers written by a crashed or failed call remain.
func (m *Manager) syncStale(in Integration, timeout time.Duration) bool {
	limit := max(timeout, m.timeout)
	return m.now().UTC().Sub(in.UpdatedAt) > limit
}

type collectResult struct {
	items []evidence.NewItem
	err   error
}

func (m *Manager) collect(ctx context.Context, c Collector, in Integration, timeout time.Duration) ([]evidence.NewItem, error) {
	cfg, err := m.open(in)
	if err != nil {
		return nil, err
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan collectResult, 1)
	go func() {
		items, err := c.Collect(cctx, CollectRequest{
			OrgID:         in.OrgID,
			IntegrationID: in.ID,
			Provider:      in.Provider,
			Config:        cfg,
		})
		done <- collectResult{items: items, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("collector %s: %w", in.Provider, r.err)
		}
		return r.items, nil
	case <-cctx.Done():
		if errors.Is(cctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("collector %s timed out after %s", in.Provider, timeout)
		}
		return nil, fmt.Errorf("collector %s: %w", in.Provider, cctx.Err())
	}
}

func (m *Manager) load(ctx context.Context, orgID, id string) (Integration, error) {
	orgID = strings.TrimSpace(orgID)
	id = strings.TrimSpace(id)
	in, ok, err := m.store.Get(ctx, id)
	if err != nil {
		return Integration{}, fmt.Errorf("load integration %s: %w", id, err)
	}
	if !ok || in.OrgID != orgID {
		return Integration{}, fmt.Errorf("integration %q in org %q: %w", id, orgID, fault.ErrNotFound)
	}
	return in, nil
}
