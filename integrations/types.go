// Package integrations stores third-party connections (GitHub, AWS) with their
// access tokens sealed by the secret codec, and runs evidence syncs through
// provider collectors.
package integrations

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/quailyquaily/trustops/audit"
	"github.com/quailyquaily/trustops/evidence"
	"github.com/quailyquaily/trustops/fault"
)

type Provider string

const (
	ProviderGitHub Provider = "GITHUB"
	ProviderAWS    Provider = "AWS"
)

func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToUpper(strings.TrimSpace(s))); p {
	case ProviderGitHub, ProviderAWS:
		return p, nil
	}
	return "", fmt.Errorf("provider %q: %w (want GITHUB or AWS)", s, fault.ErrInvalidInput)
}

type Status string

const (
	StatusConnected    Status = "CONNECTED"
	StatusDisconnected Status = "DISCONNECTED"
	StatusError        Status = "ERROR"
	StatusSyncing      Status = "SYNCING"
)

// Mask replaces token values in every config handed out by Get and List.
const Mask = "***"

// Config is the provider configuration. Only the fields of the integration's
// provider are set. In storage AccessToken is a sealed payload string.
type Config struct {
	AccessToken string   `json:"accessToken,omitempty" yaml:"accessToken,omitempty"`
	Org         string   `json:"org,omitempty" yaml:"org,omitempty"`
	Repos       []string `json:"repos,omitempty" yaml:"repos,omitempty"`

	RoleARN    string `json:"roleArn,omitempty" yaml:"roleArn,omitempty"`
	ExternalID string `json:"externalId,omitempty" yaml:"externalId,omitempty"`
	Region     string `json:"region,omitempty" yaml:"region,omitempty"`
	AccountID  string `json:"accountId,omitempty" yaml:"accountId,omitempty"`
}

func (c *Config) clone() *Config {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Repos = slices.Clone(c.Repos)
	return &cp
}

type Integration struct {
	ID         string     `json:"id" yaml:"id"`
	OrgID      string     `json:"orgId" yaml:"orgId"`
	Provider   Provider   `json:"provider" yaml:"provider"`
	Status     Status     `json:"status" yaml:"status"`
	Config     *Config    `json:"config" yaml:"config"`
	LastSyncAt *time.Time `json:"lastSyncAt,omitempty" yaml:"lastSyncAt,omitempty"`
	LastError  string     `json:"lastError,omitempty" yaml:"lastError,omitempty"`
	CreatedAt  time.Time  `json:"createdAt" yaml:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt" yaml:"updatedAt"`
}

func (in Integration) clone() Integration {
	in.Config = in.Config.clone()
	if in.LastSyncAt != nil {
		t := *in.LastSyncAt
		in.LastSyncAt = &t
	}
	return in
}

// safe is the read view: same record, token masked.
func (in Integration) safe() Integration {
	out := in.clone()
	if out.Config != nil && out.Config.AccessToken != "" {
		out.Config.AccessToken = Mask
	}
	return out
}

// Store persists integrations with sealed configs. Put inserts or replaces.
type Store interface {
	Get(ctx context.Context, id string) (Integration, bool, error)
	Put(ctx context.Context, in Integration) error
	// List returns the org's integrations ordered by creation time.
	List(ctx context.Context, orgID string) ([]Integration, error)
}

// Sealer is the part of *secrets.Codec used for token fields.
type Sealer interface {
	EncryptString(plaintext string) (string, error)
	DecryptString(wire string) (string, error)
}

type Auditor interface {
	Append(ctx context.Context, e audit.Entry) (string, error)
}

// Collector gathers evidence from a provider. The request carries decrypted
// credentials; a collector must not keep them after Collect returns.
type Collector interface {
	Collect(ctx context.Context, req CollectRequest) ([]evidence.NewItem, error)
}

// CollectorFunc adapts a function to Collector.
type CollectorFunc func(ctx context.Context, req CollectRequest) ([]evidence.NewItem, error)

func (f CollectorFunc) Collect(ctx context.Context, req CollectRequest) ([]evidence.NewItem, error) {
	return f(ctx, req)
}

type CollectRequest struct {
	OrgID         string
	IntegrationID string
	Provider      Provider
	Config        Config
}

// EvidenceSink receives collected items. *evidence.Gate satisfies it.
type EvidenceSink interface {
	Ingest(ctx context.Context, orgID string, in []evidence.NewItem) ([]evidence.Item, error)
}
