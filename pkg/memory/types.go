// Package memory defines the canonical memory record and the shared
// vocabulary (layers, information classes, memory types) used by every
// other package in the module.
package memory

import (
	"time"

	"github.com/google/uuid"
)

// Layer is the memory-hierarchy tier a record currently belongs to.
//
// Layer transitions are performed by the engine, never by storage
// adapters directly (invariant 2).
type Layer string

const (
	LayerSensory    Layer = "sensory"
	LayerWorking    Layer = "working"
	LayerEpisodic   Layer = "episodic"
	LayerSemantic   Layer = "semantic"
	LayerReflective Layer = "reflective"

	// LayerSystem is a reserved, layer-independent namespace for
	// records that are not part of the memory hierarchy proper —
	// currently governance audit rows. It deliberately fails Valid()
	// since it never participates in promotion/consolidation/decay.
	LayerSystem Layer = "system"
)

// Valid reports whether l is one of the five recognized hierarchy layers.
func (l Layer) Valid() bool {
	switch l {
	case LayerSensory, LayerWorking, LayerEpisodic, LayerSemantic, LayerReflective:
		return true
	}
	return false
}

// Type tags the shape of a memory's content.
type Type string

const (
	TypeText         Type = "text"
	TypeCode         Type = "code"
	TypeConversation Type = "conversation"
	TypeReflection   Type = "reflection"
	TypeEntity       Type = "entity"
	TypeRelationship Type = "relationship"

	// TypeAudit marks a governance audit-trail row (§6). Audit rows are
	// ordinary records in a reserved layer-independent namespace rather
	// than a bespoke audit store.
	TypeAudit Type = "audit"

	// TypeCostLog marks a cost/token-usage tracking row, pseudonymized
	// rather than deleted by GDPR erasure per retention policy.
	TypeCostLog Type = "cost_log"
)

// InfoClass is the classification that drives storage-layer eligibility.
type InfoClass string

const (
	InfoClassPublic       InfoClass = "public"
	InfoClassInternal     InfoClass = "internal"
	InfoClassConfidential InfoClass = "confidential"
	InfoClassRestricted   InfoClass = "restricted"
)

// TrustLevel describes how much a memory's origin is trusted.
type TrustLevel string

const (
	TrustHigh       TrustLevel = "high"
	TrustMedium     TrustLevel = "medium"
	TrustLow        TrustLevel = "low"
	TrustUnverified TrustLevel = "unverified"
)

// MaxContentBytes is the hard content-length ceiling from §3 (≤ 50 KB).
const MaxContentBytes = 50 * 1024

// Provenance records where a memory originated and how much it is trusted.
type Provenance struct {
	OriginDevice string                 `json:"origin_device,omitempty"`
	TrustLevel   TrustLevel             `json:"trust_level,omitempty"`
	Extra        map[string]interface{} `json:"-"`
}

// SyncMetadata carries cross-device/cross-replica sync bookkeeping.
type SyncMetadata struct {
	Version int    `json:"version,omitempty"`
	Path    string `json:"path,omitempty"`
}

// Record is the canonical, tenant-scoped memory record.
//
// Every field named in spec.md §3's wire shape is present here. A Record
// is the unit every adapter interface (storage, vector, graph) and every
// higher package (layers, search, engine) operates on.
type Record struct {
	ID        uuid.UUID `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Project   string    `json:"project"`
	AgentID   string    `json:"agent_id"`
	SessionID string    `json:"session_id,omitempty"`

	Content    string                 `json:"content"`
	Layer      Layer                  `json:"layer"`
	MemoryType Type                   `json:"memory_type"`
	Source     string                 `json:"source"`
	Importance float64                `json:"importance"`
	Strength   float64                `json:"strength"`
	Tags       []string               `json:"tags,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`

	// Embedding is the single default-space embedding. Embeddings holds
	// additional named-vector spaces (e.g. "code", "prose"); when only
	// one space is in play Embedding is populated and Embeddings is nil.
	Embedding  []float32            `json:"embedding,omitempty"`
	Embeddings map[string][]float32 `json:"embeddings,omitempty"`

	CreatedAt      time.Time  `json:"created_at"`
	ModifiedAt     time.Time  `json:"modified_at"`
	LastAccessedAt time.Time  `json:"last_accessed_at"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	AccessCount    int64      `json:"access_count"`
	UsageCount     int64      `json:"usage_count"`
	Version        int64      `json:"version"`

	InfoClass    InfoClass    `json:"information_class"`
	Provenance   Provenance   `json:"provenance,omitempty"`
	SyncMetadata SyncMetadata `json:"sync_metadata,omitempty"`
}

// NewRecord builds a Record with the defaults spec.md §3 names: importance
// 0.5, strength 1.0, version 1, created/modified/last-accessed set to now.
func NewRecord(tenantID, project, content string) *Record {
	now := time.Now().UTC()
	return &Record{
		ID:             uuid.New(),
		TenantID:       tenantID,
		Project:        project,
		Content:        content,
		Layer:          LayerWorking,
		MemoryType:     TypeText,
		Importance:     0.5,
		Strength:       1.0,
		CreatedAt:      now,
		ModifiedAt:     now,
		LastAccessedAt: now,
		Version:        1,
		InfoClass:      InfoClassInternal,
	}
}

// TouchAccess bumps the monotonic access bookkeeping (invariant 4). It never
// touches Version: access/last-access are the one pair of fields allowed to
// change without bumping the version counter.
func (r *Record) TouchAccess(at time.Time) {
	r.AccessCount++
	if at.After(r.LastAccessedAt) {
		r.LastAccessedAt = at
	}
}

// BumpVersion marks r as mutated: version increases and modified_at advances.
// Every mutation other than TouchAccess must call this.
func (r *Record) BumpVersion(at time.Time) {
	r.Version++
	if at.After(r.ModifiedAt) {
		r.ModifiedAt = at
	} else {
		r.ModifiedAt = r.ModifiedAt.Add(time.Nanosecond)
	}
}

// AgeSeconds returns the seconds elapsed since LastAccessedAt, as of now.
func (r *Record) AgeSeconds(now time.Time) float64 {
	return now.Sub(r.LastAccessedAt).Seconds()
}

// Clone returns a deep-enough copy for safe concurrent mutation (tags,
// metadata and embeddings are copied; nested metadata values are not).
func (r *Record) Clone() *Record {
	c := *r
	if r.Tags != nil {
		c.Tags = append([]string(nil), r.Tags...)
	}
	if r.Metadata != nil {
		c.Metadata = make(map[string]interface{}, len(r.Metadata))
		for k, v := range r.Metadata {
			c.Metadata[k] = v
		}
	}
	if r.Embedding != nil {
		c.Embedding = append([]float32(nil), r.Embedding...)
	}
	if r.Embeddings != nil {
		c.Embeddings = make(map[string][]float32, len(r.Embeddings))
		for k, v := range r.Embeddings {
			c.Embeddings[k] = append([]float32(nil), v...)
		}
	}
	if r.ExpiresAt != nil {
		t := *r.ExpiresAt
		c.ExpiresAt = &t
	}
	return &c
}
