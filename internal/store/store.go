package store

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotFound is returned by lookups for ids that are not in the store.
var ErrNotFound = errors.New("store: not found")

// DefaultRetentionCap bounds the total number of retained requests across
// all endpoints. Eviction is global and oldest-first: a noisy endpoint can
// push out another endpoint's history.
const DefaultRetentionCap = 200

type Endpoint struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color,omitempty"`
	CreatedAt int64  `json:"createdAt"` // unix milliseconds
}

// Header is one (key, value) pair. Duplicate keys appear as separate
// entries; values for a key keep their received order.
type Header struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// CapturedRequest is an inbound webhook as recorded at capture time.
// Records are immutable once appended.
//
// At most one of Body and RawBody is set: Body holds the verbatim bytes of
// a payload that parsed as JSON, RawBody holds anything else (base64 in the
// persisted snapshot). Size is the byte length of the payload as received,
// computed once at capture and never recomputed.
type CapturedRequest struct {
	ID          string            `json:"id"`
	EndpointID  string            `json:"endpointId"`
	Method      string            `json:"method"`
	Path        string            `json:"path,omitempty"`
	Timestamp   int64             `json:"timestamp"` // unix milliseconds
	Headers     []Header          `json:"headers"`
	Query       map[string]string `json:"query,omitempty"`
	Body        json.RawMessage   `json:"body,omitempty"`
	RawBody     []byte            `json:"bodyRaw,omitempty"`
	Size        int               `json:"size"`
	ContentType string            `json:"contentType"`
}

// Snapshot is the persisted state: both collections, written as a unit.
// Requests are ordered most-recent-first.
type Snapshot struct {
	Endpoints []*Endpoint        `json:"endpoints"`
	Requests  []*CapturedRequest `json:"requests"`
}

// Store is the single owner of the shared snapshot. Every mutation is
// applied and made durable before the call returns; concurrent mutations
// are serialized by the implementation, so two overlapping appends can
// never lose each other's record.
type Store interface {
	// CreateEndpoint assigns a fresh id and appends the endpoint in
	// creation order.
	CreateEndpoint(ctx context.Context, name, color string) (*Endpoint, error)
	// ListEndpoints returns all endpoints in creation order.
	ListEndpoints(ctx context.Context) ([]*Endpoint, error)
	// DeleteEndpoint removes the endpoint and every request referencing
	// it, atomically. Deleting an absent id is a no-op.
	DeleteEndpoint(ctx context.Context, id string) error

	// AppendRequest assigns id and timestamp, prepends the record, and
	// applies the retention cap in the same durable write. The endpoint
	// id is not validated: captures for unknown endpoints are kept.
	AppendRequest(ctx context.Context, req *CapturedRequest) error
	// ListRequests returns the endpoint's requests, most-recent-first.
	ListRequests(ctx context.Context, endpointID string) ([]*CapturedRequest, error)
	// GetRequest returns one request by id, or ErrNotFound.
	GetRequest(ctx context.Context, id string) (*CapturedRequest, error)
	// ClearRequests removes all requests for one endpoint. Clearing an
	// endpoint with no requests is a no-op.
	ClearRequests(ctx context.Context, endpointID string) error

	Close() error
}
