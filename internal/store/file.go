package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// FileStore keeps the whole snapshot in one JSON document on disk. Every
// mutation runs a load-modify-save cycle under a single writer mutex;
// readers are served from the last successfully saved snapshot without
// taking the writer lock, so a poll never observes a half-written state.
type FileStore struct {
	path string
	cap  int

	writeMu sync.Mutex               // serializes all load-modify-save cycles
	current atomic.Pointer[Snapshot] // last durably written snapshot
}

// NewFileStore opens (or initializes) the snapshot file at path. A missing
// file is a first run and yields an empty snapshot; a present but unreadable
// file is an error, not silently discarded state.
func NewFileStore(path string, retentionCap int) (*FileStore, error) {
	if retentionCap <= 0 {
		retentionCap = DefaultRetentionCap
	}
	s := &FileStore{path: path, cap: retentionCap}

	snap, err := s.Load()
	if err != nil {
		return nil, err
	}
	s.current.Store(snap)
	return s, nil
}

// Load reads the snapshot file from disk. It is also the crash-recovery
// path: because Save never truncates in place, Load sees either the prior
// complete snapshot or the new one, never a torn write.
func (s *FileStore) Load() (*Snapshot, error) {
	b, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return &Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", s.path, err)
	}
	return &snap, nil
}

// Save durably replaces the snapshot on disk: write a temp file, then
// rename over the old one.
func (s *FileStore) Save(snap *Snapshot) error {
	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// mutate runs one logical mutation as load -> modify -> save. The published
// in-memory snapshot only advances after the save succeeds, so a failed
// write leaves both disk and readers on the prior state.
func (s *FileStore) mutate(fn func(*Snapshot)) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next := clone(s.current.Load())
	fn(next)
	if err := s.Save(next); err != nil {
		return err
	}
	s.current.Store(next)
	return nil
}

// clone copies the snapshot's slices so a mutation never touches a state
// readers may still be iterating. Records themselves are immutable and
// shared.
func clone(snap *Snapshot) *Snapshot {
	next := &Snapshot{
		Endpoints: make([]*Endpoint, len(snap.Endpoints)),
		Requests:  make([]*CapturedRequest, len(snap.Requests)),
	}
	copy(next.Endpoints, snap.Endpoints)
	copy(next.Requests, snap.Requests)
	return next
}

func (s *FileStore) CreateEndpoint(ctx context.Context, name, color string) (*Endpoint, error) {
	ep := &Endpoint{
		ID:        uuid.NewString(),
		Name:      name,
		Color:     color,
		CreatedAt: time.Now().UnixMilli(),
	}
	err := s.mutate(func(snap *Snapshot) {
		snap.Endpoints = append(snap.Endpoints, ep)
	})
	if err != nil {
		return nil, err
	}
	return ep, nil
}

func (s *FileStore) ListEndpoints(ctx context.Context) ([]*Endpoint, error) {
	snap := s.current.Load()
	out := make([]*Endpoint, len(snap.Endpoints))
	copy(out, snap.Endpoints)
	return out, nil
}

func (s *FileStore) DeleteEndpoint(ctx context.Context, id string) error {
	return s.mutate(func(snap *Snapshot) {
		eps := snap.Endpoints[:0:0]
		for _, ep := range snap.Endpoints {
			if ep.ID != id {
				eps = append(eps, ep)
			}
		}
		snap.Endpoints = eps

		// Cascade: requests for the endpoint go in the same write.
		reqs := snap.Requests[:0:0]
		for _, r := range snap.Requests {
			if r.EndpointID != id {
				reqs = append(reqs, r)
			}
		}
		snap.Requests = reqs
	})
}

func (s *FileStore) AppendRequest(ctx context.Context, req *CapturedRequest) error {
	req.ID = uuid.NewString()
	req.Timestamp = time.Now().UnixMilli()
	return s.mutate(func(snap *Snapshot) {
		snap.Requests = append([]*CapturedRequest{req}, snap.Requests...)
		// Global FIFO retention: the slice is most-recent-first, so
		// trimming the tail drops the oldest records.
		if len(snap.Requests) > s.cap {
			snap.Requests = snap.Requests[:s.cap]
		}
	})
}

func (s *FileStore) ListRequests(ctx context.Context, endpointID string) ([]*CapturedRequest, error) {
	snap := s.current.Load()
	out := make([]*CapturedRequest, 0)
	for _, r := range snap.Requests {
		if r.EndpointID == endpointID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *FileStore) GetRequest(ctx context.Context, id string) (*CapturedRequest, error) {
	snap := s.current.Load()
	for _, r := range snap.Requests {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, ErrNotFound
}

func (s *FileStore) ClearRequests(ctx context.Context, endpointID string) error {
	return s.mutate(func(snap *Snapshot) {
		reqs := snap.Requests[:0:0]
		for _, r := range snap.Requests {
			if r.EndpointID != endpointID {
				reqs = append(reqs, r)
			}
		}
		snap.Requests = reqs
	})
}

func (s *FileStore) Close() error { return nil }
