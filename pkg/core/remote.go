package core

import "context"

// Ack is the server acknowledgment of a pushed record.
type Ack struct {
	ID       string
	Revision string
}

// Page is one batch of remote records. Marker resumes the next pull.
type Page struct {
	Records []Record
	Marker  string
}

// RemoteDAO exchanges records with the central server. Every call must be
// safe to repeat: pushes are upserts and pulls are re-applied as merges.
type RemoteDAO interface {
	Push(ctx context.Context, kind Kind, rec Record) (Ack, error)
	PullAll(ctx context.Context, kind Kind, since string) (Page, error)
	// PullOne returns ErrNotFound when the server has no such record.
	PullOne(ctx context.Context, kind Kind, id string) (Record, error)
}

// Pinger is implemented by remotes that can check reachability up front.
type Pinger interface {
	Ping(ctx context.Context) error
}
