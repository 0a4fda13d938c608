// Persistence collaborators for request ids and active scene subscriptions
package store

import "context"

// Initial/final request id counter per device
type RequestIDs interface {
	LoadRequestID(ctx context.Context, device string) (id int, found bool, err error)
	SaveRequestID(ctx context.Context, device string, id int) (err error)
}

// Event ids currently subscribed on a device
type Scenes interface {
	AddScene(ctx context.Context, device string, eventID string) (err error)
	RemoveScene(ctx context.Context, device string, eventID string) (err error)
	Scenes(ctx context.Context, device string) (eventIDs []string, err error)
}

type Store interface {
	RequestIDs
	Scenes
	Close() (err error)
}
