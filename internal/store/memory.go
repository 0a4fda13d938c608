package store

import (
	"context"
	"slices"
	"sync"
)

// In-process store, state is lost on exit
type Memory struct {
	mutex      sync.Mutex
	requestIDs map[string]int
	scenes     map[string][]string
}

func NewMemory() (mem *Memory) {
	mem = &Memory{
		requestIDs: make(map[string]int),
		scenes:     make(map[string][]string),
	}
	return
}

func (mem *Memory) LoadRequestID(ctx context.Context, device string) (id int, found bool, err error) {
	mem.mutex.Lock()
	defer mem.mutex.Unlock()
	id, found = mem.requestIDs[device]
	return
}

func (mem *Memory) SaveRequestID(ctx context.Context, device string, id int) (err error) {
	mem.mutex.Lock()
	defer mem.mutex.Unlock()
	mem.requestIDs[device] = id
	return
}

func (mem *Memory) AddScene(ctx context.Context, device string, eventID string) (err error) {
	mem.mutex.Lock()
	defer mem.mutex.Unlock()
	if !slices.Contains(mem.scenes[device], eventID) {
		mem.scenes[device] = append(mem.scenes[device], eventID)
	}
	return
}

func (mem *Memory) RemoveScene(ctx context.Context, device string, eventID string) (err error) {
	mem.mutex.Lock()
	defer mem.mutex.Unlock()
	mem.scenes[device] = slices.DeleteFunc(mem.scenes[device], func(id string) bool { return id == eventID })
	if len(mem.scenes[device]) == 0 {
		delete(mem.scenes, device)
	}
	return
}

func (mem *Memory) Scenes(ctx context.Context, device string) (eventIDs []string, err error) {
	mem.mutex.Lock()
	defer mem.mutex.Unlock()
	eventIDs = slices.Clone(mem.scenes[device])
	return
}

func (mem *Memory) Close() (err error) {
	return
}
