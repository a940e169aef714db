package testfixtures

import (
	"context"
	"errors"
	"sync"

	"github.com/example/roombooking/internal/domain"
)

// ErrBackendDown is a ready-made transport failure for scripted responses.
var ErrBackendDown = errors.New("testfixtures: backend unavailable")

// Response is one scripted answer to a List call.
type Response struct {
	Body []byte
	Err  error
}

// Call records one request the fake backend received.
type Call struct {
	Method string
	Kind   domain.Kind
	ID     domain.ID
	Fields map[string]any
	Files  []domain.Upload
}

// Gate holds the next List call of one kind open until released.
type Gate struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

// Entered is closed once the held call has reached the backend.
func (g *Gate) Entered() <-chan struct{} {
	return g.entered
}

// Release lets the held call answer. It is safe to call more than once.
func (g *Gate) Release() {
	g.once.Do(func() { close(g.release) })
}

// FakeBackend is a scriptable stand-in for the booking backend. Each kind
// answers from a queue of scripted responses; the last response repeats
// once the queue is drained. Kinds with no script answer with an empty array.
type FakeBackend struct {
	mu        sync.Mutex
	lists     map[domain.Kind][]Response
	gates     map[domain.Kind][]*Gate
	listCalls map[domain.Kind]int
	calls     []Call
	writeErr  error
	ids       *IDGenerator
}

// NewFakeBackend returns a backend that assigns created entities ids from
// 1000 upwards.
func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		lists:     make(map[domain.Kind][]Response),
		gates:     make(map[domain.Kind][]*Gate),
		listCalls: make(map[domain.Kind]int),
		ids:       NewIDGenerator(1000),
	}
}

// SetList makes every List of kind answer body.
func (b *FakeBackend) SetList(kind domain.Kind, body []byte) {
	b.QueueList(kind, Response{Body: body})
}

// FailList makes every List of kind fail with err.
func (b *FakeBackend) FailList(kind domain.Kind, err error) {
	b.QueueList(kind, Response{Err: err})
}

// QueueList replaces the script of kind with responses, answered in order.
func (b *FakeBackend) QueueList(kind domain.Kind, responses ...Response) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lists[kind] = append([]Response(nil), responses...)
}

// Hold returns a gate that blocks the next List call of kind.
func (b *FakeBackend) Hold(kind domain.Kind) *Gate {
	gate := &Gate{entered: make(chan struct{}), release: make(chan struct{})}
	b.mu.Lock()
	b.gates[kind] = append(b.gates[kind], gate)
	b.mu.Unlock()
	return gate
}

// FailWrites makes every Create, Update and Delete fail with err. A nil err
// restores success.
func (b *FakeBackend) FailWrites(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writeErr = err
}

// ListCalls returns how many List calls kind received.
func (b *FakeBackend) ListCalls(kind domain.Kind) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.listCalls[kind]
}

// Calls returns the recorded write calls in arrival order.
func (b *FakeBackend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call(nil), b.calls...)
}

func (b *FakeBackend) List(ctx context.Context, kind domain.Kind) ([]byte, error) {
	b.mu.Lock()
	b.listCalls[kind]++
	response := Response{Body: []byte(`[]`)}
	if script := b.lists[kind]; len(script) > 0 {
		response = script[0]
		if len(script) > 1 {
			b.lists[kind] = script[1:]
		}
	}
	var gate *Gate
	if pending := b.gates[kind]; len(pending) > 0 {
		gate = pending[0]
		b.gates[kind] = pending[1:]
	}
	b.mu.Unlock()

	if gate != nil {
		close(gate.entered)
		select {
		case <-gate.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return response.Body, response.Err
}

// Create echoes fields back with a freshly assigned id.
func (b *FakeBackend) Create(_ context.Context, kind domain.Kind, fields map[string]any, files []domain.Upload) ([]byte, error) {
	if err := b.record(Call{Method: "create", Kind: kind, Fields: fields, Files: files}); err != nil {
		return nil, err
	}
	record := Record{"id": b.ids.Next()}
	for key, value := range fields {
		if key != "id" {
			record[key] = value
		}
	}
	return Single(record), nil
}

// Update echoes fields back under id.
func (b *FakeBackend) Update(_ context.Context, kind domain.Kind, id domain.ID, fields map[string]any, files []domain.Upload) ([]byte, error) {
	if err := b.record(Call{Method: "update", Kind: kind, ID: id, Fields: fields, Files: files}); err != nil {
		return nil, err
	}
	record := Record{}
	for key, value := range fields {
		record[key] = value
	}
	record["id"] = id
	return Single(record), nil
}

func (b *FakeBackend) Delete(_ context.Context, kind domain.Kind, id domain.ID) error {
	return b.record(Call{Method: "delete", Kind: kind, ID: id})
}

func (b *FakeBackend) record(call Call) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, call)
	return b.writeErr
}
