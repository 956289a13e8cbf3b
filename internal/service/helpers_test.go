package service

import (
	"context"
	"sync"
	"time"

	"github.com/spec-kit/omnichannel-support/internal/domain"
	"github.com/spec-kit/omnichannel-support/internal/events"
	"github.com/spec-kit/omnichannel-support/internal/repository"
	"github.com/spec-kit/omnichannel-support/internal/worker"
)

// inlineJobs runs side-effect jobs synchronously so tests can observe them.
type inlineJobs struct {
	mu     sync.Mutex
	failed []error
}

func (j *inlineJobs) Submit(job worker.Job) bool {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := job.Run(ctx); err != nil {
		j.mu.Lock()
		j.failed = append(j.failed, err)
		j.mu.Unlock()
	}
	return true
}

func (j *inlineJobs) failures() []error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]error(nil), j.failed...)
}

type sentMessage struct {
	channel   domain.Channel
	recipient string
	body      string
}

type fakeDeliverer struct {
	mu   sync.Mutex
	ok   bool
	sent []sentMessage
}

func (d *fakeDeliverer) Send(_ context.Context, channel domain.Channel, recipient, body string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, sentMessage{channel: channel, recipient: recipient, body: body})
	return d.ok
}

func (d *fakeDeliverer) messages() []sentMessage {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]sentMessage(nil), d.sent...)
}

type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (l *eventLog) handle(_ context.Context, event events.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	return nil
}

func (l *eventLog) types() []events.EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]events.EventType, 0, len(l.events))
	for _, e := range l.events {
		out = append(out, e.Type)
	}
	return out
}

func (l *eventLog) count(eventType events.EventType) int {
	n := 0
	for _, t := range l.types() {
		if t == eventType {
			n++
		}
	}
	return n
}

type fixture struct {
	tickets   *repository.MemoryTicketRepository
	customers *repository.MemoryCustomerRepository
	jobs      *inlineJobs
	deliverer *fakeDeliverer
	events    *eventLog
	customer  *CustomerService
	service   *TicketService
}

func newFixture() *fixture {
	f := &fixture{
		tickets:   repository.NewMemoryTicketRepository(),
		customers: repository.NewMemoryCustomerRepository(),
		jobs:      &inlineJobs{},
		deliverer: &fakeDeliverer{ok: true},
		events:    &eventLog{},
	}
	dispatcher := events.NewInMemoryDispatcher()
	for _, eventType := range events.AllEventTypes {
		dispatcher.Subscribe(eventType, f.events.handle)
	}
	f.customer = NewCustomerService(f.customers, f.tickets)
	f.service = NewTicketService(TicketDependencies{
		TicketRepo: f.tickets,
		Customers:  f.customer,
		Dispatcher: dispatcher,
		Jobs:       f.jobs,
		Deliverer:  f.deliverer,
	})
	return f
}

func createInputFor(channel domain.Channel, identity string) CreateTicketInput {
	return CreateTicketInput{
		Source:         domain.Source{Channel: channel, OriginPlatformID: identity},
		Customer:       CustomerInput{ChannelIdentity: identity},
		Subject:        "Order never arrived",
		InitialMessage: "Where is my package?",
	}
}
