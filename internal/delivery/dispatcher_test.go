package delivery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/CamDog38/formrelay/internal/types"
)

// fakeChannel is a scriptable delivery channel.
type fakeChannel struct {
	name       string
	configured bool
	err        error
	sends      int
}

func (c *fakeChannel) Name() string     { return c.name }
func (c *fakeChannel) Configured() bool { return c.configured }
func (c *fakeChannel) Send(ctx context.Context, msg *Message) error {
	c.sends++
	return c.err
}

// memLogStore records log writes and enforces the pending-only terminal
// transition the real store implements in SQL.
type memLogStore struct {
	mu       sync.Mutex
	logs     map[types.EmailLogID]*types.EmailLog
	created  int
	terminal int
	failNext bool
}

func newMemLogStore() *memLogStore {
	return &memLogStore{logs: make(map[types.EmailLogID]*types.EmailLog)}
}

func (s *memLogStore) CreateEmailLog(ctx context.Context, log *types.EmailLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext {
		s.failNext = false
		return errors.New("store down")
	}
	copied := *log
	s.logs[log.LogID] = &copied
	s.created++
	return nil
}

func (s *memLogStore) MarkEmailLogSent(ctx context.Context, id types.EmailLogID, channel string) error {
	return s.complete(id, types.EmailLogSent, channel, "")
}

func (s *memLogStore) MarkEmailLogFailed(ctx context.Context, id types.EmailLogID, errMsg string) error {
	return s.complete(id, types.EmailLogFailed, "", errMsg)
}

func (s *memLogStore) complete(id types.EmailLogID, status types.EmailLogStatus, channel, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	log, ok := s.logs[id]
	if !ok || log.Status != types.EmailLogPending {
		return types.ErrLogAlreadyTerminal
	}
	log.Status = status
	log.Channel = channel
	log.Error = errMsg
	now := time.Now().UTC()
	log.CompletedAt = &now
	s.terminal++
	return nil
}

func (s *memLogStore) get(id types.EmailLogID) types.EmailLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.logs[id]
}

func testMessage() *Message {
	return &Message{
		To:      []string{"ann@example.com"},
		Subject: "hi",
		HTML:    "<p>hi</p>",
	}
}

func testRefs() Refs {
	return Refs{
		SubmissionID: types.NewSubmissionID(),
		RuleID:       types.NewRuleID(),
		TemplateID:   types.NewTemplateID(),
	}
}

func TestDispatch_PrimarySuccess(t *testing.T) {
	primary := &fakeChannel{name: "resend", configured: true}
	fallback := &fakeChannel{name: "smtp", configured: true}
	store := newMemLogStore()
	d := NewDispatcher([]Channel{primary, fallback}, store, nil, time.Second, nil)

	res := d.Dispatch(context.Background(), testMessage(), testRefs())

	if !res.Success || res.Channel != "resend" {
		t.Fatalf("result = %+v, expected success via resend", res)
	}
	if fallback.sends != 0 {
		t.Error("fallback attempted after primary success")
	}
	log := store.get(res.LogID)
	if log.Status != types.EmailLogSent || log.Channel != "resend" {
		t.Errorf("log = %+v, expected sent via resend", log)
	}
}

func TestDispatch_FallbackOnPrimaryFailure(t *testing.T) {
	primary := &fakeChannel{name: "resend", configured: true, err: errors.New("api down")}
	fallback := &fakeChannel{name: "smtp", configured: true}
	store := newMemLogStore()
	d := NewDispatcher([]Channel{primary, fallback}, store, nil, time.Second, nil)

	res := d.Dispatch(context.Background(), testMessage(), testRefs())

	if !res.Success || res.Channel != "smtp" {
		t.Fatalf("result = %+v, expected success via smtp fallback", res)
	}
	if primary.sends != 1 || fallback.sends != 1 {
		t.Errorf("sends = %d/%d, expected 1/1", primary.sends, fallback.sends)
	}
	if log := store.get(res.LogID); log.Status != types.EmailLogSent || log.Channel != "smtp" {
		t.Errorf("log = %+v, expected sent via smtp", log)
	}
}

func TestDispatch_UnconfiguredChannelSkipped(t *testing.T) {
	primary := &fakeChannel{name: "resend", configured: false}
	fallback := &fakeChannel{name: "smtp", configured: true}
	store := newMemLogStore()
	d := NewDispatcher([]Channel{primary, fallback}, store, nil, time.Second, nil)

	res := d.Dispatch(context.Background(), testMessage(), testRefs())

	if !res.Success || res.Channel != "smtp" {
		t.Fatalf("result = %+v, expected smtp to carry the send", res)
	}
	if primary.sends != 0 {
		t.Error("unconfigured channel must not be attempted")
	}
}

func TestDispatch_AllChannelsFail(t *testing.T) {
	primary := &fakeChannel{name: "resend", configured: true, err: errors.New("api down")}
	fallback := &fakeChannel{name: "smtp", configured: true, err: errors.New("dial refused")}
	store := newMemLogStore()
	d := NewDispatcher([]Channel{primary, fallback}, store, nil, time.Second, nil)

	res := d.Dispatch(context.Background(), testMessage(), testRefs())

	if res.Success {
		t.Fatal("expected failure result")
	}
	if !errors.Is(res.Err, types.ErrAllChannelsFailed) {
		t.Errorf("err = %v, expected ErrAllChannelsFailed in chain", res.Err)
	}
	log := store.get(res.LogID)
	if log.Status != types.EmailLogFailed || log.Error == "" {
		t.Errorf("log = %+v, expected failed with captured error text", log)
	}
}

func TestDispatch_ExactlyOneTerminalWrite(t *testing.T) {
	primary := &fakeChannel{name: "resend", configured: true}
	store := newMemLogStore()
	d := NewDispatcher([]Channel{primary}, store, nil, time.Second, nil)

	res := d.Dispatch(context.Background(), testMessage(), testRefs())
	if !res.Success {
		t.Fatal("expected success")
	}
	if store.created != 1 || store.terminal != 1 {
		t.Errorf("writes = %d created, %d terminal; expected 1/1", store.created, store.terminal)
	}

	// Second terminal write on the same log must be rejected
	if err := store.MarkEmailLogFailed(context.Background(), res.LogID, "late"); !errors.Is(err, types.ErrLogAlreadyTerminal) {
		t.Errorf("second terminal write = %v, expected ErrLogAlreadyTerminal", err)
	}
	if log := store.get(res.LogID); log.Status != types.EmailLogSent {
		t.Errorf("terminal status mutated to %s", log.Status)
	}
}

func TestDispatch_LogStoreFaultDoesNotBlockDelivery(t *testing.T) {
	primary := &fakeChannel{name: "resend", configured: true}
	store := newMemLogStore()
	store.failNext = true
	d := NewDispatcher([]Channel{primary}, store, nil, time.Second, nil)

	res := d.Dispatch(context.Background(), testMessage(), testRefs())

	if !res.Success {
		t.Fatalf("result = %+v, delivery must proceed without a log record", res)
	}
	if primary.sends != 1 {
		t.Error("channel not attempted after log-store fault")
	}
	if store.terminal != 0 {
		t.Error("terminal write recorded for a log that was never created")
	}
}

func TestDispatch_NoRecipient(t *testing.T) {
	primary := &fakeChannel{name: "resend", configured: true}
	store := newMemLogStore()
	d := NewDispatcher([]Channel{primary}, store, nil, time.Second, nil)

	msg := testMessage()
	msg.To = nil
	res := d.Dispatch(context.Background(), msg, testRefs())

	if res.Success {
		t.Fatal("expected failure for empty recipient list")
	}
	if !errors.Is(res.Err, types.ErrNoRecipient) {
		t.Errorf("err = %v, expected ErrNoRecipient", res.Err)
	}
	if primary.sends != 0 {
		t.Error("no channel should be attempted without a recipient")
	}
}
