package helpers

import (
	"errors"
	"sync"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/intakebot/core/outbound"
)

// stubContext implements the slice of tele.Context that BuildContext touches.
type stubContext struct {
	tele.Context
	values map[string]any
}

func newStubContext() *stubContext {
	return &stubContext{values: make(map[string]any)}
}

func (s *stubContext) Update() tele.Update { return tele.Update{ID: 1} }
func (s *stubContext) Sender() *tele.User  { return &tele.User{ID: 7} }
func (s *stubContext) Chat() *tele.Chat    { return &tele.Chat{ID: 7} }
func (s *stubContext) Get(k string) any    { return s.values[k] }
func (s *stubContext) Set(k string, v any) { s.values[k] = v }

func TestSendOrderedPreservesOrder(t *testing.T) {
	d := outbound.NewDispatcher(outbound.Options{QueueSize: 8, Workers: 4})
	defer d.Close()
	SetDispatcher(d)
	defer SetDispatcher(nil)

	var mu sync.Mutex
	var got []string
	record := func(name string, delay time.Duration) func() error {
		return func() error {
			time.Sleep(delay)
			mu.Lock()
			got = append(got, name)
			mu.Unlock()
			return nil
		}
	}

	// The first message is slow; with one job per message a second worker
	// would deliver the hint before the confirmation.
	err := SendOrdered(newStubContext(),
		record("confirmation", 30*time.Millisecond),
		record("extra_info_hint", 0),
	)
	if err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("sends did not complete")
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if got[0] != "confirmation" || got[1] != "extra_info_hint" {
		t.Fatalf("delivery order = %v", got)
	}
}

func TestSendOrderedInlineWithoutDispatcher(t *testing.T) {
	SetDispatcher(nil)

	var got []string
	boom := errors.New("send failed")
	err := SendOrdered(newStubContext(),
		func() error { got = append(got, "first"); return boom },
		func() error { got = append(got, "second"); return nil },
	)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want send failure", err)
	}
	if len(got) != 1 || got[0] != "first" {
		t.Fatalf("sends = %v, want stop after first failure", got)
	}
}
