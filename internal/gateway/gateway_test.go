package gateway

import (
	"errors"
	"sync"
	"testing"
)

type fakeSender struct {
	mu   sync.Mutex
	got  []any
	fail bool
}

func (f *fakeSender) Send(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("send fail")
	}
	f.got = append(f.got, v)
	return nil
}

func (f *fakeSender) received() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.got)
}

func TestPublishReachesMembersOnly(t *testing.T) {
	h := NewHub(testLogger())
	member, outsider := &fakeSender{}, &fakeSender{}
	h.Join("g1", member)
	h.Join("g2", outsider)

	h.Publish("g1", "hello")

	if member.received() != 1 {
		t.Fatalf("member got %d messages", member.received())
	}
	if outsider.received() != 0 {
		t.Fatal("outsider received a group message")
	}
}

func TestPublishToEmptyGroupIsNoOp(t *testing.T) {
	h := NewHub(testLogger())
	h.Publish("nobody", "hello") // no queuing for absent members
	if h.MemberCount("nobody") != 0 {
		t.Fatal("phantom group created")
	}
}

func TestPublishSurvivesSendFailure(t *testing.T) {
	h := NewHub(testLogger())
	broken, healthy := &fakeSender{fail: true}, &fakeSender{}
	h.Join("g", broken)
	h.Join("g", healthy)

	h.Publish("g", "msg")

	if healthy.received() != 1 {
		t.Fatal("healthy member did not receive after peer failure")
	}
}

func TestLeaveAll(t *testing.T) {
	h := NewHub(testLogger())
	s := &fakeSender{}
	h.Join("a", s)
	h.Join("b", s)

	h.LeaveAll(s)
	h.Publish("a", "x")
	h.Publish("b", "y")

	if s.received() != 0 {
		t.Fatal("departed sender still receiving")
	}
	if h.MemberCount("a") != 0 || h.MemberCount("b") != 0 {
		t.Fatal("empty groups not reaped")
	}
}

func TestLeaveSingleGroup(t *testing.T) {
	h := NewHub(testLogger())
	s := &fakeSender{}
	h.Join("a", s)
	h.Join("b", s)

	h.Leave("a", s)
	h.Publish("a", "x")
	h.Publish("b", "y")

	if s.received() != 1 {
		t.Fatalf("expected only group b delivery, got %d", s.received())
	}
}
