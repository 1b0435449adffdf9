package pointer

import (
	"errors"
	"testing"

	"github.com/porthole/porthole/internal/window"
)

type fakePlatform struct {
	failInstall bool
	next        TapHandle
	installed   map[TapHandle]Token
	deliver     DeliverFunc
	enabled     map[TapHandle]bool
	uninstalls  int
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		installed: make(map[TapHandle]Token),
		enabled:   make(map[TapHandle]bool),
	}
}

func (p *fakePlatform) Install(mask Mask, token Token, deliver DeliverFunc) (TapHandle, error) {
	if p.failInstall {
		return 0, errors.New("permission denied")
	}
	p.next++
	p.installed[p.next] = token
	p.enabled[p.next] = true
	p.deliver = deliver
	return p.next, nil
}

func (p *fakePlatform) SetEnabled(tap TapHandle, enabled bool) {
	p.enabled[tap] = enabled
}

func (p *fakePlatform) Uninstall(tap TapHandle) {
	if _, ok := p.installed[tap]; ok {
		p.uninstalls++
	}
	delete(p.installed, tap)
}

// emit simulates the platform reporting an event to every installed tap
func (p *fakePlatform) emit(kind EventKind, under window.Handle) []Verdict {
	var verdicts []Verdict
	for _, token := range p.installed {
		verdicts = append(verdicts, p.deliver(token, kind, under))
	}
	return verdicts
}

type recordingListener struct {
	hovers    []window.Handle
	confirms  []window.Handle
	onConfirm func()
}

func (l *recordingListener) Hover(h window.Handle) { l.hovers = append(l.hovers, h) }

func (l *recordingListener) Confirm(h window.Handle) {
	l.confirms = append(l.confirms, h)
	if l.onConfirm != nil {
		l.onConfirm()
	}
}

func TestInstallFailureReportsErrTapUnavailable(t *testing.T) {
	platform := newFakePlatform()
	platform.failInstall = true
	registry := NewRegistry()
	i := NewInterceptor(platform, registry, &recordingListener{})

	err := i.Install()
	if !errors.Is(err, ErrTapUnavailable) {
		t.Fatalf("Install() = %v, want ErrTapUnavailable", err)
	}
	if i.Installed() {
		t.Fatal("interceptor must not report installed after failure")
	}
	if registry.Len() != 0 {
		t.Fatal("failed install must not leave a registry entry")
	}
}

func TestInstallIsIdempotent(t *testing.T) {
	platform := newFakePlatform()
	i := NewInterceptor(platform, NewRegistry(), &recordingListener{})

	if err := i.Install(); err != nil {
		t.Fatal(err)
	}
	if err := i.Install(); err != nil {
		t.Fatal(err)
	}
	if len(platform.installed) != 1 {
		t.Fatalf("installed taps = %d, want 1", len(platform.installed))
	}
}

func TestEventPolicy(t *testing.T) {
	platform := newFakePlatform()
	listener := &recordingListener{}
	i := NewInterceptor(platform, NewRegistry(), listener)
	if err := i.Install(); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		kind EventKind
		want Verdict
	}{
		{Moved, PassThrough},
		{PrimaryDown, Suppress},
		{PrimaryUp, PassThrough},
	}
	for _, tt := range tests {
		got := platform.emit(tt.kind, 42)
		if len(got) != 1 || got[0] != tt.want {
			t.Errorf("%v verdict = %v, want %v", tt.kind, got, tt.want)
		}
	}

	if len(listener.hovers) != 1 || listener.hovers[0] != 42 {
		t.Fatalf("hovers = %v", listener.hovers)
	}
	if len(listener.confirms) != 1 || listener.confirms[0] != 42 {
		t.Fatalf("confirms = %v", listener.confirms)
	}
}

func TestTeardownIsIdempotent(t *testing.T) {
	platform := newFakePlatform()
	registry := NewRegistry()
	i := NewInterceptor(platform, registry, &recordingListener{})

	i.Teardown()
	if platform.uninstalls != 0 {
		t.Fatal("teardown without install must be a no-op")
	}

	if err := i.Install(); err != nil {
		t.Fatal(err)
	}
	i.Teardown()
	i.Teardown()

	if platform.uninstalls != 1 {
		t.Fatalf("uninstalls = %d, want 1", platform.uninstalls)
	}
	if registry.Len() != 0 {
		t.Fatal("registry entry should be removed")
	}
}

func TestTeardownFromInsideCallback(t *testing.T) {
	platform := newFakePlatform()
	listener := &recordingListener{}
	i := NewInterceptor(platform, NewRegistry(), listener)
	listener.onConfirm = i.Teardown

	if err := i.Install(); err != nil {
		t.Fatal(err)
	}
	token := platform.installed[1]
	deliver := platform.deliver

	if v := deliver(token, PrimaryUp, 7); v != PassThrough {
		t.Fatalf("release verdict = %v", v)
	}
	if i.Installed() {
		t.Fatal("interceptor should be torn down")
	}

	// A late event for the stale token is ignored.
	if v := deliver(token, PrimaryDown, 7); v != PassThrough {
		t.Fatalf("stale token verdict = %v, want pass-through", v)
	}
	if len(listener.confirms) != 1 {
		t.Fatalf("confirms = %d, want 1", len(listener.confirms))
	}
}

func TestDisabledTapPassesEverything(t *testing.T) {
	platform := newFakePlatform()
	listener := &recordingListener{}
	i := NewInterceptor(platform, NewRegistry(), listener)
	if err := i.Install(); err != nil {
		t.Fatal(err)
	}

	i.SetEnabled(false)
	if platform.enabled[1] {
		t.Fatal("platform tap should be disabled")
	}
	if got := platform.emit(PrimaryDown, 1); got[0] != PassThrough {
		t.Fatalf("disabled tap verdict = %v", got[0])
	}
	if len(listener.hovers)+len(listener.confirms) != 0 {
		t.Fatal("disabled tap must not forward events")
	}

	i.SetEnabled(true)
	if got := platform.emit(PrimaryDown, 1); got[0] != Suppress {
		t.Fatalf("re-enabled tap verdict = %v", got[0])
	}
}

func TestRegistryTokensAreUnique(t *testing.T) {
	r := NewRegistry()
	a := r.Register(&Interceptor{})
	b := r.Register(&Interceptor{})
	if a == b {
		t.Fatal("tokens must differ")
	}
	r.Unregister(a)
	c := r.Register(&Interceptor{})
	if c == a {
		t.Fatal("tokens must not be reused")
	}
	if r.Deliver(a, PrimaryDown, 1) != PassThrough {
		t.Fatal("unknown token must pass through")
	}
}

func TestMaskHas(t *testing.T) {
	if !MaskAll.Has(Moved) || !MaskAll.Has(PrimaryDown) || !MaskAll.Has(PrimaryUp) {
		t.Fatal("MaskAll should include every kind")
	}
	if MaskMoved.Has(PrimaryUp) {
		t.Fatal("MaskMoved should not include PrimaryUp")
	}
}
