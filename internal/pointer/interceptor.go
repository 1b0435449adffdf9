package pointer

import (
	"fmt"

	"github.com/porthole/porthole/internal/logger"
	"github.com/porthole/porthole/internal/window"
)

// Interceptor owns at most one installed platform tap and forwards its
// events to a Listener. Methods must be called from the scheduling context
// that receives platform callbacks.
type Interceptor struct {
	platform Platform
	registry *Registry
	listener Listener

	installed bool
	enabled   bool
	tap       TapHandle
	token     Token
}

// NewInterceptor creates an interceptor that is not yet installed
func NewInterceptor(platform Platform, registry *Registry, listener Listener) *Interceptor {
	return &Interceptor{
		platform: platform,
		registry: registry,
		listener: listener,
	}
}

// Install registers with the platform for moves and primary-button
// presses and releases. Installing twice is a no-op.
func (i *Interceptor) Install() error {
	if i.installed {
		return nil
	}
	log := logger.WithComponent("pointer")

	token := i.registry.Register(i)
	tap, err := i.platform.Install(MaskAll, token, i.registry.Deliver)
	if err != nil {
		i.registry.Unregister(token)
		log.Error().Err(err).Msg("Failed to install pointer tap")
		return fmt.Errorf("%w: %v", ErrTapUnavailable, err)
	}

	i.token = token
	i.tap = tap
	i.installed = true
	i.enabled = true

	log.Debug().
		Uint64("token", uint64(token)).
		Uint32("tap", uint32(tap)).
		Msg("Pointer tap installed")
	return nil
}

// Teardown removes the tap. It is idempotent and safe to call from inside
// a listener callback.
func (i *Interceptor) Teardown() {
	if !i.installed {
		return
	}
	log := logger.WithComponent("pointer")

	i.installed = false
	i.enabled = false
	i.registry.Unregister(i.token)
	i.platform.Uninstall(i.tap)

	log.Debug().Uint64("token", uint64(i.token)).Msg("Pointer tap removed")
	i.token = 0
	i.tap = 0
}

// SetEnabled pauses or resumes the installed tap without removing it
func (i *Interceptor) SetEnabled(enabled bool) {
	if !i.installed || i.enabled == enabled {
		return
	}
	i.enabled = enabled
	i.platform.SetEnabled(i.tap, enabled)
}

// Installed reports whether a tap is currently installed
func (i *Interceptor) Installed() bool {
	return i.installed
}

// handle applies the selection policy: moves and releases pass through
// and are forwarded, primary-button presses are swallowed.
func (i *Interceptor) handle(kind EventKind, under window.Handle) Verdict {
	if !i.installed || !i.enabled {
		return PassThrough
	}

	switch kind {
	case Moved:
		i.listener.Hover(under)
		return PassThrough
	case PrimaryDown:
		return Suppress
	case PrimaryUp:
		i.listener.Confirm(under)
		return PassThrough
	}
	return PassThrough
}
