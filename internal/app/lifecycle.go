package app

import (
	"os"
	"syscall"

	"github.com/porthole/porthole/internal/logger"
	"github.com/porthole/porthole/internal/window"
)

// Controller is what the lifecycle hooks drive
type Controller interface {
	BeginSelection() error
	EndSelection()
	StopCapture()
	CaptureWindow(h window.Handle) error
}

// Lifecycle maps process events onto the controller. Every hook must run
// on the run loop.
type Lifecycle struct {
	ctrl   Controller
	target window.Handle
}

// NewLifecycle creates the hooks. A non-zero target skips the pick and
// captures that window at launch.
func NewLifecycle(ctrl Controller, target window.Handle) *Lifecycle {
	return &Lifecycle{ctrl: ctrl, target: target}
}

// OnLaunch starts picking, or captures the preset target
func (l *Lifecycle) OnLaunch() error {
	if l.target != 0 {
		return l.ctrl.CaptureWindow(l.target)
	}
	return l.ctrl.BeginSelection()
}

// OnBackground leaves selection mode. A running capture continues.
func (l *Lifecycle) OnBackground() {
	l.ctrl.EndSelection()
}

// OnReselect enters selection mode again while the current capture keeps
// running
func (l *Lifecycle) OnReselect() error {
	return l.ctrl.BeginSelection()
}

// OnTerminate removes the pointer tap and stops capturing
func (l *Lifecycle) OnTerminate() {
	logger.WithComponent("app").Debug().Msg("Terminating")
	l.ctrl.EndSelection()
	l.ctrl.StopCapture()
}

// signalAction is what a signal asks the app to do
type signalAction int

const (
	actionNone signalAction = iota
	actionTerminate
	actionReselect
	actionBackground
)

// actionFor maps a process signal to an action
func actionFor(sig os.Signal) signalAction {
	switch sig {
	case os.Interrupt, syscall.SIGTERM:
		return actionTerminate
	case syscall.SIGUSR1:
		return actionReselect
	case syscall.SIGUSR2:
		return actionBackground
	}
	return actionNone
}
