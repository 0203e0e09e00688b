package main

import (
	"github.com/fleetlens/maprt/internal/dispatcher"
	"github.com/fleetlens/maprt/internal/handlers"
)

// registerCommands binds every host command to the handler service. Surface
// lifecycle and status commands answer synchronously; data-plane commands
// run buffered so a burst of updates never stalls the host connection.
func registerCommands(d *dispatcher.Dispatcher, svc *handlers.Service) {
	d.Register(handlers.CmdAttach, func(e dispatcher.Event) (any, error) {
		return svc.HandleAttach(e.Args)
	}, dispatcher.Logged())

	d.Register(handlers.CmdDetach, func(e dispatcher.Event) (any, error) {
		return svc.HandleDetach(e.Args)
	}, dispatcher.Logged())

	d.Register(handlers.CmdResize, func(e dispatcher.Event) (any, error) {
		return nil, svc.HandleResize(e.Args)
	}, dispatcher.Buffered(16))

	d.Register(handlers.CmdUpdate, func(e dispatcher.Event) (any, error) {
		return nil, svc.HandleUpdate(e.Raw)
	}, dispatcher.Buffered(64))

	d.Register(handlers.CmdLayer, func(e dispatcher.Event) (any, error) {
		return nil, svc.HandleLayer(e.Args)
	})

	d.Register(handlers.CmdMode, func(e dispatcher.Event) (any, error) {
		return nil, svc.HandleMode(e.Args)
	}, dispatcher.Logged())

	d.Register(handlers.CmdDemoStart, func(e dispatcher.Event) (any, error) {
		return nil, svc.HandleDemoStart(e.Raw)
	}, dispatcher.Logged())

	d.Register(handlers.CmdDemoStop, func(e dispatcher.Event) (any, error) {
		svc.HandleDemoStop()
		return nil, nil
	}, dispatcher.Logged())

	d.Register(handlers.CmdStatus, func(e dispatcher.Event) (any, error) {
		return svc.HandleStatus()
	})

	d.Register(handlers.CmdMetric, func(e dispatcher.Event) (any, error) {
		return nil, svc.HandleMetric(e.Args)
	}, dispatcher.Buffered(128))
}
