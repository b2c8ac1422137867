package plugin

import (
	"context"
	"log"
	"sort"
	"sync"
)

// Result is one plugin's answer to a dispatched request.
type Result struct {
	Plugin   string
	Response *Response
	Err      error
}

// Dispatcher sends events to every subscribed plugin.
type Dispatcher struct {
	manager  *Manager
	executor *Executor
}

// NewDispatcher pairs a manager with an executor.
func NewDispatcher(manager *Manager, executor *Executor) *Dispatcher {
	return &Dispatcher{manager: manager, executor: executor}
}

// Dispatch runs all plugins subscribed to req.Event concurrently and waits
// for them. Results are sorted by plugin name. Failures are logged and
// returned, never fatal.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) []Result {
	var targets []*Plugin
	for _, p := range d.manager.List() {
		if p.Manifest.Subscribes(req.Event) {
			targets = append(targets, p)
		}
	}
	if len(targets) == 0 {
		return nil
	}

	results := make([]Result, len(targets))
	var wg sync.WaitGroup
	for i, p := range targets {
		wg.Add(1)
		go func(i int, p *Plugin) {
			defer wg.Done()
			resp, err := d.executor.Execute(ctx, p, req)
			results[i] = Result{Plugin: p.Manifest.Name, Response: resp, Err: err}
			switch {
			case err != nil:
				log.Printf("[PLUGIN] %s %s: %v", p.Manifest.Name, req.Event, err)
			case !resp.Success:
				log.Printf("[PLUGIN] %s %s: %s", p.Manifest.Name, req.Event, resp.Error)
			}
		}(i, p)
	}
	wg.Wait()

	sort.Slice(results, func(a, b int) bool { return results[a].Plugin < results[b].Plugin })
	return results
}

// Manager returns the plugin manager.
func (d *Dispatcher) Manager() *Manager {
	return d.manager
}
