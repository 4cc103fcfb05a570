// pattern: Imperative Shell

package runner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"grove/internal/events"
	"grove/internal/logging"
)

// Run is the listable record of a supervised command.
type Run struct {
	ID        string    `json:"id"`
	Project   string    `json:"project"`
	Worktree  string    `json:"worktree"`
	Command   []string  `json:"command"`
	StartedAt time.Time `json:"started_at"`
	Running   bool      `json:"running"`
}

type supervised struct {
	run Run
	sup *Supervisor
}

// Manager tracks active runs by id. Runs are removed from the registry once
// their supervisor finishes, so List only ever shows live or just-exiting
// runs; history lives in the log.
type Manager struct {
	log    logging.LoggerProvider
	broker *events.Broker

	mu   sync.Mutex
	runs map[string]*supervised
}

// NewManager creates an empty run registry.
func NewManager(log logging.LoggerProvider, broker *events.Broker) *Manager {
	return &Manager{
		log:    log,
		broker: broker,
		runs:   make(map[string]*supervised),
	}
}

// Start launches the command described by spec and registers it under a
// fresh run id. The run is unregistered automatically when it finishes.
func (m *Manager) Start(ctx context.Context, spec Spec) (Run, error) {
	if len(spec.Command) == 0 {
		return Run{}, errors.New("runner: empty command")
	}

	id := uuid.NewString()
	sup := NewSupervisor(spec, m.log.For("runner."+spec.Worktree))
	run := Run{
		ID:        id,
		Project:   spec.Project,
		Worktree:  spec.Worktree,
		Command:   spec.Command,
		StartedAt: time.Now(),
		Running:   true,
	}

	m.mu.Lock()
	m.runs[id] = &supervised{run: run, sup: sup}
	m.mu.Unlock()

	if err := sup.Start(ctx); err != nil {
		m.mu.Lock()
		delete(m.runs, id)
		m.mu.Unlock()
		return Run{}, err
	}

	m.publish(events.RunStarted, spec.Project, spec.Worktree)

	go func() {
		<-sup.Done()
		m.mu.Lock()
		delete(m.runs, id)
		m.mu.Unlock()
		m.publish(events.RunStopped, spec.Project, spec.Worktree)
	}()

	return run, nil
}

// Stop terminates the run with the given id and blocks until its process
// has exited.
func (m *Manager) Stop(id string) error {
	m.mu.Lock()
	s, ok := m.runs[id]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("runner: no run %s", id)
	}
	return s.sup.Stop()
}

// List returns the registered runs, oldest first. An empty project returns
// runs across all projects.
func (m *Manager) List(project string) []Run {
	m.mu.Lock()
	out := make([]Run, 0, len(m.runs))
	for _, s := range m.runs {
		if project != "" && s.run.Project != project {
			continue
		}
		r := s.run
		r.Running = s.sup.Running()
		out = append(out, r)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// StopAll terminates every registered run. Used at daemon shutdown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	sups := make([]*Supervisor, 0, len(m.runs))
	for _, s := range m.runs {
		sups = append(sups, s.sup)
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, sup := range sups {
		wg.Add(1)
		go func(sup *Supervisor) {
			defer wg.Done()
			_ = sup.Stop()
		}(sup)
	}
	wg.Wait()
}

func (m *Manager) publish(typ events.Type, project, worktree string) {
	if m.broker == nil {
		return
	}
	m.broker.Publish(events.Event{Type: typ, Project: project, Name: worktree})
}
