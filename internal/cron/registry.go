package cron

import (
	"context"
	"strings"
)

// Job is one unit of scheduled work. Name doubles as the metrics label.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry keeps jobs in run order. A second job with an already used name
// replaces the first in place so a cycle never runs the same work twice.
type Registry struct {
	order []string
	byKey map[string]Job
}

func NewRegistry(jobs ...Job) *Registry {
	r := &Registry{byKey: make(map[string]Job, len(jobs))}
	for _, job := range jobs {
		r.Register(job)
	}
	return r
}

// Register ignores nil jobs and jobs with a blank name.
func (r *Registry) Register(job Job) {
	if job == nil {
		return
	}
	key := strings.TrimSpace(job.Name())
	if key == "" {
		return
	}
	if _, seen := r.byKey[key]; !seen {
		r.order = append(r.order, key)
	}
	r.byKey[key] = job
}

// Lookup finds a job by name.
func (r *Registry) Lookup(name string) (Job, bool) {
	job, ok := r.byKey[strings.TrimSpace(name)]
	return job, ok
}

// Jobs returns a fresh slice in registration order.
func (r *Registry) Jobs() []Job {
	out := make([]Job, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.byKey[key])
	}
	return out
}
