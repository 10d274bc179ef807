package profile

import (
	"fmt"
	"sync"

	"github.com/BranchIntl/jobforge/errors"
)

// Registry is an ordered, thread-safe profile catalog
type Registry struct {
	mu       sync.RWMutex
	profiles []Profile
	index    map[string]int
}

// NewRegistry creates a registry from the given profiles
func NewRegistry(profiles ...Profile) (*Registry, error) {
	r := &Registry{
		index: make(map[string]int),
	}
	for _, p := range profiles {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register appends a profile to the catalog
func (r *Registry) Register(p Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.index[p.Name]; exists {
		return fmt.Errorf("%w: %s", errors.ErrDuplicateProfile, p.Name)
	}

	r.index[p.Name] = len(r.profiles)
	r.profiles = append(r.profiles, p)
	return nil
}

// Get retrieves a profile by name
func (r *Registry) Get(name string) (Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[name]
	if !ok {
		return Profile{}, false
	}
	return r.profiles[i], true
}

// List returns all profiles in registration order
func (r *Registry) List() []Profile {
	return r.filter(func(Profile) bool { return true })
}

// Generated returns the profiles driven by the producer engine
func (r *Registry) Generated() []Profile {
	return r.filter(Profile.Generated)
}

// Periodic returns the cron-scheduled profiles
func (r *Registry) Periodic() []Profile {
	return r.filter(Profile.Periodic)
}

// Queues returns the distinct queue names in first-seen order
func (r *Registry) Queues() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	queues := make([]string, 0, len(r.profiles))
	for _, p := range r.profiles {
		if !seen[p.Queue] {
			seen[p.Queue] = true
			queues = append(queues, p.Queue)
		}
	}
	return queues
}

func (r *Registry) filter(keep func(Profile) bool) []Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}
