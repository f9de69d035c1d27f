// Package project loads the ProjectDescriptor/EnvDescriptor registry from a
// YAML file rather than a database — spec.md section 1 puts database
// migrations and seeding out of scope, so this repo's analogue of the
// original's app/projects + alembic add_projects.py migration is a
// config-file-backed registry instead, per SPEC_FULL.md section 9.
package project

import (
	"fmt"
	"os"
	"sync"

	apperrors "logforensics/internal/errors"
	"logforensics/pkg/types"

	"gopkg.in/yaml.v2"
)

// registryFile is the on-disk shape: a flat list of project descriptors,
// keyed by Code for lookup once loaded.
type registryFile struct {
	Projects []types.ProjectDescriptor `yaml:"projects"`
}

// Registry resolves (project, env) to a ProjectDescriptor/EnvDescriptor
// pair. It is loaded once at startup; reload re-reads the file wholesale
// rather than diffing, mirroring the teacher's config.LoadConfig posture of
// "fail fast, reload wholesale" for small registries.
type Registry struct {
	mu       sync.RWMutex
	projects map[string]types.ProjectDescriptor
}

// Load reads path and returns a populated Registry. A missing file is not
// an error at this layer — spec.md doesn't describe a default project set,
// so an empty registry with zero entries is returned, and every lookup
// simply misses.
func Load(path string) (*Registry, error) {
	r := &Registry{projects: make(map[string]types.ProjectDescriptor)}
	if path == "" {
		return r, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, apperrors.IOError("Load", err.Error()).Wrap(err)
	}

	var f registryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, apperrors.InputError("Load", "invalid project registry YAML: "+err.Error()).Wrap(err)
	}

	for _, p := range f.Projects {
		r.projects[p.Code] = p
	}
	return r, nil
}

// Reload re-reads path, replacing the registry's contents atomically.
func (r *Registry) Reload(path string) error {
	next, err := Load(path)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.projects = next.projects
	r.mu.Unlock()
	return nil
}

// Get looks up a project by code.
func (r *Registry) Get(code string) (types.ProjectDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.projects[code]
	return p, ok
}

// ResolveEnv looks up a project and one of its environments in one call,
// the shape the orchestrator needs at S1 to pick the acquisition path.
func (r *Registry) ResolveEnv(projectCode, envCode string) (types.ProjectDescriptor, types.EnvDescriptor, error) {
	project, ok := r.Get(projectCode)
	if !ok {
		return types.ProjectDescriptor{}, types.EnvDescriptor{}, apperrors.InputError("ResolveEnv", fmt.Sprintf("unknown project %q", projectCode))
	}
	env, ok := project.Env(envCode)
	if !ok {
		return types.ProjectDescriptor{}, types.EnvDescriptor{}, apperrors.InputError("ResolveEnv", fmt.Sprintf("unknown environment %q for project %q", envCode, projectCode))
	}
	return project, env, nil
}

// All returns every registered project, for admin/debug listing.
func (r *Registry) All() []types.ProjectDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.ProjectDescriptor, 0, len(r.projects))
	for _, p := range r.projects {
		out = append(out, p)
	}
	return out
}
