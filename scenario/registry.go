// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package scenario

import (
	"fmt"
	"sort"

	"github.com/antzucaro/matchr"
	"github.com/grailbio/base/errors"
)

// maxSuggestDistance bounds the edit distance of a "did you mean" hint.
const maxSuggestDistance = 6

// Registry holds scenarios by name. Names and tags are unique, so no two
// scenarios share a job store or output store.
type Registry struct {
	byName map[string]Scenario
	tags   map[string]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: map[string]Scenario{}, tags: map[string]string{}}
}

// Register validates s and adds it.
func (r *Registry) Register(s Scenario) error {
	s = s.withDefaults()
	if err := s.Validate(); err != nil {
		return err
	}
	if _, ok := r.byName[s.Name]; ok {
		return errors.E(errors.Invalid, fmt.Sprintf("scenario %q registered twice", s.Name))
	}
	tag, _ := s.Tag()
	if other, ok := r.tags[tag]; ok {
		return errors.E(errors.Invalid, fmt.Sprintf("scenarios %q and %q share tag %s", other, s.Name, tag))
	}
	r.byName[s.Name] = s
	r.tags[tag] = s.Name
	return nil
}

// Lookup returns the scenario called name. An unknown name yields a
// NotExist error that suggests the closest registered name.
func (r *Registry) Lookup(name string) (Scenario, error) {
	if s, ok := r.byName[name]; ok {
		return s, nil
	}
	msg := fmt.Sprintf("no scenario %q", name)
	if near := r.nearest(name); near != "" {
		msg += fmt.Sprintf("; did you mean %q?", near)
	}
	return Scenario{}, errors.E(errors.NotExist, msg)
}

func (r *Registry) nearest(name string) string {
	best, bestDist := "", maxSuggestDistance+1
	for _, s := range r.All() {
		if d := matchr.Levenshtein(name, s.Name); d < bestDist {
			best, bestDist = s.Name, d
		}
	}
	return best
}

// Len returns the number of registered scenarios.
func (r *Registry) Len() int { return len(r.byName) }

// All returns every scenario sorted by name.
func (r *Registry) All() []Scenario {
	all := make([]Scenario, 0, len(r.byName))
	for _, s := range r.byName {
		all = append(all, s)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all
}

// Select returns the named scenarios in the given order, or, with no names,
// every scenario that is not skipped.
func (r *Registry) Select(names ...string) ([]Scenario, error) {
	if len(names) == 0 {
		var out []Scenario
		for _, s := range r.All() {
			if !s.Skip {
				out = append(out, s)
			}
		}
		return out, nil
	}
	out := make([]Scenario, 0, len(names))
	for _, name := range names {
		s, err := r.Lookup(name)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
