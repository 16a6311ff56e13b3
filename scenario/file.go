// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package scenario

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"gopkg.in/yaml.v3"
)

// scenarioFile is the document layout of a scenario file:
//
//	scenarios:
//	  - name: test_sim_mhc_cactus
//	    kind: mapeval
//	    region: MHC
//	    ...
type scenarioFile struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

// ParseScenarios decodes a scenario document. Unknown fields are errors.
// Defaults are applied and every scenario is validated.
func ParseScenarios(data []byte) ([]Scenario, error) {
	var doc scenarioFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil && err != io.EOF {
		return nil, errors.E(errors.Invalid, "decode scenarios", err)
	}
	out := make([]Scenario, len(doc.Scenarios))
	for i, s := range doc.Scenarios {
		s = s.withDefaults()
		if err := s.Validate(); err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// LoadFile reads scenarios from the YAML file at path (local, s3:// or any
// other path the file package supports).
func LoadFile(ctx context.Context, path string) ([]Scenario, error) {
	data, err := file.ReadFile(ctx, path)
	if err != nil {
		return nil, errors.E(fmt.Sprintf("read scenarios %s", path), err)
	}
	scenarios, err := ParseScenarios(data)
	if err != nil {
		return nil, errors.E(fmt.Sprintf("load %s", path), err)
	}
	return scenarios, nil
}

// RegisterFile adds the scenarios of the file at path to r.
func (r *Registry) RegisterFile(ctx context.Context, path string) error {
	scenarios, err := LoadFile(ctx, path)
	if err != nil {
		return err
	}
	for _, s := range scenarios {
		if err := r.Register(s); err != nil {
			return errors.E(fmt.Sprintf("register %s", path), err)
		}
	}
	return nil
}
