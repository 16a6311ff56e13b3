// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package scenario

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/vgci/artifact"
	"github.com/grailbio/vgci/pipeline"
	"github.com/grailbio/vgci/verify"
	"gopkg.in/yaml.v3"
)

// Baseline access modes.
const (
	// AccessPublic reads s3:// baselines and inputs over public HTTPS.
	AccessPublic = "public"
	// AccessSDK reads them with the AWS SDK and the ambient credentials.
	AccessSDK = "sdk"
)

// Config holds the harness settings shared by every scenario.
type Config struct {
	// WorkDir is the parent of the per-scenario work directories. Empty
	// means a fresh temporary directory per scenario.
	WorkDir string `yaml:"workdir"`
	// Baseline is the root of the accepted results.
	Baseline string `yaml:"baseline"`
	// InputStore holds graphs, indexes, reads and truth sets.
	InputStore string `yaml:"input_store"`
	Cores      int    `yaml:"cores"`
	// VGDocker and Container are passed through to the pipeline when set.
	VGDocker  string `yaml:"vg_docker"`
	Container string `yaml:"container"`
	// Verify enables comparison against the baseline. Without it a
	// scenario passes if the pipeline completes in time.
	Verify bool `yaml:"verify"`
	// Teardown removes each scenario's work directory afterwards.
	Teardown bool `yaml:"teardown"`
	// BaselineAccess is AccessPublic or AccessSDK.
	BaselineAccess string `yaml:"baseline_access"`
	// Executable is the pipeline binary.
	Executable string `yaml:"executable"`
	// ScriptDir holds the plot-*.R scripts.
	ScriptDir string `yaml:"scripts"`
	// LedgerPath, if set, is the SQLite result history.
	LedgerPath string `yaml:"ledger"`
	// MetricsPath, if set, receives the tally in Prometheus text format.
	MetricsPath string `yaml:"metrics"`
	// F1Threshold and WorseThreshold are the defaults for scenarios that do
	// not set their own.
	F1Threshold    float64 `yaml:"f1_threshold"`
	WorseThreshold float64 `yaml:"worse_threshold"`
}

// DefaultConfig is the configuration used when no file is given.
var DefaultConfig = Config{
	Baseline:       "s3://cgl-pipeline-inputs/vg_cgl/vg_ci/jenkins_regression_baseline",
	InputStore:     "https://cgl-pipeline-inputs.s3.amazonaws.com/vg_cgl/bakeoff",
	Cores:          pipeline.DefaultOptions.Cores,
	Verify:         true,
	Teardown:       true,
	BaselineAccess: AccessPublic,
	Executable:     pipeline.DefaultOptions.Executable,
	ScriptDir:      "scripts",
	F1Threshold:    verify.DefaultThresholds.F1,
	WorseThreshold: verify.DefaultThresholds.Worse,
}

// LoadConfig reads the configuration at path over DefaultConfig. Files
// ending in .tsv use the legacy key/value format; anything else is YAML.
func LoadConfig(ctx context.Context, path string) (Config, error) {
	data, err := file.ReadFile(ctx, path)
	if err != nil {
		return Config{}, errors.E(fmt.Sprintf("read config %s", path), err)
	}
	var cfg Config
	if strings.HasSuffix(path, ".tsv") {
		cfg, err = ParseLegacyConfig(bytes.NewReader(data))
	} else {
		cfg, err = ParseConfig(data)
	}
	if err != nil {
		return Config{}, errors.E(fmt.Sprintf("load config %s", path), err)
	}
	return cfg, nil
}

// ParseConfig decodes a YAML configuration over DefaultConfig. Unknown keys
// are errors.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, errors.E(errors.Invalid, "decode config", err)
	}
	return cfg, cfg.Validate()
}

// ParseLegacyConfig reads the whitespace-separated key/value format of
// vgci_cfg.tsv over DefaultConfig. Lines that do not have exactly two
// fields, or whose key starts with '#', are ignored. verify and teardown are
// only ever turned off, by the value "false" in any case.
func ParseLegacyConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		toks := strings.Fields(scanner.Text())
		if len(toks) != 2 || strings.HasPrefix(toks[0], "#") {
			continue
		}
		key, val := toks[0], toks[1]
		switch key {
		case "vg-docker-version":
			cfg.VGDocker = val
		case "container":
			cfg.Container = val
		case "verify":
			if strings.ToLower(val) == "false" {
				cfg.Verify = false
			}
		case "teardown":
			if strings.ToLower(val) == "false" {
				cfg.Teardown = false
			}
		case "workdir":
			cfg.WorkDir = val
		case "baseline":
			cfg.Baseline = val
		case "input-store":
			cfg.InputStore = val
		case "cores":
			n, err := strconv.Atoi(val)
			if err != nil {
				return Config{}, errors.E(errors.Invalid, fmt.Sprintf("cores %q", val), err)
			}
			cfg.Cores = n
		case "baseline-access":
			cfg.BaselineAccess = val
		case "toil-vg":
			cfg.Executable = val
		case "scripts":
			cfg.ScriptDir = val
		case "ledger":
			cfg.LedgerPath = val
		case "metrics":
			cfg.MetricsPath = val
		default:
			log.Error.Printf("ignoring unknown config key %q", key)
		}
	}
	if err := scanner.Err(); err != nil {
		return Config{}, errors.E("read legacy config", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Cores <= 0 {
		return errors.E(errors.Invalid, fmt.Sprintf("cores must be positive, got %d", c.Cores))
	}
	if c.BaselineAccess != AccessPublic && c.BaselineAccess != AccessSDK {
		return errors.E(errors.Invalid, fmt.Sprintf("baseline_access must be %q or %q, got %q", AccessPublic, AccessSDK, c.BaselineAccess))
	}
	if c.Baseline == "" || c.InputStore == "" {
		return errors.E(errors.Invalid, "baseline and input_store are required")
	}
	return nil
}

// Options returns the pipeline settings.
func (c Config) Options() pipeline.Options {
	return pipeline.Options{
		Executable: c.Executable,
		VGDocker:   c.VGDocker,
		Container:  c.Container,
		Cores:      c.Cores,
	}
}

// Thresholds returns the default tolerances.
func (c Config) Thresholds() verify.Thresholds {
	return verify.Thresholds{F1: c.F1Threshold, Worse: c.WorseThreshold}
}

// NewStore builds the artifact store the configuration calls for. With
// AccessSDK, s3:// locators are read through an SDK client. A GCS client is
// created only when the baseline or input store is on gs://.
func (c Config) NewStore(ctx context.Context) (*artifact.Store, error) {
	store := &artifact.Store{}
	if c.BaselineAccess == AccessSDK {
		sess, err := session.NewSession()
		if err != nil {
			return nil, errors.E("aws session", err)
		}
		store.S3 = artifact.S3Getter{Client: s3.New(sess)}
	}
	if artifact.Parse(c.Baseline).Scheme == artifact.GS || artifact.Parse(c.InputStore).Scheme == artifact.GS {
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, errors.E("gcs client", err)
		}
		store.GCS = artifact.GCSGetter{Client: client}
	}
	return store, nil
}
