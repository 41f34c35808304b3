// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package simflow

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Parallelism selects how a matrix multiply is partitioned across units.
type Parallelism int

const (
	ParallelismRC Parallelism = iota + 1 // reduce then concatenate
	ParallelismCR                        // concatenate then reduce
)

// Communication selects the training communication strategy.
type Communication int

const (
	CommunicationModel Communication = iota + 1
	CommunicationData
	CommunicationHybridDataModel
)

// Backend selects the network simulation engine.
type Backend int

const (
	BackendAnalytical Backend = iota + 1
	BackendNS3
	BackendGarnet // not supported
)

// Phase is a training communication phase.
type Phase int

const (
	PhaseForward Phase = iota + 1
	PhaseInput         // input gradient
	PhaseWeight        // weight gradient
)

// Collective is a collective-communication label written into the workload
// trace.
type Collective int

const (
	CollectiveAllReduce Collective = iota + 1
	CollectiveAllGather
	CollectiveAllToAll
	CollectiveNone
)

var (
	parallelismNames   = []string{ParallelismRC: "RC", ParallelismCR: "CR"}
	communicationNames = []string{
		CommunicationModel:           "MODEL",
		CommunicationData:            "DATA",
		CommunicationHybridDataModel: "HYBRID_DATA_MODEL",
	}
	backendNames = []string{
		BackendAnalytical: "ANALYTICAL",
		BackendNS3:        "NS3",
		BackendGarnet:     "GARNET",
	}
	phaseNames      = []string{PhaseForward: "FORWARD", PhaseInput: "INPUT", PhaseWeight: "WEIGHT"}
	collectiveNames = []string{
		CollectiveAllReduce: "ALLREDUCE",
		CollectiveAllGather: "ALLGATHER",
		CollectiveAllToAll:  "ALLTOALL",
		CollectiveNone:      "NONE",
	}
)

func enumName(names []string, v int, kind string) string {
	if v > 0 && v < len(names) {
		return names[v]
	}
	return fmt.Sprintf("%s(%d)", kind, v)
}

func parseEnum(names []string, text, kind string) (int, error) {
	s := strings.ToUpper(strings.TrimSpace(text))
	for v, name := range names {
		if name != "" && name == s {
			return v, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown %s %q", ErrConfiguration, kind, text)
}

func (p Parallelism) String() string   { return enumName(parallelismNames, int(p), "Parallelism") }
func (c Communication) String() string { return enumName(communicationNames, int(c), "Communication") }
func (b Backend) String() string       { return enumName(backendNames, int(b), "Backend") }
func (p Phase) String() string         { return enumName(phaseNames, int(p), "Phase") }
func (c Collective) String() string    { return enumName(collectiveNames, int(c), "Collective") }

func (p *Parallelism) UnmarshalText(text []byte) error {
	v, err := parseEnum(parallelismNames, string(text), "parallelism")
	if err != nil {
		return err
	}
	*p = Parallelism(v)
	return nil
}

func (c *Communication) UnmarshalText(text []byte) error {
	v, err := parseEnum(communicationNames, string(text), "communication")
	if err != nil {
		return err
	}
	*c = Communication(v)
	return nil
}

func (b *Backend) UnmarshalText(text []byte) error {
	v, err := parseEnum(backendNames, string(text), "backend")
	if err != nil {
		return err
	}
	*b = Backend(v)
	return nil
}

func (p Parallelism) MarshalText() ([]byte, error)   { return []byte(p.String()), nil }
func (c Communication) MarshalText() ([]byte, error) { return []byte(c.String()), nil }
func (b Backend) MarshalText() ([]byte, error)       { return []byte(b.String()), nil }

// Config is the complete, immutable description of one workflow run.
type Config struct {
	Parallelism   Parallelism   `yaml:"parallelism"`
	Communication Communication `yaml:"communication"`
	Backend       Backend       `yaml:"backend"`
	NPUs          int           `yaml:"npus"`

	// ProjectRoot is the simulator source tree.
	ProjectRoot string `yaml:"project_root"`
	// Workload names the trace file (without extension) shared by the
	// translate and convert stages.
	Workload string `yaml:"workload"`
	// Shell runs build and install scripts.
	Shell         string `yaml:"shell"`
	Converter     string `yaml:"converter"`
	InstallChakra bool   `yaml:"install_chakra"`
	SkipConvert   bool   `yaml:"skip_convert"`
	// RunLogDir, when set, receives a timestamped copy of simulator output.
	RunLogDir string `yaml:"run_log_dir"`

	Perf PerfConfig `yaml:"perf"`
}

// PerfConfig locates the external performance-modeling tool and its sweep
// inputs. Relative paths are resolved against Root.
type PerfConfig struct {
	Root        string `yaml:"root"`
	Interpreter string `yaml:"interpreter"`
	Script      string `yaml:"script"`
	ExpConfig   string `yaml:"exp_config"`
	Output      string `yaml:"output"`
	Shapes      string `yaml:"shapes"`
	// Workers bounds concurrent invocations; zero means one per CPU.
	Workers int `yaml:"workers"`
}

// DefaultConfig returns the configuration of a model-parallel, reduce-then-
// concatenate study on 16 units with the analytical backend.
func DefaultConfig() Config {
	return Config{
		Parallelism:   ParallelismRC,
		Communication: CommunicationModel,
		Backend:       BackendAnalytical,
		NPUs:          16,
		ProjectRoot:   "astra-sim",
		Workload:      "Df_Model",
		Shell:         "bash",
		Converter:     "chakra_converter",
		Perf: PerfConfig{
			Root:        "DeepFlow",
			Interpreter: "python",
			Script:      "perf.py",
			ExpConfig:   "configs/new-configs/A100.yaml",
			Output:      "output/LLM",
			Shapes:      "scripts/mat_dims.txt",
		},
	}
}

// LoadConfig reads a YAML config file over [DefaultConfig]. An empty path
// returns the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := cfg.decode(data); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Environment variables consulted by [Config.ApplyEnv].
const (
	EnvParallelism   = "SIMFLOW_PARALLELISM"
	EnvCommunication = "SIMFLOW_COMMUNICATION"
	EnvBackend       = "SIMFLOW_BACKEND"
	EnvNPUs          = "SIMFLOW_NPUS"
	EnvProjectRoot   = "SIMFLOW_PROJECT_ROOT"
	EnvPerfRoot      = "SIMFLOW_PERF_ROOT"
)

// ApplyEnv overlays values found through lookup, typically [os.LookupEnv].
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	if v, ok := lookup(EnvParallelism); ok {
		errs = append(errs, c.Parallelism.UnmarshalText([]byte(v)))
	}
	if v, ok := lookup(EnvCommunication); ok {
		errs = append(errs, c.Communication.UnmarshalText([]byte(v)))
	}
	if v, ok := lookup(EnvBackend); ok {
		errs = append(errs, c.Backend.UnmarshalText([]byte(v)))
	}
	if v, ok := lookup(EnvNPUs); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %s: %v", ErrConfiguration, EnvNPUs, err))
		} else {
			c.NPUs = n
		}
	}
	if v, ok := lookup(EnvProjectRoot); ok {
		c.ProjectRoot = v
	}
	if v, ok := lookup(EnvPerfRoot); ok {
		c.Perf.Root = v
	}
	return errors.Join(errs...)
}

// Strategy returns the parallelism choice embedded in the config.
func (c *Config) Strategy() Strategy {
	return Strategy{
		Parallelism:   c.Parallelism,
		Communication: c.Communication,
		NPUs:          c.NPUs,
	}
}

// Validate reports any combination that no stage could run with. It makes no
// external calls.
func (c *Config) Validate() error {
	if err := c.Strategy().Validate(); err != nil {
		return err
	}
	if _, err := ResolvePaths(c.ProjectRoot, c.Backend, c.Workload); err != nil {
		return err
	}
	if c.Perf.Workers < 0 {
		return fmt.Errorf("%w: perf.workers must not be negative", ErrConfiguration)
	}
	return nil
}
