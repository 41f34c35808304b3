// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package simflow_test

import (
	"path/filepath"
	"testing"

	"github.com/petenewcomb/simflow"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	chk := require.New(t)
	cfg := simflow.DefaultConfig()
	chk.NoError(cfg.Validate())
	chk.Equal(simflow.Strategy{
		Parallelism:   simflow.ParallelismRC,
		Communication: simflow.CommunicationModel,
		NPUs:          16,
	}, cfg.Strategy())
	chk.Equal("Df_Model", cfg.Workload)
}

func TestLoadConfigEmptyPath(t *testing.T) {
	chk := require.New(t)
	cfg, err := simflow.LoadConfig("")
	chk.NoError(err)
	chk.Equal(simflow.DefaultConfig(), cfg)
}

func TestLoadConfig(t *testing.T) {
	chk := require.New(t)
	path := filepath.Join(t.TempDir(), "simflow.yaml")
	writeFile(t, path, `
communication: hybrid_data_model
backend: NS3
npus: 8
project_root: /opt/astra-sim
run_log_dir: logs
perf:
  root: /opt/DeepFlow
  workers: 4
`, 0o644)

	cfg, err := simflow.LoadConfig(path)
	chk.NoError(err)
	chk.Equal(simflow.ParallelismRC, cfg.Parallelism)
	chk.Equal(simflow.CommunicationHybridDataModel, cfg.Communication)
	chk.Equal(simflow.BackendNS3, cfg.Backend)
	chk.Equal(8, cfg.NPUs)
	chk.Equal("/opt/astra-sim", cfg.ProjectRoot)
	chk.Equal("logs", cfg.RunLogDir)
	chk.Equal("/opt/DeepFlow", cfg.Perf.Root)
	chk.Equal("perf.py", cfg.Perf.Script)
	chk.Equal(4, cfg.Perf.Workers)
	chk.NoError(cfg.Validate())
}

func TestLoadConfigErrors(t *testing.T) {
	chk := require.New(t)
	dir := t.TempDir()

	unknownField := filepath.Join(dir, "unknown.yaml")
	writeFile(t, unknownField, "npu_count: 8\n", 0o644)
	_, err := simflow.LoadConfig(unknownField)
	chk.Error(err)

	unknownEnum := filepath.Join(dir, "enum.yaml")
	writeFile(t, unknownEnum, "backend: booksim\n", 0o644)
	_, err = simflow.LoadConfig(unknownEnum)
	chk.ErrorIs(err, simflow.ErrConfiguration)

	_, err = simflow.LoadConfig(filepath.Join(dir, "absent.yaml"))
	chk.Error(err)
}

func TestConfigApplyEnv(t *testing.T) {
	chk := require.New(t)
	env := map[string]string{
		simflow.EnvCommunication: "DATA",
		simflow.EnvBackend:       "ns3",
		simflow.EnvNPUs:          " 32 ",
		simflow.EnvProjectRoot:   "/src/astra-sim",
		simflow.EnvPerfRoot:      "/src/DeepFlow",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	cfg := simflow.DefaultConfig()
	chk.NoError(cfg.ApplyEnv(lookup))
	chk.Equal(simflow.CommunicationData, cfg.Communication)
	chk.Equal(simflow.BackendNS3, cfg.Backend)
	chk.Equal(32, cfg.NPUs)
	chk.Equal("/src/astra-sim", cfg.ProjectRoot)
	chk.Equal("/src/DeepFlow", cfg.Perf.Root)

	env = map[string]string{
		simflow.EnvParallelism: "diagonal",
		simflow.EnvNPUs:        "many",
	}
	cfg = simflow.DefaultConfig()
	err := cfg.ApplyEnv(lookup)
	chk.ErrorIs(err, simflow.ErrConfiguration)
	chk.Equal(16, cfg.NPUs)
}

func TestConfigValidate(t *testing.T) {
	chk := require.New(t)

	cfg := simflow.DefaultConfig()
	cfg.Backend = simflow.BackendGarnet
	chk.ErrorIs(cfg.Validate(), simflow.ErrConfiguration)

	cfg = simflow.DefaultConfig()
	cfg.Parallelism = simflow.ParallelismCR
	err := cfg.Validate()
	chk.ErrorIs(err, simflow.ErrUnsupportedConfiguration)
	chk.ErrorIs(err, simflow.ErrConfiguration)

	cfg = simflow.DefaultConfig()
	cfg.Perf.Workers = -1
	chk.ErrorIs(cfg.Validate(), simflow.ErrConfiguration)
}

func TestConfigMarshalsEnumNames(t *testing.T) {
	chk := require.New(t)
	data, err := yaml.Marshal(simflow.DefaultConfig())
	chk.NoError(err)
	chk.Contains(string(data), "parallelism: RC\n")
	chk.Contains(string(data), "communication: MODEL\n")
	chk.Contains(string(data), "backend: ANALYTICAL\n")
}

func TestEnumStrings(t *testing.T) {
	chk := require.New(t)
	chk.Equal("HYBRID_DATA_MODEL", simflow.CommunicationHybridDataModel.String())
	chk.Equal("ALLTOALL", simflow.CollectiveAllToAll.String())
	chk.Equal("WEIGHT", simflow.PhaseWeight.String())
	chk.Equal("Backend(7)", simflow.Backend(7).String())
}
