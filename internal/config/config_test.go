package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/google/propeller/internal/config"
)

func TestLoadOverlaysOntoDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "params.yaml")
	const yaml = `
code_layout:
  fallthrough_weight: 2.5
  call_chain_clustering: false
path_profile:
  enabled: true
  max_path_length: 3
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2.5, cfg.CodeLayout.FallthroughWeight)
	assert.False(t, cfg.CodeLayout.CallChainClustering, "overridden by YAML")
	// Fields the YAML doesn't mention keep their documented default.
	assert.Equal(t, config.DefaultPropellerCodeLayoutParameters().ForwardJumpWeight, cfg.CodeLayout.ForwardJumpWeight)

	assert.True(t, cfg.PathProfile.Enabled, "overridden by YAML")
	assert.Equal(t, 3, cfg.PathProfile.MaxPathLength)
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := config.Load("/nonexistent/path/params.yaml")
	assert.Error(t, err)
}

func TestToEvalParamsUsesConfiguredScorerWeights(t *testing.T) {
	cfg := config.Default()
	cfg.CodeLayout.FallthroughWeight = 42

	evalParams := cfg.ToEvalParams()
	assert.Equal(t, 42.0, evalParams.ScorerParams.FallthroughWeight)
}

func TestToLayoutOptionsCarriesSwitches(t *testing.T) {
	p := config.DefaultPropellerCodeLayoutParameters()
	p.CallChainClustering = false
	p.InterFunctionReordering = true

	opts := p.ToLayoutOptions()
	assert.False(t, opts.CallChainClustering)
	assert.True(t, opts.InterFunctionReordering)
	assert.Equal(t, p.FallthroughWeight, opts.ScorerParams.FallthroughWeight)
}
