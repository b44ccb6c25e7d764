// Package config defines the engine's tunable parameters
// (§6.1) and loads them from a YAML file via gopkg.in/yaml.v3, the
// same library the engine's other YAML consumers use.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/google/propeller/internal/cluster"
	"github.com/google/propeller/internal/layout"
	"github.com/google/propeller/internal/pathclone"
	"github.com/google/propeller/internal/scorer"
)

// PropellerCodeLayoutParameters holds every named scalar the layout
// engine consumes (§6.1). All fields are independent; none gates
// another.
type PropellerCodeLayoutParameters struct {
	FallthroughWeight                  float64 `yaml:"fallthrough_weight"`
	ForwardJumpWeight                  float64 `yaml:"forward_jump_weight"`
	ForwardJumpDistance                uint64  `yaml:"forward_jump_distance"`
	BackwardJumpWeight                 float64 `yaml:"backward_jump_weight"`
	BackwardJumpDistance               uint64  `yaml:"backward_jump_distance"`
	AlwaysFallthroughBranchWeight      float64 `yaml:"always_fallthrough_branch_weight"`
	AlwaysTakenNonFallthroughBranchWeight float64 `yaml:"always_taken_nonfallthrough_branch_weight"`

	CallChainClustering     bool `yaml:"call_chain_clustering"`
	InterFunctionReordering bool `yaml:"inter_function_reordering"`

	ChainSplit          bool   `yaml:"chain_split"`
	ChainSplitThreshold uint64 `yaml:"chain_split_threshold"`

	ClusterMergeSizeThreshold uint64 `yaml:"cluster_merge_size_threshold"`

	ReorderHotBlocks bool `yaml:"reorder_hot_blocks"`
	SplitFunctions   bool `yaml:"split_functions"`
}

// DefaultPropellerCodeLayoutParameters mirrors the scorer and
// clusterer packages' own defaults (internal/scorer.DefaultParams,
// internal/cluster.DefaultParams), plus the engine-wide switches those
// packages don't own themselves.
func DefaultPropellerCodeLayoutParameters() PropellerCodeLayoutParameters {
	return PropellerCodeLayoutParameters{
		FallthroughWeight:                     1.0,
		ForwardJumpWeight:                     0.1,
		ForwardJumpDistance:                   1 << 20,
		BackwardJumpWeight:                     0.1,
		BackwardJumpDistance:                   640,
		AlwaysFallthroughBranchWeight:          0,
		AlwaysTakenNonFallthroughBranchWeight:  0,
		CallChainClustering:                   true,
		InterFunctionReordering:                false,
		ChainSplit:                            true,
		ChainSplitThreshold:                    1 << 20,
		ClusterMergeSizeThreshold:              2 << 20,
		ReorderHotBlocks:                       true,
		SplitFunctions:                         true,
	}
}

// PathProfileOptions enables and tunes the path-cloning evaluator
// (§4.5, §6.1).
type PathProfileOptions struct {
	Enabled bool `yaml:"enabled"`

	MaxPathLength             int     `yaml:"max_path_length"`
	MinFlowRatio              float64 `yaml:"min_flow_ratio"`
	MinInitialCloningScore    float64 `yaml:"min_initial_cloning_score"`
	MinFinalCloningScore      float64 `yaml:"min_final_cloning_score"`
	BasePenaltyFactor         float64 `yaml:"base_penalty_factor"`
	ICachePenaltyFactor       float64 `yaml:"icache_penalty_factor"`
	CloneIndirectBranchBlocks bool    `yaml:"clone_indirect_branch_blocks"`
}

// DefaultPathProfileOptions mirrors internal/pathclone.DefaultEvalParams,
// with path-cloning itself off by default since it is the more
// speculative, higher-risk half of the engine.
func DefaultPathProfileOptions() PathProfileOptions {
	return PathProfileOptions{
		Enabled:                   false,
		MaxPathLength:             10,
		MinFlowRatio:              0.8,
		MinInitialCloningScore:    0,
		MinFinalCloningScore:      0,
		BasePenaltyFactor:         0.0005,
		ICachePenaltyFactor:       0.001,
		CloneIndirectBranchBlocks: false,
	}
}

// Config bundles both parameter groups as the top-level YAML document
// shape: a "code_layout" section and a "path_profile" section.
type Config struct {
	CodeLayout  PropellerCodeLayoutParameters `yaml:"code_layout"`
	PathProfile PathProfileOptions            `yaml:"path_profile"`
}

// Default returns a Config with every field set to its documented
// default, suitable as the starting point for Load to overlay onto.
func Default() Config {
	return Config{
		CodeLayout:  DefaultPropellerCodeLayoutParameters(),
		PathProfile: DefaultPathProfileOptions(),
	}
}

// Load reads a YAML config file at path, starting from Default and
// overlaying whatever fields the file sets. A missing or unreadable
// file is an error wrapping the os error (so errors.Is(err,
// fs.ErrNotExist) reports a missing file); callers that only want the
// file when present should check for it before calling Load.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// ToLayoutOptions translates the YAML-facing parameter struct into
// the internal/layout, internal/scorer and internal/cluster packages'
// own Options/Params types.
func (p PropellerCodeLayoutParameters) ToLayoutOptions() layout.Options {
	return layout.Options{
		ScorerParams: scorer.Params{
			FallthroughWeight:                     p.FallthroughWeight,
			ForwardJumpWeight:                      p.ForwardJumpWeight,
			ForwardJumpDistance:                    float64(p.ForwardJumpDistance),
			BackwardJumpWeight:                     p.BackwardJumpWeight,
			BackwardJumpDistance:                   float64(p.BackwardJumpDistance),
			AlwaysFallthroughBranchWeight:          p.AlwaysFallthroughBranchWeight,
			AlwaysTakenNonFallthroughBranchWeight:  p.AlwaysTakenNonFallthroughBranchWeight,
		},
		ClusterParams: cluster.Params{
			DensityThreshold:        0.005,
			MergeSizeThreshold:      p.ClusterMergeSizeThreshold,
			InterFunctionReordering: p.InterFunctionReordering,
		},
		InterFunctionReordering: p.InterFunctionReordering,
		CallChainClustering:     p.CallChainClustering,
		ChainSplit:              p.ChainSplit,
		ChainSplitThreshold:     p.ChainSplitThreshold,
		ReorderHotBlocks:        p.ReorderHotBlocks,
		SplitFunctions:          p.SplitFunctions,
	}
}

// ToEvalParams translates the YAML-facing parameter struct into
// internal/pathclone's own EvalParams, scored with codeLayout's own
// ExtTSP/cluster weights (§4.5.3: candidate evaluation must use the
// same scoring as the rest of the run, not a separate default).
func (p PathProfileOptions) ToEvalParams(codeLayout PropellerCodeLayoutParameters) pathclone.EvalParams {
	layoutOpts := codeLayout.ToLayoutOptions()
	return pathclone.EvalParams{
		MaxPathLength:             p.MaxPathLength,
		MinFlowRatio:              p.MinFlowRatio,
		CloneIndirectBranchBlocks: p.CloneIndirectBranchBlocks,
		MinInitialCloningScore:    p.MinInitialCloningScore,
		MinFinalCloningScore:      p.MinFinalCloningScore,
		BasePenaltyFactor:         p.BasePenaltyFactor,
		ICachePenaltyFactor:       p.ICachePenaltyFactor,
		ScorerParams:              layoutOpts.ScorerParams,
		ClusterParams:             layoutOpts.ClusterParams,
	}
}

// ToEvalParams is a convenience wrapper over
// PathProfileOptions.ToEvalParams using this Config's own CodeLayout
// parameters, so callers need not thread the two sections together
// themselves.
func (c Config) ToEvalParams() pathclone.EvalParams {
	return c.PathProfile.ToEvalParams(c.CodeLayout)
}
