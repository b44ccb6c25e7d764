package cfgio_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/google/propeller/internal/cfg"
	"github.com/google/propeller/internal/cfgio"
)

func twoNodeDoc() cfgio.Document {
	return cfgio.Document{
		Functions: []cfgio.FunctionDoc{
			{
				FuncIndex:   0,
				SectionName: ".text",
				Name:        "f",
				Nodes: []cfgio.NodeDoc{
					{BBIndex: 0, BBID: 100, Size: 16, CanFallthrough: true},
					{BBIndex: 1, BBID: 101, Size: 8},
				},
				IntraEdges: []cfgio.EdgeDoc{
					{SrcBB: 0, SinkBB: 1, Weight: 42, Kind: "branch"},
				},
			},
		},
	}
}

func TestBuildProgramCfgAssemblesNodesAndEdges(t *testing.T) {
	p, err := cfgio.BuildProgramCfg(twoNodeDoc())
	require.NoError(t, err)

	g := p.CFG(0)
	require.NotNil(t, g, "expected function 0 to exist")
	assert.Len(t, g.Nodes, 2)
	require.Len(t, g.IntraEdges, 1)
	assert.EqualValues(t, 42, g.IntraEdges[0].Weight)

	entry := g.Entry()
	require.NotNil(t, entry)
	assert.EqualValues(t, 100, entry.BBID)
}

func TestBuildProgramCfgRejectsUnknownEdgeKind(t *testing.T) {
	doc := twoNodeDoc()
	doc.Functions[0].IntraEdges[0].Kind = "bogus"
	_, err := cfgio.BuildProgramCfg(doc)
	assert.Error(t, err)
}

func TestBuildPathProfilesNestsChildren(t *testing.T) {
	doc := cfgio.PathProfileDocument{
		Functions: []cfgio.FunctionPathProfileDoc{
			{
				FuncIndex: 0,
				Roots: []cfgio.PathNodeDoc{
					{
						BBIndex: 3,
						Entries: []cfgio.PathPredEntryDoc{
							{PredBBIndex: 1, Freq: 100},
						},
						Children: []cfgio.PathNodeDoc{
							{BBIndex: 4, Entries: []cfgio.PathPredEntryDoc{{PredBBIndex: 3, Freq: 90}}},
						},
					},
				},
			},
		},
	}

	profiles := cfgio.BuildPathProfiles(doc)
	profile := profiles[cfg.FuncIndex(0)]
	require.NotNil(t, profile, "expected a profile for function 0")

	root, ok := profile.Roots[3]
	require.True(t, ok, "expected a root at bb 3")
	require.Len(t, root.Entries, 1)
	assert.EqualValues(t, 100, root.Entries[0].Freq)

	child, ok := root.Children[4]
	require.True(t, ok, "expected a child at bb 4")
	require.Len(t, child.Entries, 1)
	assert.EqualValues(t, 90, child.Entries[0].Freq)
}
