package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmaojo/hexanorm/internal/hexanorm/checker"
	"github.com/pmaojo/hexanorm/internal/hexanorm/config"
	"github.com/pmaojo/hexanorm/internal/hexanorm/domain"
)

func sampleResult(t *testing.T) *checker.Result {
	t.Helper()
	ref := func(target string) domain.Reference {
		return domain.Reference{Target: target, Kind: domain.RefFieldType}
	}
	c, err := checker.New(config.Default())
	require.NoError(t, err)
	res, err := c.Run([]domain.Descriptor{
		{Name: "x.usecase.A", Package: "x.usecase", Kind: "class", Visibility: "public",
			References: []domain.Reference{ref("x.platform.B"), ref("java.util.List")}},
		{Name: "x.platform.B", Package: "x.platform", Kind: "class", Visibility: "package-private",
			References: []domain.Reference{ref("x.usecase.A")}},
		{Name: "x.util.U", Package: "x.util", Kind: "class", Visibility: "public",
			References: []domain.Reference{ref("x.usecase.A")}},
	})
	require.NoError(t, err)
	return res
}

func TestLinks(t *testing.T) {
	links := Links(sampleResult(t))
	assert.Equal(t, []LayerLink{
		{From: "Platform", To: "UseCase", Edges: 1},
		{From: domain.Unassigned, To: "UseCase", Edges: 1},
		{From: "UseCase", To: domain.External, Edges: 1},
		{From: "UseCase", To: "Platform", Edges: 1, Violations: 1},
	}, links)

	var colors []string
	for _, l := range links {
		colors = append(colors, l.color())
	}
	assert.Equal(t, []string{ColorAllowed, ColorUnchecked, ColorUnchecked, ColorViolating}, colors)
}

func TestBuildScene(t *testing.T) {
	scene := BuildScene(sampleResult(t))
	assert.Equal(t, "excalidraw", scene.Type)
	assert.Len(t, scene.Elements, 16)

	byID := make(map[string]ExcalidrawElement)
	for _, e := range scene.Elements {
		byID[e.ID] = e
	}
	for _, name := range []string{"UseCase", "Platform", domain.Unassigned, domain.External} {
		assert.Contains(t, byID, "layer-"+name)
	}
	assert.Equal(t, "UseCase\n1 units", byID["layer-UseCase-text"].Text)

	arrow := byID["layer-UseCase-layer-Platform"]
	assert.Equal(t, ColorViolating, arrow.StrokeColor)
	assert.Equal(t, "dashed", arrow.StrokeStyle)
	require.NotNil(t, arrow.EndBinding)
	assert.Equal(t, "layer-Platform", arrow.EndBinding.ElementID)
	assert.Equal(t, "1 edges, 1 violating", byID["layer-UseCase-layer-Platform-text"].Text)
}

func TestExportExcalidraw(t *testing.T) {
	out := filepath.Join(t.TempDir(), "architecture.excalidraw")
	require.NoError(t, ExportExcalidraw(sampleResult(t), out))

	content, err := os.ReadFile(out)
	require.NoError(t, err)
	var scene ExcalidrawScene
	require.NoError(t, json.Unmarshal(content, &scene))
	assert.Equal(t, "hexanorm", scene.Source)
	assert.NotEmpty(t, scene.Elements)
}

func TestExportExcalidrawReportsWriteErrors(t *testing.T) {
	res := sampleResult(t)
	assert.Error(t, ExportExcalidraw(res, filepath.Join(t.TempDir(), "missing", "out.excalidraw")))

	if _, err := os.Stat("/dev/full"); err != nil {
		t.Skip("/dev/full not available")
	}
	assert.Error(t, ExportExcalidraw(res, "/dev/full"), "a full device must not look like a successful export")
}
