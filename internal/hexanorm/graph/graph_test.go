package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmaojo/hexanorm/internal/hexanorm/catalog"
	"github.com/pmaojo/hexanorm/internal/hexanorm/domain"
)

func buildCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Ingest([]domain.Descriptor{
		{
			Name: "com.x.platform.Impl", Package: "com.x.platform", Kind: "class", Visibility: "public",
			References: []domain.Reference{
				{Target: "com.x.usecase.Port", Kind: domain.RefImplements},
				{Target: "com.x.usecase.Port", Kind: domain.RefFieldType},
				{Target: "com.x.usecase.Port", Kind: domain.RefFieldType},
				{Target: "java.util.List", Kind: domain.RefImport},
				{Target: "com.x.platform.Impl", Kind: domain.RefReturnType},
			},
		},
		{
			Name: "com.x.usecase.Port", Package: "com.x.usecase", Kind: "interface", Visibility: "public",
			References: []domain.Reference{
				{Target: "org.slf4j.Logger", Kind: domain.RefFieldType},
			},
		},
	})
	require.NoError(t, err)
	return c
}

func TestExtract(t *testing.T) {
	es := Extract(buildCatalog(t), WithWorkers(2))

	assert.Equal(t, []domain.Edge{
		{From: "com.x.platform.Impl", To: "com.x.usecase.Port", Kind: domain.RefImplements},
		{From: "com.x.platform.Impl", To: "com.x.usecase.Port", Kind: domain.RefFieldType},
		{From: "com.x.platform.Impl", To: "com.x.usecase.Port", Kind: domain.RefFieldType},
		{From: "com.x.platform.Impl", To: domain.External, Kind: domain.RefImport},
		{From: "com.x.usecase.Port", To: domain.External, Kind: domain.RefFieldType},
	}, es.All())

	assert.Equal(t, 5, es.Len())
	assert.Equal(t, 2, es.ExternalCount())
	assert.Equal(t, 1, es.SelfReferences())
	assert.Len(t, es.From("com.x.platform.Impl"), 4)
	assert.Len(t, es.To("com.x.usecase.Port"), 3)
	assert.Len(t, es.To(domain.External), 2)
	assert.Empty(t, es.From("com.x.Unknown"))
}

func TestExtractDeterministic(t *testing.T) {
	c := buildCatalog(t)
	first := Extract(c, WithWorkers(1)).All()
	for range 20 {
		assert.Equal(t, first, Extract(c, WithWorkers(8)).All())
	}
}

func TestExtractAllReturnsCopy(t *testing.T) {
	es := Extract(buildCatalog(t))
	all := es.All()
	all[0].To = "tampered"
	assert.Equal(t, "com.x.usecase.Port", es.All()[0].To)
}
