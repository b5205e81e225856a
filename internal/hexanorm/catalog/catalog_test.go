package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmaojo/hexanorm/internal/hexanorm/domain"
)

func desc(name, pkg, kind, vis string, refs ...domain.Reference) domain.Descriptor {
	return domain.Descriptor{Name: name, Package: pkg, Kind: kind, Visibility: vis, References: refs}
}

func TestIngest(t *testing.T) {
	c, err := Ingest([]domain.Descriptor{
		desc("com.x.platform.Impl", "com.x.platform", "class", "public",
			domain.Reference{Target: "com.x.usecase.Port", Kind: domain.RefImplements}),
		desc("com.x.usecase.Port", "com.x.usecase", "interface", "public"),
		desc("com.x.usecase.Port.Nested", "com.x.usecase", "record", "package-private"),
	})
	require.NoError(t, err)

	assert.Equal(t, 3, c.Len())
	assert.Equal(t, []string{"com.x.platform.Impl", "com.x.usecase.Port", "com.x.usecase.Port.Nested"}, c.Names())

	impl, ok := c.Get("com.x.platform.Impl")
	require.True(t, ok)
	assert.Equal(t, domain.KindClass, impl.Kind)
	assert.Equal(t, domain.VisibilityPublic, impl.Visibility)
	assert.True(t, impl.TopLevel)
	assert.Equal(t, "Impl", impl.SimpleName())
	require.Len(t, impl.References, 1)

	nested, ok := c.Get("com.x.usecase.Port.Nested")
	require.True(t, ok)
	assert.False(t, nested.TopLevel, "top-level is derived from name and package")
	assert.Equal(t, domain.KindValueType, nested.Kind)

	assert.False(t, c.Has("com.x.Missing"))
}

func TestIngestExplicitTopLevel(t *testing.T) {
	top := true
	d := desc("a.b.Outer.Inner", "a.b", "class", "public")
	d.TopLevel = &top

	c, err := Ingest([]domain.Descriptor{d})
	require.NoError(t, err)
	u, _ := c.Get("a.b.Outer.Inner")
	assert.True(t, u.TopLevel)
}

func TestIngestDefaultPackage(t *testing.T) {
	c, err := Ingest([]domain.Descriptor{desc("Main", "", "class", "public")})
	require.NoError(t, err)
	u, _ := c.Get("Main")
	assert.True(t, u.TopLevel)
	assert.Equal(t, "Main", u.SimpleName())
}

func TestIngestDuplicateName(t *testing.T) {
	_, err := Ingest([]domain.Descriptor{
		desc("a.b.C", "a.b", "class", "public"),
		desc("a.b.C", "a.b", "interface", "public"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDuplicateName)

	var ie *domain.IngestError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "a.b.C", ie.Name)
	assert.Equal(t, 1, ie.Index)
}

func TestIngestMalformed(t *testing.T) {
	tests := []struct {
		name string
		d    domain.Descriptor
	}{
		{"missing name", desc("", "a", "class", "public")},
		{"reserved name", desc("EXTERNAL", "", "class", "public")},
		{"empty segment", desc("a..C", "a", "class", "public")},
		{"missing package", desc("a.C", "", "class", "public")},
		{"outside package", desc("x.C", "a", "class", "public")},
		{"missing kind", desc("a.C", "a", "", "public")},
		{"unknown kind", desc("a.C", "a", "struct", "public")},
		{"missing visibility", desc("a.C", "a", "class", "")},
		{"unknown visibility", desc("a.C", "a", "class", "friend")},
		{"empty reference", desc("a.C", "a", "class", "public", domain.Reference{Kind: domain.RefImport})},
		{"unknown reference kind", desc("a.C", "a", "class", "public", domain.Reference{Target: "a.D", Kind: "calls"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Ingest([]domain.Descriptor{tt.d})
			assert.ErrorIs(t, err, domain.ErrMalformed)
		})
	}
}

func TestIngestFirstMalformedWins(t *testing.T) {
	ds := []domain.Descriptor{
		desc("a.b.C", "a.b", "class", "public"),
		desc("a.b.C", "a.b", "class", "public"),
		desc("a.b.D", "a.b", "gadget", "public"),
		desc("a.b.E", "a.b", "class", "nope"),
	}
	for range 20 {
		_, err := Ingest(ds, WithWorkers(4))
		var ie *domain.IngestError
		require.ErrorAs(t, err, &ie)
		assert.Equal(t, domain.IngestMalformed, ie.Kind)
		assert.Equal(t, 2, ie.Index)
	}
}

func TestIngestEmpty(t *testing.T) {
	c, err := Ingest(nil)
	require.NoError(t, err)
	assert.Zero(t, c.Len())
	assert.Empty(t, c.Units())
}

func TestValidate(t *testing.T) {
	ok := desc("a.B", "a", "class", "public")
	dup := []domain.Descriptor{ok, ok}
	assert.NoError(t, Validate(dup), "duplicates are left to Ingest")

	err := Validate([]domain.Descriptor{ok, desc("z.C", "z", "", "public")})
	assert.ErrorIs(t, err, domain.ErrMalformed)
	assert.ErrorContains(t, err, "missing kind")
}
