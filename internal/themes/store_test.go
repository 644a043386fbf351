package themes

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/atlas/internal/interfaces"
	"github.com/ternarybob/atlas/pkg/models"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func themeConfig(project string, vectorNames ...string) models.ThemeConfig {
	config := models.ThemeConfig{}
	config.Project.Name = project
	config.Project.Version = "1"
	for _, name := range vectorNames {
		config.Datasets.Vector = append(config.Datasets.Vector, models.Vector{
			Name:   name,
			Title:  name,
			Driver: "ogr",
		})
	}
	return config
}

func TestStore_PutGet(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	doc, err := models.NewThemeDocument("city", themeConfig("city", "roads", "parks"))
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, doc))

	got, err := store.Get(ctx, "city")
	require.NoError(t, err)
	assert.Equal(t, "city", got.Name)
	assert.Equal(t, "city", got.Config.Project.Name)
	require.Len(t, got.Config.Datasets.Vector, 2)
	assert.Equal(t, "roads", got.Config.Datasets.Vector[0].Name)
	assert.False(t, got.CreatedAt.IsZero())
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestStore_PutPreservesCreatedAt(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	first, err := models.NewThemeDocument("city", themeConfig("city", "roads"))
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, first))
	created := first.CreatedAt

	time.Sleep(10 * time.Millisecond)

	// A fresh document under the same name replaces the config but keeps
	// the original creation time.
	second, err := models.NewThemeDocument("city", themeConfig("city", "roads", "rivers"))
	require.NoError(t, err)
	second.CreatedAt = time.Time{}
	require.NoError(t, store.Put(ctx, second))

	got, err := store.Get(ctx, "city")
	require.NoError(t, err)
	assert.True(t, got.CreatedAt.Equal(created), "CreatedAt changed on upsert")
	assert.True(t, got.UpdatedAt.After(created))
	assert.Len(t, got.Config.Datasets.Vector, 2)
}

func TestStore_GetMissing(t *testing.T) {
	store := testStore(t)

	_, err := store.Get(context.Background(), "nowhere")
	assert.ErrorIs(t, err, interfaces.ErrThemeNotFound)
}

func TestStore_PutRejectsUnnamed(t *testing.T) {
	store := testStore(t)

	err := store.Put(context.Background(), &models.ThemeDocument{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "needs a name")
}

func TestStore_List(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	for _, name := range []string{"city", "region"} {
		doc, err := models.NewThemeDocument(name, themeConfig(name, "roads"))
		require.NoError(t, err)
		require.NoError(t, store.Put(ctx, doc))
	}

	docs, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	names := []string{docs[0].Name, docs[1].Name}
	assert.ElementsMatch(t, []string{"city", "region"}, names)
}

func TestStore_Delete(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	doc, err := models.NewThemeDocument("city", themeConfig("city"))
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, doc))

	require.NoError(t, store.Delete(ctx, "city"))

	_, err = store.Get(ctx, "city")
	assert.ErrorIs(t, err, interfaces.ErrThemeNotFound)

	err = store.Delete(ctx, "city")
	assert.ErrorIs(t, err, interfaces.ErrThemeNotFound)
}

func TestStore_ResolveVector(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	city, err := models.NewThemeDocument("city", themeConfig("city", "roads", "parks"))
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, city))

	region, err := models.NewThemeDocument("region", themeConfig("region", "rivers"))
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, region))

	vector, theme, err := store.ResolveVector(ctx, "rivers")
	require.NoError(t, err)
	assert.Equal(t, "region", theme)
	assert.Equal(t, "rivers", vector.Name)

	_, _, err = store.ResolveVector(ctx, "railways")
	assert.ErrorIs(t, err, interfaces.ErrDatasetNotFound)
}
