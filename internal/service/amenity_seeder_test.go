package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brewstop/brewstop/internal/api/overpass"
	"github.com/brewstop/brewstop/internal/matcher"
	"github.com/brewstop/brewstop/internal/models"
	"github.com/brewstop/brewstop/internal/pipeline"
	"github.com/brewstop/brewstop/internal/state"
)

// fakeStopLister 固定站点锚点集
type fakeStopLister struct {
	stops []models.Stop
}

func (f *fakeStopLister) ListAll(ctx context.Context) ([]models.Stop, error) {
	return f.stops, nil
}

// fakeAmenityStore 内存便利设施存储
type fakeAmenityStore struct {
	mu       sync.Mutex
	inserted []models.Amenity
	existing map[pipeline.PairKey]struct{}
}

func newFakeAmenityStore() *fakeAmenityStore {
	return &fakeAmenityStore{existing: make(map[pipeline.PairKey]struct{})}
}

func (f *fakeAmenityStore) ExistingPairs(ctx context.Context) (map[pipeline.PairKey]struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pairs := make(map[pipeline.PairKey]struct{}, len(f.existing))
	for k := range f.existing {
		pairs[k] = struct{}{}
	}
	return pairs, nil
}

func (f *fakeAmenityStore) InsertBatch(ctx context.Context, amenities []models.Amenity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserted = append(f.inserted, amenities...)
	for _, a := range amenities {
		f.existing[pipeline.PairKey{StopID: a.StopID, SourcePoiID: a.SourcePoiID}] = struct{}{}
	}
	return nil
}

func overpassFixture(t *testing.T, nodes []map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"elements": nodes})
	}))
}

func seederStops() []models.Stop {
	return []models.Stop{
		{ID: "stop-1", Lat: 36.1500, Lng: -95.9900, IsActive: true},
		{ID: "stop-2", Lat: 36.1510, Lng: -95.9910, IsActive: true},
		{ID: "stop-inactive", Lat: 36.1500, Lng: -95.9900, IsActive: false},
		{ID: "stop-far", Lat: 40.0, Lng: -80.0, IsActive: true},
	}
}

func TestSeedBrandMatchesNearbyStops(t *testing.T) {
	server := overpassFixture(t, []map[string]any{
		{
			"type": "node", "id": 100, "lat": 36.1502, "lon": -95.9902,
			"tags": map[string]string{"name": "Starbucks Cherry St", "opening_hours": "Mo-Su 06:00-21:00"},
		},
	})
	defer server.Close()

	store := newFakeAmenityStore()
	seeder := NewAmenitySeeder(zap.NewNop(), overpass.NewClient(server.URL),
		&fakeStopLister{stops: seederStops()}, store, state.NewManager(nil), 0)

	summary, err := seeder.SeedBrand(context.Background(), Brand{
		Name: "Starbucks", WikidataID: "Q37158", Category: models.CategoryCoffee,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Pois)
	// 两个活跃站点在步行半径内，非活跃与远端站点不参与
	assert.Equal(t, 2, summary.Pairs)
	assert.Equal(t, 2, summary.Written)
	assert.Equal(t, 0, summary.Failed)

	require.Len(t, store.inserted, 2)
	a := store.inserted[0]
	assert.Equal(t, "osm:100", a.SourcePoiID)
	assert.Equal(t, "Starbucks Cherry St", a.Name)
	assert.Equal(t, "Starbucks", a.Brand)
	assert.Equal(t, models.CategoryCoffee, a.Category)
	require.NotNil(t, a.Hours)
	assert.Equal(t, "Mo-Su 06:00-21:00", *a.Hours)
	assert.GreaterOrEqual(t, a.WalkMinutes, 1)
}

func TestSeedBrandSecondRunIsIdempotent(t *testing.T) {
	server := overpassFixture(t, []map[string]any{
		{"type": "node", "id": 100, "lat": 36.1502, "lon": -95.9902, "tags": map[string]string{"name": "Starbucks"}},
	})
	defer server.Close()

	store := newFakeAmenityStore()
	seeder := NewAmenitySeeder(zap.NewNop(), overpass.NewClient(server.URL),
		&fakeStopLister{stops: seederStops()}, store, state.NewManager(nil), 0)

	brand := Brand{Name: "Starbucks", WikidataID: "Q37158", Category: models.CategoryCoffee}

	first, err := seeder.SeedBrand(context.Background(), brand)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Written)

	second, err := seeder.SeedBrand(context.Background(), brand)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Written)
	assert.Equal(t, 2, second.SkippedDuplicate)
	assert.Len(t, store.inserted, 2)
}

func TestSeedBrandFallsBackToBrandName(t *testing.T) {
	server := overpassFixture(t, []map[string]any{
		{"type": "node", "id": 200, "lat": 36.1502, "lon": -95.9902},
	})
	defer server.Close()

	store := newFakeAmenityStore()
	seeder := NewAmenitySeeder(zap.NewNop(), overpass.NewClient(server.URL),
		&fakeStopLister{stops: seederStops()}, store, state.NewManager(nil), 0)

	_, err := seeder.SeedBrand(context.Background(), Brand{
		Name: "Target", WikidataID: "Q1046951", Category: models.CategoryRetail,
	})
	require.NoError(t, err)

	require.NotEmpty(t, store.inserted)
	assert.Equal(t, "Target", store.inserted[0].Name)
	assert.Nil(t, store.inserted[0].Hours)
}

func TestSeedBrandRetriesOverpassFetch(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n < 3 {
			http.Error(w, "gateway timeout", http.StatusGatewayTimeout)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"elements": []map[string]any{
			{"type": "node", "id": 100, "lat": 36.1502, "lon": -95.9902, "tags": map[string]string{"name": "Starbucks"}},
		}})
	}))
	defer server.Close()

	store := newFakeAmenityStore()
	seeder := NewAmenitySeeder(zap.NewNop(), overpass.NewClient(server.URL),
		&fakeStopLister{stops: seederStops()}, store, state.NewManager(nil), 0)
	seeder.writerOpts.Retry.BaseDelay = time.Millisecond

	summary, err := seeder.SeedBrand(context.Background(), Brand{
		Name: "Starbucks", WikidataID: "Q37158", Category: models.CategoryCoffee,
	})
	require.NoError(t, err)

	// 前两次超时后第三次成功
	mu.Lock()
	assert.Equal(t, 3, calls)
	mu.Unlock()
	assert.Equal(t, 2, summary.Written)
}

func TestSeedBrandsContinuesAfterBrandFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.FormValue("data"), "Q-doomed") {
			http.Error(w, "upstream down", http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"elements": []map[string]any{
			{"type": "node", "id": 100, "lat": 36.1502, "lon": -95.9902, "tags": map[string]string{"name": "Starbucks"}},
		}})
	}))
	defer server.Close()

	store := newFakeAmenityStore()
	seeder := NewAmenitySeeder(zap.NewNop(), overpass.NewClient(server.URL),
		&fakeStopLister{stops: seederStops()}, store, state.NewManager(nil), 0)
	seeder.writerOpts.Retry.BaseDelay = time.Millisecond

	summary, err := seeder.SeedBrands(context.Background(), []Brand{
		{Name: "Doomed", WikidataID: "Q-doomed", Category: models.CategoryCoffee},
		{Name: "Starbucks", WikidataID: "Q37158", Category: models.CategoryCoffee},
	})
	require.NoError(t, err)

	// 第一个品牌重试耗尽后只计数，第二个品牌照常写入
	assert.Equal(t, 1, summary.FailedBrands)
	assert.Equal(t, 2, summary.Written)
	assert.Len(t, store.inserted, 2)
}

func TestSeedPOIsEmptyInput(t *testing.T) {
	store := newFakeAmenityStore()
	seeder := NewAmenitySeeder(zap.NewNop(), nil,
		&fakeStopLister{}, store, state.NewManager(nil), 0)

	summary, err := seeder.SeedPOIs(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Pois)
	assert.Empty(t, store.inserted)
}

func TestSeedPOIsDirect(t *testing.T) {
	store := newFakeAmenityStore()
	runs := state.NewManager(nil)
	seeder := NewAmenitySeeder(zap.NewNop(), nil,
		&fakeStopLister{stops: seederStops()}, store, runs, 0)

	hours := "9-17"
	summary, err := seeder.SeedPOIs(context.Background(), []matcher.POI{
		{SourceID: "ovt:abc", Name: "QuikTrip", Category: "convenience_store", Lat: 36.1501, Lng: -95.9901, Hours: &hours},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Written)

	machine, ok := runs.Get(TaskSeedAmenities)
	require.True(t, ok)
	assert.Equal(t, state.PhaseDone, machine.CurrentPhase())
}
