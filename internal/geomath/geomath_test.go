package geomath

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	sfDowntown = Coordinate{Latitude: 37.7749, Longitude: -122.4194}
	oakland    = Coordinate{Latitude: 37.8044, Longitude: -122.2712}
	london     = Coordinate{Latitude: 51.5074, Longitude: -0.1278}
)

func TestDistanceKm_Symmetric(t *testing.T) {
	pairs := []struct {
		name string
		a, b Coordinate
	}{
		{"sf to oakland", sfDowntown, oakland},
		{"sf to london", sfDowntown, london},
		{"across antimeridian", Coordinate{Latitude: 0, Longitude: 179.9}, Coordinate{Latitude: 0, Longitude: -179.9}},
	}

	for _, tc := range pairs {
		t.Run(tc.name, func(t *testing.T) {
			require.InDelta(t, DistanceKm(tc.a, tc.b), DistanceKm(tc.b, tc.a), 1e-9)
		})
	}
}

func TestDistanceKm_SamePointIsZero(t *testing.T) {
	require.Zero(t, DistanceKm(sfDowntown, sfDowntown))
	require.Zero(t, DistanceKm(london, london))
}

func TestDistanceKm_KnownDistances(t *testing.T) {
	// SF downtown to Oakland downtown is roughly 13.4 km
	require.InDelta(t, 13.4, DistanceKm(sfDowntown, oakland), 0.5)

	// SF to London is roughly 8616 km
	require.InDelta(t, 8616, DistanceKm(sfDowntown, london), 30)
}

func TestPathLengthKm_EqualsPairwiseSum(t *testing.T) {
	path := []Coordinate{
		sfDowntown,
		{Latitude: 37.79, Longitude: -122.39},
		{Latitude: 37.80, Longitude: -122.30},
		oakland,
	}

	var want float64
	for i := 1; i < len(path); i++ {
		want += DistanceKm(path[i-1], path[i])
	}

	require.InDelta(t, want, PathLengthKm(path), 1e-9)
}

func TestPathLengthKm_DegenerateInputs(t *testing.T) {
	require.Zero(t, PathLengthKm(nil))
	require.Zero(t, PathLengthKm([]Coordinate{sfDowntown}))
}

func TestCoordinate_Valid(t *testing.T) {
	require.True(t, sfDowntown.Valid())
	require.False(t, Coordinate{Latitude: 91, Longitude: 0}.Valid())
	require.False(t, Coordinate{Latitude: 0, Longitude: -181}.Valid())
}
