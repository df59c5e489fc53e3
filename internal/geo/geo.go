package geo

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/example/sos-dispatch/internal/models"
)

// ErrNotFound is returned by Nearest when no actor of the requested role has
// a stored location (or none lies within the given radius).
var ErrNotFound = errors.New("no actor found")

// Member is a directory entry returned from a nearest-neighbor query.
type Member struct {
	ID    string
	Role  models.Role
	Coord models.Coord
}

// Directory is the live, overwritable coordinate store per actor. Upsert is
// last-write-wins with no versioning. Nearest answers role-filtered
// nearest-neighbor queries over a geodesic metric; maxDistanceMeters <= 0
// means unbounded.
type Directory interface {
	Upsert(ctx context.Context, id string, role models.Role, c models.Coord) error
	Nearest(ctx context.Context, role models.Role, origin models.Coord, maxDistanceMeters float64) (Member, error)
}

type entry struct {
	role    models.Role
	coord   models.Coord
	updated time.Time
}

// Index is the in-memory Directory used in tests and single-node runs.
type Index struct {
	mu     sync.RWMutex
	actors map[string]entry
}

func NewIndex() *Index {
	return &Index{actors: make(map[string]entry)}
}

func (g *Index) Upsert(_ context.Context, id string, role models.Role, c models.Coord) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.actors[id] = entry{role: role, coord: c, updated: time.Now()}
	return nil
}

// naive scan; in prod use the Redis GEO directory
func (g *Index) Nearest(_ context.Context, role models.Role, origin models.Coord, maxDistanceMeters float64) (Member, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	best := Member{}
	bestDist := math.Inf(1)
	found := false
	for id, e := range g.actors {
		if e.role != role {
			continue
		}
		dist := Haversine(origin.Lat, origin.Lng, e.coord.Lat, e.coord.Lng)
		if maxDistanceMeters > 0 && dist > maxDistanceMeters {
			continue
		}
		// ties resolve to the lexicographically smaller id so results are
		// deterministic across runs
		if dist < bestDist || (dist == bestDist && found && id < best.ID) {
			best = Member{ID: id, Role: role, Coord: e.coord}
			bestDist = dist
			found = true
		}
	}
	if !found {
		return Member{}, ErrNotFound
	}
	return best, nil
}

// Haversine distance in meters
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	const R = 6371000.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}
