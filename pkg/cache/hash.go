package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"

	"github.com/matzehuels/geomap/pkg/geo"
)

// Keyer builds cache keys for data-source requests.
type Keyer interface {
	// SectorKey identifies a map fetch for one sector.
	SectorKey(box geo.BoundingBox) string

	// WaysKey identifies the member ways of a relation.
	WaysKey(relationID int64) string

	// NodesKey identifies a batch node fetch. Order of ids is irrelevant.
	NodesKey(ids []int64) string
}

// DefaultKeyer is the standard [Keyer].
type DefaultKeyer struct{}

// NewDefaultKeyer returns the standard keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// SectorKey hashes the exact corner values so abutting sectors never collide.
func (DefaultKeyer) SectorKey(box geo.BoundingBox) string {
	return hashKey(KeyTypeSector, box.MinLon, box.MinLat, box.MaxLon, box.MaxLat)
}

func (DefaultKeyer) WaysKey(relationID int64) string {
	return KeyTypeWays + ":" + strconv.FormatInt(relationID, 10)
}

func (DefaultKeyer) NodesKey(ids []int64) string {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	return hashKey(KeyTypeNodes, sorted)
}

// hashKey generates a cache key by hashing the components.
// The key format is: prefix:hash(parts...)
func hashKey(prefix string, parts ...any) string {
	data, _ := json.Marshal(parts)
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%s:%s", prefix, hex.EncodeToString(hash[:]))
}

// Hash computes a SHA-256 hash of the input data.
// Returns the full 64-character hex string.
func Hash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
