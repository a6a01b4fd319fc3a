package solver

import (
	"encoding/binary"
	"fmt"
	"sort"
	"sync"

	chd "github.com/opencoff/go-chd"
)

// HandIndexer computes a canonical isomorphism index for a set of hole and
// board cards: two card combinations that are strategically identical up to
// suit relabelling map to the same index. The real suit-isomorphism
// indexer is an external collaborator (spec.md §6); this module only
// depends on the interface, plus a canonical-sort fallback (below) that is
// card-order-insensitive but not suit-isomorphism-aware, good enough for tests and
// small-scale runs where no pre-built isomorphism tables are available.
type HandIndexer interface {
	// IndexLast returns the isomorphism index for cards, which must be in
	// (2 hole + k board) order for some k in {0,3,4,5}.
	IndexLast(cards []Card) uint64
}

// canonicalIndexer is the order-insensitive fallback: it sorts the card set and
// hashes the sorted ranks/suits together. It is not a true isomorphism
// indexer (two hands that differ only by a suit permutation still get
// distinct indices from it), so cluster tables built over it only save
// work from repeated lookups, not from suit abstraction; a production
// deployment supplies a real indexer loaded from the external tool.
type canonicalIndexer struct{}

func (canonicalIndexer) IndexLast(cards []Card) uint64 {
	sorted := append([]Card(nil), cards...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	var idx uint64
	for _, c := range sorted {
		idx = idx*53 + uint64(c) + 1
	}
	return idx
}

// DefaultHandIndexer returns the order-insensitive fallback indexer.
func DefaultHandIndexer() HandIndexer { return canonicalIndexer{} }

// NPreflopClusters is the canonical 169 starting-hand count (13 pairs, 78
// suited, 78 offsuit): preflop clustering is the identity map over these,
// per spec.md §4.4.
const NPreflopClusters = 169

// DefaultPostflopClusters is the default postflop cluster count referenced
// throughout spec.md §3/§9.
const DefaultPostflopClusters = 200

// PreflopCluster returns the 169-way canonical starting-hand id for a hole
// pair: rank-pair identity collapsed by pair/suited/offsuit, independent of
// suit or kicker beyond rank.
func PreflopCluster(h Hand) uint16 {
	hiRank, loRank := h.Hi.Rank(), h.Lo.Rank()
	if hiRank < loRank {
		hiRank, loRank = loRank, hiRank
	}
	if hiRank == loRank {
		return uint16(hiRank) // 13 pair buckets, 0..12
	}
	suited := h.Hi.Suit() == h.Lo.Suit()
	// 78 suited + 78 offsuit combos above the 13 pairs.
	base := 13 + (hiRank*(hiRank-1))/2 + loRank
	if suited {
		return uint16(base)
	}
	return uint16(78 + base)
}

// postflopTable is a compress-hash-displace (CHD) minimal perfect hash over
// the *observed* isomorphism indices for one postflop round, mapping each
// to its cluster id. Because the key set is exactly the indices a cluster
// file actually enumerates (not the full isomorphism space), the loaded
// table costs O(distinct indices) rather than O(all possible indices) --
// spec.md §4.4's tables are "loaded from disk" but says nothing about their
// in-memory shape, so this module chooses the compact one.
type postflopTable struct {
	mph *chd.CHD
	ids []uint16
}

// keyBytes renders an isomorphism index as an 8-byte big-endian key, the
// format expected by chd.CHD's byte-slice keys.
func keyBytes(idx uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], idx)
	return b[:]
}

// buildPostflopTable constructs a perfect-hash table from parallel index/id
// slices, as loaded from a cluster table file (spec.md §6: "numpy-like
// dense arrays of uint16", here re-keyed to the sparse index set rather
// than densely indexed by the full isomorphism space).
func buildPostflopTable(indices []uint64, ids []uint16) (*postflopTable, error) {
	if len(indices) != len(ids) {
		return nil, fmt.Errorf("solver: cluster table index/id length mismatch (%d vs %d)", len(indices), len(ids))
	}
	keys := make([][]byte, len(indices))
	for i, idx := range indices {
		keys[i] = keyBytes(idx)
	}
	mph, err := chd.New(keys)
	if err != nil {
		return nil, fmt.Errorf("solver: build cluster perfect hash: %w", err)
	}
	// chd.CHD.Find returns the index into the original key slice; ids are
	// stored in that same slot order so Find(key) indexes directly into ids.
	return &postflopTable{mph: mph, ids: append([]uint16(nil), ids...)}, nil
}

func (t *postflopTable) lookup(idx uint64) (uint16, bool) {
	slot := t.mph.Find(keyBytes(idx))
	if slot >= uint64(len(t.ids)) {
		return 0, false
	}
	return t.ids[slot], true
}

// ClusterMap wraps the (possibly absent) per-round cluster tables behind a
// single lookup surface: preflop is always the 169-entry identity map;
// postflop rounds delegate to a loaded perfect-hash table, with the
// canonical-sort fallback id (mod nClusters) used for any index the loaded
// table doesn't recognise, so the trainer can still run before real cluster
// files are available.
type ClusterMap struct {
	nClustersPerRound [numRounds]int
	postflop          [numRounds]*postflopTable
	indexer           HandIndexer
}

// NewClusterMap builds a ClusterMap with the canonical-sort fallback
// indexer and no loaded postflop tables (every postflop lookup falls back
// to index-modulo-clusters).
func NewClusterMap(postflopClusters int) *ClusterMap {
	m := &ClusterMap{indexer: DefaultHandIndexer()}
	m.nClustersPerRound[0] = NPreflopClusters
	for r := 1; r < numRounds; r++ {
		m.nClustersPerRound[r] = postflopClusters
	}
	return m
}

// LoadPostflopTable installs a perfect-hash cluster table for round
// (1=flop, 2=turn, 3=river), built from parallel isomorphism-index/cluster-
// id slices as read from a cluster table file.
func (m *ClusterMap) LoadPostflopTable(round int, indices []uint64, ids []uint16) error {
	invariant("ClusterMap.LoadPostflopTable", round >= 1 && round < numRounds, "preflop has no postflop table")
	table, err := buildPostflopTable(indices, ids)
	if err != nil {
		return err
	}
	m.postflop[round] = table
	return nil
}

// NClusters returns the cluster count configured for round.
func (m *ClusterMap) NClusters(round int) int {
	return m.nClustersPerRound[round]
}

// Cluster maps a hole hand plus the board dealt so far to a cluster id for
// the given round. Preflop ignores the board entirely (identity over the
// 169 starting hands); postflop consults the loaded perfect-hash table,
// falling back to the raw isomorphism index modulo the cluster count when
// no table has been loaded for that round.
func (m *ClusterMap) Cluster(round int, hole Hand, board Board) uint16 {
	if round == 0 {
		return PreflopCluster(hole)
	}
	cards := make([]Card, 0, 2+len(board))
	cards = append(cards, hole.Hi, hole.Lo)
	cards = append(cards, board...)
	idx := m.indexer.IndexLast(cards)

	if table := m.postflop[round]; table != nil {
		if id, ok := table.lookup(idx); ok {
			return id
		}
	}
	n := m.nClustersPerRound[round]
	if n <= 0 {
		n = DefaultPostflopClusters
	}
	return uint16(idx % uint64(n))
}

// clusterRegistry holds process-wide ClusterMap singletons, initialised
// lazily and thread-safely on first use, per spec.md §4.4/§5.
type clusterRegistry struct {
	once sync.Once
	m    *ClusterMap
}

var defaultClusterRegistry clusterRegistry

// DefaultClusterMap returns the process-wide default ClusterMap (200
// postflop clusters, no loaded tables), building it on first call.
func DefaultClusterMap() *ClusterMap {
	defaultClusterRegistry.once.Do(func() {
		defaultClusterRegistry.m = NewClusterMap(DefaultPostflopClusters)
	})
	return defaultClusterRegistry.m
}
