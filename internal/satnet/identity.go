package satnet

import (
	"encoding/binary"
	"fmt"

	"github.com/zeebo/xxh3"
)

// Hash is a stable 16-byte identity for a satellite or link, grounded on
// the teacher's internal/node/hash.go (xxh3.Hash128 over a canonical byte
// encoding of the identifying fields).
type Hash [16]byte

func (h Hash) String() string { return fmt.Sprintf("%x", h[:]) }

func (h Hash) IsZero() bool { return h == Hash{} }

// SatelliteHash derives a stable identity for a satellite from its
// (orbit index, slot index) in the Walker pattern, so the same logical
// satellite hashes identically across snapshots at different times.
func SatelliteHash(orbitIdx, slotIdx int) Hash {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:8], uint64(int64(orbitIdx)))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(int64(slotIdx)))
	sum := xxh3.Hash128(buf[:])
	return hash128ToHash(sum)
}

// GroundHash derives a stable identity for a named ground station.
func GroundHash(name string) Hash {
	sum := xxh3.Hash128([]byte("ground:" + name))
	return hash128ToHash(sum)
}

// LinkHash derives a stable identity for an ordered link (a, b).
func LinkHash(a, b Hash) Hash {
	buf := make([]byte, 0, 32)
	buf = append(buf, a[:]...)
	buf = append(buf, b[:]...)
	sum := xxh3.Hash128(buf)
	return hash128ToHash(sum)
}

func hash128ToHash(sum xxh3.Uint128) Hash {
	var h Hash
	binary.LittleEndian.PutUint64(h[0:8], sum.Hi)
	binary.LittleEndian.PutUint64(h[8:16], sum.Lo)
	return h
}
