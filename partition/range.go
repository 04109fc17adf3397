package partition

import (
	"bytes"
	"math/big"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/xerrors"
)

// vertexNamespace is the UUID namespace used for deriving partition keys from
// arbitrary vertex IDs.
var vertexNamespace = uuid.MustParse("9f3c2a1e-6d1b-4c8e-9a57-1f0d2b7c4e60")

// KeyForVertex maps a vertex ID to a stable point in the UUID space.
func KeyForVertex(vertexID string) uuid.UUID {
	return uuid.NewSHA1(vertexNamespace, []byte(vertexID))
}

// Range represents the full UUID space split into a number of contiguous
// partitions, one per worker participating in a job.
type Range struct {
	start       uuid.UUID
	rangeSplits []uuid.UUID
}

// NewFullRange creates a new range that uses the full UUID value space and
// splits it into the provided number of partitions.
func NewFullRange(numPartitions int) (*Range, error) {
	return NewRange(
		uuid.Nil,
		uuid.MustParse("ffffffff-ffff-ffff-ffff-ffffffffffff"),
		numPartitions,
	)
}

// NewRange creates a new range [start, end) and splits it into the
// provided number of partitions.
func NewRange(start, end uuid.UUID, numPartitions int) (*Range, error) {
	if bytes.Compare(start[:], end[:]) >= 0 {
		return nil, xerrors.Errorf("range start UUID must be less than the end UUID")
	} else if numPartitions <= 0 {
		return nil, xerrors.Errorf("number of partitions must be at least equal to 1")
	}

	// Each partition spans (end - start + 1) / numPartitions tokens.
	startInt := big.NewInt(0).SetBytes(start[:])
	partSize := big.NewInt(0).Sub(big.NewInt(0).SetBytes(end[:]), startInt)
	partSize = partSize.Div(partSize.Add(partSize, big.NewInt(1)), big.NewInt(int64(numPartitions)))

	splits := make([]uuid.UUID, numPartitions)
	for partition := 0; partition < numPartitions; partition++ {
		if partition == numPartitions-1 {
			splits[partition] = end
			continue
		}

		token := big.NewInt(0).Mul(partSize, big.NewInt(int64(partition+1)))
		token = token.Add(token, startInt)
		splits[partition] = tokenToUUID(token)
	}

	return &Range{start: start, rangeSplits: splits}, nil
}

// tokenToUUID converts a big integer in the UUID space into a left-padded
// UUID value.
func tokenToUUID(token *big.Int) uuid.UUID {
	var id uuid.UUID
	b := token.Bytes()
	copy(id[len(id)-len(b):], b)
	return id
}

// NumPartitions returns the number of partitions in the range.
func (r *Range) NumPartitions() int { return len(r.rangeSplits) }

// Extents returns the [start, end) extents of the entire range.
func (r *Range) Extents() (uuid.UUID, uuid.UUID) {
	return r.start, r.rangeSplits[len(r.rangeSplits)-1]
}

// PartitionExtents returns the [start, end) range for the requested partition.
func (r *Range) PartitionExtents(partition int) (uuid.UUID, uuid.UUID, error) {
	if partition < 0 || partition >= len(r.rangeSplits) {
		return uuid.Nil, uuid.Nil, xerrors.Errorf("invalid partition index")
	}

	if partition == 0 {
		return r.start, r.rangeSplits[0], nil
	}
	return r.rangeSplits[partition-1], r.rangeSplits[partition], nil
}

// PartitionForID returns the partition index that the provided ID belongs to.
func (r *Range) PartitionForID(id uuid.UUID) (int, error) {
	// The split points are sorted so a binary search finds the slot.
	partIndex := sort.Search(len(r.rangeSplits), func(n int) bool {
		return bytes.Compare(id[:], r.rangeSplits[n][:]) < 0
	})

	// The last partition is closed so that the maximum UUID is covered.
	if partIndex == len(r.rangeSplits) && bytes.Equal(id[:], r.rangeSplits[partIndex-1][:]) {
		partIndex--
	}

	if bytes.Compare(id[:], r.start[:]) < 0 || partIndex >= len(r.rangeSplits) {
		return -1, xerrors.Errorf("unable to detect partition for ID %q", id)
	}

	return partIndex, nil
}

// PartitionForVertex returns the partition index that owns the specified
// vertex ID.
func (r *Range) PartitionForVertex(vertexID string) (int, error) {
	return r.PartitionForID(KeyForVertex(vertexID))
}
