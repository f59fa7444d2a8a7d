package compare

import (
	"golang.org/x/crypto/blake2b"

	"github.com/sui-sandbox/replay/pkg/bcs"
	"github.com/sui-sandbox/replay/pkg/transport"
	"github.com/sui-sandbox/replay/pkg/types"
)

// hash256 returns the 32-byte Blake2b digest of data, the hash family the
// chain uses for object and dynamic-field id derivation (grounded on
// sui-napi's `blake2b256` helper).
func hash256(data []byte) [32]byte {
	return blake2b.Sum256(data)
}

// ObjectDigest independently recomputes an output object's canonical
// digest from its raw checkpoint fields: type, public-transfer flag,
// version, contents, owner, previous transaction, and storage rebate
// (§4.8 step 3's "reconstruct the object structure ... then hash").
func ObjectDigest(obj transport.OutputObject) [32]byte {
	w := bcs.NewWriter()
	obj.TypeTag.BCS(w)
	if obj.HasPublicTransfer {
		w.WriteU8(1)
	} else {
		w.WriteU8(0)
	}
	w.WriteU64(uint64(obj.Version))
	w.WriteBytes(obj.Contents)
	encodeOwner(w, obj.Owner)
	w.WriteFixedBytes(obj.PreviousTransaction[:])
	w.WriteU64(obj.StorageRebate)
	return hash256(w.Bytes())
}

func encodeOwner(w *bcs.Writer, o types.Owner) {
	switch o.Kind {
	case types.OwnerAddress:
		w.WriteU8(0)
		w.WriteFixedBytes(o.Address.Bytes())
	case types.OwnerObject:
		w.WriteU8(1)
		w.WriteFixedBytes(o.Parent.Bytes())
	case types.OwnerShared:
		w.WriteU8(2)
		w.WriteU64(uint64(o.InitialSharedVersion))
	case types.OwnerImmutable:
		w.WriteU8(3)
	case types.OwnerConsensusAddress:
		// §3 Open Question: no fixture exercises this variant's digest
		// encoding. Structurally present so parsing never panics; see
		// pkg/replay's Open Question notes.
		w.WriteU8(4)
		w.WriteU64(uint64(o.ConsensusStartVersion))
		w.WriteFixedBytes(o.ConsensusOwner.Bytes())
	}
}
