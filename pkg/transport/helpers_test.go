package transport

import (
	"testing"

	"github.com/sui-sandbox/replay/pkg/address"
	"github.com/sui-sandbox/replay/pkg/types"
)

func mustParseTestAddr(t *testing.T, s string) address.Address {
	t.Helper()
	a, err := address.Parse(s)
	if err != nil {
		t.Fatalf("parse address %q: %v", s, err)
	}
	return a
}

func mustTypeTagU64() types.TypeTag {
	return types.TypeTag{Kind: types.TypeU64}
}
