package common

import (
	"github.com/nspcc-dev/neo-go/pkg/interop"
	"github.com/nspcc-dev/neo-go/pkg/interop/convert"
	"github.com/nspcc-dev/neo-go/pkg/interop/native/crypto"
)

// StudioKey derives the stable settlement key of a market from the market
// contract hash and its per-market id. Markets are referenced by this key
// from registration until a studio exists and after.
func StudioKey(market interop.Hash160, marketID int) interop.Hash256 {
	data := []byte{}
	data = append(data, market...)
	data = append(data, convert.ToBytes(marketID)...)

	return crypto.Sha256(data)
}
