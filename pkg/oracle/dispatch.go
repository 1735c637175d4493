// Package oracle defines the decryption-oracle boundary: the outbound
// dispatch call that hands a committed handle set to the oracle, and the
// cleartext payload codec for the inbound callback. Dispatch and callback
// are two independent operations connected only by the stored commitment;
// delivery is not guaranteed and a request may stay pending forever.
package oracle

import (
	"context"

	"github.com/Veilstone-Labs/fhegate/pkg/contracts"
)

// Dispatcher asks the external oracle to decrypt an ordered handle set.
// It returns the oracle-assigned request id, unique for the lifetime of
// the deployment. The callback selector names the inbound route the oracle
// will invoke with the cleartext and its attestation.
type Dispatcher interface {
	RequestDecryption(ctx context.Context, handles []contracts.Handle, callback string) (uint64, error)
}

// DefaultCallback is the gateway's inbound callback route.
const DefaultCallback = "/v1/oracle/callback"
