package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Veilstone-Labs/fhegate/pkg/batch"
	"github.com/Veilstone-Labs/fhegate/pkg/gate"
)

func newLedger(clock *fakeClock) *batch.Ledger {
	return batch.NewLedger().WithClock(clock.Now)
}

func newDenyPolicy(t *testing.T, expr string) *gate.Policy {
	t.Helper()
	p, err := gate.NewPolicy()
	require.NoError(t, err)
	require.NoError(t, p.SetExpression(expr))
	return p
}
