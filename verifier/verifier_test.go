package verifier_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corechain/node/chaintypes"
	"github.com/corechain/node/cryptoutil"
	"github.com/corechain/node/verifier"
)

func signedTransfer(t *testing.T, amount uint64) *chaintypes.TransferTx {
	pub, priv, err := cryptoutil.GenerateKey()
	require.NoError(t, err)
	var from, to chaintypes.MinerID
	from[0], to[0] = 1, 2
	tx := &chaintypes.TransferTx{BlockId: 1, From: from, To: to, Amount: amount, Signer: pub}
	tx.Sig = cryptoutil.Sign(priv, tx.SignaturePayload())
	return tx
}

func TestVerifyBatchIndexAligned(t *testing.T) {
	v := verifier.New(4)
	defer v.Shutdown()

	good := signedTransfer(t, 1)
	bad := signedTransfer(t, 2)
	bad.Sig[0] ^= 0xff

	results := v.VerifyBatch([]chaintypes.Transaction{good, bad, good})
	require.Equal(t, []bool{true, false, true}, results)
}

func TestVerifyOneCallbackOffCaller(t *testing.T) {
	v := verifier.New(2)
	defer v.Shutdown()

	tx := signedTransfer(t, 5)
	callerGoroutine := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	var gotOK bool
	// The callback waits until the caller is past VerifyOne; a callback run
	// synchronously on the caller's goroutine would never return.
	v.VerifyOne(tx, func(_ chaintypes.Transaction, ok bool) {
		defer wg.Done()
		<-callerGoroutine
		gotOK = ok
	})
	close(callerGoroutine)
	wg.Wait()
	require.True(t, gotOK)
}

func TestShutdownDrainsOutstandingWork(t *testing.T) {
	v := verifier.New(3)
	txs := make([]chaintypes.Transaction, 50)
	for i := range txs {
		txs[i] = signedTransfer(t, uint64(i))
	}
	results := v.VerifyBatch(txs)
	for _, ok := range results {
		require.True(t, ok)
	}
	v.Shutdown()
}
