package chaintypes

import "github.com/corechain/node/cryptoutil"

// BuildParams are the header fields the caller (mining, or the BlockTree
// materializing a COMPLETE PendingBlock) has already decided on; Build
// computes the body, the id chunks, and signs the header.
type BuildParams struct {
	Version      byte
	MaxVersion   byte
	Id           uint32
	Depth        uint32
	PrevHash     [32]byte
	MinerId      MinerID
	NextMiners   []MinerID
	Transactions []Transaction
	ChunkSize    int
}

// Build assembles a signed Block from BuildParams. priv signs the header;
// pub is embedded as Header.SignerKey.
func Build(p BuildParams, pub cryptoutil.PublicKey, priv cryptoutil.PrivateKey) *Block {
	chunks := chunkTransactions(p.Transactions, p.ChunkSize)
	chunkHashes := make([][32]byte, len(chunks))
	var totalSize uint64
	for i, chunk := range chunks {
		chunkHashes[i] = HashChunk(chunk)
	}
	for _, tx := range p.Transactions {
		totalSize += uint64(tx.GetSize())
	}
	body := &Body{
		Version:             p.Version,
		MaxSupportedVersion: p.MaxVersion,
		TransactionCount:    uint32(len(p.Transactions)),
		TransactionsSize:    totalSize,
		ChunkHashes:         chunkHashes,
	}
	header := &Header{
		Version:    p.Version,
		Id:         p.Id,
		Depth:      p.Depth,
		PrevHash:   p.PrevHash,
		BodyHash:   body.Hash(),
		MinerId:    p.MinerId,
		NextMiners: p.NextMiners,
		SignerKey:  pub,
	}
	header.Sign(priv)
	return &Block{
		Header:       header,
		Body:         body,
		IdChunks:     chunks,
		Transactions: p.Transactions,
	}
}

func chunkTransactions(txs []Transaction, chunkSize int) [][]TransactionId {
	if len(txs) == 0 {
		return nil
	}
	n := (len(txs) + chunkSize - 1) / chunkSize
	chunks := make([][]TransactionId, 0, n)
	for i := 0; i < len(txs); i += chunkSize {
		end := i + chunkSize
		if end > len(txs) {
			end = len(txs)
		}
		ids := make([]TransactionId, end-i)
		for j := i; j < end; j++ {
			ids[j-i] = txs[j].GetId()
		}
		chunks = append(chunks, ids)
	}
	return chunks
}
