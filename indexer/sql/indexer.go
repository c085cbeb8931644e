// Package sql mirrors the confirmed chain into a relational database for
// external queries, the slice of the teacher's
// datasync/chaindatafetcher/chaindata_fetcher.go capability that fits
// this system's event stream: that file subscribes to
// blockchain.ChainEvent and hands each one to a pluggable Repository with
// retry/checkpoint bookkeeping, a mode this package narrows to a single
// jinzhu/gorm-backed MySQL repository rather than chaindatafetcher's
// KAS/Kafka mode switch.
package sql

import (
	"time"

	"github.com/jinzhu/gorm"
	gometrics "github.com/rcrowley/go-metrics"
	_ "github.com/go-sql-driver/mysql"

	"github.com/corechain/node/chaintypes"
	"github.com/corechain/node/eventbus"
	"github.com/corechain/node/internal/log"
	"github.com/corechain/node/metrics"
)

var logger = log.NewModuleLogger(log.Indexer)

const retryInterval = 2 * time.Second

// BlockRow is the "blocks" table row, grounded on chaindata_fetcher.go's
// ChainEvent but narrowed to this system's Block shape.
type BlockRow struct {
	Id          uint32 `gorm:"primary_key"`
	Depth       uint32
	MinerId     string
	Hash        string
	PrevHash    string
	TxCount     uint32
	IndexedAt   time.Time
}

// TransactionRow is the "transactions" table row.
type TransactionRow struct {
	Id      uint64 `gorm:"primary_key;AUTO_INCREMENT"`
	BlockId uint32 `gorm:"index"`
	TxType  uint8
	UserId  string
	Hash    string
}

// Indexer subscribes to eventbus.Events and writes every confirmed block
// (and its transactions) into a gorm-backed database, retrying on
// failure the same way chaindata_fetcher.go's retryFunc does -- a row
// that fails to write is retried forever on a fixed interval rather than
// dropped, since a gap in the SQL mirror is a correctness bug for anyone
// querying it.
type Indexer struct {
	db     *gorm.DB
	stopCh chan struct{}

	indexedBlockGauge gometrics.Gauge
	indexErrorCounter gometrics.Counter
}

// Open connects to dsn (a go-sql-driver/mysql data source name) and
// migrates the schema. Metric handles are resolved here rather than at
// package init, since metrics.Enabled is only set from CLI flags inside
// main's app.Before, which runs before Open is ever called but after
// package-level vars would already have latched the no-op implementation.
func Open(dsn string) (*Indexer, error) {
	db, err := gorm.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&BlockRow{}, &TransactionRow{}).Error; err != nil {
		db.Close()
		return nil, err
	}
	return &Indexer{
		db:                db,
		stopCh:            make(chan struct{}),
		indexedBlockGauge: metrics.GetOrRegisterGauge("indexer/sql/block"),
		indexErrorCounter: metrics.GetOrRegisterCounter("indexer/sql/errors"),
	}, nil
}

// Close releases the database connection.
func (ix *Indexer) Close() error {
	return ix.db.Close()
}

// Attach subscribes Indexer to events.OnBlocks; every block in a posted
// BlocksEvent is indexed in order, including ones brought in by a branch
// switch (the RolledBack count itself isn't stored -- the blocks slice
// already reflects the new active branch).
func (ix *Indexer) Attach(events *eventbus.Events) {
	events.OnBlocks(func(ev eventbus.BlocksEvent) {
		for _, b := range ev.Blocks {
			ix.indexWithRetry(b)
		}
	})
}

func (ix *Indexer) indexWithRetry(b *chaintypes.Block) {
	for {
		select {
		case <-ix.stopCh:
			return
		default:
		}
		if err := ix.indexBlock(b); err != nil {
			ix.indexErrorCounter.Inc(1)
			logger.Warn("indexer/sql: write failed, retrying", "block", b.Header.Id, "err", err)
			time.Sleep(retryInterval)
			continue
		}
		ix.indexedBlockGauge.Update(int64(b.Header.Id))
		return
	}
}

func (ix *Indexer) indexBlock(b *chaintypes.Block) error {
	return ix.db.Transaction(func(tx *gorm.DB) error {
		row := BlockRow{
			Id:        b.Header.Id,
			Depth:     b.Header.Depth,
			MinerId:   b.Header.MinerId.String(),
			Hash:      hashString(b.Header.Hash()),
			PrevHash:  hashString(b.Header.PrevHash),
			TxCount:   uint32(len(b.Transactions)),
			IndexedAt: time.Now(),
		}
		if err := tx.Save(&row).Error; err != nil {
			return err
		}
		for _, t := range b.Transactions {
			id := t.GetId()
			txRow := TransactionRow{
				BlockId: b.Header.Id,
				TxType:  uint8(id.Type),
				UserId:  t.GetUserId().String(),
				Hash:    hashString(id.Hash),
			}
			if err := tx.Create(&txRow).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func hashString(h [32]byte) string {
	const hex = "0123456789abcdef"
	out := make([]byte, 64)
	for i, b := range h {
		out[i*2] = hex[b>>4]
		out[i*2+1] = hex[b&0xf]
	}
	return string(out)
}

// Stop halts any in-flight retry loops. Already-running indexWithRetry
// calls observe stopCh on their next retry tick.
func (ix *Indexer) Stop() {
	close(ix.stopCh)
}
