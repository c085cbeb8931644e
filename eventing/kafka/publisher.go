// Package kafka publishes confirmed-chain activity onto Kafka topics for
// downstream consumers (analytics pipelines, external indexers) outside
// this process's own eventbus. Grounded on the teacher's
// datasync/chaindatafetcher/event/kafka/kafka.go (the KafkaBroker's
// newProducer/Publish pair) and the topic-naming/JSON-payload shape of
// datasync/chaindatafetcher/kafka/repository.go's HandleChainEvent,
// narrowed to this system's two eventbus streams -- confirmed blocks and
// newly admitted transactions -- rather than chaindatafetcher's full
// block/trace/token/contract fan-out.
package kafka

import (
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/Shopify/sarama"

	"github.com/corechain/node/eventbus"
	"github.com/corechain/node/internal/log"
)

var logger = log.NewModuleLogger(log.Indexer)

// Config mirrors the teacher's KafkaConfig, narrowed to the fields this
// publisher actually needs -- no consumer group, since this package only
// ever produces.
type Config struct {
	Brokers     []string
	TopicPrefix string
}

// Publisher owns a sarama.AsyncProducer and republishes eventbus activity
// onto topics named "<prefix>-blocks" and "<prefix>-transactions", the same
// topic-per-request-type convention as repository.go's
// "<prefix>-blockgroup"/"<prefix>-tracegroup" pair.
type Publisher struct {
	producer    sarama.AsyncProducer
	topicPrefix string
}

// blockMessage is the JSON payload for a published block, a narrow
// projection of chaintypes.Block rather than the full struct so the wire
// format doesn't couple to signature/chunk internals.
type blockMessage struct {
	Id           uint32   `json:"id"`
	Depth        uint32   `json:"depth"`
	MinerId      string   `json:"minerId"`
	Hash         string   `json:"hash"`
	PrevHash     string   `json:"prevHash"`
	Transactions []string `json:"transactions"`
	RolledBack   int      `json:"rolledBack"`
	PublishedAt  int64    `json:"publishedAt"`
}

type transactionMessage struct {
	Ids         []string `json:"ids"`
	PublishedAt int64    `json:"publishedAt"`
}

// New dials brokers and starts an async producer, following the teacher's
// newProducer: snappy compression, local acks, and a short flush interval
// so publishing doesn't block the eventbus dispatch goroutine behind a
// slow broker round trip.
func New(cfg Config) (*Publisher, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.RequiredAcks = sarama.WaitForLocal
	saramaCfg.Producer.Compression = sarama.CompressionSnappy
	saramaCfg.Producer.Flush.Frequency = 500 * time.Millisecond
	saramaCfg.Producer.Return.Successes = false
	saramaCfg.Producer.Return.Errors = true
	saramaCfg.Version = sarama.MaxVersion

	producer, err := sarama.NewAsyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, err
	}

	p := &Publisher{producer: producer, topicPrefix: cfg.TopicPrefix}
	go p.logErrors()
	return p, nil
}

func (p *Publisher) logErrors() {
	for err := range p.producer.Errors() {
		logger.Warn("eventing/kafka: publish failed", "topic", err.Msg.Topic, "err", err.Err)
	}
}

// Attach subscribes the publisher to events.OnBlocks/OnNewTransactions.
func (p *Publisher) Attach(events *eventbus.Events) {
	events.OnBlocks(func(ev eventbus.BlocksEvent) {
		p.publishBlocks(ev)
	})
	events.OnNewTransactions(func(ev eventbus.NewTransactionsEvent) {
		p.publishTransactions(ev)
	})
}

func (p *Publisher) publishBlocks(ev eventbus.BlocksEvent) {
	for _, b := range ev.Blocks {
		ids := make([]string, len(b.Transactions))
		for i, t := range b.Transactions {
			idBytes := t.GetId().Bytes()
			ids[i] = hex.EncodeToString(idBytes[:])
		}
		hash := b.Header.Hash()
		msg := blockMessage{
			Id:           b.Header.Id,
			Depth:        b.Header.Depth,
			MinerId:      b.Header.MinerId.String(),
			Hash:         hex.EncodeToString(hash[:]),
			PrevHash:     hex.EncodeToString(b.Header.PrevHash[:]),
			Transactions: ids,
			RolledBack:   ev.RolledBack,
			PublishedAt:  time.Now().Unix(),
		}
		p.publish(p.topicPrefix+"-blocks", msg)
	}
}

func (p *Publisher) publishTransactions(ev eventbus.NewTransactionsEvent) {
	ids := make([]string, len(ev.Ids))
	for i, k := range ev.Ids {
		ids[i] = hex.EncodeToString(k[:])
	}
	p.publish(p.topicPrefix+"-transactions", transactionMessage{Ids: ids, PublishedAt: time.Now().Unix()})
}

func (p *Publisher) publish(topic string, msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.Error("eventing/kafka: marshal failed", "topic", topic, "err", err)
		return
	}
	p.producer.Input() <- &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(topic),
		Value: sarama.ByteEncoder(data),
	}
}

// Close drains the producer, following sarama's documented shutdown
// order: stop feeding Input before closing.
func (p *Publisher) Close() error {
	return p.producer.Close()
}
