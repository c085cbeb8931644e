// Command corenode runs a single permissioned blockchain node: the
// control loop of package blockchainctl driven off a BlockTree,
// PendingTransactions pool, CryptoVerifier pool, and confirmed/
// unconfirmed store, serving peers over package session.
//
// Grounded on the teacher's cmd/kcn/main.go (the urfave/cli App wiring a
// single node's subcommands), trimmed to this project's three
// subcommands -- start, genesis, dumpconfig -- since corenode has no
// console/attach/account surface of its own.
package main

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/urfave/cli"

	"github.com/corechain/node/internal/log"
	"github.com/corechain/node/metrics"
)

var logger = log.NewModuleLogger(log.CLI)

var (
	configFileFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file path",
		Value: "corenode.toml",
	}
	dataDirFlag = cli.StringFlag{
		Name:  "datadir",
		Usage: "Data directory for the confirmed block store",
		Value: "./corenode-data",
	}
	nodeKeyFileFlag = cli.StringFlag{
		Name:  "nodekey",
		Usage: "File holding this node's hex-encoded ed25519 private key",
		Value: "./nodekey",
	}
	listenAddrFlag = cli.StringFlag{
		Name:  "addr",
		Usage: "Listen address for inbound peer connections",
		Value: ":30700",
	}
	peersFlag = cli.StringFlag{
		Name:  "peers",
		Usage: "TOML file listing trusted peer addresses and miner ids to dial",
		Value: "",
	}
	metricsEnabledFlag = cli.BoolFlag{
		Name:  metrics.MetricsEnabledFlag,
		Usage: "Enable metrics collection and reporting",
	}
	prometheusExporterFlag = cli.BoolFlag{
		Name:  metrics.PrometheusExporterFlag,
		Usage: "Enable a Prometheus exporter over the metrics registry",
	}
	prometheusExporterPortFlag = cli.IntFlag{
		Name:  metrics.PrometheusExporterPortFlag,
		Usage: "Prometheus exporter listening port",
		Value: 61001,
	}
	natFlag = cli.BoolFlag{
		Name:  "nat",
		Usage: "Attempt UPnP/NAT-PMP port mapping for the listen port",
	}
	httpAddrFlag = cli.StringFlag{
		Name:  "http-addr",
		Usage: "Listen address for the read-only status HTTP API (empty disables it)",
		Value: "",
	}
	indexerDSNFlag = cli.StringFlag{
		Name:  "indexer-dsn",
		Usage: "go-sql-driver/mysql DSN to mirror confirmed blocks into (empty disables it)",
		Value: "",
	}
	kafkaBrokersFlag = cli.StringFlag{
		Name:  "kafka-brokers",
		Usage: "Comma-separated Kafka broker list to publish chain activity to (empty disables it)",
		Value: "",
	}
	kafkaTopicPrefixFlag = cli.StringFlag{
		Name:  "kafka-topic-prefix",
		Usage: "Kafka topic prefix for published chain activity",
		Value: "corenode",
	}
	snapshotS3BucketFlag = cli.StringFlag{
		Name:  "snapshot-s3-bucket",
		Usage: "S3 bucket to periodically archive the confirmed store into (empty disables it)",
		Value: "",
	}
	snapshotS3PrefixFlag = cli.StringFlag{
		Name:  "snapshot-s3-prefix",
		Usage: "S3 key prefix for uploaded snapshots",
		Value: "corenode-snapshots",
	}
	snapshotIntervalFlag = cli.IntFlag{
		Name:  "snapshot-interval-seconds",
		Usage: "Seconds between S3 snapshot uploads",
		Value: 3600,
	}
)

var app = cli.NewApp()

func init() {
	app.Name = "corenode"
	app.Usage = "the command line interface for a permissioned chain node"
	app.Commands = []cli.Command{
		startCommand,
		genesisCommand,
		dumpConfigCommand,
	}
	sort.Sort(cli.CommandsByName(app.Commands))
	app.Flags = []cli.Flag{
		configFileFlag,
		dataDirFlag,
		nodeKeyFileFlag,
		listenAddrFlag,
		peersFlag,
		natFlag,
		metricsEnabledFlag,
		prometheusExporterFlag,
		prometheusExporterPortFlag,
		httpAddrFlag,
		indexerDSNFlag,
		kafkaBrokersFlag,
		kafkaTopicPrefixFlag,
		snapshotS3BucketFlag,
		snapshotS3PrefixFlag,
		snapshotIntervalFlag,
	}
	app.Before = setupMetrics
	app.Action = start
}

// setupMetrics mirrors the teacher's cmd/kcn/main.go app.Before block:
// enable the registry, optionally start the Prometheus exporter, and
// start the background process-metrics sampler.
func setupMetrics(ctx *cli.Context) error {
	metrics.Enabled = ctx.GlobalBool(metricsEnabledFlag.Name)
	if !metrics.Enabled {
		return nil
	}
	logger.Info("enabling metrics collection")
	metrics.EnabledPrometheusExport = ctx.GlobalBool(prometheusExporterFlag.Name)
	if metrics.EnabledPrometheusExport {
		port := ctx.GlobalInt(prometheusExporterPortFlag.Name)
		logger.Info("enabling prometheus exporter", "port", port)
		metrics.StartPrometheusExporter(port, 3*time.Second)
	}
	go metrics.CollectProcessMetrics(3 * time.Second)
	return nil
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
