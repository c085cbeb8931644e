// Package snapshot periodically archives the confirmed LevelDB store to
// S3, a much narrower job than the teacher's snapshot package (which
// walks go-ethereum's account/storage state trie into a flattened
// on-disk layer via snapshot/generate.go's diskLayer.generate). This
// module's confirmed store is already a flat LevelDB directory with no
// trie to flatten, so there is nothing to "generate" -- only to archive
// and ship off-box. The asynchronous shape survives the transplant:
// generate.go runs a background goroutine that tracks a generatorStats
// (origin, start, accounts, slots, storage) and answers an abort channel
// with a final stats snapshot; this package's uploader runs the same
// way, tracking an uploadStats (files, bytes, start) and answering its
// own stop channel with a final report.
package snapshot

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"github.com/corechain/node/internal/log"
)

var logger = log.NewModuleLogger(log.Store)

// Config names the S3 destination and the local directory to archive.
type Config struct {
	Bucket   string
	Prefix   string // key prefix, e.g. "corenode-snapshots"
	DataDir  string // the store.Confirmed directory to archive
	Interval time.Duration
}

// uploadStats mirrors the teacher's generatorStats: a small bag of
// counters a background job updates and logs from, not a type meant to
// be read concurrently without the owning goroutine's cooperation.
type uploadStats struct {
	start time.Time
	files uint64
	bytes uint64
}

func (s *uploadStats) log(msg string) {
	logger.Info(msg, "files", s.files, "bytes", s.bytes, "elapsed", time.Since(s.start))
}

// Uploader periodically tars+gzips Config.DataDir and uploads it to S3
// under a timestamped key, following generate.go's "background goroutine
// plus abort channel that answers with final stats" shape.
type Uploader struct {
	cfg      Config
	uploader *s3manager.Uploader
	abort    chan chan *uploadStats
}

// New builds an Uploader from an AWS session (region/credentials are
// resolved the standard aws-sdk-go way -- environment, shared config,
// or instance profile -- the same resolution the teacher's own cloud
// integrations would rely on since no bespoke credential plumbing is
// grounded anywhere in the example pack).
func New(cfg Config) (*Uploader, error) {
	sess, err := session.NewSession()
	if err != nil {
		return nil, err
	}
	return &Uploader{
		cfg:      cfg,
		uploader: s3manager.NewUploader(sess),
		abort:    make(chan chan *uploadStats),
	}, nil
}

// Run blocks, uploading a snapshot every Config.Interval until stop is
// closed or Stop is called.
func (u *Uploader) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(u.cfg.Interval)
	defer ticker.Stop()
	var last *uploadStats
	for {
		select {
		case <-stop:
			return
		case reply := <-u.abort:
			reply <- last
			return
		case <-ticker.C:
			stats := &uploadStats{start: time.Now()}
			last = stats
			if err := u.uploadOnce(stats); err != nil {
				logger.Error("snapshot/s3: upload failed", "err", err)
				continue
			}
			stats.log("snapshot uploaded")
		}
	}
}

// Stop halts Run and waits for its current cycle to notice.
func (u *Uploader) Stop() {
	reply := make(chan *uploadStats)
	u.abort <- reply
	<-reply
}

// uploadOnce tars+gzips cfg.DataDir into an in-process pipe and streams it
// to S3 via s3manager.Uploader, which handles the multipart split itself
// -- the archive never needs to be fully buffered or written to a
// temporary file first.
func (u *Uploader) uploadOnce(stats *uploadStats) error {
	pr, pw := io.Pipe()

	go func() {
		gz := gzip.NewWriter(pw)
		tw := tar.NewWriter(gz)
		err := filepath.Walk(u.cfg.DataDir, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(u.cfg.DataDir, path)
			if err != nil {
				return err
			}
			hdr, err := tar.FileInfoHeader(info, "")
			if err != nil {
				return err
			}
			hdr.Name = rel
			if err := tw.WriteHeader(hdr); err != nil {
				return err
			}
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			n, err := io.Copy(tw, f)
			if err != nil {
				return err
			}
			stats.files++
			stats.bytes += uint64(n)
			return nil
		})
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if err := tw.Close(); err != nil {
			pw.CloseWithError(err)
			return
		}
		if err := gz.Close(); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.Close()
	}()

	key := fmt.Sprintf("%s/%s.tar.gz", u.cfg.Prefix, time.Now().UTC().Format("20060102T150405Z"))
	_, err := u.uploader.Upload(&s3manager.UploadInput{
		Bucket: aws.String(u.cfg.Bucket),
		Key:    aws.String(key),
		Body:   pr,
	})
	return err
}
