package main

import (
	"context"
	"fmt"
	"path"

	"github.com/hupe1980/kpagg"
	"github.com/hupe1980/kpagg/blobstore/minio"
	"github.com/hupe1980/kpagg/blobstore/s3"
	"github.com/hupe1980/kpagg/config"
	"github.com/spf13/pflag"
)

// storeFlags overrides the store section of a config file.
type storeFlags struct {
	backend     string
	data        string
	compression string
	bucket      string
	prefix      string
	endpoint    string
	region      string
	commitTable string
}

func (sf *storeFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&sf.backend, "backend", "", "storage backend: local, sqlite, s3 or minio (default local)")
	fs.StringVar(&sf.data, "data", "", "data directory, or database file for sqlite")
	fs.StringVar(&sf.compression, "compression", "", "record compression: none, lz4 or zstd")
	fs.StringVar(&sf.bucket, "bucket", "", "bucket for s3 and minio")
	fs.StringVar(&sf.prefix, "prefix", "", "key prefix for s3 and minio")
	fs.StringVar(&sf.endpoint, "endpoint", "", "service endpoint for s3 and minio")
	fs.StringVar(&sf.region, "region", "", "region for s3 and minio")
	fs.StringVar(&sf.commitTable, "commit-table", "", "DynamoDB table that serializes s3 checkpoints")
}

func (sf *storeFlags) apply(s *config.Store) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&s.Backend, sf.backend)
	set(&s.Path, sf.data)
	set(&s.Compression, sf.compression)
	set(&s.Bucket, sf.bucket)
	set(&s.Prefix, sf.prefix)
	set(&s.Endpoint, sf.endpoint)
	set(&s.Region, sf.region)
	set(&s.CommitTable, sf.commitTable)
}

func openBackend(ctx context.Context, s config.Store) (kpagg.Backend, error) {
	switch s.Backend {
	case "", "local":
		if s.Path == "" {
			return kpagg.Backend{}, fmt.Errorf("local backend requires --data")
		}
		return kpagg.Local(s.Path), nil
	case "sqlite":
		if s.Path == "" {
			return kpagg.Backend{}, fmt.Errorf("sqlite backend requires --data")
		}
		return kpagg.SQLite(s.Path), nil
	case "s3":
		if s.Bucket == "" {
			return kpagg.Backend{}, fmt.Errorf("s3 backend requires --bucket")
		}
		st, err := s3.New(ctx, s.Bucket,
			s3.WithPrefix(s.Prefix),
			s3.WithRegion(s.Region),
			s3.WithEndpoint(s.Endpoint),
		)
		if err != nil {
			return kpagg.Backend{}, err
		}
		if s.CommitTable == "" {
			return kpagg.Remote(st), nil
		}
		cfg, err := s3.LoadConfig(ctx, s.Region)
		if err != nil {
			return kpagg.Backend{}, err
		}
		baseURI := "s3://" + path.Join(s.Bucket, s.Prefix)
		return kpagg.Remote(s3.NewDDBCommitStore(st, s3.NewDDBClient(cfg), s.CommitTable, baseURI)), nil
	case "minio":
		if s.Bucket == "" || s.Endpoint == "" {
			return kpagg.Backend{}, fmt.Errorf("minio backend requires --bucket and --endpoint")
		}
		st, err := minio.Dial(ctx, minio.Config{
			Endpoint:  s.Endpoint,
			AccessKey: s.AccessKey,
			SecretKey: s.SecretKey,
			Region:    s.Region,
			Secure:    s.UseSSL,
			Bucket:    s.Bucket,
			Prefix:    s.Prefix,
		})
		if err != nil {
			return kpagg.Backend{}, err
		}
		return kpagg.Remote(st), nil
	default:
		return kpagg.Backend{}, fmt.Errorf("unknown backend %q", s.Backend)
	}
}
