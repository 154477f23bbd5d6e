package archive

import (
	"context"
	stderrors "errors"
	"fmt"
	"path"
	"strings"

	"jobtrends/common/errors"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

type Policy string

const (
	PolicyNone    Policy = "none"
	PolicyNew     Policy = "new"
	PolicyChanged Policy = "changed"
	PolicyAll     Policy = "all"
)

func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return PolicyNone, nil
	case "new", "new-only":
		return PolicyNew, nil
	case "changed", "changed-only":
		return PolicyChanged, nil
	case "all":
		return PolicyAll, nil
	}
	return PolicyNone, errors.InvalidInput(fmt.Sprintf("unknown archive policy %q", s), nil)
}

// Allows reports whether a posting classified as new or changed should be
// archived. Unchanged postings are never archived.
func (p Policy) Allows(isNew, isChanged bool) bool {
	switch p {
	case PolicyAll:
		return isNew || isChanged
	case PolicyNew:
		return isNew
	case PolicyChanged:
		return isChanged
	default:
		return false
	}
}

// Key builds raw/<source>/<postedDate|unknown>/<postingHash>.json.
func Key(source, postedDate, postingHash string) string {
	if postedDate == "" {
		postedDate = "unknown"
	}
	if source == "" {
		source = "unknown"
	}
	return path.Join("raw", source, postedDate, postingHash+".json")
}

type Archiver interface {
	Put(ctx context.Context, key string, data []byte) error
}

type ObjectStore struct {
	store  nats.ObjectStore
	logger *zap.Logger
}

// NewObjectStore opens the JetStream object store bucket, creating it on
// first use.
func NewObjectStore(nc *nats.Conn, bucket string, logger *zap.Logger) (*ObjectStore, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, errors.Unavailable("open jetstream context", err)
	}

	store, err := js.ObjectStore(bucket)
	if stderrors.Is(err, nats.ErrStreamNotFound) || stderrors.Is(err, nats.ErrBucketNotFound) {
		store, err = js.CreateObjectStore(&nats.ObjectStoreConfig{
			Bucket:      bucket,
			Description: "raw job posting archive",
		})
	}
	if err != nil {
		return nil, errors.Unavailable(fmt.Sprintf("open object store %s", bucket), err)
	}

	return &ObjectStore{store: store, logger: logger}, nil
}

func (o *ObjectStore) Put(ctx context.Context, key string, data []byte) error {
	if _, err := o.store.PutBytes(key, data, nats.Context(ctx)); err != nil {
		return errors.Unavailable(fmt.Sprintf("archive %s", key), err)
	}
	o.logger.Debug("archived posting", zap.String("key", key), zap.Int("bytes", len(data)))
	return nil
}
