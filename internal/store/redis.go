package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/danmuck/packlink/internal/protocol"
)

// blobCodec serializes blobs in their wire layout. Blob layouts carry no
// sentinels, so direction does not matter.
var blobCodec = protocol.Codec{Tags: protocol.DefaultTags()}

// RedisPersister stores each kind as a hash holding the wire layout and the
// save time, under <prefix>:<node>:config:<kind>.
type RedisPersister struct {
	client *redis.Client
	prefix string
	node   string
}

func NewRedisPersister(client *redis.Client, prefix, node string) (*RedisPersister, error) {
	if client == nil {
		return nil, errors.New("store: nil redis client")
	}
	if node == "" {
		return nil, errors.New("store: redis persister node is required")
	}
	if prefix == "" {
		prefix = "packlink"
	}
	return &RedisPersister{client: client, prefix: prefix, node: node}, nil
}

func (r *RedisPersister) Name() string { return "redis" }

func (r *RedisPersister) Key(kind protocol.ConfigKind) string {
	return fmt.Sprintf("%s:%s:config:%s", r.prefix, r.node, kind)
}

func (r *RedisPersister) Load(ctx context.Context, kind protocol.ConfigKind) (protocol.Body, error) {
	shape, err := kind.Shape()
	if err != nil {
		return nil, err
	}
	raw, err := r.client.HGet(ctx, r.Key(kind), "blob").Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	tag, _ := blobCodec.Tag(shape)
	return blobCodec.Decode(protocol.Datagram{Tag: tag, Payload: raw})
}

func (r *RedisPersister) Save(ctx context.Context, kind protocol.ConfigKind, body protocol.Body) error {
	d, err := blobCodec.Encode(body)
	if err != nil {
		return err
	}
	return r.client.HSet(ctx, r.Key(kind),
		"blob", d.Payload,
		"shape", body.Shape().String(),
		"saved_at", time.Now().Unix(),
	).Err()
}
