// Package redis provides a Redis-backed storage repository so that multiple
// keygate instances can share one session table.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/keygate/storage"
)

const opTimeout = 5 * time.Second

// Store implements storage.Repository on a Redis server. Record keys are
// namespaced as "<bucket>:<key>".
type Store struct {
	client *redis.Client
}

var _ storage.Repository = (*Store)(nil)

// NewRepository returns a Repository using the given client.
func NewRepository(client *redis.Client) *Store {
	return &Store{client: client}
}

// NewRepositoryFromURL connects to the Redis server at the given URL
// (redis://...) and verifies the connection with a ping.
func NewRepositoryFromURL(url string) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return NewRepository(client), nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func recordKey(bucket, key string) string {
	return bucket + ":" + key
}

func (s *Store) Put(bucket, key string, value []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	return s.client.Set(ctx, recordKey(bucket, key), value, 0).Err()
}

func (s *Store) Get(bucket, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	data, err := s.client.Get(ctx, recordKey(bucket, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%s/%s: %w", bucket, key, storage.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *Store) Delete(bucket, key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	return s.client.Del(ctx, recordKey(bucket, key)).Err()
}

func (s *Store) Keys(bucket string) ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	prefix := bucket + ":"
	var keys []string
	iter := s.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val()[len(prefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}
