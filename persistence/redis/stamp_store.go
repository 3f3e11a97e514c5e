package redis

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/timelock-labs/chainstamp"
)

// Keys for stamp storage
const (
	stampListKey   = "chainstamp:stamps"      // list of stamp records, newest first
	lastDigestKey  = "chainstamp:stamps:last" // last stamped digest
	defaultMaxKeep = 1000                     // history records kept before trimming
)

// StampStore provides Redis-based persistence for stamp records.
// It implements the chainstamp.StampStore interface.
type StampStore struct {
	client    redis.UniversalClient
	keyPrefix string
	maxKeep   int64
}

// StampStoreOption configures a StampStore.
type StampStoreOption func(*StampStore)

// WithStampStoreKeyPrefix sets a custom prefix for all Redis keys.
func WithStampStoreKeyPrefix(prefix string) StampStoreOption {
	return func(s *StampStore) {
		s.keyPrefix = prefix
	}
}

// WithStampStoreMaxHistory caps the number of records kept in the history
// list. Older records are trimmed on write.
func WithStampStoreMaxHistory(n int64) StampStoreOption {
	return func(s *StampStore) {
		s.maxKeep = n
	}
}

// NewStampStore creates a new Redis-based stamp store.
func NewStampStore(client redis.UniversalClient, opts ...StampStoreOption) *StampStore {
	s := &StampStore{
		client:  client,
		maxKeep: defaultMaxKeep,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// key returns the full Redis key with optional prefix.
func (s *StampStore) key(parts ...string) string {
	key := strings.Join(parts, "")
	if s.keyPrefix != "" {
		return s.keyPrefix + ":" + key
	}
	return key
}

// stampRecordData is the JSON-serializable form of chainstamp.StampRecord.
type stampRecordData struct {
	Digest    string `json:"digest"`
	Size      uint64 `json:"size"`
	Fee       string `json:"fee"` // decimal string, values are unbounded
	TxID      string `json:"tx_id"`
	Timestamp int64  `json:"timestamp"` // Nanoseconds
	Degraded  bool   `json:"degraded"`
}

func serializeStampRecord(rec chainstamp.StampRecord) ([]byte, error) {
	fee := "0"
	if rec.Fee != nil {
		fee = rec.Fee.String()
	}
	return json.Marshal(stampRecordData{
		Digest:    rec.Digest.Hex(),
		Size:      rec.Size,
		Fee:       fee,
		TxID:      rec.TxID.Hex(),
		Timestamp: rec.Timestamp.UnixNano(),
		Degraded:  rec.Degraded,
	})
}

func deserializeStampRecord(data []byte) (chainstamp.StampRecord, error) {
	var d stampRecordData
	if err := json.Unmarshal(data, &d); err != nil {
		return chainstamp.StampRecord{}, fmt.Errorf("failed to unmarshal stamp record: %w", err)
	}
	fee, ok := new(big.Int).SetString(d.Fee, 10)
	if !ok {
		return chainstamp.StampRecord{}, fmt.Errorf("invalid fee value %q in stamp record", d.Fee)
	}
	return chainstamp.StampRecord{
		Digest:    common.HexToHash(d.Digest),
		Size:      d.Size,
		Fee:       fee,
		TxID:      common.HexToHash(d.TxID),
		Timestamp: time.Unix(0, d.Timestamp),
		Degraded:  d.Degraded,
	}, nil
}

// RecordStamp appends a stamp record and updates the last-digest slot
// atomically.
func (s *StampStore) RecordStamp(ctx context.Context, rec chainstamp.StampRecord) error {
	data, err := serializeStampRecord(rec)
	if err != nil {
		return fmt.Errorf("failed to serialize stamp record: %w", err)
	}

	listKey := s.key(stampListKey)
	lastKey := s.key(lastDigestKey)

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, listKey, data)
		if s.maxKeep > 0 {
			pipe.LTrim(ctx, listKey, 0, s.maxKeep-1)
		}
		pipe.Set(ctx, lastKey, rec.Digest.Hex(), 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record stamp: %w", err)
	}
	return nil
}

// LastDigest returns the digest of the most recently recorded stamp.
func (s *StampStore) LastDigest(ctx context.Context) (common.Hash, bool, error) {
	val, err := s.client.Get(ctx, s.key(lastDigestKey)).Result()
	if err == redis.Nil {
		return common.Hash{}, false, nil
	}
	if err != nil {
		return common.Hash{}, false, fmt.Errorf("failed to get last digest: %w", err)
	}
	return common.HexToHash(val), true, nil
}

// History returns up to limit most recent stamp records, newest first.
// limit <= 0 means no limit.
func (s *StampStore) History(ctx context.Context, limit int) ([]chainstamp.StampRecord, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	items, err := s.client.LRange(ctx, s.key(stampListKey), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read stamp history: %w", err)
	}

	records := make([]chainstamp.StampRecord, 0, len(items))
	for _, item := range items {
		rec, err := deserializeStampRecord([]byte(item))
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

var _ chainstamp.StampStore = (*StampStore)(nil)
