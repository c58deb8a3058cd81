package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"

	badger "github.com/dgraph-io/badger/v4"
)

// CachedClient wraps a Client with a persistent badger cache keyed by a
// content hash of the text. Re-ingesting overlapping corpora skips the
// embedding calls for unchanged chunks; misses fall through to the
// wrapped client and are written back on success.
type CachedClient struct {
	inner Client
	db    *badger.DB
}

// NewCachedClient opens (or creates) a cache at path. An empty path opens
// an in-memory cache, which is what tests use.
func NewCachedClient(inner Client, path string) (*CachedClient, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("embedder cache: failed to open badger at %q: %w", path, err)
	}
	return &CachedClient{inner: inner, db: db}, nil
}

// Embed returns cached vectors where available and embeds only the
// misses, preserving input order.
func (c *CachedClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, len(texts))
	missIdx := make([]int, 0, len(texts))
	missTexts := make([]string, 0, len(texts))

	err := c.db.View(func(txn *badger.Txn) error {
		for i, text := range texts {
			item, err := txn.Get(c.key(text))
			if err == badger.ErrKeyNotFound {
				missIdx = append(missIdx, i)
				missTexts = append(missTexts, text)
				continue
			}
			if err != nil {
				return err
			}
			if err := item.Value(func(val []byte) error {
				vectors[i] = decodeVector(val)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("embedder cache read failed: %w", err)
	}

	if len(missTexts) > 0 {
		fresh, err := c.inner.Embed(ctx, missTexts)
		if err != nil {
			return nil, err
		}
		if len(fresh) != len(missTexts) {
			return nil, fmt.Errorf("embedder: got %d embeddings for %d inputs", len(fresh), len(missTexts))
		}

		wb := c.db.NewWriteBatch()
		defer wb.Cancel()
		for j, idx := range missIdx {
			vectors[idx] = fresh[j]
			if err := wb.Set(c.key(texts[idx]), encodeVector(fresh[j])); err != nil {
				return nil, fmt.Errorf("embedder cache write failed: %w", err)
			}
		}
		if err := wb.Flush(); err != nil {
			return nil, fmt.Errorf("embedder cache flush failed: %w", err)
		}
	}

	return vectors, nil
}

// EmbedSingle embeds one text through the cache.
func (c *CachedClient) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Dimensions returns the wrapped client's dimension.
func (c *CachedClient) Dimensions() int {
	return c.inner.Dimensions()
}

// Close closes the cache and the wrapped client.
func (c *CachedClient) Close() error {
	if err := c.db.Close(); err != nil {
		return err
	}
	return c.inner.Close()
}

// key namespaces by model dimension so switching models invalidates the
// cache instead of serving vectors of the wrong width.
func (c *CachedClient) key(text string) []byte {
	h := sha256.New()
	fmt.Fprintf(h, "%d:", c.inner.Dimensions())
	h.Write([]byte(text))
	return h.Sum(nil)
}

func encodeVector(vector []float32) []byte {
	buf := make([]byte, 4*len(vector))
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	vector := make([]float32, len(buf)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vector
}
