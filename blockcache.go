/* SPDX-License-Identifier: BSD-2-Clause */

package rangestream

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"
	"golang.org/x/sys/unix"
)

// Bitset is a fixed-size bit vector tracking which blocks of a
// MmapBlockCache currently hold valid data.
type Bitset struct {
	bits []uint64
}

// NewBitset returns a Bitset with room for n bits, all initially clear.
func NewBitset(n int) *Bitset {
	return &Bitset{bits: make([]uint64, (n+63)/64)}
}

func (b *Bitset) Set(i int)        { b.bits[i/64] |= 1 << (i % 64) }
func (b *Bitset) Clear(i int)      { b.bits[i/64] &^= 1 << (i % 64) }
func (b *Bitset) Get(i int) bool   { return (b.bits[i/64]>>(i%64))&1 != 0 }

// BlockCache stores fixed-size, block-aligned wire responses keyed by block
// number. It is a lower-level cache than WireCache: CachedBlockTransport
// rounds every Range request up to whole blocks before consulting it, so a
// single Fetch for an odd-aligned interval can be served entirely from
// cache once its covering blocks have been seen once.
type BlockCache interface {
	Clear()
	Delete(block int64)
	Get(block int64) ([]byte, bool)
	Put(block int64, data []byte)
}

// MmapBlockCache is a BlockCache backed by an anonymous memory mapping, with
// a Bitset tracking which blocks currently hold valid data. Its mapping is
// sized up front from the resource's total length. uffdview's View does not
// share this mapping: it maps its own region and fills faulting pages
// through RandomAccessFile.ReadAt, which reaches a block cache only when the
// file's fetcher routes through a CachedBlockTransport.
type MmapBlockCache struct {
	data      []byte
	blockSize int64
	numBlocks int64
	valid     *Bitset
	mu        sync.RWMutex
}

// NewMmapBlockCache creates a cache covering totalSize bytes in numBlocks
// blocks of blockSize bytes each.
func NewMmapBlockCache(totalSize, blockSize int64) (*MmapBlockCache, error) {
	if blockSize <= 0 || totalSize <= 0 {
		return nil, fmt.Errorf("rangestream: invalid cache sizes: total=%d block=%d", totalSize, blockSize)
	}
	if totalSize%blockSize != 0 {
		return nil, fmt.Errorf("rangestream: total size must be a multiple of block size")
	}
	numBlocks := totalSize / blockSize

	data, err := unix.Mmap(-1, 0, int(totalSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, os.NewSyscallError("mmap", err)
	}

	return &MmapBlockCache{
		data:      data,
		blockSize: blockSize,
		numBlocks: numBlocks,
		valid:     NewBitset(int(numBlocks)),
	}, nil
}

func (c *MmapBlockCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.valid = NewBitset(int(c.numBlocks))
	for i := range c.data {
		c.data[i] = 0
	}
}

func (c *MmapBlockCache) Delete(block int64) {
	if block < 0 || block >= c.numBlocks {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.valid.Clear(int(block))
	start := block * c.blockSize
	for i := int64(0); i < c.blockSize; i++ {
		c.data[start+i] = 0
	}
}

func (c *MmapBlockCache) Get(block int64) ([]byte, bool) {
	if block < 0 || block >= c.numBlocks {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.valid.Get(int(block)) {
		return nil, false
	}
	start := block * c.blockSize
	end := start + c.blockSize
	return c.data[start:end:end], true
}

func (c *MmapBlockCache) Put(block int64, data []byte) {
	if block < 0 || block >= c.numBlocks {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	start := block * c.blockSize
	end := start + c.blockSize
	copy(c.data[start:end], data)
	if int64(len(data)) < c.blockSize {
		for i := start + int64(len(data)); i < end; i++ {
			c.data[i] = 0
		}
	}
	c.valid.Set(int(block))
}

// Close unmaps the cache's backing memory. A MmapBlockCache that is never
// closed leaks its mapping.
func (c *MmapBlockCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		return nil
	}
	if err := unix.Munmap(c.data); err != nil {
		return os.NewSyscallError("munmap", err)
	}
	c.data = nil
	return nil
}

func (c *MmapBlockCache) Size() int64      { return int64(len(c.data)) }
func (c *MmapBlockCache) NumBlocks() int64 { return c.numBlocks }
func (c *MmapBlockCache) BlockSize() int64 { return c.blockSize }

// MemoryBlockCache is a plain map-backed BlockCache, used where the fixed
// total size an MmapBlockCache requires up front isn't yet known (e.g.
// Open, which builds its transport before the first fetch has revealed the
// resource's length). It trades the mmap cache's fixed-footprint mapping
// for a cache that can grow one block at a time.
type MemoryBlockCache struct {
	mu sync.Mutex
	m  map[int64][]byte
}

// NewMemoryBlockCache returns an empty MemoryBlockCache.
func NewMemoryBlockCache() *MemoryBlockCache {
	return &MemoryBlockCache{m: make(map[int64][]byte)}
}

func (c *MemoryBlockCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m = make(map[int64][]byte)
}

func (c *MemoryBlockCache) Delete(block int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, block)
}

func (c *MemoryBlockCache) Get(block int64) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[block]
	return v, ok
}

func (c *MemoryBlockCache) Put(block int64, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	c.m[block] = cp
}

var _ BlockCache = (*MemoryBlockCache)(nil)

// DefaultBlockSize is used when a CachedBlockTransport's BlockSize is unset.
const DefaultBlockSize = 4096

// CachedBlockTransport rounds every GET Range request up to BlockSize-
// aligned boundaries before issuing it, so that overlapping or adjacent
// Fetch calls from separate RangeStream.Add calls converge on the same
// cached blocks instead of re-requesting already-seen bytes. Unlike
// CachedRangeTransport's exact-match cache, this survives any new request
// whose block-aligned footprint was already covered by an earlier one.
type CachedBlockTransport struct {
	Transport http.RoundTripper
	Cache     BlockCache
	BlockSize int64
	group     singleflight.Group
}

var _ http.RoundTripper = (*CachedBlockTransport)(nil)

func (t *CachedBlockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Transport == nil {
		t.Transport = http.DefaultTransport
	}
	if t.BlockSize <= 0 {
		t.BlockSize = DefaultBlockSize
	}
	bs := t.BlockSize

	if req.Method != http.MethodGet {
		return t.Transport.RoundTrip(req)
	}
	rangeHdr := req.Header.Get("Range")
	if rangeHdr == "" {
		return t.Transport.RoundTrip(req)
	}

	var start, end int64
	n, err := fmt.Sscanf(rangeHdr, "bytes=%d-%d", &start, &end)
	if err != nil || n < 1 {
		return t.Transport.RoundTrip(req)
	}
	if n == 1 || end < start {
		end = start + bs - 1
	}

	blockStart := (start / bs) * bs
	blockEnd := (end / bs) * bs
	numBlocks := ((blockEnd - blockStart) / bs) + 1

	missing := make([]int64, 0, numBlocks)
	for b := blockStart; b <= blockEnd; b += bs {
		blockNum := b / bs
		if t.Cache == nil {
			missing = append(missing, blockNum)
			continue
		}
		if _, ok := t.Cache.Get(blockNum); !ok {
			missing = append(missing, blockNum)
		}
	}

	// contentTotal is the total length reported upstream, when this call
	// went to the wire and the origin sent one; a pure cache hit reports "*".
	contentTotal := "*"
	if len(missing) > 0 {
		firstBlock := missing[0]
		lastBlock := missing[len(missing)-1]
		key := strconv.FormatInt(firstBlock, 10)

		v, err, _ := t.group.Do(key, func() (any, error) {
			rangeStart := firstBlock * bs
			rangeEnd := (lastBlock+1)*bs - 1

			newReq := req.Clone(req.Context())
			newReq.Header = req.Header.Clone()
			newReq.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", rangeStart, rangeEnd))

			resp, err := t.Transport.RoundTrip(newReq)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusPartialContent && resp.StatusCode != http.StatusOK {
				return nil, fmt.Errorf("%w: unexpected status %s", ErrNonPartial, resp.Status)
			}

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return nil, err
			}

			for i, b := range missing {
				offset := int64(i) * bs
				if offset >= int64(len(body)) {
					break
				}
				blockEnd := offset + bs
				if blockEnd > int64(len(body)) {
					blockEnd = int64(len(body))
				}
				if t.Cache != nil {
					t.Cache.Put(b, body[offset:blockEnd])
				}
			}
			if _, _, total, err := parseContentRange(resp.Header.Get("Content-Range")); err == nil && total != nil {
				return *total, nil
			}
			return nil, nil
		})
		if err != nil {
			return nil, err
		}
		if total, ok := v.(int64); ok {
			contentTotal = strconv.FormatInt(total, 10)
		}
	}

	combined := make([]byte, 0, int(numBlocks*bs))
	for b := blockStart; b <= blockEnd; b += bs {
		blockNum := b / bs
		if t.Cache != nil {
			if data, ok := t.Cache.Get(blockNum); ok {
				combined = append(combined, data...)
			}
		}
	}

	offset := start - blockStart
	length := end - start + 1
	if offset < 0 {
		offset = 0
	}
	if offset+length > int64(len(combined)) {
		length = int64(len(combined)) - offset
	}
	if length < 0 {
		length = 0
	}
	data := combined[offset : offset+length]

	resp := &http.Response{
		StatusCode:    http.StatusPartialContent,
		Status:        "206 Partial Content",
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: int64(len(data)),
		Header: http.Header{
			"Content-Range": []string{fmt.Sprintf("bytes %d-%d/%s", start, end, contentTotal)},
		},
		Request:    req,
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
	}
	return resp, nil
}
