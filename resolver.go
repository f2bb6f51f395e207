package rangestream

import (
	"bytes"
	"fmt"
	"io"
)

// PruningLevel selects the overlap resolution policy used by Add.
type PruningLevel int

const (
	// Replant reassigns overlapping bytes between the new and existing
	// streams: advance an existing stream's head, truncate its tail, or
	// burn it, depending on how the new interval overlaps it.
	Replant PruningLevel = iota

	// Burn removes every intersecting existing stream outright and
	// fetches the new interval in full.
	Burn

	// Strict rejects any Add whose interval intersects an existing
	// stream, leaving the store untouched.
	Strict
)

func (p PruningLevel) String() string {
	switch p {
	case Replant:
		return "REPLANT"
	case Burn:
		return "BURN"
	case Strict:
		return "STRICT"
	default:
		return "UNKNOWN"
	}
}

// multiReadCloser concatenates a primary body with a pre-spliced in-memory
// suffix, closing only the primary body (the suffix owns no resource).
type multiReadCloser struct {
	io.Reader
	primary io.Closer
}

func (m multiReadCloser) Close() error {
	if m.primary == nil {
		return nil
	}
	return m.primary.Close()
}

// plannedAction describes one mutation the resolver intends to commit to
// an existing store entry once the new fetch has succeeded. Staging these
// before the network call, and only applying them afterward, is the
// "simplest correct implementation" SPEC_FULL.md's concurrency section
// recommends: if the fetch fails or is canceled, nothing has been mutated.
type plannedAction struct {
	key      Interval
	overlap  Overlap
	delta    int64 // bytes absorbed, for Head/Tail/MutualSubsumption
	resp     *RangeResponse
}

// resolveAdd runs the overlap resolver for a validated, absolute interval
// n against store, under policy, fetching via fetcher. On success it
// returns the key under which n was inserted (always n itself, since a
// freshly inserted response has zero head offset and tail mark) and the
// total length learned from this fetch, if any.
func resolveAdd(store *RangeStore, fetcher Fetcher, url string, n Interval, policy PruningLevel) (Interval, *int64, error) {
	intersecting := store.Intersecting(n)

	switch policy {
	case Strict:
		if len(intersecting) > 0 {
			return Interval{}, nil, fmt.Errorf("%w: %s intersects %d existing range(s)", ErrOverlapDisallowed, n, len(intersecting))
		}
		return fetchAndInsert(store, fetcher, url, n, nil)

	case Burn:
		plans := make([]plannedAction, 0, len(intersecting))
		for _, key := range intersecting {
			resp, _ := store.Get(key)
			plans = append(plans, plannedAction{key: key, resp: resp})
		}
		key, total, err := fetchAndInsert(store, fetcher, url, n, nil)
		if err != nil {
			return Interval{}, nil, err
		}
		for _, p := range plans {
			store.Remove(p.key)
			p.resp.Close()
		}
		return key, total, nil

	case Replant:
		return resolveReplant(store, fetcher, url, n, intersecting)

	default:
		return Interval{}, nil, fmt.Errorf("rangestream: unknown pruning level %d", policy)
	}
}

// resolveReplant implements the REPLANT policy described in SPEC_FULL.md
// §4.6. At most one intersecting entry can classify as Head (the new
// interval must end strictly inside it) and at most one as Tail or
// MutualSubsumption (the new interval must start strictly inside it, and
// stored entries are disjoint); any entries in between are always fully
// contained (HeadToTail) because the store was disjoint before n arrived.
func resolveReplant(store *RangeStore, fetcher Fetcher, url string, n Interval, intersecting []Interval) (Interval, *int64, error) {
	plans := make([]plannedAction, 0, len(intersecting))
	var headPlan *plannedAction

	for _, key := range intersecting {
		resp, ok := store.Get(key)
		if !ok {
			continue
		}
		switch c := Classify(n, key); c {
		case HeadToTail:
			plans = append(plans, plannedAction{key: key, overlap: c, resp: resp})
		case Tail, MutualSubsumption:
			delta := key.Stop - n.Start
			plans = append(plans, plannedAction{key: key, overlap: c, delta: delta, resp: resp})
		case Head:
			delta := n.Stop - key.Start
			p := plannedAction{key: key, overlap: c, delta: delta, resp: resp}
			plans = append(plans, p)
			headPlan = &plans[len(plans)-1]
		}
	}

	// Opportunistically splice the Head entry's already-buffered bytes
	// into the new response instead of re-fetching them on the wire.
	var (
		wireInterval = n
		splicedTail  []byte
		spliced      bool
	)
	if headPlan != nil {
		prefixLen := headPlan.key.Start - n.Start
		if prefixLen >= 0 {
			if peeked, err := headPlan.resp.PeekExternal(headPlan.delta); err == nil && int64(len(peeked)) == headPlan.delta {
				splicedTail = peeked
				spliced = true
				wireInterval = Interval{Start: n.Start, Stop: headPlan.key.Start}
			}
		}
	}

	key, total, err := fetchAndInsert(store, fetcher, url, n, &spliceParams{
		wireInterval: wireInterval,
		splicedTail:  splicedTail,
		spliced:      spliced,
	})
	if err != nil {
		return Interval{}, nil, err
	}

	for _, p := range plans {
		switch p.overlap {
		case HeadToTail:
			store.Remove(p.key)
			p.resp.Close()
		case Head:
			if err := p.resp.AdvanceHead(p.delta); err != nil {
				store.Remove(p.key)
				p.resp.Close()
				continue
			}
			commitShrink(store, p.key, p.resp)
		case Tail, MutualSubsumption:
			if err := p.resp.MarkTail(p.delta); err != nil {
				store.Remove(p.key)
				p.resp.Close()
				continue
			}
			commitShrink(store, p.key, p.resp)
		}
	}

	return key, total, nil
}

// commitShrink rekeys an entry to its response's (now smaller) external
// interval, burning it instead if that interval has become empty.
func commitShrink(store *RangeStore, oldKey Interval, resp *RangeResponse) {
	newKey := resp.External()
	if newKey.Empty() {
		store.Remove(oldKey)
		resp.Close()
		return
	}
	store.rekey(oldKey, newKey)
}

// spliceParams carries the (possibly shortened) wire interval and any
// pre-spliced tail bytes from resolveReplant into fetchAndInsert.
type spliceParams struct {
	wireInterval Interval
	splicedTail  []byte
	spliced      bool
}

// fetchAndInsert issues the Fetcher call for n (or, when splice is set,
// for its shortened wireInterval, with splicedTail appended), and inserts
// the resulting RangeResponse under key n.
func fetchAndInsert(store *RangeStore, fetcher Fetcher, url string, n Interval, splice *spliceParams) (Interval, *int64, error) {
	wireInterval := n
	if splice != nil && splice.spliced {
		wireInterval = splice.wireInterval
	}

	var (
		body  io.ReadCloser
		total *int64
	)

	// Skip the wire call entirely only when splicing supplies every
	// byte of n (wireInterval is empty because the Head overlap covers
	// n from its very start). A genuine zero-length probe (no splice in
	// play) still issues a Fetch, since that is how total length is
	// learned (SPEC_FULL.md §3, Lifecycle).
	skipWire := splice != nil && splice.spliced && wireInterval.Empty()
	if !skipWire {
		result, err := fetcher.Fetch(url, wireInterval)
		if err != nil {
			return Interval{}, nil, err
		}
		body = result.Body
		total = result.Total
	}

	if splice != nil && splice.spliced {
		var reader io.Reader
		var closer io.Closer
		if body != nil {
			reader = io.MultiReader(body, bytes.NewReader(splice.splicedTail))
			closer = body
		} else {
			reader = bytes.NewReader(splice.splicedTail)
		}
		body = multiReadCloser{Reader: reader, primary: closer}
	}

	if body == nil {
		body = io.NopCloser(bytes.NewReader(nil))
	}

	resp := newRangeResponse(n, body)
	store.Insert(n, resp)
	return n, total, nil
}
