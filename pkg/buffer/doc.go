// Package buffer provides Ring, a generic thread-safe bounded FIFO with a
// non-blocking overflow policy, always-on statistics and optional Prometheus
// metrics.
//
// The hub uses it wherever memory must stay bounded regardless of how fast a
// producer runs: the per-stream frame history (capacity 100, DropOldest) and
// the websocket outbound queue (DropNewest, so a full queue rejects the frame
// instead of losing one already accepted).
//
//	ring, err := buffer.New[[]byte](100,
//		buffer.WithOverflowPolicy[[]byte](buffer.DropOldest),
//		buffer.WithMetrics[[]byte](registry, "stream:radars/0"),
//	)
//	if err != nil {
//		return err
//	}
//	defer ring.Close()
//
//	ring.Push(frame)
//	fmt.Println(ring.Len(), ring.Stats().Drops)
//
// # Overflow Policies
//
//   - DropOldest: evict the oldest item to make room (default)
//   - DropNewest: reject the new item; Push reports false
//
// Push never blocks. WithDropCallback sees every shed item; the websocket
// queue uses it to release the rejected frame's bytes.
//
// # Observability
//
// Stats() is always available. WithMetrics additionally registers
// marinestreams_ring_{writes_total,drops_total,size} labelled with the
// component prefix; Close unregisters them, so rings with a bounded lifetime
// do not leak series.
package buffer
