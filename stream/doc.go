// Package stream distributes high-rate binary frames (radar spokes, sonar
// pings and similar) from producers to websocket clients.
//
// Each stream id owns a shard holding its client set and a bounded ring of
// the most recent frames. Frames are pushed to every client as they arrive;
// new clients are never replayed the ring, they receive fresh data only.
//
// A client whose outbound queue stays above MaxBufferedBytes for more than
// MaxConsecutiveDrops frames in a row is closed with CloseSlowConsumer and
// removed. Frames skipped while the client is backed up are dropped for that
// client only.
//
// Basic usage:
//
//	mgr := stream.NewManager(stream.WithLogger(logger))
//	mgr.AddClient("radars/radar-0", conn, stream.Principal{Identifier: "chartplotter"})
//	mgr.EmitData("radars/radar-0", frame)
//	...
//	mgr.CleanupStream("radars/radar-0")
package stream
