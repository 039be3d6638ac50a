// Package natsclient wraps the NATS Go client with a circuit breaker, status
// tracking and slog logging. It carries the hub's out-of-process traffic:
// stamped deltas are forwarded to NATS and binary frames from external
// producers arrive over it.
//
// # Circuit Breaker
//
// After a threshold of consecutive connect failures (default 5) the client
// stops attempting connections and Connect returns ErrCircuitOpen until the
// backoff elapses. The backoff doubles for every further round of failures up
// to WithMaxBackoff. A successful connect or reconnect resets the breaker.
//
// # Usage
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//	    natsclient.WithName("marinestreams"),
//	    natsclient.WithLogger(logger),
//	    natsclient.WithMetrics(registry.CoreMetrics()),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := client.ConnectWithRetry(ctx, retry.Quick()); err != nil {
//	    return err
//	}
//	defer client.Close(context.Background())
//
//	err = client.Subscribe(ctx, "marinestreams.frames.>", func(ctx context.Context, subject string, data []byte) {
//	    // route on subject
//	})
//
// Publish and Subscribe return a transient error wrapping ErrNotConnected when
// there is no live connection, so callers can decide with errors.IsTransient.
//
// # Testing
//
// Unit tests exercise the breaker and status machine without a server.
// Tests tagged integration start a real server through testcontainers-go via
// NewTestClient.
package natsclient
