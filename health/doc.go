// Package health tracks the health of the hub's components and aggregates
// it into the system status served at /health.
//
// Three states are reported: healthy, degraded (working with reduced
// function, for example NATS reconnecting while the in-process hub keeps
// serving) and unhealthy. Components either push their state with
// Monitor.Set, or register a Probe that Monitor.Run polls:
//
//	monitor := health.NewMonitor(logger)
//	monitor.AddProbe("nats", func(ctx context.Context) error {
//		if !client.IsHealthy() {
//			return health.Degraded(errors.New("nats disconnected"))
//		}
//		return nil
//	})
//	go monitor.Run(ctx, 10*time.Second)
//
//	status := monitor.AggregateHealth("marinestreams")
//
// Probe errors are sanitized before they are stored: URLs, paths, addresses
// and credential-looking values are replaced by placeholders.
package health
