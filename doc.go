// Package marinestreams is a data hub for vessel sensors. It keeps the
// vessel's alerts and notifications and fans binary sensor streams such as
// radar sweeps out to websocket clients.
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│          gateway/http               │  REST alert routes,
//	│   (chi router, JWT, JSON schema)    │  stream and delta websockets
//	└─────────────────────────────────────┘
//	      ↓ mutates              ↓ attaches clients
//	┌──────────────────┐  ┌──────────────────────┐
//	│      alert       │  │        stream        │  100-frame ring per stream,
//	│ (Alert, Manager) │  │ (Manager, wsconn)    │  slow consumers evicted
//	└──────────────────┘  └──────────────────────┘
//	      ↓ emits deltas         ↑ frames
//	┌──────────────────┐  ┌──────────────────────┐
//	│     eventbus     │  │    stream/bridge     │
//	│ (Hub, Forwarder) │  │  (NATS subscriber)   │
//	└──────────────────┘  └──────────────────────┘
//	           ↓ optional uplink     ↑
//	┌─────────────────────────────────────┐
//	│            natsclient               │  reconnecting NATS client
//	└─────────────────────────────────────┘
//
// # Alerts
//
// Every alert owns a notification at notifications.<path> in the vessel
// model. Raising, acknowledging, silencing, resolving and reprioritising an
// alert publish a delta for that path; a normal priority means the
// condition is resolved. Silencing is only allowed for alarm-level alerts
// and lasts until the silence timer fires.
//
// # Binary streams
//
// Producers call stream.Manager.EmitData with a stream id and a frame. The
// manager keeps the last frames of each stream in a ring buffer and forwards
// every frame to the attached websocket clients. A client whose send buffer
// stays above the byte limit for too many consecutive frames is closed with
// code 1008 and removed.
//
// # Running
//
//	marinestreams -config base.yaml,production.json -log-level info
//
// See cmd/marinestreams for flags and config for the configuration file
// format and MARINESTREAMS_* environment overrides.
package marinestreams
