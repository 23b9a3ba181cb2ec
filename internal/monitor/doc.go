// Package monitor is the streaming core of radarmon.
//
// Each configured source gets a Collector that owns one SSH connection, runs
// the source's command and parses every stdout line into a Reading. Readings
// land in the source's Window, a time-bounded buffer that keeps only the
// last window of data (120s by default). An Aggregator polls every Window on
// a fixed tick (100ms by default) and hands the resulting View to a Display.
//
// # Data Flow
//
//	remote command -> Collector -> ParseLine -> Window -> Aggregator -> Display
//
// Collectors run concurrently and never share state with each other. The
// only thing a Collector shares with the Aggregator is its Window, which is
// guarded by its own mutex, plus its Status and raw-line LogTail.
//
// # Connection States
//
//	Disconnected -> Connecting -> Streaming
//	                    |             |
//	                    v             v
//	                Reconnecting <----+
//	                    |
//	                    +--> Connecting (after backoff)
//	                    +--> Failed (retries exhausted)
//
// Backoff between attempts is capped exponential: 1s, 2s, 4s and so on up to
// 30s, reset once a session delivers data. Retries are unbounded unless
// reconnect.max_retries is set.
//
// Buffered readings survive reconnects. Eviction depends only on time.
//
// # Collection-Only Mode
//
// A Monitor built without a Display starts the collectors but not the
// render loop. The collect command uses this to check connectivity.
package monitor
