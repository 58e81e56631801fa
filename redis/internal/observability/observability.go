// Package observability defines the opencensus measures and views for an
// Engine: connection lifecycle, command throughput, and pub/sub
// demultiplexing. Nothing in this package talks to the network directly;
// engine.go and pubsub.go record against these measures as they work.
// MBytesRead, MOrphanReplies, MPending and MRoundtripSeconds have views
// but are not recorded anywhere.
package observability

import (
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

const dimensionless = "1"
const seconds = "s"

var (
	MDials              = stats.Int64("redox/dials", "The number of connection attempts", dimensionless)
	MDialErrors         = stats.Int64("redox/dial_errors", "The number of failed connection attempts", dimensionless)
	MDialLatencySeconds = stats.Float64("redox/dial_latency_seconds", "Seconds spent connecting to the server", seconds)
	MDisconnects        = stats.Int64("redox/disconnects", "The number of disconnects, clean or not", dimensionless)

	MBytesRead    = stats.Int64("redox/bytes_read", "Bytes read from the server", stats.UnitBytes)
	MBytesWritten = stats.Int64("redox/bytes_written", "Bytes written to the server", stats.UnitBytes)

	MCommandsSubmitted = stats.Int64("redox/commands_submitted", "Commands handed to the submission queue", dimensionless)
	MCommandsSent      = stats.Int64("redox/commands_sent", "Commands written to the wire", dimensionless)
	MRepliesReceived   = stats.Int64("redox/replies_received", "Replies read off the wire", dimensionless)
	MOrphanReplies     = stats.Int64("redox/orphan_replies", "Replies whose command id was no longer in the registry", dimensionless)
	MPending           = stats.Int64("redox/pending", "Current pending-reply count across all live commands", dimensionless)
	MRoundtripSeconds  = stats.Float64("redox/roundtrip_latency_seconds", "Seconds between submitting a command and its terminal reply", seconds)

	MPubSubFrames        = stats.Int64("redox/pubsub_frames", "Pub/sub frames demultiplexed", dimensionless)
	MPubSubUnknownFrames = stats.Int64("redox/pubsub_unknown_frames", "Pub/sub frames of unrecognized shape", dimensionless)
)

// KeyEngine tags every measurement with the Engine instance that recorded it.
var KeyEngine, _ = tag.NewKey("engine")

// KeyCommand tags command-level measurements with the verb (first argv element).
var KeyCommand, _ = tag.NewKey("cmd")

var secondsDistribution = view.Distribution(
	0, 0.000001, 0.00001, 0.0001, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.2, 0.4, 0.8, 1, 2.5, 5, 10, 20,
)

var bytesDistribution = view.Distribution(
	0, 64, 256, 1024, 4096, 16384, 65536, 262144, 1048576, 4194304,
)

// Views is the full set of views this package defines; applications
// register the subset (or all) they want with opencensus's view package.
var Views = []*view.View{
	{Name: "redox/client/dials", Measure: MDials, Aggregation: view.Count(), TagKeys: []tag.Key{KeyEngine}},
	{Name: "redox/client/dial_errors", Measure: MDialErrors, Aggregation: view.Count(), TagKeys: []tag.Key{KeyEngine}},
	{Name: "redox/client/dial_latency", Measure: MDialLatencySeconds, Aggregation: secondsDistribution, TagKeys: []tag.Key{KeyEngine}},
	{Name: "redox/client/disconnects", Measure: MDisconnects, Aggregation: view.Count(), TagKeys: []tag.Key{KeyEngine}},
	{Name: "redox/client/bytes_read", Measure: MBytesRead, Aggregation: bytesDistribution, TagKeys: []tag.Key{KeyEngine}},
	{Name: "redox/client/bytes_written", Measure: MBytesWritten, Aggregation: bytesDistribution, TagKeys: []tag.Key{KeyEngine}},
	{Name: "redox/client/commands_submitted", Measure: MCommandsSubmitted, Aggregation: view.Count(), TagKeys: []tag.Key{KeyEngine, KeyCommand}},
	{Name: "redox/client/commands_sent", Measure: MCommandsSent, Aggregation: view.Count(), TagKeys: []tag.Key{KeyEngine, KeyCommand}},
	{Name: "redox/client/replies_received", Measure: MRepliesReceived, Aggregation: view.Count(), TagKeys: []tag.Key{KeyEngine}},
	{Name: "redox/client/orphan_replies", Measure: MOrphanReplies, Aggregation: view.Count(), TagKeys: []tag.Key{KeyEngine}},
	{Name: "redox/client/pending", Measure: MPending, Aggregation: view.LastValue(), TagKeys: []tag.Key{KeyEngine}},
	{Name: "redox/client/roundtrip_latency", Measure: MRoundtripSeconds, Aggregation: secondsDistribution, TagKeys: []tag.Key{KeyEngine, KeyCommand}},
	{Name: "redox/client/pubsub_frames", Measure: MPubSubFrames, Aggregation: view.Count(), TagKeys: []tag.Key{KeyEngine}},
	{Name: "redox/client/pubsub_unknown_frames", Measure: MPubSubUnknownFrames, Aggregation: view.Count(), TagKeys: []tag.Key{KeyEngine}},
}
