// Package fleet reconciles remote build data with the local cache.
//
// A Build resolves itself from the cache first, then from a batched XML-RPC
// record, then from its summary page, and loads failure detail from the test
// step log only when the build failed. A Builder owns the recent builds of one
// build agent, keeps the cache inside its retention window and derives the
// aggregate status shown in reports. Fleet ties the builders together,
// follows the remote builder list and collects builders in parallel.
package fleet
