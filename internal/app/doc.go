// Package app wires the two ingestion paths of the relay.
//
// The push path (StreamListener) keeps an EventSub webhook subscription alive and announces
// "stream online" events; the pull path (ClipPoller) polls recent clips, deduplicates them against
// a persisted cache and announces new ones. Orchestrator runs both under one shutdown signal.
// Everything here depends on domain interfaces, not on concrete adapters.
package app
