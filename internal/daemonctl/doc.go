// Package daemonctl starts, stops and inspects a stageflowd process from the
// CLI. It relies on the files the daemon maintains in the data directory (the
// flock lock and the pid file) and, when metrics_bind is set, on the daemon's
// HTTP status endpoint.
package daemonctl
