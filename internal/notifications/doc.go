// Package notifications delivers workflow messages via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and degrades to a no-op when no topic is set. Typed helpers
// cover transitions, SLA escalations and approval decisions; each kind can be
// switched off in the [notifications] section.
//
// Workflow code depends only on the Service interface.
package notifications
