// Package notify tells observers that a site's screenshot state changed.
//
// Every producer depends only on the Broadcaster interface. The in-process
// Hub keeps a bounded, sequenced buffer of events per scope (site) that the
// HTTP server streams to dashboards; AMQPPublisher mirrors the same events to
// a RabbitMQ topic exchange when one is configured. Fanout combines them.
package notify
