// Package app holds the use cases around the bus: accepting messages from the API and
// the heartbeat producer.
package app
