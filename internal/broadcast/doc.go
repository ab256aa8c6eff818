// Package broadcast serves the bus to network clients.
//
// The Listener accepts TCP connections and gives each one its own cursor and Handler goroutine.
// A Handler writes every bus message as one line of JSON, one message in flight at a time.
// Slow clients never slow down producers: a client that falls behind the ring is disconnected.
package broadcast
