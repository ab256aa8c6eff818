// Package redis relays bus messages between streambus instances over Redis pub/sub.
//
// Every instance publishes locally accepted messages to one channel and forwards messages
// published by its peers into its own bus. Envelopes carry the publishing instance's origin ID
// so an instance never re-sends its own messages. All commands go through a circuit breaker hook.
package redis
