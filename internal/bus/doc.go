// Package bus implements the in-process broadcast bus.
//
// Producers call Send; every Cursor created by Subscribe sees each later message in order.
// The log is a fixed-size ring of sequence-numbered entries, so Send never blocks: a cursor
// that falls more than the capacity behind gets a LagError instead of stale data.
// Messages with a cache key also update a latest-value map readable through Latest.
package bus
