// Package reload implements the reload-metadata cache (§4.2): given a
// resource descriptor and a pending start operation, it answers whether
// the agent advertises a reload verb and, if so, which parameters are
// "unique" (change forces a restart instead of a reload).
package reload
