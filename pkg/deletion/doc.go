// Package deletion implements the pending-deletion tracker: the record
// held while the executor has replied "busy" to a delete-resource
// request, released only once the executor emits its asynchronous
// "resource deleted" signal (§4.6 "delete").
package deletion
