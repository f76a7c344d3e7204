// Package datastore defines the stored record (Entry) and the storage
// contract implemented by the engines in package binstore.
//
// Callers depend only on [DataStore]:
//
//	var ds datastore.DataStore = binstore.NewFileStore("entries.bin")
//	e := datastore.NewEntry("github")
//	e.Username = datastore.Some("alice")
//	err := ds.Save(e.ID, e)
//	...
//	res, err := ds.Search(datastore.TitleContains("git"))
//
// # Ownership
//
// Save and Delete need exclusive access to a store, Load and Search
// need shared access. Engines do no locking of their own; wrap a store
// with [Locked] when it's shared between goroutines.
package datastore
