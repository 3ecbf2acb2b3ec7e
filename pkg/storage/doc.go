// Package storage lays out the scraper's output tree.
//
// Every conversation gets its own folder named "<id> - <name>", the name
// folded to ASCII. A folder holds:
//   - complete.json and/or complete.pretty.json, written by a dump
//   - one <category>.txt report per data category
//   - pictures/, gifs/, videos/ and files/ when attachments are downloaded
//
// Files are written to a temporary name and renamed into place, so an
// interrupted download never leaves a truncated attachment behind.
//
// Usage:
//
//	manager, err := storage.NewManager("output")
//	if err != nil {
//	    return err
//	}
//	dir, err := manager.PrepareConversation(conv, "pictures")
//	if err != nil {
//	    return err
//	}
//	paths, err := manager.WriteDump(dir, messages, storage.DumpBoth)
package storage
