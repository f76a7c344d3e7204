/*
Package binstore implements datastore.DataStore on top of local files.

There are two engines:

FileStore keeps every record in one file and re-writes the whole file on
each Save and Delete.

IndexedStore appends entries to a data file and keeps an index in memory.
The index is persisted to a separate file with RewriteIndex and loaded
with ReloadIndex. Deleted and overwritten entries are garbage until
WriteData or Compact.

# Encoding

All integers are little-endian.

	string:          [u64 length][bytes]
	optional string: [u8 0] or [u8 1][string]
	entry:           [string id][string title]
	                 [opt username][opt password][opt url][opt note]

# FileStore layout

	record:  [u64 payload length][string id][entry]
	file:    [record][record]...

# IndexedStore layout

The data file is entries back to back, without any framing:

	data:    [entry][entry]...

The index file is a sequence of 52 byte slots:

	slot:    [id, zero padded to 36 bytes][u64 offset][u64 length]
	index:   [slot][slot]...

Ids longer than 36 bytes can't be stored in an IndexedStore.

# Replacing files

Re-written files are first written to a temporary file with "-tmp"
suffix, which is then renamed over the original. See package atomicfile.
*/
package binstore
