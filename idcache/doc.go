/*
Package idcache implements persistent storage of versioned DID attributes.

Each (identifier, path) pair maps to a set of versions keyed by the block
height of the registration transaction that carried them. The value of a
path is the version with the highest height, so the history converges no
matter in which order blocks are added or rolled back.

# Storage layout

Cache works on top of any neo-go storage.Store. Items are laid out as

	0x01 | identifier                                   -> empty marker
	0x02 | identifier | 0x00 | path | 0x00 | height(BE) -> JSON value

Markers make identifiers known independently of their attributes, and the
NUL separators keep the natural lexicographic order of identifiers and paths
while allowing prefix scans by identifier and by (identifier, path). Heights
are big-endian, so versions of a path are iterated in increasing order.

Every mutation is applied as a single change set, so it is either fully
visible or not at all.
*/
package idcache
