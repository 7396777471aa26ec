/*
Package facts collects the machine-side data the agent reports to the
server: the package profile and the installed product list.

Both managers sit behind small interfaces (Collector, ProductDirectory)
because the actual OS queries are environment-specific; the managers own
assembly, caching and wire formatting only. Both satisfy the push cache
facts-source contract, so change detection and upload scheduling live in
pkg/cache, not here.

The package profile is assembled lazily and held in memory until
Invalidate; a package manager transaction is the natural invalidation
point. Whether the upload carries the full combined profile or just the
rpm list depends on a server capability probed at upload time.
*/
package facts
