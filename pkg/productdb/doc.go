/*
Package productdb tracks which repositories provide each installed product
certificate.

A product certificate is installed when content from a providing repository
first appears and must be removed again when the last such repository is
gone; without the mapping there is no way to tell an orphaned certificate
from one still in use. The database is a single-bucket bbolt file keyed by
product ID, each value the JSON list of providing repository IDs.
*/
package productdb
