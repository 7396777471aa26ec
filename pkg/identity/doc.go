/*
Package identity persists the consumer identity the server assigned at
registration.

Absence of the identity file means the machine is not registered; that is
a normal state, not an error, and every network-facing component treats it
as a silent no-op. The file is written 0600 since the UUID is the handle
every authenticated call is keyed on.
*/
package identity
