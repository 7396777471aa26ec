/*
Package config loads the agent's YAML configuration.

Loading layers the file over built-in defaults, so a missing file or a file
setting only one key both produce a complete configuration. Validation is
deliberately shallow: it rejects only values that would otherwise surface
as confusing failures mid-sync (an empty server URL, an unknown conflict
policy).
*/
package config
