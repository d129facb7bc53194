// Package core implements the credential-cache dispatch framework: a
// registry of named cache backends, name resolution and default-name
// computation, cache-handle lifecycle, credential operations, the
// cross-backend collection cursor, the configuration-credential
// protocol, and the administrative operations layered on top of them.
//
// Backends are supplied by callers (see backends/memory, backends/file,
// backends/keystore, backends/sqlbackend) and registered against a
// Context. The core does not interpret ticket bytes: apart from the
// configuration-credential protocol, which carries its value in the
// ticket field, it only dispatches to whichever backend a name
// resolves to.
package core
