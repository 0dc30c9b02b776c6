// Package ipc exposes the daemon over a Unix domain socket and ships the
// matching client used by the CLI forwarder.
//
// The wire protocol is one JSON document per connection: the client writes a
// request envelope, half-closes its write side, and reads the response until
// EOF. There is no framing beyond the connection itself, which keeps shell
// hook integrations trivial.
//
// The package also owns socket path resolution, including the fallback for
// project directories whose preferred socket path would exceed the kernel's
// sun_path limit.
package ipc
