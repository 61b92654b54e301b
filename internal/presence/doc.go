// Package presence implements the room presence and broadcast engine.
//
// A Registry owns the connection-to-session mapping together with the room
// index derived from it. A Router delivers envelopes to one connection or to
// a whole room through a transport-supplied Deliverer, a Publisher emits
// presence snapshots, and a Controller ties them together for the join,
// message and disconnect events of each connection.
package presence
