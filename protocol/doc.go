package protocol

// This package implements parsing and serialising for the text protocol that
// herald speaks to a NATS compatible broker.
//
// The protocol aims to be
//
// - easy to implement
// - cheap to parse incrementally, one byte at a time if need be
// - human readable
//
// === General Syntax
//
// - lines are `\r\n` delimited
// - operation names are case insensitive
// - fields are separated by one or more spaces or tabs
//
// === Client operations
//
// - `CONNECT {json}` - sent once, right after the server INFO
// - `PUB <subject> [reply] <size>` - publish a payload of <size> bytes
// - `HPUB <subject> [reply] <hdr size> <total size>` - publish with a header block
// - `SUB <subject> [queue] <sid>` - express interest in a subject
// - `UNSUB <sid> [max]` - remove interest, optionally after <max> more messages
// - `PING` / `PONG` - keepalive
//
// === Server operations
//
// - `INFO {json}` - server description, sent on connect and asynchronously
// - `MSG <subject> <sid> [reply] <size>` followed by the payload line
// - `HMSG <subject> <sid> [reply] <hdr size> <total size>` followed by the header block and payload
// - `+OK` - acknowledgement in verbose mode
// - `-ERR '<message>'` - protocol or authorization error
// - `PING` / `PONG`
//
// For example
//
//  ```
//    < INFO {"server_id":"abc","max_payload":1048576}\r\n
//    > CONNECT {"verbose":false,"lang":"go"}\r\n
//    > PING\r\n
//    < PONG\r\n
//    > SUB foo 1\r\n
//    > PUB foo 5\r\n
//    > hello\r\n
//    < MSG foo 1 5\r\n
//    < hello\r\n
//  ```
//
// === Header blocks
//
// Header blocks start with a version line, optionally followed by an inline
// status code and description, then `Key: Value` lines and an empty line:
//
//  ```
//    NATS/1.0 503\r\n
//    \r\n
//  ```
//
// A zero length payload with a 503 status means nobody was listening on the
// subject a request was published to.
//
