// Package shell manages a single long-lived bash subprocess and provides
// serialized command execution against it.
//
// A Shell owns one bash process spawned with piped stdin/stdout/stderr. Two
// background goroutines drain the output pipes line by line into a shared
// tagged queue. Command completion is detected with a unique end-of-command
// marker echoed after every command, since the raw byte streams carry no
// framing of their own. Session state (working directory, variables) persists
// between calls. A crashed or wedged session is restarted transparently on
// the next call.
package shell
