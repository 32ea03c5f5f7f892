// Package tokenstore allows clients to resume authenticated sessions with the chat service.
//
// Logging in with an account identifier and secret yields a session token. Persisting that token
// in a [Store] lets subsequent processes skip the login exchange entirely: the token is verified
// by resolving the gateway endpoint, and only if the service rejects it does the client send the
// secret again. An outdated store therefore costs one extra round trip and nothing more.
//
// A Store holds the tokens of every account that has logged in from this machine. Saving the
// store after a login only replaces the entry for that account; tokens of other accounts, and any
// fields written by newer versions of this package, are carried over unchanged.
//
// The on-disk document looks like:
//
//	{
//	    "version": 1,
//	    "tokens": {
//	        "a@b.com": "T1"
//	    }
//	}
//
// Session tokens grant full access to an account. Files written by [FileStore] are created with
// mode 0600, and [KeyringStore] keeps the document in an OS-dependent credential store instead.
package tokenstore
