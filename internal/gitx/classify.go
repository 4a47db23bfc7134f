package gitx

import (
	"strings"

	"golden-go/internal/golden"
)

// transientPhrases indicate network trouble: worth retrying, never worth a
// destructive reclone on their own.
var transientPhrases = []string{
	"could not resolve host",
	"could not resolve hostname",
	"temporary failure in name resolution",
	"connection refused",
	"connection reset",
	"connection timed out",
	"operation timed out",
	"timed out",
	"network is unreachable",
	"failed to connect",
	"the remote end hung up",
	"early eof",
	"rpc failed",
	"transfer closed",
	"ssl_error",
	"gnutls",
}

// corruptionPhrases indicate repository-integrity damage in the master
// clone. These trigger recovery immediately.
var corruptionPhrases = []string{
	"not a git repository",
	"bad object",
	"bad tree object",
	"invalid object",
	"missing blob",
	"missing tree",
	"object file",
	"loose object",
	"pack has bad object",
	"index-pack failed",
	"sha1 mismatch",
	"hash mismatch",
	"corrupt",
	"your local changes",
	"index file smaller than expected",
}

// Classify maps git stderr output to a failure category. Matching is
// case-insensitive. Unrecognized output defaults to transient: fail open
// toward retry, not toward a destructive reclone.
func Classify(stderr string) golden.FetchCategory {
	lowered := strings.ToLower(stderr)

	for _, phrase := range transientPhrases {
		if strings.Contains(lowered, phrase) {
			return golden.FetchTransient
		}
	}
	for _, phrase := range corruptionPhrases {
		if strings.Contains(lowered, phrase) {
			return golden.FetchCorruption
		}
	}
	return golden.FetchTransient
}
