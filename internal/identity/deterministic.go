// Package identity derives the stable UUIDs used for content nodes and
// posts. The same inputs always produce the same id, across machines and
// rebuilds.
package identity

import (
	"encoding/hex"
	"strings"

	hashid "github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

const postSuffix = " >>> BlogPost"

// UUID hashes key into a UUID with go-hashid.
func UUID(key string) uuid.UUID {
	if strings.TrimSpace(key) == "" {
		return uuid.Nil
	}
	uid, err := hashid.NewUUID(key, hashid.WithHashAlgorithm(hashid.SHA256))
	if err != nil || uid == uuid.Nil {
		return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key))
	}
	return uid
}

// NodeUUID identifies a scanned file by its source instance and its slash
// separated path relative to that source root. The path is hex encoded so
// names differing only in case keep distinct ids.
func NodeUUID(source, relativePath string) uuid.UUID {
	return UUID("folio:node:" + strings.TrimSpace(source) + ":" + hex.EncodeToString([]byte(relativePath)))
}

// PostUUID derives the post id from the id of the node it was projected from.
func PostUUID(nodeID uuid.UUID) uuid.UUID {
	if nodeID == uuid.Nil {
		return uuid.Nil
	}
	return UUID(nodeID.String() + postSuffix)
}
