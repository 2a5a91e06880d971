package badger

import "fmt"

// Database Key Namespace Design
// ==============================
//
// BadgerDB is a key-value store, so records live under prefixed keys:
//
// Data Type          Prefix   Key Format                          Value Type
// ===========================================================================
// Users              "u:"     u:<userID>                         User (JSON)
// Email index        "ue:"    ue:<email>                         userID (bytes)
// Files              "f:"     f:<fileID>                         FileNode (JSON)
// Children index     "c:"     c:<ownerID>:<parentID>:<seq>       fileID (bytes)
// Sequence           "seq:"   seq:files                          badger.Sequence
//
// The children index key embeds the insertion sequence as 16 hex digits so a
// prefix scan over "c:<owner>:<parent>:" yields nodes in insertion order.
// Owner and parent IDs are UUIDs or the root sentinel and never contain ':'.

const (
	prefixUser        = "u:"
	prefixUserEmail   = "ue:"
	prefixFile        = "f:"
	prefixChildren    = "c:"
	keyFileSequence   = "seq:files"
	sequenceBandwidth = 100
)

func keyUser(id string) []byte {
	return []byte(prefixUser + id)
}

func keyUserEmail(email string) []byte {
	return []byte(prefixUserEmail + email)
}

func keyFile(id string) []byte {
	return []byte(prefixFile + id)
}

func keyChildrenPrefix(ownerID, parentID string) []byte {
	return []byte(prefixChildren + ownerID + ":" + parentID + ":")
}

func keyChild(ownerID, parentID string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%s:%016x", prefixChildren, ownerID, parentID, seq))
}
