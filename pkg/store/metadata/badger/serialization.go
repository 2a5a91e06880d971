package badger

import (
	"encoding/json"
	"fmt"

	"github.com/marmos91/dittofiles/pkg/store/metadata"
)

// Records are stored as JSON: human-readable when inspecting the database and
// tolerant of added fields.

func encodeUser(user *metadata.User) ([]byte, error) {
	data, err := json.Marshal(user)
	if err != nil {
		return nil, fmt.Errorf("failed to encode user: %w", err)
	}
	return data, nil
}

func decodeUser(data []byte) (*metadata.User, error) {
	var user metadata.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}
	return &user, nil
}

func encodeFile(node *metadata.FileNode) ([]byte, error) {
	data, err := json.Marshal(node)
	if err != nil {
		return nil, fmt.Errorf("failed to encode file: %w", err)
	}
	return data, nil
}

func decodeFile(data []byte) (*metadata.FileNode, error) {
	var node metadata.FileNode
	if err := json.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("failed to decode file: %w", err)
	}
	return &node, nil
}
