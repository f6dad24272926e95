// Package storage defines the conversation store contract shared by
// the adapter implementations (memory, postgres): the Store interface,
// sentinel errors, and conversation ID generation.
package storage

import (
	"context"
	"crypto/rand"
	"math/big"
	"regexp"

	"github.com/Embedding-Space/Alpha-AI/pkg/conversation"
)

// Store persists conversations. Saves use optimistic versioning: a
// conversation whose at-rest version is newer than the one being
// saved is never silently overwritten.
type Store interface {
	// Load returns the conversation with the given ID, or ErrNotFound.
	Load(ctx context.Context, id string) (*conversation.Conversation, error)

	// LoadMostRecent returns the most recently updated conversation,
	// or ErrNotFound when the store is empty.
	LoadMostRecent(ctx context.Context) (*conversation.Conversation, error)

	// Save persists the conversation and returns the new version,
	// also reflected on conv.Version. A conversation without an ID is
	// inserted: it is assigned an ID (visible on the passed struct)
	// and persisted at version 1. An existing conversation is updated
	// to its at-rest version + 1; if the at-rest version is already
	// newer than conv.Version, Save fails with ErrConflict and
	// persists nothing.
	Save(ctx context.Context, conv *conversation.Conversation) (int64, error)

	// Delete removes the conversation, or returns ErrNotFound.
	Delete(ctx context.Context, id string) error

	// HealthCheck verifies the backing store is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases store resources.
	Close() error
}

const (
	idLength = 24
	charset  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	conversationIDPrefix = "conv_"
)

var conversationIDPattern = regexp.MustCompile(`^conv_[a-zA-Z0-9]{24}$`)

// NewConversationID generates a conversation ID with the "conv_"
// prefix followed by 24 cryptographically random alphanumeric
// characters.
func NewConversationID() string {
	return conversationIDPrefix + randomAlphanumeric(idLength)
}

// ValidateConversationID checks whether the given string is a valid
// conversation ID.
func ValidateConversationID(id string) bool {
	return conversationIDPattern.MatchString(id)
}

func randomAlphanumeric(n int) string {
	max := big.NewInt(int64(len(charset)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("crypto/rand failed: " + err.Error())
		}
		b[i] = charset[idx.Int64()]
	}
	return string(b)
}
