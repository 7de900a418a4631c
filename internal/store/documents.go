package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("document not found")
	ErrVersionConflict = errors.New("document version conflict")
	ErrExists          = errors.New("document already exists")
)

// Document is the raw record kept by a document store. Rev is the
// concurrency token: Put only succeeds when it matches the stored one.
type Document struct {
	ID         string
	Rev        string
	Type       string
	BusinessID string
	Body       []byte
}

// Selector narrows Find to documents of one type for one business.
type Selector struct {
	Type       string
	BusinessID string
}

// Documents is the document-store client the process store is built on.
type Documents interface {
	Find(ctx context.Context, sel Selector) (*Document, error)
	Create(ctx context.Context, doc Document) (*Document, error)
	Get(ctx context.Context, id string) (*Document, error)
	Put(ctx context.Context, doc Document) (*Document, error)
	Close() error
}

// nextRev derives the token that follows rev, CouchDB style ("3-9f2c...").
func nextRev(rev string) string {
	n := 0
	if i := strings.IndexByte(rev, '-'); i > 0 {
		n, _ = strconv.Atoi(rev[:i])
	}
	return fmt.Sprintf("%d-%s", n+1, strings.ReplaceAll(uuid.NewString(), "-", "")[:16])
}
