package artifact

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Store persists generated icon tables. Objects are addressed by a namespace
// (the deployment env) and a relative path.
type Store interface {
	Put(ctx context.Context, namespace, path string, content []byte) error
	Get(ctx context.Context, namespace, path string) ([]byte, error)
	List(ctx context.Context, namespace string) ([]string, error)
}

var ErrNotFound = errors.New("artifact not found")

func normalize(namespace, path string) (string, string, error) {
	namespace = strings.Trim(strings.TrimSpace(namespace), "/")
	path = strings.TrimLeft(strings.TrimSpace(path), "/")
	if namespace == "" {
		return "", "", fmt.Errorf("namespace is required")
	}
	if path == "" {
		return "", "", fmt.Errorf("path is required")
	}
	return namespace, path, nil
}

func objectKey(namespace, path string) string {
	return namespace + "/" + path
}
