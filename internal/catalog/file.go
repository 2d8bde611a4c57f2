package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// LoadSnapshotFile reads a JSON snapshot document from disk.
func LoadSnapshotFile(path string) (*Snapshot, error) {
	var doc SnapshotDocument
	if err := readJSON(path, &doc); err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return doc.Snapshot(path), nil
}

// LoadSnapshotDocument reads a JSON snapshot document without converting it.
func LoadSnapshotDocument(path string) (*SnapshotDocument, error) {
	var doc SnapshotDocument
	if err := readJSON(path, &doc); err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return &doc, nil
}

// LoadBasketFile reads a JSON basket document from disk.
func LoadBasketFile(path string) (*BasketDocument, error) {
	var doc BasketDocument
	if err := readJSON(path, &doc); err != nil {
		return nil, fmt.Errorf("failed to load basket: %w", err)
	}
	return &doc, nil
}

// FileLoader loads snapshots from a JSON file on every call.
type FileLoader struct {
	Path string
}

// LoadSnapshot implements Loader.
func (l FileLoader) LoadSnapshot(_ context.Context) (*Snapshot, error) {
	return LoadSnapshotFile(l.Path)
}

func readJSON(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
