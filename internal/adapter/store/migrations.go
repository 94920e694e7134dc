package store

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"
)

// CurrentSchemaVersion is the current schema version.
// Increment this when making breaking changes to the storage format.
const CurrentSchemaVersion = 1

var (
	keySchemaVersion = []byte("schema_version")
	keyGeneration    = []byte("generation")
	keyFingerprint   = []byte("embedding_fingerprint")
	keyModel         = []byte("embedding_model")
)

// SchemaInfo describes how the stored vectors were produced.
type SchemaInfo struct {
	Version     int    `json:"version"`
	Generation  uint64 `json:"generation"`
	Model       string `json:"model,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// EmbeddingFingerprint identifies an embedding space. Vectors from different
// fingerprints must never be compared.
func EmbeddingFingerprint(model string, dimension int) string {
	data, _ := json.Marshal(struct {
		Model     string `json:"model"`
		Dimension int    `json:"dimension"`
	}{model, dimension})
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:8])
}

func initSchema(tx *bbolt.Tx) error {
	b := tx.Bucket(bucketMeta)
	if b.Get(keySchemaVersion) == nil {
		data, err := json.Marshal(CurrentSchemaVersion)
		if err != nil {
			return err
		}
		if err := b.Put(keySchemaVersion, data); err != nil {
			return err
		}
	}
	if b.Get(keyGeneration) == nil {
		return writeGeneration(tx, 1)
	}
	return nil
}

func readGeneration(tx *bbolt.Tx) uint64 {
	data := tx.Bucket(bucketMeta).Get(keyGeneration)
	if len(data) != 8 {
		return 1
	}
	return binary.BigEndian.Uint64(data)
}

func writeGeneration(tx *bbolt.Tx, gen uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, gen)
	return tx.Bucket(bucketMeta).Put(keyGeneration, buf)
}

func writeFingerprint(tx *bbolt.Tx, model string, dimension int) error {
	b := tx.Bucket(bucketMeta)
	if err := b.Put(keyModel, []byte(model)); err != nil {
		return err
	}
	return b.Put(keyFingerprint, []byte(EmbeddingFingerprint(model, dimension)))
}

func clearFingerprint(tx *bbolt.Tx) error {
	b := tx.Bucket(bucketMeta)
	if err := b.Delete(keyModel); err != nil {
		return err
	}
	return b.Delete(keyFingerprint)
}

// GetSchemaInfo retrieves the current schema info from the database.
func (s *BoltKnowledgeStore) GetSchemaInfo() (*SchemaInfo, error) {
	var info SchemaInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		if versionData := b.Get(keySchemaVersion); versionData != nil {
			if err := json.Unmarshal(versionData, &info.Version); err != nil {
				info.Version = 1
			}
		}
		info.Generation = readGeneration(tx)
		info.Model = string(b.Get(keyModel))
		info.Fingerprint = string(b.Get(keyFingerprint))
		return nil
	})
	return &info, err
}

// CompatibilityResult describes whether stored vectors can be queried by the current embedder.
type CompatibilityResult struct {
	Compatible   bool
	NeedsRebuild bool
	Reason       string
}

// CheckCompatibility compares the stored schema and embedding space with the store's own.
func (s *BoltKnowledgeStore) CheckCompatibility() (*CompatibilityResult, error) {
	info, err := s.GetSchemaInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to get schema info: %w", err)
	}

	result := &CompatibilityResult{Compatible: true}

	if info.Version > CurrentSchemaVersion {
		result.Compatible = false
		result.NeedsRebuild = true
		result.Reason = fmt.Sprintf("database created by newer version (v%d > v%d)", info.Version, CurrentSchemaVersion)
		return result, nil
	}

	if info.Fingerprint != "" && info.Fingerprint != EmbeddingFingerprint(s.model, s.dimension) {
		result.Compatible = false
		result.NeedsRebuild = true
		result.Reason = fmt.Sprintf("knowledge base was built with embedding model %q; reset and re-ingest to use %q", info.Model, s.model)
	}

	return result, nil
}
