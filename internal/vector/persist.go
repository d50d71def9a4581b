package vector

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/models"
)

// Artifact extensions. A persisted index is two files written side by side:
// the binary vector blob and a JSON metadata blob (chunk records, model
// identifier, dimension). Both halves must be present to load.
const (
	vectorExt = ".vec"
	metaExt   = ".meta.json"
)

// CorruptIndexError reports persisted index state that cannot be loaded:
// a missing half, a truncated blob, or metadata that disagrees with the
// vector blob. The index must be rebuilt from source.
type CorruptIndexError struct {
	Path   string
	Reason string
}

func (e *CorruptIndexError) Error() string {
	return fmt.Sprintf("corrupt index at %s: %s", e.Path, e.Reason)
}

type indexMeta struct {
	ModelID    string         `json:"model_id"`
	Dimensions int            `json:"dimensions"`
	Count      int            `json:"count"`
	Chunks     []models.Chunk `json:"chunks"`
}

// Save writes the index to path+".vec" and path+".meta.json". Parent
// directories are created as needed. Format of the vector blob: dimensions
// (uint32), count (uint32), then count*dimensions little-endian float32.
func (idx *Index) Save(path string) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	f, err := os.Create(path + vectorExt)
	if err != nil {
		return fmt.Errorf("create vector file: %w", err)
	}
	defer f.Close()
	if err := binary.Write(f, binary.LittleEndian, uint32(idx.dimensions)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(len(idx.vectors))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for _, vec := range idx.vectors {
		if _, err := f.Write(float32SliceToBytes(vec)); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}

	meta := indexMeta{
		ModelID:    idx.embedder.ModelID(),
		Dimensions: idx.dimensions,
		Count:      len(idx.vectors),
		Chunks:     idx.chunks,
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := os.WriteFile(path+metaExt, data, 0644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

// Load replaces the in-memory contents from the artifact at path. Both
// halves must be present and agree; otherwise a *CorruptIndexError is
// returned. A metadata model identifier that differs from the configured
// embedder is logged as a warning but does not fail the load: the vectors
// remain searchable, just against a model they were not produced by.
func (idx *Index) Load(path string) error {
	metaData, err := os.ReadFile(path + metaExt)
	if err != nil {
		if os.IsNotExist(err) {
			return &CorruptIndexError{Path: path, Reason: "metadata blob missing"}
		}
		return fmt.Errorf("read metadata: %w", err)
	}
	var meta indexMeta
	if err := json.Unmarshal(metaData, &meta); err != nil {
		return &CorruptIndexError{Path: path, Reason: fmt.Sprintf("metadata unreadable: %v", err)}
	}

	f, err := os.Open(path + vectorExt)
	if err != nil {
		if os.IsNotExist(err) {
			return &CorruptIndexError{Path: path, Reason: "vector blob missing"}
		}
		return fmt.Errorf("open vector file: %w", err)
	}
	defer f.Close()

	var dim, n uint32
	if err := binary.Read(f, binary.LittleEndian, &dim); err != nil {
		return &CorruptIndexError{Path: path, Reason: "vector blob truncated"}
	}
	if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
		return &CorruptIndexError{Path: path, Reason: "vector blob truncated"}
	}
	if int(dim) != meta.Dimensions || int(n) != meta.Count || meta.Count != len(meta.Chunks) {
		return &CorruptIndexError{Path: path, Reason: "metadata and vector blob disagree"}
	}
	if int(dim) != idx.dimensions {
		return &CorruptIndexError{Path: path, Reason: fmt.Sprintf("dimension mismatch: file has %d, index expects %d", dim, idx.dimensions)}
	}

	vectors := make([][]float32, 0, n)
	buf := make([]byte, int(dim)*4)
	for i := uint32(0); i < n; i++ {
		if _, err := io.ReadFull(f, buf); err != nil {
			return &CorruptIndexError{Path: path, Reason: "vector blob truncated"}
		}
		vectors = append(vectors, bytesToFloat32Slice(buf))
	}

	if meta.ModelID != idx.embedder.ModelID() && idx.logger != nil {
		idx.logger.Warn("index model mismatch; vectors from a different model are not comparable",
			zap.String("stored_model", meta.ModelID),
			zap.String("configured_model", idx.embedder.ModelID()),
			zap.String("path", path),
		)
	}

	idx.mu.Lock()
	idx.vectors = vectors
	idx.chunks = meta.Chunks
	idx.mu.Unlock()
	return nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
