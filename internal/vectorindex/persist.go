package vectorindex

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"

	"github.com/inktime/support-backend/internal/platform/logger"
)

// On-disk layout: two co-located artifacts under the index directory.
//
//	vectors.bin  magic "SBVX", uint32 version, uint32 dim, uint32 count,
//	             then count rows of dim little-endian float32s
//	meta.json    {"dim": N, "entries": [...]} aligned row-for-row
//
// Both are required for a valid load. Either one missing or zero-length
// means the index is treated as absent and rebuilt from scratch.
const (
	vectorsFile = "vectors.bin"
	metaFile    = "meta.json"

	indexMagic   = "SBVX"
	indexVersion = 1
)

type metaPayload struct {
	Dim     int     `json:"dim"`
	Entries []Entry `json:"entries"`
}

// LoadOrCreate opens the index stored under dir, or returns an empty index
// when no valid one exists there. Corruption (zero-length or unreadable
// artifacts, row count disagreement) is logged and handled by starting
// empty; it is never an error, because the recovery in every such case is
// the same full rebuild.
func LoadOrCreate(log *logger.Logger, dir string, dim int) (*Index, error) {
	ix, err := New(log, dim)
	if err != nil {
		return nil, err
	}

	vecPath := filepath.Join(dir, vectorsFile)
	metaPath := filepath.Join(dir, metaFile)

	vecOK, err := usableFile(vecPath)
	if err != nil {
		return nil, err
	}
	metaOK, err := usableFile(metaPath)
	if err != nil {
		return nil, err
	}
	if !vecOK || !metaOK {
		if vecOK != metaOK {
			ix.log.Warn("Vector index artifacts incomplete, starting empty",
				"dir", dir, "vectors_ok", vecOK, "meta_ok", metaOK)
		}
		return ix, nil
	}

	vectors, fileDim, err := readVectors(vecPath)
	if err != nil {
		ix.log.Warn("Vector index file unreadable, starting empty", "path", vecPath, "error", err)
		return ix, nil
	}
	meta, err := readMeta(metaPath)
	if err != nil {
		ix.log.Warn("Vector index metadata unreadable, starting empty", "path", metaPath, "error", err)
		return ix, nil
	}
	if fileDim != dim || meta.Dim != dim {
		ix.log.Warn("Vector index dimension mismatch, starting empty",
			"dir", dir, "expected", dim, "vectors_dim", fileDim, "meta_dim", meta.Dim)
		return ix, nil
	}
	if len(vectors) != len(meta.Entries) {
		ix.log.Warn("Vector index row count disagreement, starting empty",
			"dir", dir, "vectors", len(vectors), "entries", len(meta.Entries))
		return ix, nil
	}

	ix.vectors = vectors
	ix.entries = meta.Entries
	ix.log.Info("Vector index loaded", "dir", dir, "entries", len(meta.Entries))
	return ix, nil
}

// usableFile reports whether path exists with non-zero size. A zero-length
// artifact is a torn write and counts as absent.
func usableFile(path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.Size() > 0, nil
}

// Persist writes both artifacts to temporary files in dir and renames them
// into place, so a crash mid-write can leave stale or missing artifacts but
// never a half-written current one.
func (ix *Index) Persist(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	ix.mu.RLock()
	vecRaw, err := encodeVectors(ix.dim, ix.vectors)
	var metaRaw []byte
	if err == nil {
		metaRaw, err = json.Marshal(metaPayload{Dim: ix.dim, Entries: ix.entries})
	}
	count := len(ix.entries)
	ix.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}

	if err := writeAtomic(filepath.Join(dir, vectorsFile), vecRaw); err != nil {
		return err
	}
	if err := writeAtomic(filepath.Join(dir, metaFile), metaRaw); err != nil {
		return err
	}
	ix.log.Info("Vector index persisted", "dir", dir, "entries", count)
	return nil
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

func encodeVectors(dim int, vectors [][]float32) ([]byte, error) {
	buf := make([]byte, 0, len(indexMagic)+12+len(vectors)*dim*4)
	buf = append(buf, indexMagic...)
	buf = binary.LittleEndian.AppendUint32(buf, indexVersion)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(dim))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(vectors)))
	for _, row := range vectors {
		if len(row) != dim {
			return nil, fmt.Errorf("row dimension mismatch: expected=%d got=%d", dim, len(row))
		}
		for _, f := range row {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
		}
	}
	return buf, nil
}

func readVectors(path string) ([][]float32, int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}
	header := len(indexMagic) + 12
	if len(raw) < header {
		return nil, 0, fmt.Errorf("truncated header")
	}
	if string(raw[:len(indexMagic)]) != indexMagic {
		return nil, 0, fmt.Errorf("bad magic")
	}
	off := len(indexMagic)
	version := binary.LittleEndian.Uint32(raw[off:])
	if version != indexVersion {
		return nil, 0, fmt.Errorf("unsupported version %d", version)
	}
	dim := int(binary.LittleEndian.Uint32(raw[off+4:]))
	count := int(binary.LittleEndian.Uint32(raw[off+8:]))
	if dim <= 0 || count < 0 {
		return nil, 0, fmt.Errorf("bad header dim=%d count=%d", dim, count)
	}
	want := header + count*dim*4
	if len(raw) != want {
		return nil, 0, fmt.Errorf("size mismatch: want=%d got=%d", want, len(raw))
	}

	vectors := make([][]float32, count)
	pos := header
	for i := 0; i < count; i++ {
		row := make([]float32, dim)
		for j := 0; j < dim; j++ {
			row[j] = math.Float32frombits(binary.LittleEndian.Uint32(raw[pos:]))
			pos += 4
		}
		vectors[i] = row
	}
	return vectors, dim, nil
}

func readMeta(path string) (*metaPayload, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var meta metaPayload
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}
