package ingest

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/mosaicsearch/mosaic/internal/store"
)

// Extractor derives content records from scanned files. Text files are
// chunked; image and video files read their sidecars for captions,
// transcripts, and keyframes.
type Extractor struct {
	chunker *Chunker
}

// NewExtractor creates an Extractor chunking text at the given size and
// overlap.
func NewExtractor(chunkSize, chunkOverlap int) *Extractor {
	return &Extractor{chunker: NewChunker(chunkSize, chunkOverlap)}
}

// Extract returns the content records a file contributes. A media file
// without any sidecar text still yields one record titled by its
// filename, so it remains discoverable by semantic search over the
// title. Records carry deterministic IDs derived from the doc ID and
// the record's position, so re-ingesting an unchanged file produces
// identical IDs.
func (e *Extractor) Extract(f *FileInfo) ([]*store.ContentRecord, error) {
	switch f.Kind {
	case KindText:
		return e.extractText(f)
	case KindImage:
		return e.extractImage(f)
	case KindVideo:
		return e.extractVideo(f)
	}
	return nil, fmt.Errorf("unknown media kind %q for %s", f.Kind, f.Path)
}

func (e *Extractor) extractText(f *FileInfo) ([]*store.ContentRecord, error) {
	data, err := os.ReadFile(f.AbsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.Path, err)
	}

	chunks := e.chunker.Chunk(string(data))
	records := make([]*store.ContentRecord, 0, len(chunks))
	for i, text := range chunks {
		records = append(records, &store.ContentRecord{
			ID:          recordID(f.DocID(), "chunk", i),
			ContentType: store.ContentTypeTextChunk,
			Title:       titleFor(f, text),
			DocID:       f.DocID(),
			CreatedAt:   f.ModTime,
			Text: &store.TextAttrs{
				Text:       text,
				ChunkIndex: i,
				SourcePath: f.Path,
			},
		})
	}
	return records, nil
}

func (e *Extractor) extractImage(f *FileInfo) ([]*store.ContentRecord, error) {
	caption := readSidecar(sidecarPath(f.AbsPath, CaptionSuffix))
	width, height := imageDimensions(f.AbsPath)

	return []*store.ContentRecord{{
		ID:          recordID(f.DocID(), "image", 0),
		ContentType: store.ContentTypeImage,
		Title:       baseName(f.Path),
		DocID:       f.DocID(),
		CreatedAt:   f.ModTime,
		Image: &store.ImageAttrs{
			Caption: caption,
			Width:   width,
			Height:  height,
			Path:    f.Path,
		},
	}}, nil
}

func (e *Extractor) extractVideo(f *FileInfo) ([]*store.ContentRecord, error) {
	transcript := readSidecar(sidecarPath(f.AbsPath, TranscriptSuffix))

	records := []*store.ContentRecord{{
		ID:          recordID(f.DocID(), "video", 0),
		ContentType: store.ContentTypeVideo,
		Title:       baseName(f.Path),
		DocID:       f.DocID(),
		CreatedAt:   f.ModTime,
		Video: &store.VideoAttrs{
			Transcript: transcript,
			Path:       f.Path,
		},
	}}
	videoID := records[0].ID

	frames, err := readKeyframes(sidecarPath(f.AbsPath, KeyframesSuffix))
	if err != nil {
		return nil, fmt.Errorf("bad keyframes sidecar for %s: %w", f.Path, err)
	}
	for i, kf := range frames {
		records = append(records, &store.ContentRecord{
			ID:          recordID(f.DocID(), "keyframe", i),
			ContentType: store.ContentTypeKeyframe,
			Title:       fmt.Sprintf("%s @ %.1fs", baseName(f.Path), kf.at),
			DocID:       f.DocID(),
			CreatedAt:   f.ModTime,
			Keyframe: &store.KeyframeAttrs{
				Caption:      kf.caption,
				TimestampSec: kf.at,
				VideoID:      videoID,
				Path:         f.Path,
			},
		})
	}
	return records, nil
}

type keyframeLine struct {
	at      float64
	caption string
}

// readKeyframes parses a keyframes sidecar: one frame per line,
// "<seconds><TAB or spaces><caption>". Blank lines and # comments are
// skipped.
func readKeyframes(path string) ([]keyframeLine, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var frames []keyframeLine
	sc := bufio.NewScanner(file)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		at, err := strconv.ParseFloat(fields[0], 64)
		if err != nil || at < 0 {
			return nil, fmt.Errorf("line %d: %q is not a timestamp", lineNo, fields[0])
		}
		frames = append(frames, keyframeLine{
			at:      at,
			caption: strings.TrimSpace(strings.TrimPrefix(line, fields[0])),
		})
	}
	return frames, sc.Err()
}

// readSidecar returns the trimmed sidecar contents, or "" when absent.
func readSidecar(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// sidecarPath swaps a media file's extension for a sidecar suffix:
// clip.mp4 → clip.transcript.txt.
func sidecarPath(absPath, suffix string) string {
	ext := filepath.Ext(absPath)
	return strings.TrimSuffix(absPath, ext) + suffix
}

// imageDimensions probes the image header. Unknown formats report 0x0.
func imageDimensions(absPath string) (int, int) {
	file, err := os.Open(absPath)
	if err != nil {
		return 0, 0
	}
	defer file.Close()

	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}

// titleFor derives a text chunk title: the first markdown heading in the
// chunk, else the file name.
func titleFor(f *FileInfo, chunk string) string {
	for _, line := range strings.Split(chunk, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			return strings.TrimSpace(strings.TrimLeft(line, "# "))
		}
	}
	return baseName(f.Path)
}

// baseName strips directory and extension.
func baseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// recordID derives a stable record identifier from the doc ID and the
// record's role and position within the document.
func recordID(docID, role string, n int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s#%s#%d", docID, role, n)))
	return hex.EncodeToString(sum[:16])
}
