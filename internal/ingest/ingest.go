// Package ingest turns a media library on disk into searchable content:
// it scans the library for text, image, and video files, derives typed
// content records (text chunks, captions, transcripts, keyframes), embeds
// them, and writes records and vectors into the stores the retrieval
// pipeline reads from. Ingest is the only writer; a file lock keeps
// concurrent runs out.
package ingest

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/mosaicsearch/mosaic/internal/store"
)

// MediaKind classifies a scanned file by the modality it feeds.
type MediaKind string

const (
	KindText  MediaKind = "text"
	KindImage MediaKind = "image"
	KindVideo MediaKind = "video"
)

// Sidecar suffixes. Media files carry their searchable text in plain-text
// sidecars next to the file: "clip.mp4" reads "clip.transcript.txt" and
// "clip.keyframes.txt"; "photo.jpg" reads "photo.caption.txt".
const (
	CaptionSuffix    = ".caption.txt"
	TranscriptSuffix = ".transcript.txt"
	KeyframesSuffix  = ".keyframes.txt"
)

var kindByExtension = map[string]MediaKind{
	".md":       KindText,
	".markdown": KindText,
	".txt":      KindText,
	".rst":      KindText,

	".jpg":  KindImage,
	".jpeg": KindImage,
	".png":  KindImage,
	".gif":  KindImage,
	".webp": KindImage,

	".mp4":  KindVideo,
	".mov":  KindVideo,
	".mkv":  KindVideo,
	".webm": KindVideo,
	".avi":  KindVideo,
}

// KindForPath classifies a path by extension. Sidecar files classify as
// "", since they are read alongside their media file, not ingested on
// their own.
func KindForPath(path string) MediaKind {
	if IsSidecar(path) {
		return ""
	}
	return kindByExtension[strings.ToLower(filepath.Ext(path))]
}

// IsSidecar reports whether path is a caption/transcript/keyframes
// sidecar.
func IsSidecar(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, CaptionSuffix) ||
		strings.HasSuffix(lower, TranscriptSuffix) ||
		strings.HasSuffix(lower, KeyframesSuffix)
}

// FileInfo is one scanned library file.
type FileInfo struct {
	// Path is relative to the library root, slash-separated.
	Path string

	// AbsPath is the absolute filesystem path.
	AbsPath string

	Kind    MediaKind
	Size    int64
	ModTime time.Time
}

// DocID returns the stable document identifier for the file: its
// root-relative path. Records derived from one file share it, so
// re-ingesting a changed file can replace all of them.
func (f *FileInfo) DocID() string {
	return f.Path
}

// Modality returns the vector index the file's records belong to.
func (f *FileInfo) Modality() store.Modality {
	switch f.Kind {
	case KindImage:
		return store.ModalityImage
	case KindVideo:
		return store.ModalityVideo
	default:
		return store.ModalityText
	}
}
