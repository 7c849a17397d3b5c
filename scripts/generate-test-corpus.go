//go:build ignore

// Package main generates a synthetic media library for benchmarking.
// Usage: go run scripts/generate-test-corpus.go -files 1000 -output testdata/bench
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

var (
	numFiles  = flag.Int("files", 1000, "Number of files to generate")
	outputDir = flag.String("output", "testdata/bench", "Output directory")
	seed      = flag.Int64("seed", 42, "Random seed for reproducibility")
)

// Topic vocabulary for plausible article and caption text.
var (
	subjects = []string{
		"solar panels", "wind turbines", "heat pumps", "battery storage",
		"electric vehicles", "smart thermostats", "home insulation",
		"hydroelectric dams", "geothermal wells", "power inverters",
	}
	verbs = []string{
		"convert", "store", "distribute", "regulate", "monitor",
		"capture", "transform", "balance", "measure", "deliver",
	}
	objects = []string{
		"sunlight into electricity", "energy for later use",
		"power across the grid", "indoor temperature", "consumption in real time",
		"kinetic energy", "heat from the ground", "seasonal demand",
		"voltage and frequency", "clean power to households",
	}
	scenes = []string{
		"a rooftop installation at sunset", "an offshore wind farm",
		"a basement utility room", "a suburban driveway charger",
		"a control room dashboard", "a mountain reservoir",
		"an attic insulation retrofit", "a field of tracking panels",
	}
)

func sentence(r *rand.Rand) string {
	s := subjects[r.Intn(len(subjects))]
	v := verbs[r.Intn(len(verbs))]
	o := objects[r.Intn(len(objects))]
	return fmt.Sprintf("%s %s %s", strings.ToUpper(s[:1])+s[1:], v, o)
}

func article(r *rand.Rand, title string, paragraphs int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", title)
	for p := 0; p < paragraphs; p++ {
		for s := 0; s < 4+r.Intn(4); s++ {
			sb.WriteString(sentence(r))
			sb.WriteString(". ")
		}
		sb.WriteString("\n\n")
	}
	return sb.String()
}

func writeText(r *rand.Rand, dir string, i int) error {
	title := fmt.Sprintf("Guide %d: %s", i, sentence(r))
	path := filepath.Join(dir, fmt.Sprintf("guide-%04d.md", i))
	return os.WriteFile(path, []byte(article(r, title, 2+r.Intn(6))), 0o644)
}

func writeImage(r *rand.Rand, dir string, i int) error {
	base := filepath.Join(dir, fmt.Sprintf("photo-%04d", i))
	// Stub pixel data; only the sidecar caption is indexed.
	if err := os.WriteFile(base+".jpg", []byte{0xFF, 0xD8, 0xFF, 0xD9}, 0o644); err != nil {
		return err
	}
	caption := fmt.Sprintf("Photo of %s. %s.", scenes[r.Intn(len(scenes))], sentence(r))
	return os.WriteFile(base+".caption.txt", []byte(caption), 0o644)
}

func writeVideo(r *rand.Rand, dir string, i int) error {
	base := filepath.Join(dir, fmt.Sprintf("clip-%04d", i))
	if err := os.WriteFile(base+".mp4", []byte("stub"), 0o644); err != nil {
		return err
	}

	var transcript strings.Builder
	for s := 0; s < 8+r.Intn(16); s++ {
		transcript.WriteString(sentence(r))
		transcript.WriteString(". ")
	}
	if err := os.WriteFile(base+".transcript.txt", []byte(transcript.String()), 0o644); err != nil {
		return err
	}

	var keyframes strings.Builder
	keyframes.WriteString("# seconds\tcaption\n")
	offset := 0.0
	for k := 0; k < 2+r.Intn(4); k++ {
		offset += 5 + r.Float64()*40
		fmt.Fprintf(&keyframes, "%.1f\t%s\n", offset, scenes[r.Intn(len(scenes))])
	}
	return os.WriteFile(base+".keyframes.txt", []byte(keyframes.String()), 0o644)
}

func main() {
	flag.Parse()
	r := rand.New(rand.NewSource(*seed))

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create output dir: %v\n", err)
		os.Exit(1)
	}

	// Roughly the shape of a real library: mostly text, some images,
	// a few videos.
	var texts, images, videos int
	for i := 0; i < *numFiles; i++ {
		var err error
		switch p := r.Intn(100); {
		case p < 60:
			err = writeText(r, *outputDir, i)
			texts++
		case p < 90:
			err = writeImage(r, *outputDir, i)
			images++
		default:
			err = writeVideo(r, *outputDir, i)
			videos++
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to write file %d: %v\n", i, err)
			os.Exit(1)
		}
	}

	fmt.Printf("Generated %d files in %s (%d text, %d image, %d video)\n",
		*numFiles, *outputDir, texts, images, videos)
}
