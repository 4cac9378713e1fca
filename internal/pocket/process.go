package pocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/felipepimentel/aibook/internal/config"
	"github.com/felipepimentel/aibook/internal/epub"
	"github.com/felipepimentel/aibook/internal/output"
)

type ProcessReport struct {
	Book      string   `json:"book"`
	Source    string   `json:"source"`
	OutputDir string   `json:"output_dir"`
	Chapters  int      `json:"chapters"`
	Images    int      `json:"images"`
	Outputs   []string `json:"outputs"`
}

type chapterEntry struct {
	Index  int      `json:"index"`
	Title  string   `json:"title"`
	File   string   `json:"file"`
	Images []string `json:"images,omitempty"`
}

type bookManifest struct {
	Title    string         `json:"title"`
	Author   string         `json:"author,omitempty"`
	Language string         `json:"language"`
	Source   string         `json:"source"`
	Chapters []chapterEntry `json:"chapters"`
}

// Process extracts every input without calling a provider. Each book gets
// chapters/NNN-slug.txt, images/* and a book.json describing them.
func Process(ctx context.Context, cfg *config.JobConfig, log *slog.Logger) ([]*ProcessReport, error) {
	if log == nil {
		log = slog.Default()
	}
	var reports []*ProcessReport
	for _, input := range cfg.Inputs {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		rep, err := processBook(input, OutputDir(cfg, input))
		if err != nil {
			return reports, fmt.Errorf("%s: %w", input, err)
		}
		log.Info("extracted book", "book", rep.Book, "chapters", rep.Chapters, "images", rep.Images, "dir", rep.OutputDir)
		reports = append(reports, rep)
	}
	return reports, nil
}

func processBook(input, dir string) (*ProcessReport, error) {
	b, err := epub.Extract(input)
	if err != nil {
		return nil, err
	}
	chapDir := filepath.Join(dir, "chapters")
	imgDir := filepath.Join(dir, output.ImagesDir)
	for _, d := range []string{chapDir, imgDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, err
		}
	}

	images, names := output.ImageFiles(b.Images())
	rep := &ProcessReport{Book: b.Title, Source: input, OutputDir: dir, Chapters: len(b.Chapters), Images: len(images)}
	manifest := bookManifest{Title: b.Title, Author: b.Author, Language: b.Language, Source: input}

	for _, ch := range b.Chapters {
		slug := output.Slugify(ch.Title)
		if slug == "" {
			slug = "chapter"
		}
		name := fmt.Sprintf("%03d-%s.txt", ch.Index+1, slug)
		p := filepath.Join(chapDir, name)
		if err := os.WriteFile(p, []byte(ch.Text+"\n"), 0o644); err != nil {
			return nil, err
		}
		rep.Outputs = append(rep.Outputs, p)

		entry := chapterEntry{Index: ch.Index, Title: ch.Title, File: filepath.ToSlash(filepath.Join("chapters", name))}
		for _, img := range ch.Images {
			entry.Images = append(entry.Images, output.ImagesDir+"/"+names[img.Path])
		}
		manifest.Chapters = append(manifest.Chapters, entry)
	}
	for _, img := range images {
		p := filepath.Join(imgDir, img.Name)
		if err := os.WriteFile(p, img.Data, 0o644); err != nil {
			return nil, err
		}
		rep.Outputs = append(rep.Outputs, p)
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, err
	}
	p := filepath.Join(dir, "book.json")
	if err := os.WriteFile(p, append(data, '\n'), 0o644); err != nil {
		return nil, err
	}
	rep.Outputs = append(rep.Outputs, p)
	return rep, nil
}
