package output

import (
	"fmt"
	"path"
	"strings"

	"github.com/felipepimentel/aibook/internal/book"
)

// ImageFiles assigns each image a file name under images/: the sanitized
// base name of its archive path, suffixed -2, -3... on collision. It returns
// the images in input order and a map from archive path to file name.
func ImageFiles(refs []book.ImageRef) ([]Image, map[string]string) {
	used := make(map[string]bool, len(refs))
	names := make(map[string]string, len(refs))
	out := make([]Image, 0, len(refs))
	for _, ref := range refs {
		base := SafeName(path.Base(ref.Path))
		ext := path.Ext(base)
		stem := strings.TrimSuffix(base, ext)
		name := base
		for n := 2; used[strings.ToLower(name)]; n++ {
			name = fmt.Sprintf("%s-%d%s", stem, n, ext)
		}
		used[strings.ToLower(name)] = true
		names[ref.Path] = name
		out = append(out, Image{Name: name, MediaType: ref.MediaType, Data: ref.Data})
	}
	return out, names
}
