package epub

import (
	"bytes"
	"mime"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// imageRefs lists the archive paths of images referenced by a content
// document, in first-appearance order and without duplicates. It covers
// <img src> and SVG <image href|xlink:href>.
func imageRefs(docPath string, doc []byte) []string {
	d, err := goquery.NewDocumentFromReader(bytes.NewReader(doc))
	if err != nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	add := func(ref string) {
		if ref == "" || strings.HasPrefix(ref, "#") || hasScheme(ref) {
			return
		}
		p := resolveRelativePath(docPath, withoutFragment(ref))
		if p == "" || seen[p] {
			return
		}
		seen[p] = true
		out = append(out, p)
	}
	d.Find("img, image").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok {
			add(src)
			return
		}
		// Inside <svg> the parser moves xlink:href into the xlink namespace.
		for _, attr := range s.Nodes[0].Attr {
			if attr.Key == "href" || attr.Key == "xlink:href" {
				add(attr.Val)
				return
			}
		}
	})
	return out
}

// imageMediaType returns the media type of an image, preferring the manifest
// declaration. The second result is false for non-image resources.
func imageMediaType(declared, name string) (string, bool) {
	if mt := strings.TrimSpace(declared); mt != "" {
		return mt, strings.HasPrefix(mt, "image/")
	}
	mt := mime.TypeByExtension(strings.ToLower(path.Ext(name)))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return mt, strings.HasPrefix(mt, "image/")
}
