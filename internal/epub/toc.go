package epub

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

type ncxDocument struct {
	NavMap struct {
		Points []ncxNavPoint `xml:"navPoint"`
	} `xml:"navMap"`
}

type ncxNavPoint struct {
	Label   string        `xml:"navLabel>text"`
	Content struct {
		Src string `xml:"src,attr"`
	} `xml:"content"`
	Children []ncxNavPoint `xml:"navPoint"`
}

// titleIndex maps a content document path (no fragment) to its TOC title.
// The first entry pointing at a document wins.
type titleIndex map[string]string

func (t titleIndex) add(docPath, title string) {
	title = normalizeTitle(title)
	if docPath == "" || title == "" {
		return
	}
	if _, ok := t[docPath]; !ok {
		t[docPath] = title
	}
}

// readTitles prefers the EPUB 3 nav document and falls back to the NCX.
// A missing or broken TOC yields an empty index, never an error.
func readTitles(a *archive, opfPath string, pkg *opfPackage) titleIndex {
	titles := make(titleIndex)
	byID := make(map[string]manifestItem, len(pkg.Manifest.Items))
	for _, it := range pkg.Manifest.Items {
		byID[it.ID] = it
		if strings.HasPrefix(pkg.Version, "3") && hasProperty(it.Properties, "nav") {
			navPath := resolveRelativePath(opfPath, it.Href)
			if data, err := a.read(navPath); err == nil {
				readNav(titles, navPath, data)
			}
		}
	}
	if len(titles) > 0 {
		return titles
	}
	ncx, ok := byID[pkg.Spine.Toc]
	if !ok {
		for _, it := range pkg.Manifest.Items {
			if it.MediaType == "application/x-dtbncx+xml" {
				ncx, ok = it, true
				break
			}
		}
	}
	if !ok {
		return titles
	}
	ncxPath := resolveRelativePath(opfPath, ncx.Href)
	data, err := a.read(ncxPath)
	if err != nil {
		return titles
	}
	var doc ncxDocument
	if err := decodeXML(data, &doc); err != nil {
		return titles
	}
	var walk func(points []ncxNavPoint)
	walk = func(points []ncxNavPoint) {
		for _, p := range points {
			titles.add(withoutFragment(resolveRelativePath(ncxPath, p.Content.Src)), p.Label)
			walk(p.Children)
		}
	}
	walk(doc.NavMap.Points)
	return titles
}

func readNav(titles titleIndex, navPath string, data []byte) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return
	}
	navs := doc.Find("nav").FilterFunction(func(_ int, s *goquery.Selection) bool {
		kind, _ := s.Attr("epub:type")
		return hasProperty(kind, "toc")
	})
	if navs.Length() == 0 {
		navs = doc.Find("nav").First()
	}
	navs.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		titles.add(withoutFragment(resolveRelativePath(navPath, href)), s.Text())
	})
}

func hasProperty(props, want string) bool {
	for _, p := range strings.Fields(props) {
		if p == want {
			return true
		}
	}
	return false
}

var (
	dotLeaders   = regexp.MustCompile(`(\s*[.·…•]\s*){3,}`)
	trailingPage = regexp.MustCompile(`\s+\d+\s*$`)
)

// normalizeTitle collapses whitespace and strips dot leaders and a trailing
// page number, as found in TOCs converted from print layouts.
func normalizeTitle(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if loc := dotLeaders.FindStringIndex(s); loc != nil {
		s = s[:loc[0]] + " " + s[loc[1]:]
		s = trailingPage.ReplaceAllString(s, "")
	}
	return strings.TrimSpace(s)
}
