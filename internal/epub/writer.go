package epub

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"
)

// modTime is stamped on every entry so identical packages are byte-identical.
var modTime = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// Package describes an EPUB 3 publication to be written by Write. All hrefs
// are relative to the package document, which lives in OEBPS/.
type Package struct {
	Identifier string // urn:uuid:...
	Title      string
	Author     string
	Language   string // BCP 47

	// Nav is the EPUB 3 navigation document. It is listed in the manifest
	// with the "nav" property but kept out of the spine.
	Nav Resource
	// Spine holds the XHTML content documents in reading order.
	Spine []Resource
	// Resources are additional manifest entries (images, stylesheets), in
	// the order they should appear in the manifest.
	Resources []Resource
}

type Resource struct {
	Href      string
	MediaType string
	Title     string
	Data      []byte
}

const (
	oebps        = "OEBPS/"
	xhtmlType    = "application/xhtml+xml"
	ncxHref      = "toc.ncx"
	containerDoc = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>
`
)

// Write packages p as an EPUB archive. The output depends only on p.
func Write(w io.Writer, p *Package) error {
	zw := zip.NewWriter(w)

	// The mimetype entry must come first and be stored uncompressed.
	if err := writeEntry(zw, "mimetype", zip.Store, []byte("application/epub+zip")); err != nil {
		return err
	}
	if err := writeEntry(zw, "META-INF/container.xml", zip.Deflate, []byte(containerDoc)); err != nil {
		return err
	}
	if err := writeEntry(zw, oebps+"content.opf", zip.Deflate, packageDocument(p)); err != nil {
		return err
	}
	if err := writeEntry(zw, oebps+ncxHref, zip.Deflate, ncxDocumentFor(p)); err != nil {
		return err
	}
	entries := append([]Resource{p.Nav}, p.Spine...)
	entries = append(entries, p.Resources...)
	for _, r := range entries {
		if err := writeEntry(zw, oebps+r.Href, zip.Deflate, r.Data); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("epub: finish archive: %w", err)
	}
	return nil
}

func writeEntry(zw *zip.Writer, name string, method uint16, data []byte) error {
	fw, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: method, Modified: modTime})
	if err != nil {
		return fmt.Errorf("epub: create %s: %w", name, err)
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("epub: write %s: %w", name, err)
	}
	return nil
}

func packageDocument(p *Package) []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="book-id">` + "\n")
	b.WriteString(`  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">` + "\n")
	fmt.Fprintf(&b, "    <dc:identifier id=\"book-id\">%s</dc:identifier>\n", escape(p.Identifier))
	fmt.Fprintf(&b, "    <dc:title>%s</dc:title>\n", escape(p.Title))
	if p.Author != "" {
		fmt.Fprintf(&b, "    <dc:creator>%s</dc:creator>\n", escape(p.Author))
	}
	fmt.Fprintf(&b, "    <dc:language>%s</dc:language>\n", escape(p.Language))
	fmt.Fprintf(&b, "    <meta property=\"dcterms:modified\">%s</meta>\n", modTime.Format(time.RFC3339))
	b.WriteString("  </metadata>\n  <manifest>\n")
	fmt.Fprintf(&b, "    <item id=\"nav\" href=\"%s\" media-type=\"%s\" properties=\"nav\"/>\n", escape(p.Nav.Href), xhtmlType)
	fmt.Fprintf(&b, "    <item id=\"ncx\" href=\"%s\" media-type=\"application/x-dtbncx+xml\"/>\n", ncxHref)
	for i, r := range p.Spine {
		fmt.Fprintf(&b, "    <item id=\"%s\" href=\"%s\" media-type=\"%s\"/>\n", spineID(i), escape(r.Href), xhtmlType)
	}
	for i, r := range p.Resources {
		fmt.Fprintf(&b, "    <item id=\"res-%03d\" href=\"%s\" media-type=\"%s\"/>\n", i+1, escape(r.Href), escape(r.MediaType))
	}
	b.WriteString("  </manifest>\n  <spine toc=\"ncx\">\n")
	for i := range p.Spine {
		fmt.Fprintf(&b, "    <itemref idref=\"%s\"/>\n", spineID(i))
	}
	b.WriteString("  </spine>\n</package>\n")
	return []byte(b.String())
}

func ncxDocumentFor(p *Package) []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">` + "\n")
	fmt.Fprintf(&b, "  <head><meta name=\"dtb:uid\" content=\"%s\"/></head>\n", escape(p.Identifier))
	fmt.Fprintf(&b, "  <docTitle><text>%s</text></docTitle>\n  <navMap>\n", escape(p.Title))
	for i, r := range p.Spine {
		fmt.Fprintf(&b, "    <navPoint id=\"np-%d\" playOrder=\"%d\"><navLabel><text>%s</text></navLabel><content src=\"%s\"/></navPoint>\n",
			i+1, i+1, escape(r.Title), escape(r.Href))
	}
	b.WriteString("  </navMap>\n</ncx>\n")
	return []byte(b.String())
}

func spineID(i int) string { return fmt.Sprintf("chapter-%03d", i+1) }

func escape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
