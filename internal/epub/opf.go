package epub

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html/charset"
)

const containerPath = "META-INF/container.xml"

type containerXML struct {
	XMLName   xml.Name `xml:"container"`
	RootFiles []struct {
		FullPath  string `xml:"full-path,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"rootfiles>rootfile"`
}

type opfPackage struct {
	XMLName  xml.Name    `xml:"package"`
	Version  string      `xml:"version,attr"`
	Metadata opfMetadata `xml:"metadata"`
	Manifest struct {
		Items []manifestItem `xml:"item"`
	} `xml:"manifest"`
	Spine struct {
		Toc      string `xml:"toc,attr"`
		ItemRefs []struct {
			IDRef string `xml:"idref,attr"`
		} `xml:"itemref"`
	} `xml:"spine"`
}

type opfMetadata struct {
	Titles    []string `xml:"http://purl.org/dc/elements/1.1/ title"`
	Creators  []string `xml:"http://purl.org/dc/elements/1.1/ creator"`
	Languages []string `xml:"http://purl.org/dc/elements/1.1/ language"`
}

type manifestItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

// errEncoding marks a document whose declared charset is unknown.
var errEncoding = errors.New("unknown charset")

// decodeXML unmarshals data, transcoding any non-UTF-8 declared encoding.
func decodeXML(data []byte, v any) error {
	var unknown string
	dec := xml.NewDecoder(bytes.NewReader(stripBOM(data)))
	dec.CharsetReader = func(label string, input io.Reader) (io.Reader, error) {
		r, err := charset.NewReaderLabel(label, input)
		if err != nil {
			unknown = label
		}
		return r, err
	}
	if err := dec.Decode(v); err != nil {
		if unknown != "" {
			return fmt.Errorf("%w %q", errEncoding, unknown)
		}
		return err
	}
	return nil
}

var xmlDeclEncoding = regexp.MustCompile(`^\s*<\?xml[^>]*encoding\s*=\s*["']([^"']+)["']`)

// toUTF8 transcodes an XHTML document whose XML declaration names an encoding
// other than UTF-8. Undeclared documents are assumed to be UTF-8.
func toUTF8(data []byte) ([]byte, error) {
	data = stripBOM(data)
	head := data
	if len(head) > 256 {
		head = head[:256]
	}
	m := xmlDeclEncoding.FindSubmatch(head)
	if m == nil {
		return data, nil
	}
	label := strings.ToLower(strings.TrimSpace(string(m[1])))
	if label == "utf-8" || label == "utf8" {
		return data, nil
	}
	enc, _ := charset.Lookup(label)
	if enc == nil {
		return nil, fmt.Errorf("%w %q", errEncoding, label)
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", label, err)
	}
	return out, nil
}

// findPackage returns the OPF path named by container.xml, falling back to
// the first .opf entry in the archive.
func findPackage(a *archive) (string, error) {
	if f := a.find(containerPath); f != nil {
		data, err := readZipFile(f, maxEntrySize)
		if err != nil {
			return "", err
		}
		var c containerXML
		if err := decodeXML(data, &c); err != nil {
			return "", fmt.Errorf("parse container.xml: %w", err)
		}
		var fallback string
		for _, rf := range c.RootFiles {
			p := strings.TrimSpace(rf.FullPath)
			if p == "" {
				continue
			}
			if strings.EqualFold(strings.TrimSpace(rf.MediaType), "application/oebps-package+xml") {
				return p, nil
			}
			if fallback == "" {
				fallback = p
			}
		}
		if fallback != "" {
			return fallback, nil
		}
	}
	for _, f := range a.files {
		if strings.HasSuffix(strings.ToLower(f.Name), ".opf") {
			return f.Name, nil
		}
	}
	return "", errors.New("no package document found")
}

func parsePackage(data []byte) (*opfPackage, error) {
	var pkg opfPackage
	if err := decodeXML(data, &pkg); err != nil {
		return nil, fmt.Errorf("parse package document: %w", err)
	}
	if pkg.Version == "" {
		pkg.Version = "2.0"
	}
	return &pkg, nil
}

func first(values []string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
