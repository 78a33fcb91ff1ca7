package audit

import (
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/conneroisu/buildlens/internal/errors"
	"github.com/conneroisu/buildlens/internal/hooks"
	"golang.org/x/net/html"
)

// findEntries scans HTML outputs for <script src> and <link href> references
// and returns the set of referenced asset names present in assets.
func findEntries(assets []hooks.Asset, onError func(name string, err error)) map[string]bool {
	known := make(map[string]bool, len(assets))
	for _, a := range assets {
		known[a.Name] = true
	}

	entries := make(map[string]bool)
	for _, a := range assets {
		if !isHTML(a.Name) || a.Open == nil {
			continue
		}
		refs, err := scanReferences(a)
		if err != nil {
			onError(a.Name, err)
			continue
		}
		base := path.Dir(a.Name)
		for _, ref := range refs {
			name, ok := resolveReference(base, ref)
			if ok && known[name] {
				entries[name] = true
			}
		}
	}
	return entries
}

func isHTML(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	return ext == ".html" || ext == ".htm"
}

// scanReferences reads one HTML asset. A panicking Opener or reader is
// returned as an error.
func scanReferences(a hooks.Asset) (refs []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			refs, err = nil, errors.Recovered(r)
		}
	}()

	rc, err := a.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	z := html.NewTokenizer(rc)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != nil && err != io.EOF {
				return refs, err
			}
			return refs, nil
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			var attr string
			switch tok.Data {
			case "script":
				attr = "src"
			case "link":
				attr = "href"
			default:
				continue
			}
			for _, at := range tok.Attr {
				if at.Key == attr && at.Val != "" {
					refs = append(refs, at.Val)
				}
			}
		}
	}
}

// resolveReference maps an HTML reference onto an asset name relative to the
// output root. External URLs are rejected.
func resolveReference(base, ref string) (string, bool) {
	u, err := url.Parse(ref)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "", false
	}
	p := u.Path
	if p == "" {
		return "", false
	}
	if strings.HasPrefix(p, "/") {
		return strings.TrimPrefix(path.Clean(p), "/"), true
	}
	return path.Clean(path.Join(base, p)), true
}
