// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package preview renders published guides as a small HTML site, so that
// authors can read them the way readers will.
package preview

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.astrophena.name/base/logger"
	"go.astrophena.name/guides/internal/site"

	"github.com/PuerkitoBio/goquery"
	"github.com/gorilla/feeds"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"rsc.io/markdown"
)

//go:embed layout.html style.css
var assets embed.FS

var layout = template.Must(template.ParseFS(assets, "layout.html"))

// Config represents a preview build configuration.
type Config struct {
	// Title is the title of the preview site.
	Title string
	// Author is the author used in the feed.
	Author string
	// BaseURL is used to derive absolute URLs in the feed.
	BaseURL *url.URL
	// Src is the directory with published guides.
	Src string
	// Dst is the directory where to write HTML. If empty, uses the preview
	// directory.
	Dst string
	// SkipFeed determines if the feed shouldn't be built.
	SkipFeed bool

	feedCreated time.Time // used in tests
}

func (c *Config) setDefaults() {
	if c.Title == "" {
		c.Title = "Association guides"
	}
	if c.Author == "" {
		c.Author = "Ilya Mateyko"
	}
	if c.BaseURL == nil {
		c.BaseURL = &url.URL{
			Scheme: "http",
			Host:   "localhost:3000",
		}
	}
	if c.Dst == "" {
		c.Dst = filepath.Join(".", "preview")
	}
}

// page is a rendered guide.
type page struct {
	Title   string
	Path    string // slash-separated output path, relative to Dst
	src     string
	content template.HTML
}

var notFound = &page{
	Title:   "Not found",
	Path:    "404.html",
	src:     "404.html",
	content: "<h1>Not found</h1>\n<p>There is no such guide.</p>",
}

type layoutData struct {
	Site    string
	Title   string
	Root    string // relative path to the site root
	Feed    bool
	Content template.HTML
	Pages   []*page
}

type buildContext struct {
	c     *Config
	md    *markdown.Parser
	min   *minify.M
	pages []*page
	files []string // non-Markdown files, relative to Src
}

func newBuildContext(c *Config) *buildContext {
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.Add("text/html", &html.Minifier{
		KeepDocumentTags:    true,
		KeepDefaultAttrVals: true,
		KeepEndTags:         true,
	})

	return &buildContext{
		c: c,
		md: &markdown.Parser{
			HeadingID:          true,
			Strikethrough:      true,
			TaskList:           true,
			AutoLinkText:       true,
			AutoLinkAssumeHTTP: true,
			Table:              true,
			Emoji:              true,
			SmartDot:           true,
			SmartDash:          true,
			SmartQuote:         true,
			Footnote:           true,
		},
		min: m,
	}
}

// Build renders every Markdown file under c.Src to HTML and copies
// everything else verbatim.
func Build(ctx context.Context, c *Config) error {
	c.setDefaults()
	if err := site.CheckOutputDir(c.Src, c.Dst); err != nil {
		return err
	}
	b := newBuildContext(c)

	if err := filepath.WalkDir(c.Src, b.collect); err != nil {
		return err
	}
	if err := b.checkConflicts(); err != nil {
		return err
	}
	sort.Slice(b.pages, func(i, j int) bool {
		if b.pages[i].Title != b.pages[j].Title {
			return b.pages[i].Title < b.pages[j].Title
		}
		return b.pages[i].Path < b.pages[j].Path
	})

	// Clean up after previous build.
	if _, err := os.Stat(c.Dst); err == nil {
		if err := os.RemoveAll(c.Dst); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(c.Dst, 0o755); err != nil {
		return err
	}

	for _, p := range b.pages {
		if err := b.writePage(p); err != nil {
			return err
		}
	}
	if err := b.writeIndex(); err != nil {
		return err
	}
	if err := b.writePage(notFound); err != nil {
		return err
	}
	if !c.SkipFeed {
		if err := b.buildFeed(); err != nil {
			return err
		}
	}

	style, err := fs.ReadFile(assets, "style.css")
	if err != nil {
		return err
	}
	if style, err = b.min.Bytes("text/css", style); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(c.Dst, "style.css"), style, 0o644); err != nil {
		return err
	}

	for _, rel := range b.files {
		buf, err := os.ReadFile(filepath.Join(c.Src, rel))
		if err != nil {
			return err
		}
		if err := b.write(filepath.ToSlash(rel), buf); err != nil {
			return err
		}
	}

	logger.Info(ctx, "built preview",
		slog.String("dst", c.Dst),
		slog.Int("pages", len(b.pages)),
	)
	return nil
}

func (b *buildContext) collect(path string, d fs.DirEntry, err error) error {
	if err != nil {
		return err
	}
	if d.IsDir() {
		if path != b.c.Src && within(path, b.c.Dst) {
			return filepath.SkipDir
		}
		return nil
	}

	rel, err := filepath.Rel(b.c.Src, path)
	if err != nil {
		return err
	}
	if filepath.Ext(path) != ".md" {
		b.files = append(b.files, rel)
		return nil
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	p := &page{
		Path: strings.TrimSuffix(filepath.ToSlash(rel), ".md") + ".html",
		src:  path,
	}
	if err := b.render(p, src); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	b.pages = append(b.pages, p)
	return nil
}

// checkConflicts reports pages and files that would overwrite each other
// or the files the preview generates itself.
func (b *buildContext) checkConflicts() error {
	owner := map[string]string{
		"index.html":  "the index",
		notFound.Path: "the not found page",
		"style.css":   "the stylesheet",
	}
	if !b.c.SkipFeed {
		owner["feed.xml"] = "the feed"
	}

	claim := func(name, src string) error {
		if prev, ok := owner[name]; ok {
			return fmt.Errorf("%s: %w: %q is also produced by %s", src, site.ErrOutputConflict, name, prev)
		}
		owner[name] = src
		return nil
	}
	for _, p := range b.pages {
		if err := claim(p.Path, p.src); err != nil {
			return err
		}
	}
	for _, rel := range b.files {
		if err := claim(filepath.ToSlash(rel), filepath.Join(b.c.Src, rel)); err != nil {
			return err
		}
	}
	return nil
}

// render converts Markdown to HTML, points links to other guides at their
// HTML versions and picks the title from the first heading.
func (b *buildContext) render(p *page, src []byte) error {
	doc := b.md.Parse(string(src))

	hdoc, err := goquery.NewDocumentFromReader(strings.NewReader(markdown.ToHTML(doc)))
	if err != nil {
		return err
	}
	hdoc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if rewritten, ok := rewriteLink(href); ok {
			s.SetAttr("href", rewritten)
		}
	})

	p.Title = strings.TrimSpace(hdoc.Find("h1").First().Text())
	if p.Title == "" {
		p.Title = strings.TrimSuffix(path.Base(p.Path), ".html")
	}

	body, err := hdoc.Find("body").Html()
	if err != nil {
		return err
	}
	p.content = template.HTML(body)
	return nil
}

func isFullURL(url string) bool {
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")
}

// rewriteLink turns a relative link to a Markdown document into a link to
// its HTML version, keeping the query and fragment.
func rewriteLink(href string) (string, bool) {
	if href == "" || isFullURL(href) || strings.HasPrefix(href, "#") {
		return href, false
	}
	u, err := url.Parse(href)
	if err != nil || u.Scheme != "" || u.Host != "" || path.Ext(u.Path) != ".md" {
		return href, false
	}
	u.Path = strings.TrimSuffix(u.Path, ".md") + ".html"
	return u.String(), true
}

// root returns the relative path from the page at rel to the site root.
func root(rel string) string {
	return strings.Repeat("../", strings.Count(rel, "/"))
}

func (b *buildContext) writePage(p *page) error {
	var buf bytes.Buffer
	if err := layout.ExecuteTemplate(&buf, "page", &layoutData{
		Site:    b.c.Title,
		Title:   p.Title,
		Root:    root(p.Path),
		Feed:    !b.c.SkipFeed,
		Content: p.content,
	}); err != nil {
		return fmt.Errorf("%s: failed to execute layout: %w", p.src, err)
	}
	return b.writeHTML(p.Path, buf.Bytes())
}

func (b *buildContext) writeIndex() error {
	var buf bytes.Buffer
	if err := layout.ExecuteTemplate(&buf, "index", &layoutData{
		Site:  b.c.Title,
		Feed:  !b.c.SkipFeed,
		Pages: b.pages,
	}); err != nil {
		return err
	}
	return b.writeHTML("index.html", buf.Bytes())
}

func (b *buildContext) writeHTML(rel string, buf []byte) error {
	minified, err := b.min.Bytes("text/html", buf)
	if err != nil {
		return err
	}
	return b.write(rel, minified)
}

func (b *buildContext) write(rel string, buf []byte) error {
	dst := filepath.Join(b.c.Dst, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, buf, 0o644)
}

func (b *buildContext) buildFeed() error {
	feed := &feeds.Feed{
		Title:   b.c.Title,
		Link:    &feeds.Link{Href: b.c.BaseURL.String() + "/"},
		Author:  &feeds.Author{Name: b.c.Author},
		Created: time.Now(),
	}

	if !b.c.feedCreated.IsZero() {
		feed.Created = b.c.feedCreated
	}

	for _, p := range b.pages {
		pu := *b.c.BaseURL
		pu.Path = path.Join(pu.Path, p.Path)

		feed.Items = append(feed.Items, &feeds.Item{
			Title:   p.Title,
			Link:    &feeds.Link{Href: pu.String()},
			Author:  feed.Author,
			Content: string(p.content),
			Created: feed.Created,
		})
	}

	bf, err := feed.ToAtom()
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(b.c.Dst, "feed.xml"), []byte(bf), 0o644)
}
