package extract

import (
	"encoding/base64"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/samber/lo"

	"animport/internal/media"
)

// Extractor turns raw page content into an ordered, deduplicated list of
// candidate source URLs.
type Extractor struct {
	origin     *url.URL
	attributes []string
	param      string
	redirectRe *regexp.Regexp // nil when no redirect endpoint is configured
}

// ExtractorOptions configures NewExtractor.
type ExtractorOptions struct {
	Origin            string   // site origin used to absolutize relative URLs
	EncodedAttributes []string // custom attributes carrying base64 payloads
	RedirectEndpoint  string   // path fragment of the site's redirect page
	RedirectParam     string   // query parameter holding the base64 target
}

// NewExtractor validates opts and compiles the redirect pattern.
func NewExtractor(opts ExtractorOptions) (*Extractor, error) {
	origin, err := url.Parse(opts.Origin)
	if err != nil || origin.Scheme == "" || origin.Host == "" {
		return nil, fmt.Errorf("invalid site origin %q", opts.Origin)
	}

	e := &Extractor{
		origin:     origin,
		attributes: opts.EncodedAttributes,
		param:      opts.RedirectParam,
	}
	if opts.RedirectEndpoint != "" {
		e.redirectRe = regexp.MustCompile(`(?:https?:)?(?://[^/"'\s<>]+)?` +
			regexp.QuoteMeta(opts.RedirectEndpoint) + `[^"'\s<>]*\?[^"'\s<>]+`)
	}
	return e, nil
}

// Extract returns candidates in priority order: encoded attributes, then
// redirect-endpoint parameters, then raw iframe embeds. Undecodable or
// non-http values are dropped and only the first occurrence of a URL is kept.
func (e *Extractor) Extract(content string) []media.Candidate {
	var raw []media.Candidate

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err == nil {
		raw = append(raw, tag(encodedAttributeURLs(doc, e.attributes), media.EncodedAttribute)...)
	}
	raw = append(raw, tag(redirectURLs(content, e.redirectRe, e.param), media.Indirection)...)
	if err == nil {
		raw = append(raw, tag(embedURLs(doc), media.RawEmbed)...)
	}

	normalized := lo.FilterMap(raw, func(c media.Candidate, _ int) (media.Candidate, bool) {
		u, ok := e.normalize(c.URL)
		c.URL = u
		return c, ok
	})
	return lo.UniqBy(normalized, func(c media.Candidate) string { return c.URL })
}

func tag(urls []string, m media.Method) []media.Candidate {
	return lo.Map(urls, func(u string, _ int) media.Candidate {
		return media.Candidate{URL: u, Method: m}
	})
}

// encodedAttributeURLs decodes every configured attribute value, in document order.
func encodedAttributeURLs(doc *goquery.Document, attrs []string) []string {
	if len(attrs) == 0 {
		return nil
	}
	selector := strings.Join(lo.Map(attrs, func(a string, _ int) string { return "[" + a + "]" }), ",")

	var urls []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		for _, attr := range attrs {
			v, ok := s.Attr(attr)
			if !ok {
				continue
			}
			payload, ok := decodeBase64(v)
			if !ok {
				continue
			}
			if u, ok := urlFromPayload(payload); ok {
				urls = append(urls, u)
			}
		}
	})
	return urls
}

// redirectURLs finds redirect-endpoint links anywhere in the raw text and
// decodes the target carried in param.
func redirectURLs(content string, re *regexp.Regexp, param string) []string {
	if re == nil || param == "" {
		return nil
	}

	var urls []string
	for _, m := range re.FindAllString(content, -1) {
		u, err := url.Parse(html.UnescapeString(m))
		if err != nil {
			continue
		}
		v, ok := rawQueryParam(u.RawQuery, param)
		if !ok {
			continue
		}
		payload, ok := decodeBase64(v)
		if !ok {
			continue
		}
		if target, ok := urlFromPayload(payload); ok {
			urls = append(urls, target)
		}
	}
	return urls
}

// rawQueryParam returns the undecoded value of key. url.Values would turn
// the '+' of standard base64 into a space.
func rawQueryParam(rawQuery, key string) (string, bool) {
	for _, pair := range strings.Split(rawQuery, "&") {
		k, v, _ := strings.Cut(pair, "=")
		if k == key && v != "" {
			return v, true
		}
	}
	return "", false
}

// embedURLs returns iframe sources verbatim.
func embedURLs(doc *goquery.Document) []string {
	var urls []string
	doc.Find("iframe[src]").Each(func(_ int, s *goquery.Selection) {
		urls = append(urls, s.AttrOr("src", ""))
	})
	return urls
}

var encodings = []*base64.Encoding{
	base64.StdEncoding,
	base64.RawStdEncoding,
	base64.URLEncoding,
	base64.RawURLEncoding,
}

// decodeBase64 accepts any of the common base64 alphabets, with or without
// padding and percent-encoding.
func decodeBase64(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if unescaped, err := url.PathUnescape(s); err == nil {
		s = unescaped
	}
	if s == "" {
		return "", false
	}
	for _, enc := range encodings {
		b, err := enc.DecodeString(s)
		if err == nil && len(b) > 0 && utf8.Valid(b) {
			return string(b), true
		}
	}
	return "", false
}

var payloadURLRe = regexp.MustCompile(`https?://[^\s"'<>]+`)

// urlFromPayload pulls a URL out of a decoded payload, which is either a bare
// URL or a markup snippet such as an iframe. Bare URLs are returned whole,
// whatever their query string holds.
func urlFromPayload(payload string) (string, bool) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return "", false
	}

	if !strings.ContainsAny(payload, " \t\r\n") &&
		(strings.HasPrefix(payload, "http://") || strings.HasPrefix(payload, "https://") ||
			strings.HasPrefix(payload, "/")) {
		return payload, true
	}

	if strings.HasPrefix(payload, "<") {
		frag, err := goquery.NewDocumentFromReader(strings.NewReader(payload))
		if err == nil {
			if src, ok := frag.Find("[src]").First().Attr("src"); ok && src != "" {
				return src, true
			}
			if href, ok := frag.Find("[href]").First().Attr("href"); ok && href != "" {
				return href, true
			}
		}
	}

	if m := payloadURLRe.FindString(payload); m != "" {
		return m, true
	}
	return "", false
}

// normalize makes raw absolute against the site origin when it lacks a scheme
// or host. Absolute URLs are returned untouched.
func (e *Extractor) normalize(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	ref, err := url.Parse(raw)
	if err != nil {
		return "", false
	}

	if ref.Scheme != "" && ref.Host != "" {
		if ref.Scheme != "http" && ref.Scheme != "https" {
			return "", false
		}
		return raw, true
	}
	if ref.Scheme != "" {
		// javascript:, about:blank, data: and friends
		return "", false
	}

	abs := e.origin.ResolveReference(ref)
	if abs.Host == "" {
		return "", false
	}
	return abs.String(), true
}
