package extract

import (
	"net/url"
	"strings"

	"github.com/samber/lo"
)

// Classifier decides what kind of source a candidate URL points at. All of its
// knowledge comes from injected lists.
type Classifier struct {
	siteHost               string
	direct                 []string
	deny                   []string
	genericHosts           []string
	genericArePlaceholders bool
	internalPaths          []string
}

// ClassifierOptions configures NewClassifier.
type ClassifierOptions struct {
	Origin string

	// DirectHosts are substrings of host+path that mark a playable source.
	DirectHosts []string

	// Placeholders are identifiers of known non-content embeds (tutorials,
	// trailers). Matched case-sensitively against the whole URL.
	Placeholders []string

	// GenericEmbedHosts are video platforms whose embeds are assumed to be
	// filler when GenericEmbedsArePlaceholders is set, unless allow-listed.
	GenericEmbedHosts            []string
	GenericEmbedsArePlaceholders bool

	// InternalPaths restricts which same-site URLs count as indirection pages.
	// Empty means any same-site URL.
	InternalPaths []string
}

// NewClassifier builds a classifier from opts.
func NewClassifier(opts ClassifierOptions) *Classifier {
	host := ""
	if u, err := url.Parse(opts.Origin); err == nil {
		host = canonicalHost(u.Hostname())
	}
	lower := func(s string, _ int) string { return strings.ToLower(s) }
	nonEmpty := func(s string, _ int) bool { return s != "" }

	return &Classifier{
		siteHost:               host,
		direct:                 lo.Filter(lo.Map(opts.DirectHosts, lower), nonEmpty),
		deny:                   lo.Filter(opts.Placeholders, nonEmpty),
		genericHosts:           lo.Filter(lo.Map(opts.GenericEmbedHosts, lower), nonEmpty),
		genericArePlaceholders: opts.GenericEmbedsArePlaceholders,
		internalPaths:          lo.Filter(opts.InternalPaths, nonEmpty),
	}
}

// IsDirect reports whether the URL's host or path contains an allow-listed substring.
func (c *Classifier) IsDirect(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	target := strings.ToLower(u.Host + u.Path)
	return lo.SomeBy(c.direct, func(s string) bool { return strings.Contains(target, s) })
}

// IsPlaceholder reports whether the URL is known non-content: a deny-listed
// identifier, or a generic platform embed that is not allow-listed while that
// policy is enabled.
func (c *Classifier) IsPlaceholder(raw string) bool {
	if lo.SomeBy(c.deny, func(id string) bool { return strings.Contains(raw, id) }) {
		return true
	}
	if !c.genericArePlaceholders {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	generic := lo.SomeBy(c.genericHosts, func(h string) bool {
		return host == h || strings.HasSuffix(host, "."+h)
	})
	return generic && !c.IsDirect(raw)
}

// IsInternal reports whether the URL is an indirection page on the site itself.
func (c *Classifier) IsInternal(raw string) bool {
	if c.siteHost == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil || canonicalHost(u.Hostname()) != c.siteHost {
		return false
	}
	if len(c.internalPaths) == 0 {
		return true
	}
	return lo.SomeBy(c.internalPaths, func(p string) bool { return strings.HasPrefix(u.Path, p) })
}

func canonicalHost(h string) string {
	return strings.TrimPrefix(strings.ToLower(h), "www.")
}
