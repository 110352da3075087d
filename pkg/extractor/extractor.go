// Package extractor turns saved page snapshots into candidate content
// records. Extraction is a pure function of the HTML text: it performs no
// I/O and never returns an error, degrading to an empty result instead.
package extractor

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"igarchive/pkg/config"
	"igarchive/pkg/logger"
	"igarchive/pkg/models"
)

// Rules holds the markup selectors the extractor relies on. Class selectors
// are space separated class lists; an element matches when it carries every
// listed class.
type Rules struct {
	PostContainerClass string
	CaptionClass       string
	ReelTitleClass     string
	IconSuffixes       []string
}

// DefaultRules returns the selectors for the current page layout
func DefaultRules() Rules {
	return RulesFromConfig(config.DefaultConfig().Extractor)
}

// RulesFromConfig converts the extractor config section, filling blanks
// from the defaults.
func RulesFromConfig(cfg config.ExtractorConfig) Rules {
	def := config.DefaultConfig().Extractor
	if cfg.PostContainerClass == "" {
		cfg.PostContainerClass = def.PostContainerClass
	}
	if cfg.CaptionClass == "" {
		cfg.CaptionClass = def.CaptionClass
	}
	if cfg.ReelTitleClass == "" {
		cfg.ReelTitleClass = def.ReelTitleClass
	}
	if cfg.IconSuffixes == nil {
		cfg.IconSuffixes = def.IconSuffixes
	}
	return Rules{
		PostContainerClass: cfg.PostContainerClass,
		CaptionClass:       cfg.CaptionClass,
		ReelTitleClass:     cfg.ReelTitleClass,
		IconSuffixes:       cfg.IconSuffixes,
	}
}

// Extractor parses snapshots into candidates
type Extractor struct {
	rules Rules
	log   logger.Logger
}

// New creates an extractor
func New(rules Rules, log logger.Logger) *Extractor {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Extractor{rules: rules, log: log.WithField("component", "extractor")}
}

// Extract returns the candidates found in a snapshot of the given category.
// Parse failures and unknown categories are logged and yield no candidates.
func (e *Extractor) Extract(htmlText string, category models.Category) []models.Candidate {
	fields := map[string]interface{}{"category": string(category)}

	if category != models.CategoryPost && category != models.CategoryReel {
		e.log.WarnWithFields("Unknown category, nothing extracted", fields)
		return []models.Candidate{}
	}

	doc, err := html.Parse(strings.NewReader(htmlText))
	if err != nil {
		e.log.WithError(err).WarnWithFields("Failed to parse snapshot", fields)
		return []models.Candidate{}
	}

	var out []models.Candidate
	switch category {
	case models.CategoryPost:
		out = e.extractPosts(doc)
	case models.CategoryReel:
		out = e.extractReels(doc)
	}
	if out == nil {
		out = []models.Candidate{}
	}

	fields["candidates"] = len(out)
	e.log.DebugWithFields("Extraction finished", fields)
	return out
}

func (e *Extractor) extractPosts(doc *html.Node) []models.Candidate {
	posts := e.imageCandidates(doc, models.CategoryPost, false)

	// Captions are paired with images by position. The i-th post container
	// describes the i-th image found on the page; this is a heuristic and
	// mispairing on unusual layouts is accepted.
	containers := findAll(doc, func(n *html.Node) bool {
		return n.DataAtom == atom.Div && hasClasses(n, e.rules.PostContainerClass)
	})
	for i, c := range containers {
		if i >= len(posts) {
			break
		}
		caption := findFirst(c, func(n *html.Node) bool {
			return n.DataAtom == atom.Span && hasClasses(n, e.rules.CaptionClass)
		})
		if caption != nil {
			posts[i].Description = textOf(caption)
		}
	}

	return posts
}

func (e *Extractor) extractReels(doc *html.Node) []models.Candidate {
	var reels []models.Candidate
	for _, v := range findAll(doc, isElement(atom.Video)) {
		src := attr(v, "src")
		if src == "" {
			continue
		}
		reels = append(reels, models.Candidate{
			Category: models.CategoryReel,
			MediaURL: src,
			IsVideo:  true,
		})
	}

	if len(reels) == 0 {
		reels = e.imageCandidates(doc, models.CategoryReel, true)
	}

	titles := findAll(doc, func(n *html.Node) bool {
		return n.DataAtom == atom.H1 && hasClasses(n, e.rules.ReelTitleClass)
	})
	for i, t := range titles {
		if i >= len(reels) {
			break
		}
		reels[i].Description = textOf(t)
	}

	return reels
}

func (e *Extractor) imageCandidates(doc *html.Node, category models.Category, isVideo bool) []models.Candidate {
	var out []models.Candidate
	for _, img := range findAll(doc, isElement(atom.Img)) {
		src := attr(img, "src")
		if src == "" || e.isIcon(src) {
			continue
		}
		out = append(out, models.Candidate{
			Category:    category,
			MediaURL:    src,
			Description: attr(img, "alt"),
			IsVideo:     isVideo,
		})
	}
	return out
}

func (e *Extractor) isIcon(src string) bool {
	for _, suffix := range e.rules.IconSuffixes {
		if suffix != "" && strings.HasSuffix(src, suffix) {
			return true
		}
	}
	return false
}
