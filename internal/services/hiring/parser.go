package hiring

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/hirescout/internal/models"
)

const hiringTeamHeading = "meet the hiring team"

var (
	sectionSelectors = []string{
		`section[class*="hiring-team"]`,
		`div[class*="hiring-team"]`,
	}
	cardSelectors = []string{
		".hirer-card__container",
		".hirer-card",
		".hiring-manager",
		".recruiter-card",
		`[data-test-id*="hirer"]`,
	}
	nameSelectors = []string{
		`[class*="hirer-card__hirer-information-name"]`,
		"h3",
		"h4",
		`span[aria-label*="name"]`,
		"strong",
	}
	titleSelectors = []string{
		`[class*="hirer-card__hirer-information-position"]`,
		`[class*="hirer-card__job-title"]`,
		`p[class*="title"]`,
		`span[class*="job-title"]`,
	}
	imageSelectors = []string{
		`img[class*="hirer-card__image"]`,
		`img[alt*="headshot"]`,
		"img",
	}
	companySelectors = []string{
		`[class*="top-card__company-name"] a`,
		`[class*="top-card__company-name"]`,
		".topcard__org-name-link",
		`h1[class*="job-title"] a`,
		`span[class*="company-name"]`,
	}
)

// ParseHiringTeam extracts hiring team members from a rendered job posting.
// found is false when the page has no hiring team section. Cards without a
// name are dropped.
func ParseHiringTeam(html, pageURL string) (managers []models.HiringManager, found bool, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, false, err
	}

	section := findSection(doc)
	if section == nil {
		return []models.HiringManager{}, false, nil
	}

	base, _ := url.Parse(pageURL)
	company := firstText(doc.Selection, companySelectors)

	managers = []models.HiringManager{}
	seen := make(map[string]bool)
	findCards(section).Each(func(i int, card *goquery.Selection) {
		name := firstText(card, nameSelectors)
		if name == "" {
			return
		}

		manager := models.HiringManager{
			Name:       name,
			Title:      firstText(card, titleSelectors),
			ProfileURL: profileURL(card, base),
			ImageURL:   imageURL(card, base),
			Company:    company,
		}

		key := manager.Name + "|" + manager.ProfileURL
		if seen[key] {
			return
		}
		seen[key] = true
		managers = append(managers, manager)
	})

	return managers, true, nil
}

// findSection locates the hiring team container, preferring the visible heading
func findSection(doc *goquery.Document) *goquery.Selection {
	heading := doc.Find("h2, h3, span").FilterFunction(func(i int, s *goquery.Selection) bool {
		return strings.Contains(strings.ToLower(collapseSpace(s.Text())), hiringTeamHeading)
	}).First()
	if heading.Length() > 0 {
		if section := heading.Closest("section"); section.Length() > 0 {
			return section
		}
		if container := heading.Closest("div"); container.Length() > 0 {
			return container
		}
	}

	for _, selector := range sectionSelectors {
		if section := doc.Find(selector).First(); section.Length() > 0 {
			return section
		}
	}

	// Cards rendered without a heading
	for _, selector := range cardSelectors {
		if cards := doc.Find(selector); cards.Length() > 0 {
			return cards.First().Parent()
		}
	}
	return nil
}

func findCards(section *goquery.Selection) *goquery.Selection {
	for _, selector := range cardSelectors {
		if cards := section.Find(selector); cards.Length() > 0 {
			return cards
		}
	}
	return section.Find(`[class*="hirer-card"]`).FilterFunction(func(i int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		return !strings.Contains(class, "__")
	})
}

func firstText(scope *goquery.Selection, selectors []string) string {
	for _, selector := range selectors {
		if text := collapseSpace(scope.Find(selector).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

func profileURL(card *goquery.Selection, base *url.URL) string {
	href, ok := card.Find(`a[href*="/in/"]`).First().Attr("href")
	if !ok {
		return ""
	}
	resolved := resolve(base, href)
	if parsed, err := url.Parse(resolved); err == nil && parsed.Host != "" {
		parsed.RawQuery = ""
		parsed.Fragment = ""
		return parsed.String()
	}
	return resolved
}

func imageURL(card *goquery.Selection, base *url.URL) string {
	for _, selector := range imageSelectors {
		img := card.Find(selector).First()
		if img.Length() == 0 {
			continue
		}
		for _, attr := range []string{"src", "data-delayed-url"} {
			if src, ok := img.Attr(attr); ok && strings.TrimSpace(src) != "" && !strings.HasPrefix(src, "data:") {
				return resolve(base, strings.TrimSpace(src))
			}
		}
	}
	return ""
}

func resolve(base *url.URL, ref string) string {
	if base == nil {
		return ref
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(parsed).String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
