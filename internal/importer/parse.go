package importer

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"property-marketplace/internal/models"
	"property-marketplace/internal/submission"
)

var (
	priceDigits  = regexp.MustCompile(`[0-9][0-9,]*(?:\.[0-9]+)?`)
	bedroomsText = regexp.MustCompile(`(?i)(\d+)\s*(?:beds?|bedrooms?|br)\b`)
	bathsText    = regexp.MustCompile(`(?i)(\d+)\s*(?:baths?|bathrooms?|ba)\b`)

	apartmentWords  = regexp.MustCompile(`(?i)\b(?:apartment|flat|condo|penthouse)s?\b`)
	commercialWords = regexp.MustCompile(`(?i)\b(?:office|shop|warehouse|commercial)s?\b`)
	landWords       = regexp.MustCompile(`(?i)\b(?:land|plot|acre)s?\b`)
)

// ParseListing builds a draft from a listing page. OpenGraph tags fill the
// basics and schema.org JSON-LD overrides them when present.
func ParseListing(doc *goquery.Document, pageURL string) submission.Draft {
	draft := submission.Draft{
		Type:   models.PropertyTypeHouse,
		Status: models.ListingStatusSale,
	}

	draft.Title = firstNonEmpty(meta(doc, "og:title"), strings.TrimSpace(doc.Find("title").First().Text()))
	draft.Description = firstNonEmpty(meta(doc, "og:description"), meta(doc, "description"))
	if img := meta(doc, "og:image"); img != "" {
		draft.Images = appendUnique(draft.Images, resolveURL(pageURL, img))
	}
	if amount := meta(doc, "product:price:amount"); amount != "" {
		if price, ok := parsePrice(amount); ok {
			draft.Price = price
		}
	}
	draft.Location = firstNonEmpty(meta(doc, "og:locality"), meta(doc, "place:location:address"))

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		for _, node := range decodeJSONLD(s.Text()) {
			applyJSONLD(&draft, node, pageURL)
		}
	})

	text := draft.Title + " " + draft.Description
	if draft.Bedrooms == nil {
		if m := bedroomsText.FindStringSubmatch(text); m != nil {
			draft.Bedrooms = atoiPtr(m[1])
		}
	}
	if draft.Bathrooms == nil {
		if m := bathsText.FindStringSubmatch(text); m != nil {
			draft.Bathrooms = atoiPtr(m[1])
		}
	}
	if guessRent(text) {
		draft.Status = models.ListingStatusRent
	}
	if t, ok := guessType(text); ok {
		draft.Type = t
	}
	return draft
}

func meta(doc *goquery.Document, name string) string {
	sel := doc.Find(`meta[property="` + name + `"], meta[name="` + name + `"]`).First()
	content, _ := sel.Attr("content")
	return strings.TrimSpace(content)
}

// decodeJSONLD flattens a JSON-LD block into its object nodes, including @graph members
func decodeJSONLD(raw string) []map[string]interface{} {
	var v interface{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &v); err != nil {
		return nil
	}
	var nodes []map[string]interface{}
	var walk func(interface{})
	walk = func(v interface{}) {
		switch t := v.(type) {
		case []interface{}:
			for _, item := range t {
				walk(item)
			}
		case map[string]interface{}:
			nodes = append(nodes, t)
			if graph, ok := t["@graph"]; ok {
				walk(graph)
			}
		}
	}
	walk(v)
	return nodes
}

func applyJSONLD(draft *submission.Draft, node map[string]interface{}, pageURL string) {
	if name := str(node["name"]); name != "" && isListingNode(node) {
		draft.Title = name
	}
	if desc := str(node["description"]); desc != "" && isListingNode(node) {
		draft.Description = desc
	}

	switch img := node["image"].(type) {
	case string:
		draft.Images = appendUnique(draft.Images, resolveURL(pageURL, img))
	case []interface{}:
		for _, i := range img {
			if s := str(i); s != "" {
				draft.Images = appendUnique(draft.Images, resolveURL(pageURL, s))
			}
		}
	case map[string]interface{}:
		if s := str(img["url"]); s != "" {
			draft.Images = appendUnique(draft.Images, resolveURL(pageURL, s))
		}
	}

	if offers, ok := node["offers"].(map[string]interface{}); ok {
		if price, ok := parsePrice(str(offers["price"])); ok {
			draft.Price = price
		}
	}
	if price, ok := parsePrice(str(node["price"])); ok && draft.Price == 0 {
		draft.Price = price
	}

	switch addr := node["address"].(type) {
	case string:
		draft.Location = strings.TrimSpace(addr)
	case map[string]interface{}:
		parts := []string{}
		for _, key := range []string{"streetAddress", "addressLocality", "addressRegion", "addressCountry"} {
			if s := str(addr[key]); s != "" {
				parts = append(parts, s)
			}
		}
		if len(parts) > 0 {
			draft.Location = strings.Join(parts, ", ")
		}
	}

	if n := firstNonEmpty(str(node["numberOfBedrooms"]), str(node["numberOfRooms"])); n != "" {
		draft.Bedrooms = atoiPtr(n)
	}
	if n := str(node["numberOfBathroomsTotal"]); n != "" {
		draft.Bathrooms = atoiPtr(n)
	}
	if size, ok := node["floorSize"].(map[string]interface{}); ok {
		if v, err := strconv.ParseFloat(str(size["value"]), 64); err == nil {
			draft.Area = &v
		}
	}
}

func isListingNode(node map[string]interface{}) bool {
	types := []string{}
	switch t := node["@type"].(type) {
	case string:
		types = append(types, t)
	case []interface{}:
		for _, v := range t {
			types = append(types, str(v))
		}
	}
	for _, t := range types {
		switch t {
		case "RealEstateListing", "Product", "Offer", "Residence", "House", "Apartment",
			"SingleFamilyResidence", "Accommodation", "Place":
			return true
		}
	}
	return false
}

// str renders JSON scalars as strings
func str(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	}
	return ""
}

func parsePrice(s string) (float64, bool) {
	m := priceDigits.FindString(s)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

func atoiPtr(s string) *int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

func guessRent(text string) bool {
	t := strings.ToLower(text)
	return strings.Contains(t, "for rent") || strings.Contains(t, "to let") || strings.Contains(t, "per month") || strings.Contains(t, "/month")
}

func guessType(text string) (models.PropertyType, bool) {
	switch {
	case apartmentWords.MatchString(text):
		return models.PropertyTypeApartment, true
	case commercialWords.MatchString(text):
		return models.PropertyTypeCommercial, true
	case landWords.MatchString(text):
		return models.PropertyTypeLand, true
	}
	return "", false
}

func resolveURL(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
