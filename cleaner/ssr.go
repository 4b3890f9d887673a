package cleaner

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DetectSSRData attempts parsers for framework-embedded JSON state in order,
// returning the first that yields valid JSON. Malformed JSON yields nil, not
// an error — only a total parse failure across every framework is a miss.
func DetectSSRData(rawHTML string) map[string]interface{} {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil
	}

	for _, detector := range ssrDetectors {
		if data := detector(doc, rawHTML); data != nil {
			return data
		}
	}
	return nil
}

type ssrDetectorFunc func(doc *goquery.Document, rawHTML string) map[string]interface{}

var ssrDetectors = []ssrDetectorFunc{
	detectNext,
	detectAngular,
	detectSvelteKitModern,
	detectNuxt,
	detectNuxt3,
	detectGatsby,
	detectRemix,
	detectTanStack,
	detectVueSSR,
	detectSvelteKitLegacy,
	detectGeneric,
}

func parseJSONObject(raw string) map[string]interface{} {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var v map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil
	}
	return v
}

func detectNext(doc *goquery.Document, _ string) map[string]interface{} {
	sel := doc.Find("#__NEXT_DATA__").First()
	if sel.Length() == 0 {
		return nil
	}
	return parseJSONObject(sel.Text())
}

func detectAngular(doc *goquery.Document, _ string) map[string]interface{} {
	sel := doc.Find("script#ng-state").First()
	if sel.Length() == 0 {
		return nil
	}
	return parseJSONObject(sel.Text())
}

func detectSvelteKitModern(doc *goquery.Document, _ string) map[string]interface{} {
	sel := doc.Find("script[data-sveltekit-fetched]").First()
	if sel.Length() == 0 {
		return nil
	}
	return parseJSONObject(sel.Text())
}

var nuxtRe = regexp.MustCompile(`(?s)window\.__NUXT__\s*=\s*(\{.*?\})\s*;?\s*(?:</script>|$)`)

func detectNuxt(_ *goquery.Document, rawHTML string) map[string]interface{} {
	m := nuxtRe.FindStringSubmatch(rawHTML)
	if m == nil {
		return nil
	}
	return parseJSONObject(m[1])
}

var nuxt3Re = regexp.MustCompile(`window\.__nuxt_state__\s*=\s*'([^']*)'`)

func detectNuxt3(_ *goquery.Document, rawHTML string) map[string]interface{} {
	m := nuxt3Re.FindStringSubmatch(rawHTML)
	if m == nil {
		return nil
	}
	decoded, err := url.QueryUnescape(m[1])
	if err != nil {
		return nil
	}
	return parseJSONObject(decoded)
}

var gatsbyRe = regexp.MustCompile(`(?s)window\.___gatsby\s*=|___INITIAL_STATE___\s*=\s*(\{.*?\})\s*;`)
var gatsbyDataRe = regexp.MustCompile(`(?s)___INITIAL_STATE___\s*=\s*(\{.*?\})\s*;`)

func detectGatsby(_ *goquery.Document, rawHTML string) map[string]interface{} {
	if !gatsbyRe.MatchString(rawHTML) {
		return nil
	}
	m := gatsbyDataRe.FindStringSubmatch(rawHTML)
	if m == nil {
		return nil
	}
	return parseJSONObject(m[1])
}

func detectRemix(doc *goquery.Document, _ string) map[string]interface{} {
	sel := doc.Find("script#remix-data").First()
	if sel.Length() == 0 {
		return nil
	}
	return parseJSONObject(sel.Text())
}

var tanStackRe = regexp.MustCompile(`(?s)window\.__TSR__\s*=\s*(\{.*?\})\s*;`)

func detectTanStack(_ *goquery.Document, rawHTML string) map[string]interface{} {
	m := tanStackRe.FindStringSubmatch(rawHTML)
	if m == nil {
		return nil
	}
	return parseJSONObject(m[1])
}

func detectVueSSR(doc *goquery.Document, _ string) map[string]interface{} {
	sel := doc.Find("script[type='application/json'][id='vue-ssr-data']").First()
	if sel.Length() == 0 {
		return nil
	}
	return parseJSONObject(sel.Text())
}

var svelteKitLegacyRe = regexp.MustCompile(`(?s)__sveltekit_\w+\.start\(\s*\{[^}]*?\}\s*,\s*(\{.*?\})\s*\)`)

func detectSvelteKitLegacy(_ *goquery.Document, rawHTML string) map[string]interface{} {
	m := svelteKitLegacyRe.FindStringSubmatch(rawHTML)
	if m == nil {
		return nil
	}
	return parseJSONObject(m[1])
}

var genericRe = regexp.MustCompile(`(?s)window\.(__INITIAL_STATE__|__APP_STATE__|__REDUX_STATE__|__STORE_STATE__|__DATA__|__STATE__|__PROPS__)\s*=\s*(\{.*?\})\s*;`)

func detectGeneric(_ *goquery.Document, rawHTML string) map[string]interface{} {
	m := genericRe.FindStringSubmatch(rawHTML)
	if m == nil {
		return nil
	}
	return parseJSONObject(m[2])
}
