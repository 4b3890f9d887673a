package cleaner

// Link is one anchor discovered during link extraction.
type Link struct {
	Href string `json:"href"`
	Text string `json:"text"`
}

// LinksResult separates extracted links by whether their host matches the
// source document's host.
type LinksResult struct {
	Internal []Link `json:"internal"`
	External []Link `json:"external"`
}

// Image is one <img> discovered during image extraction.
type Image struct {
	Src string `json:"src"`
	Alt string `json:"alt"`
}

// OGMetadata carries the Open Graph tags the extractor understands.
type OGMetadata struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
	Type        string `json:"type,omitempty"`
}

// Metadata is the extractor's best-effort page metadata, independent of
// output format.
type Metadata struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	SiteName    string `json:"siteName,omitempty"`
	Author      string `json:"author,omitempty"`
	Language    string `json:"language,omitempty"`
	SourceURL   string `json:"sourceUrl"`
}

// TokenInfo records the estimated token savings from cleaning.
type TokenInfo struct {
	OriginalEstimate int     `json:"originalEstimate"`
	CleanedEstimate  int     `json:"cleanedEstimate"`
	SavingsPercent   float64 `json:"savingsPercent"`
}

// ExtractResult is the Extractor's output contract (C4): content in the
// requested format, page metadata, and link/image/OG-metadata side tables.
type ExtractResult struct {
	Content    string      `json:"content"`
	Metadata   Metadata    `json:"metadata"`
	Links      LinksResult `json:"links"`
	Images     []Image     `json:"images"`
	OGMetadata OGMetadata  `json:"ogMetadata"`
	Tokens     TokenInfo   `json:"tokens"`
	SSRData    map[string]interface{} `json:"ssrData,omitempty"`
}

// ExtractError wraps a failure from the content-extraction pipeline.
type ExtractError struct {
	Stage string
	Err   error
}

func (e *ExtractError) Error() string {
	return "cleaner: " + e.Stage + ": " + e.Err.Error()
}

func (e *ExtractError) Unwrap() error { return e.Err }
