package server

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/squidKid-deluxe/bitshares-dex-ux/internal/store"
)

// Request is one client resource request, over the query string on
// connect or as a JSON frame afterwards.
type Request struct {
	Resource   string `json:"resource"`
	Pair       string `json:"pair"`
	Contract   string `json:"contract"`
	ChartType  string `json:"chart_type"`
	CandleSize string `json:"candle_size"`
	Depth      int    `json:"depth"`

	// Asset picker fields.
	Search      string `json:"search"`
	AssetA      string `json:"assetA"`
	FirstChoice bool   `json:"firstChoice"`
	UseMPA      *bool  `json:"useMPA"`
	UseUIA      *bool  `json:"useUIA"`
	UseLPT      *bool  `json:"useLPT"`
	UsePool     *bool  `json:"usePool"`
	UseBTS      *bool  `json:"useBTS"`
}

// normalize fills defaults and canonicalizes the pair spelling. Pairs
// arrive underscore-separated from URLs and colon-separated from JSON;
// both become upper-case "ASSET:CURRENCY".
func (r Request) normalize(defaultPair string) Request {
	if r.Pair == "" {
		r.Pair = defaultPair
	}
	r.Pair = strings.ToUpper(strings.ReplaceAll(r.Pair, "_", ":"))
	if !strings.Contains(r.Pair, ":") {
		r.Pair = defaultPair
	}
	if r.Contract == "" {
		r.Contract = "1.0.0"
	}
	if r.ChartType == "" {
		r.ChartType = "candle"
	}
	if r.CandleSize == "" {
		r.CandleSize = "c900"
	}
	if r.Depth <= 0 {
		r.Depth = 50
	}
	return r
}

// split returns the asset and currency symbols of the pair.
func (r Request) split() (asset, currency string) {
	parts := strings.SplitN(r.Pair, ":", 2)
	return parts[0], parts[1]
}

// typeFilter maps the picker toggles onto the store filter. Unset
// toggles default to on.
func (r Request) typeFilter() store.TypeFilter {
	on := func(b *bool) bool { return b == nil || *b }
	return store.TypeFilter{
		MPA:     on(r.UseMPA),
		UIA:     on(r.UseUIA),
		LPToken: on(r.UseLPT),
		Pool:    on(r.UsePool),
		BTS:     on(r.UseBTS),
	}
}

// identity keys the full argument tuple so the supervisor can tell a
// repeat from a new selection. Any changed parameter, including depth
// and the picker toggles, is a new selection.
func (r Request) identity() string {
	toggle := func(b *bool) string {
		if b == nil {
			return "-"
		}
		return strconv.FormatBool(*b)
	}
	return strings.Join([]string{
		r.Pair, r.Contract, r.ChartType, r.CandleSize,
		strconv.Itoa(r.Depth),
		r.Search, r.AssetA, strconv.FormatBool(r.FirstChoice),
		toggle(r.UseMPA), toggle(r.UseUIA), toggle(r.UseLPT),
		toggle(r.UsePool), toggle(r.UseBTS),
	}, "|")
}

// fromQuery builds the initial request from the connect URL. Query
// artifacts from assorted frontends (stray quotes and ampersands) are
// stripped before use.
func fromQuery(values url.Values) Request {
	clean := func(s string) string { return strings.Trim(s, `?'"&`) }
	get := func(key string) string { return clean(values.Get(key)) }

	req := Request{
		Resource:   get("resource"),
		Pair:       get("pair"),
		Contract:   get("contract"),
		ChartType:  get("chart_type"),
		CandleSize: get("candle_size"),
		Search:     get("search"),
	}
	if req.Pair == "" {
		if token := get("token"); token != "" {
			asset := get("asset")
			if asset == "" {
				asset = "BTS"
			}
			req.Pair = asset + ":" + token
		}
	}
	if req.Resource == "" {
		req.Resource = "candles"
	}
	return req
}
