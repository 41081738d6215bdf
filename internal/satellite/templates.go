package satellite

import (
	"sort"
	"strings"
)

// industryNoSatellite is the default skip list: industries where overhead
// imagery adds nothing. Matched case-insensitively against the trimmed
// industry label.
var industryNoSatellite = map[string]struct{}{
	"internet":                 {},
	"software":                 {},
	"saas":                     {},
	"fintech":                  {},
	"media":                    {},
	"advertising":              {},
	"social media":             {},
	"gaming (pure software)":   {},
	"payments (pure software)": {},
}

func skipIndustry(industry string) bool {
	_, ok := industryNoSatellite[strings.ToLower(strings.TrimSpace(industry))]
	return ok
}

// skipIndustryList renders the skip list for the planner prompt, sorted so the
// prompt is deterministic.
func skipIndustryList() string {
	names := make([]string, 0, len(industryNoSatellite))
	for name := range industryNoSatellite {
		names = append(names, "'"+name+"'")
	}
	sort.Strings(names)
	return "{" + strings.Join(names, ", ") + "}"
}

const plannerSystem = `You are an Observation Planner for a finance research agent.

You must decide IF satellite observation is useful for a given ticker and industry,
and if yes, propose up to TWO high-value observation targets with feasible FREE signals.

Rules:
- If the industry is clearly software/internet/SaaS/fintech/media (pure software), set "use_satellite": false.
- Otherwise, prefer targets that can be observed with FREE public missions at >=10 m resolution:
  • S2 (Sentinel-2 optical, 10 m): features allowed => "NDVI_mean_30d_vs_prev30d", "NDWI_ship_count_wow", "built_area_edge_delta_6m"
  • S1 (Sentinel-1 SAR, 10 m):   features allowed => "SAR_VV_delta_30d"
  • VIIRS (night lights):         features allowed => "night_lights_pct_delta_30d"
  • MODIS (fire/smoke):           features allowed => "smoke_days_14d"

Hard constraints:
- DO NOT request sub-10m details (e.g., cars, containers, small vehicles).
- DO NOT invent proprietary/commercial datasets.
- Use at most TWO targets; choose the most informative ones.
- If runtime hints are provided (site_hints or proxy_hints), prefer them; otherwise, you may return use_satellite=false.

Output:
- STRICT JSON matching the ObservationPlan schema:
  {
    "ticker": str,
    "industry": str | null,
    "use_satellite": bool,
    "targets": [
      {
        "name": str,
        "lat": float | null,
        "lon": float | null,
        "radius_km": float | null,
        "polygon_geojson": object | null,
        "sensors": [
          {"type": "S2" | "S1" | "VIIRS" | "MODIS", "features": [str, ...]}
        ],
        "reason": str
      },
      ...
    ],
    "fallbacks": [ Target, ... ],
    "notes": str
  }
Return JSON only, no commentary.
`

const plannerUserTemplate = `Ticker: %s
Industry: %s

Runtime site_hints (user-provided, optional; do NOT persist; may be empty):
%s

Runtime proxy_hints (user-provided, optional; do NOT persist; may be empty):
%s

Reminder:
- If industry is in %s., set use_satellite=false and explain why in 'notes'.
- Else, propose up to TWO targets from the hints above (or set use_satellite=false if nothing feasible/safe).
- Use the allowed features only (see system message).
- Output STRICT JSON ONLY (no markdown, no extra text).
`

const summarizerSystem = `You verify and summarize satellite observations for a finance report.
Observations are derived from public missions (S2/S1/VIIRS/MODIS) at >=10m resolution.
Drop low-quality observations (quality < 0.6) or clearly implausible values.
Produce: a one-line HEADLINE, 2–4 concise bullets, an overall confidence (0..1),
and an attribution list like ["S2","VIIRS"]. Prefer cautious, evidence-weighted language.`

const summarizerUserTemplate = `Ticker: %s
Industry: %s
Observations JSON:
%s

Return STRICT JSON:
{
  "headline": "...",
  "bullets": ["...", "..."],
  "confidence": 0.0,
  "attribution": ["S2"]
}`
