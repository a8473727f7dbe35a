package recon

// Finding types
const (
	FindingExposure         = "exposure"
	FindingMisconfiguration = "misconfiguration"
	FindingTakeover         = "takeover"
)

// Severities
const (
	SeverityLow    = "LOW"
	SeverityMedium = "MEDIUM"
	SeverityHigh   = "HIGH"
)

// Target is a validated host with its optional address and HTTP status
type Target struct {
	Host       string `json:"host"`
	IP         string `json:"ip,omitempty"`
	HTTPStatus *int   `json:"http_status"`
}

// Misconfiguration describes missing security headers on a host
type Misconfiguration struct {
	MissingHeaders []string `json:"missing_headers"`
	Server         string   `json:"server"`
	CVEs           []string `json:"cves"`
}

// Takeover describes a CNAME that points at a claimable hosting provider
type Takeover struct {
	Provider string `json:"provider"`
	CNAME    string `json:"cname"`
}

// Vulnerabilities groups detector output for one host
type Vulnerabilities struct {
	Exposure         []string          `json:"exposure,omitempty"`
	Misconfiguration *Misconfiguration `json:"misconfiguration,omitempty"`
	Takeover         *Takeover         `json:"takeover,omitempty"`
}

// HostReport is the per-host section of a Report
type HostReport struct {
	Target
	Vulnerabilities Vulnerabilities `json:"vulnerabilities"`
}

// Finding is a flattened, scored detector result
type Finding struct {
	Host     string `json:"host"`
	Type     string `json:"type"`
	Severity string `json:"severity"`
}

// Report is the merged result of a pipeline run
type Report struct {
	Domain          string       `json:"domain"`
	TotalCandidates int          `json:"total_candidates"`
	WildcardIP      string       `json:"wildcard_ip,omitempty"`
	TotalSubdomains int          `json:"total_subdomains"`
	Subdomains      []HostReport `json:"subdomains"`
	Findings        []Finding    `json:"findings"`
}

// Detections holds the raw output of the three detectors keyed by host
type Detections struct {
	Exposure         map[string][]string
	Misconfiguration map[string]*Misconfiguration
	Takeover         map[string]*Takeover
}
