package finding

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ReportData is the root of the data tree.
type ReportData struct {
	Report      ReportMeta     `json:"report"`
	Project     Project        `json:"project"`
	Client      Client         `json:"client"`
	Team        []TeamMember   `json:"team,omitempty"`
	Findings    []Finding      `json:"findings"`
	Evidence    []Evidence     `json:"evidence,omitempty"`
	Targets     []Target       `json:"targets,omitempty"`
	Logs        []LogEntry     `json:"logs,omitempty"`
	ExtraFields map[string]any `json:"extra_fields,omitempty"`
}

// ReportMeta identifies the report being generated.
type ReportMeta struct {
	ID       int       `json:"id"`
	Title    string    `json:"title"`
	Author   string    `json:"author,omitempty"`
	Created  time.Time `json:"creation,omitempty"`
	Modified time.Time `json:"last_update,omitempty"`
}

// Project is the engagement the report belongs to.
type Project struct {
	ID          int            `json:"id"`
	Name        string         `json:"name"`
	Codename    string         `json:"codename,omitempty"`
	Type        string         `json:"type,omitempty"`
	StartDate   string         `json:"start_date,omitempty"`
	EndDate     string         `json:"end_date,omitempty"`
	Note        string         `json:"note,omitempty"`
	ExtraFields map[string]any `json:"extra_fields,omitempty"`
}

// Client is the organisation the engagement is performed for.
type Client struct {
	ID          int            `json:"id"`
	Name        string         `json:"name"`
	ShortName   string         `json:"short_name,omitempty"`
	Codename    string         `json:"codename,omitempty"`
	Address     string         `json:"address,omitempty"`
	Note        string         `json:"note,omitempty"`
	ExtraFields map[string]any `json:"extra_fields,omitempty"`
}

// TeamMember is an assessor assigned to the project.
type TeamMember struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// Target is an in-scope host.
type Target struct {
	IPAddress   string `json:"ip_address,omitempty"`
	Hostname    string `json:"hostname,omitempty"`
	Note        string `json:"note,omitempty"`
	Compromised bool   `json:"compromised"`
}

// LogEntry is one activity-log line.
type LogEntry struct {
	ID           int            `json:"id"`
	StartDate    string         `json:"start_date,omitempty"`
	EndDate      string         `json:"end_date,omitempty"`
	SourceIP     string         `json:"source_ip,omitempty"`
	DestIP       string         `json:"dest_ip,omitempty"`
	Tool         string         `json:"tool,omitempty"`
	UserContext  string         `json:"user_context,omitempty"`
	Command      string         `json:"command,omitempty"`
	Description  string         `json:"description,omitempty"`
	Output       string         `json:"output,omitempty"`
	Comments     string         `json:"comments,omitempty"`
	OperatorName string         `json:"operator_name,omitempty"`
	Tags         []string       `json:"tags,omitempty"`
	ExtraFields  map[string]any `json:"extra_fields,omitempty"`
}

// Finding is one reported issue.
type Finding struct {
	ID                         int            `json:"id"`
	Title                      string         `json:"title"`
	Severity                   Severity       `json:"severity"`
	FindingType                string         `json:"finding_type,omitempty"`
	CVSSScore                  float64        `json:"cvss_score,omitempty"`
	CVSSVector                 string         `json:"cvss_vector,omitempty"`
	Tags                       []string       `json:"tags,omitempty"`
	Position                   int            `json:"position"`
	Complete                   bool           `json:"complete"`
	Description                string         `json:"description,omitempty"`
	Impact                     string         `json:"impact,omitempty"`
	Mitigation                 string         `json:"mitigation,omitempty"`
	ReplicationSteps           string         `json:"replication_steps,omitempty"`
	HostDetectionTechniques    string         `json:"host_detection_techniques,omitempty"`
	NetworkDetectionTechniques string         `json:"network_detection_techniques,omitempty"`
	References                 string         `json:"references,omitempty"`
	AffectedEntities           string         `json:"affected_entities,omitempty"`
	Evidence                   []Evidence     `json:"evidence,omitempty"`
	ExtraFields                map[string]any `json:"extra_fields,omitempty"`
}

// RichTextField names one rich-text attribute of a finding.
type RichTextField struct {
	Key   string // context key, e.g. "description"
	Label string // human label used in error locations, e.g. "description"
}

// FindingRichTextFields lists the finding attributes authored in the
// WYSIWYG editor, in report order.
var FindingRichTextFields = []RichTextField{
	{"description", "description"},
	{"impact", "impact"},
	{"mitigation", "mitigation"},
	{"replication_steps", "replication steps"},
	{"host_detection_techniques", "host detection techniques"},
	{"network_detection_techniques", "network detection techniques"},
	{"references", "references"},
	{"affected_entities", "affected entities"},
}

// RichText returns the raw markup of the named rich-text field.
func (f *Finding) RichText(key string) string {
	switch key {
	case "description":
		return f.Description
	case "impact":
		return f.Impact
	case "mitigation":
		return f.Mitigation
	case "replication_steps":
		return f.ReplicationSteps
	case "host_detection_techniques":
		return f.HostDetectionTechniques
	case "network_detection_techniques":
		return f.NetworkDetectionTechniques
	case "references":
		return f.References
	case "affected_entities":
		return f.AffectedEntities
	}
	return ""
}

// EvidenceClass separates evidence embedded as text from evidence embedded
// as a picture.
type EvidenceClass int

const (
	EvidenceUnknown EvidenceClass = iota
	EvidenceText
	EvidenceImage
)

func (c EvidenceClass) String() string {
	switch c {
	case EvidenceText:
		return "text"
	case EvidenceImage:
		return "image"
	default:
		return "unknown"
	}
}

var evidenceExtensions = map[string]EvidenceClass{
	".txt":  EvidenceText,
	".log":  EvidenceText,
	".md":   EvidenceText,
	".csv":  EvidenceText,
	".json": EvidenceText,
	".xml":  EvidenceText,
	".png":  EvidenceImage,
	".jpg":  EvidenceImage,
	".jpeg": EvidenceImage,
	".gif":  EvidenceImage,
	".bmp":  EvidenceImage,
	".tif":  EvidenceImage,
	".tiff": EvidenceImage,
	".webp": EvidenceImage,
}

// Evidence is a file attached to a finding or to the report.
type Evidence struct {
	ID           int      `json:"id"`
	FriendlyName string   `json:"friendly_name"`
	Path         string   `json:"path"`
	Caption      string   `json:"caption,omitempty"`
	Description  string   `json:"description,omitempty"`
	Tags         []string `json:"tags,omitempty"`
}

// Class classifies the evidence by file extension.
func (e *Evidence) Class() EvidenceClass {
	return evidenceExtensions[strings.ToLower(filepath.Ext(e.Path))]
}

// EvidenceSet indexes evidence by friendly name for marker resolution.
type EvidenceSet map[string]*Evidence

// NewEvidenceSet indexes the given lists; later lists override earlier ones
// so finding evidence shadows report evidence of the same name.
func NewEvidenceSet(lists ...[]Evidence) EvidenceSet {
	set := EvidenceSet{}
	for _, list := range lists {
		for i := range list {
			set[list[i].FriendlyName] = &list[i]
		}
	}
	return set
}

// ValidateEvidenceNames returns ErrDuplicateEvidence if two items in list
// share a friendly name.
func ValidateEvidenceNames(list []Evidence) error {
	seen := make(map[string]bool, len(list))
	for _, e := range list {
		if seen[e.FriendlyName] {
			return fmt.Errorf("%w: %q", ErrDuplicateEvidence, e.FriendlyName)
		}
		seen[e.FriendlyName] = true
	}
	return nil
}

// Normalize fills severity defaults in place. Call once after decoding.
func (d *ReportData) Normalize() {
	for i := range d.Findings {
		d.Findings[i].Severity = d.Findings[i].Severity.withDefaults()
	}
}

// Validate checks the invariants the upstream producer is expected to
// maintain and reports the first violation.
func (d *ReportData) Validate() error {
	if err := ValidateEvidenceNames(d.Evidence); err != nil {
		return fmt.Errorf("report evidence: %w", err)
	}
	for i := range d.Findings {
		f := &d.Findings[i]
		if err := f.Severity.Validate(); err != nil {
			return fmt.Errorf("finding %q: %w", f.Title, err)
		}
		if err := ValidateEvidenceNames(f.Evidence); err != nil {
			return fmt.Errorf("finding %q evidence: %w", f.Title, err)
		}
	}
	return nil
}

// SortedFindings returns the findings ordered by severity weight and then
// position within the severity group. The receiver is not modified.
func (d *ReportData) SortedFindings() []Finding {
	out := make([]Finding, len(d.Findings))
	copy(out, d.Findings)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Severity.Weight != out[j].Severity.Weight {
			return out[i].Severity.Weight < out[j].Severity.Weight
		}
		return out[i].Position < out[j].Position
	})
	return out
}

// SeverityCounts counts findings per severity label.
func (d *ReportData) SeverityCounts() map[string]int {
	counts := make(map[string]int)
	for _, f := range d.Findings {
		counts[f.Severity.Label]++
	}
	return counts
}
