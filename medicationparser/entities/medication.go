package entities

import "time"

// Route values produced by the field extractor
const (
	RouteOral        = "oral"
	RouteIV          = "IV"
	RouteIM          = "IM"
	RouteOther       = "other"
	RouteUnspecified = "unspecified"
)

// MedicationRow is one data row of a medication table, before field extraction
type MedicationRow struct {
	RawName    string
	RawUsage   string
	RawLoE     string
	RowIndex   int // Zero-based index of the row within its table, header included
	TableIndex int
}

// Usage holds the fields split out of a free-text usage cell
type Usage struct {
	Dosage    float64 `json:"dosage"`
	Unit      string  `json:"unit"`
	Form      string  `json:"form,omitempty"`
	Route     string  `json:"route"`
	Frequency string  `json:"frequency"`
}

// Sources holds the outcome of each reference lookup. An empty status means
// the lookup was not performed or failed.
type Sources struct {
	EMLStatus   string   `json:"emlStatus"`
	FDAStatus   string   `json:"fdaStatus"`
	EMAStatus   string   `json:"emaStatus"`
	PubMedLinks []string `json:"pubmedLinks"`
}

// MedicationRecord is the enriched form of one MedicationRow
type MedicationRecord struct {
	Name            string  `json:"name"`
	Usage           string  `json:"usage"`
	INN             string  `json:"inn"`
	Dosage          float64 `json:"dosage"`
	Unit            string  `json:"unit"`
	Form            string  `json:"form,omitempty"`
	Route           string  `json:"route"`
	Frequency       string  `json:"frequency"`
	LevelOfEvidence string  `json:"levelOfEvidence"`
	SystemLoE       string  `json:"systemLoE"`
	Description     string  `json:"description"`
	Sources         Sources `json:"sources"`
}

// ApplyUsage copies extracted usage fields onto the record
func (r *MedicationRecord) ApplyUsage(u Usage) {
	r.Dosage = u.Dosage
	r.Unit = u.Unit
	r.Form = u.Form
	r.Route = u.Route
	r.Frequency = u.Frequency
}

// Analysis is the persisted result of processing one uploaded protocol
type Analysis struct {
	ID             int64              `json:"id"`
	Filename       string             `json:"filename"`
	StoredPath     string             `json:"-"`
	UploadedAt     time.Time          `json:"uploadedAt"`
	DiseaseContext string             `json:"diseaseContext"`
	Records        []MedicationRecord `json:"records"`
}

// AnalysisSummary is a history list entry
type AnalysisSummary struct {
	ID             int64     `json:"id"`
	Filename       string    `json:"filename"`
	UploadedAt     time.Time `json:"uploadedAt"`
	DiseaseContext string    `json:"diseaseContext"`
	RecordCount    int       `json:"recordCount"`
}

// DrugDetails is the AI answer for one drug
type DrugDetails struct {
	INNEnglish       string `json:"inn_english"`
	BriefDescription string `json:"brief_description"`
	SystemLoE        string `json:"system_loe"`
}

// ProtocolDrug is a drug listed by the AI when the document has no table
type ProtocolDrug struct {
	INNProtocol   string `json:"inn_protocol"`
	UsageProtocol string `json:"usage_protocol"`
	LoEProtocol   string `json:"loe_protocol"`
}

// DocumentContext is the AI answer for a whole document
type DocumentContext struct {
	DiseaseContext string         `json:"disease_context"`
	DrugList       []ProtocolDrug `json:"drug_list"`
}
