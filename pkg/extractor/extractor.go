// Package extractor turns precedent records into one combined text block
// plus identifier metadata.
package extractor

import (
	"fmt"
	"strings"

	"github.com/xhad/lawrag/internal/models"
)

const aihubLaw = "http://www.aihub.or.kr/kb/law/"

// CaseNumberField is the identifier field of the URI knowledge-base export.
const CaseNumberField = aihubLaw + "caseNumber"

// CaseIDField is the identifier column of the precedents dataset.
const CaseIDField = "판례정보일련번호"

// Metadata keys promoted from the identifier fields.
const (
	MetaURI        = "uri"
	MetaCaseNumber = "caseNumber"
	MetaCaseID     = "case_id"
)

// DefaultURIFields lists the knowledge-base fields in concatenation order.
var DefaultURIFields = []string{
	aihubLaw + "caseNumber",
	aihubLaw + "caseName",
	aihubLaw + "caseType",
	aihubLaw + "courtName",
	aihubLaw + "sentenceDate",
	aihubLaw + "judgementAbstract",
	aihubLaw + "precedentText",
	aihubLaw + "judgementNote",
}

// DefaultFlatFields lists the dataset columns in concatenation order.
var DefaultFlatFields = []string{
	"판례정보일련번호", "사건명", "사건번호", "선고일자", "선고", "법원명",
	"사건종류명", "판결유형", "판시사항", "판결요지", "참조조문",
	"참조판례", "전문",
}

type ExtractorConfig struct {
	URIFields   []string
	FlatFields  []string
	StripMarkup bool
}

type Extractor struct {
	config ExtractorConfig
}

func NewWithConfig(config ExtractorConfig) Extractor {
	if len(config.URIFields) == 0 {
		config.URIFields = DefaultURIFields
	}
	if len(config.FlatFields) == 0 {
		config.FlatFields = DefaultFlatFields
	}
	return Extractor{config: config}
}

// ExtractURIRecord joins the "value" entries of each present field with a
// space and the fields with a newline. A present field with no values
// still contributes an empty line. The case number is always recorded,
// as "" when the field has no values.
func (e Extractor) ExtractURIRecord(rec models.URIRecord) (models.ExtractedDocument, bool) {
	var parts []string
	meta := models.Metadata{MetaURI: rec.URI}

	for _, field := range e.config.URIFields {
		entries, ok := rec.Properties[field]
		if !ok {
			continue
		}

		var values []string
		for _, entry := range entries {
			v, ok := entry["value"]
			if !ok {
				continue
			}
			values = append(values, e.clean(stringify(v)))
		}
		parts = append(parts, strings.Join(values, " "))

		if field == CaseNumberField {
			meta[MetaCaseNumber] = ""
			if len(values) > 0 {
				meta[MetaCaseNumber] = values[0]
			}
		}
	}

	if len(parts) == 0 {
		return models.ExtractedDocument{}, false
	}
	return models.ExtractedDocument{Text: strings.Join(parts, "\n"), Metadata: meta}, true
}

// ExtractFlatRecord emits "<field>: <value>" lines for present, non-empty
// columns. The case id is set only when its column passes that test.
func (e Extractor) ExtractFlatRecord(rec models.FlatRecord) (models.ExtractedDocument, bool) {
	var parts []string
	meta := models.Metadata{}

	for _, field := range e.config.FlatFields {
		v, ok := rec[field]
		if !ok || isEmpty(v) {
			continue
		}
		// a whitespace-only value passes the presence test and is kept
		text := strings.TrimSpace(e.clean(stringify(v)))
		parts = append(parts, field+": "+text)
		if field == CaseIDField {
			meta[MetaCaseID] = text
		}
	}

	if len(parts) == 0 {
		return models.ExtractedDocument{}, false
	}
	return models.ExtractedDocument{Text: strings.Join(parts, "\n"), Metadata: meta}, true
}

// ExtractURIRecords applies ExtractURIRecord in order, dropping empty records.
func (e Extractor) ExtractURIRecords(recs []models.URIRecord) []models.ExtractedDocument {
	docs := make([]models.ExtractedDocument, 0, len(recs))
	for _, rec := range recs {
		if doc, ok := e.ExtractURIRecord(rec); ok {
			docs = append(docs, doc)
		}
	}
	return docs
}

// ExtractFlatRecords applies ExtractFlatRecord in order, dropping empty records.
func (e Extractor) ExtractFlatRecords(recs []models.FlatRecord) []models.ExtractedDocument {
	docs := make([]models.ExtractedDocument, 0, len(recs))
	for _, rec := range recs {
		if doc, ok := e.ExtractFlatRecord(rec); ok {
			docs = append(docs, doc)
		}
	}
	return docs
}

func (e Extractor) clean(s string) string {
	if !e.config.StripMarkup {
		return s
	}
	return StripMarkup(s)
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case bool:
		return !x
	case float64:
		return x == 0
	case int:
		return x == 0
	case int64:
		return x == 0
	case []any:
		return len(x) == 0
	case map[string]any:
		return len(x) == 0
	}
	return false
}

// stringify renders JSON scalars the way they read in the source data:
// integral numbers without a decimal point, booleans as True and False.
func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		if x {
			return "True"
		}
		return "False"
	case float64:
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%v", x)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", x)
	}
}
