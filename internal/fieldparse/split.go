package fieldparse

import (
	"regexp"
	"strconv"
	"strings"
)

var makeModelGradePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(.+?)\s+([A-Z]{1,3}\d{2,4}[A-Z]?\s*.*)$`),
	regexp.MustCompile(`(?i)^(.+?)\s+([A-Z]{1,3}(?:\s+.*)?)$`),
	regexp.MustCompile(`^(.+?)\s+(バージョン.*)$`),
	regexp.MustCompile(`^(.+?)\s+(Fスポーツ.*)$`),
	regexp.MustCompile(`^(.+?)\s+(Mスポ.*)$`),
	regexp.MustCompile(`^(.+?)\s+(AMG.*)$`),
	regexp.MustCompile(`^(.+?)\s+(レザー.*)$`),
	regexp.MustCompile(`^(.+?)\s+(Cパッケージ.*)$`),
)

var makeModelValidRe = regexp.MustCompile(`[\x{3040}-\x{309F}\x{30A0}-\x{30FF}\x{4E00}-\x{9FFF}]|MB|BMW|ポル|GR`)

// splitMakeModelGrade implements _split_make_model_grade.
func splitMakeModelGrade(value string) (string, string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", ""
	}
	for _, pat := range makeModelGradePatterns {
		m := pat.FindStringSubmatch(value)
		if m == nil {
			continue
		}
		makeModel := strings.TrimSpace(m[1])
		grade := strings.TrimSpace(m[2])
		if makeModelValidRe.MatchString(makeModel) {
			return makeModel, grade
		}
	}
	parts := strings.SplitN(value, " ", 2)
	if len(parts) == 2 {
		return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	}
	return value, ""
}

var (
	shiftTransRe  = regexp.MustCompile(`(?i)(AT|FA|CA|CVT|MT)`)
	shiftEngineRe = regexp.MustCompile(`(\d{3,4})`)
)

// splitShiftEngine implements _split_shift_engine.
func splitShiftEngine(value string) (string, string) {
	if value == "" {
		return "", ""
	}
	trans := ""
	if m := shiftTransRe.FindStringSubmatch(value); m != nil {
		trans = strings.ToUpper(m[1])
	}
	if strings.Contains(strings.ToUpper(value), "EV") {
		return trans, ""
	}
	engine := ""
	if m := shiftEngineRe.FindStringSubmatch(value); m != nil {
		engine = m[1]
	}
	return trans, engine
}

var (
	mileageNumRe       = regexp.MustCompile(`(\d[\d,]*)`)
	inspectionRe       = regexp.MustCompile(`R\d{1,2}[./年]\d{1,2}`)
	inspectionAltRe    = regexp.MustCompile(`(?:令和)?(\d{1,2})[./年](\d{1,2})`)
)

// splitMileageInspection implements _split_mileage_inspection.
func splitMileageInspection(value string) (string, string) {
	if value == "" {
		return "", ""
	}
	mileage := ""
	if m := mileageNumRe.FindStringSubmatch(value); m != nil {
		mileage = m[1]
	}
	inspection := ""
	if m := inspectionRe.FindString(value); m != "" {
		inspection = m
	} else if m := inspectionAltRe.FindStringSubmatch(value); m != nil {
		inspection = "R" + m[1] + "." + zfill(m[2], 2)
	}
	return mileage, inspection
}

var (
	modelEquipPrefixRe = regexp.MustCompile(`(?i)^([A-Z0-9]{3,12})`)
	modelEquipPat1     = regexp.MustCompile(`(\d{5,6}[A-Z])`)
	modelEquipPat2     = regexp.MustCompile(`([A-Z]{2,4}\d{2,3}[A-Z]?)`)
	modelEquipPat3     = regexp.MustCompile(`([A-Z]{1,2}\d[A-Z]{1,2})`)
)

// splitModelEquipment implements _split_model_equipment.
func splitModelEquipment(value string) (string, string) {
	if value == "" {
		return "", ""
	}
	if m := modelEquipPrefixRe.FindStringIndex(value); m != nil {
		modelCode := value[m[0]:m[1]]
		remainder := strings.TrimSpace(value[m[1]:])
		return modelCode, remainder
	}
	for _, pat := range []*regexp.Regexp{modelEquipPat1, modelEquipPat2, modelEquipPat3} {
		if m := pat.FindStringSubmatch(value); m != nil {
			return m[1], ""
		}
	}
	return "", ""
}

var scoreRARe = regexp.MustCompile(`(?i)R\s*A`)
var scoreRAloneRe = regexp.MustCompile(`(?i)^R$`)
var scoreNumRe = regexp.MustCompile(`(\d(?:\.\d)?)`)

// extractScoreValue implements _extract_score_value.
func extractScoreValue(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if scoreRARe.MatchString(value) {
		return "RA"
	}
	if scoreRAloneRe.MatchString(value) {
		return "R"
	}
	if m := scoreNumRe.FindStringSubmatch(value); m != nil {
		return m[1]
	}
	return value
}

// parseScore implements parse_score: returns (score string, numeric, ok).
func parseScore(text string) (string, float64, bool) {
	if text == "" {
		return "", 0, false
	}
	cleaned := normalizeText(text)
	upper := strings.ToUpper(cleaned)
	if strings.Contains(upper, "RA") {
		return "RA", 0, false
	}
	if strings.Contains(upper, "R") {
		return "R", 0, false
	}
	m := regexp.MustCompile(`\d(?:\.\d)?`).FindString(cleaned)
	if m == "" {
		return cleaned, 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return m, 0, false
	}
	return m, f, true
}
