package usecase

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/partselect/backend/internal/domain"
	"golang.org/x/text/unicode/norm"
)

// ConstraintField names the ConstraintSet field a parse rule writes to
type ConstraintField string

const (
	FieldVoltage  ConstraintField = "target_voltage"
	FieldCurrent  ConstraintField = "target_current"
	FieldPackage  ConstraintField = "target_package"
	FieldCategory ConstraintField = "category_hint"
)

// matchMode controls how a rule pattern is compared with the folded query
type matchMode int

const (
	matchToken     matchMode = iota // pattern must equal a whole token
	matchSubstring                  // pattern may appear anywhere in the text
)

// ParseRule maps one literal pattern to exactly one target field
type ParseRule struct {
	Pattern string
	Field   ConstraintField
	Value   string
	mode    matchMode
}

// TokenRule matches pattern against whole query tokens
func TokenRule(pattern string, field ConstraintField, value string) ParseRule {
	return ParseRule{Pattern: pattern, Field: field, Value: value, mode: matchToken}
}

// SubstringRule matches pattern anywhere in the folded query
func SubstringRule(pattern string, field ConstraintField, value string) ParseRule {
	return ParseRule{Pattern: pattern, Field: field, Value: value, mode: matchSubstring}
}

// defaultParseRules is evaluated top to bottom. Within a field the first
// matching rule wins, so more specific patterns must come first.
var defaultParseRules = []ParseRule{
	// Supply voltages
	TokenRule("3.3v", FieldVoltage, "3.3V"),
	TokenRule("5v", FieldVoltage, "5V"),
	TokenRule("12v", FieldVoltage, "12V"),
	TokenRule("24v", FieldVoltage, "24V"),
	TokenRule("1.8v", FieldVoltage, "1.8V"),
	TokenRule("2.5v", FieldVoltage, "2.5V"),
	TokenRule("3v", FieldVoltage, "3V"),

	// Output currents
	TokenRule("100ma", FieldCurrent, "100mA"),
	TokenRule("200ma", FieldCurrent, "200mA"),
	TokenRule("500ma", FieldCurrent, "500mA"),
	TokenRule("1a", FieldCurrent, "1A"),
	TokenRule("1.2a", FieldCurrent, "1.2A"),
	TokenRule("2a", FieldCurrent, "2A"),
	TokenRule("3a", FieldCurrent, "3A"),

	// Packages
	TokenRule("sop-8", FieldPackage, "SOP-8"),
	TokenRule("sop-16", FieldPackage, "SOP-16"),
	TokenRule("soic-8", FieldPackage, "SOIC-8"),
	TokenRule("sot-223", FieldPackage, "SOT-223"),
	TokenRule("sot-23-5", FieldPackage, "SOT-23-5"),
	TokenRule("sot-23-6", FieldPackage, "SOT-23-6"),
	TokenRule("sot-23", FieldPackage, "SOT-23"),
	TokenRule("to-92", FieldPackage, "TO-92"),
	TokenRule("lqfp-48", FieldPackage, "LQFP-48"),
	TokenRule("qfn", FieldPackage, "QFN"),
	TokenRule("bga", FieldPackage, "BGA"),
	TokenRule("dip", FieldPackage, "DIP"),
	TokenRule("soic", FieldPackage, "SOIC"),
	TokenRule("0402", FieldPackage, "0402"),
	TokenRule("0603", FieldPackage, "0603"),

	// Categories
	SubstringRule("ldo", FieldCategory, domain.CategoryPower),
	SubstringRule("dc-dc", FieldCategory, domain.CategoryPower),
	SubstringRule("电源", FieldCategory, domain.CategoryPower),
	SubstringRule("电压", FieldCategory, domain.CategoryPower),
	SubstringRule("buck", FieldCategory, domain.CategoryPower),
	SubstringRule("boost", FieldCategory, domain.CategoryPower),
	SubstringRule("mcu", FieldCategory, domain.CategoryMCU),
	SubstringRule("单片机", FieldCategory, domain.CategoryMCU),
	SubstringRule("微控制器", FieldCategory, domain.CategoryMCU),
	SubstringRule("stm32", FieldCategory, domain.CategoryMCU),
	SubstringRule("esp32", FieldCategory, domain.CategoryMCU),
	SubstringRule("arduino", FieldCategory, domain.CategoryMCU),
	SubstringRule("传感器", FieldCategory, domain.CategorySensor),
	SubstringRule("sensor", FieldCategory, domain.CategorySensor),
	SubstringRule("温度", FieldCategory, domain.CategorySensor),
	SubstringRule("湿度", FieldCategory, domain.CategorySensor),
	SubstringRule("加速度", FieldCategory, domain.CategorySensor),
	SubstringRule("usb", FieldCategory, domain.CategoryInterface),
	SubstringRule("uart", FieldCategory, domain.CategoryInterface),
	SubstringRule("i2c", FieldCategory, domain.CategoryInterface),
	SubstringRule("spi", FieldCategory, domain.CategoryInterface),
	SubstringRule("以太网", FieldCategory, domain.CategoryInterface),
	SubstringRule("接口", FieldCategory, domain.CategoryInterface),
	SubstringRule("运放", FieldCategory, domain.CategoryAnalog),
	SubstringRule("opamp", FieldCategory, domain.CategoryAnalog),
	SubstringRule("op-amp", FieldCategory, domain.CategoryAnalog),
	SubstringRule("adc", FieldCategory, domain.CategoryAnalog),
	SubstringRule("dac", FieldCategory, domain.CategoryAnalog),
	SubstringRule("放大", FieldCategory, domain.CategoryAnalog),
}

// explicitConstraintFields maps accepted caller keys to the field they override
var explicitConstraintFields = map[string]ConstraintField{
	domain.ConstraintVoltage:  FieldVoltage,
	domain.ConstraintCurrent:  FieldCurrent,
	domain.ConstraintPackage:  FieldPackage,
	domain.ConstraintCategory: FieldCategory,
}

// Accepted shapes for explicit constraint values, matched after NFKC folding
var (
	voltageValuePattern = quantityPattern("v")
	currentValuePattern = quantityPattern("a")

	// Package families with optional pin counts ("SOT-23-5", "TO-220AB"),
	// imperial chip sizes and modules
	packageValuePattern = regexp.MustCompile(`(?i)^(?:` +
		`(?:[a-z]*sop|soic|sot|sod|to|[a-z]?qfn|[a-z]?dfn|[a-z]*qfp|[a-z]*bga|[a-z]?dip|lga|[a-z]?son|d2?pak|sm[abc]|sip|[a-z]*csp)(?:[-\s]?\d+[a-z]*)*` +
		`|0201|0402|0603|0805|1206|1210|1812|2010|2512` +
		`|module\b.*)$`)

	categoryValuePattern = regexp.MustCompile(`^[\p{L}\p{N}][\p{L}\p{N} _-]*$`)
)

// quantityPattern accepts "3.3V", "500 mA", "±5V" and ranges such as "1.8~3.6V"
func quantityPattern(unit string) *regexp.Regexp {
	number := `[±+]?\d+(?:\.\d+)?`
	scaled := `\s*[kmuμ]?` + unit
	return regexp.MustCompile(`(?i)^` + number + `(?:` + scaled + `)?(?:\s*[~/-]\s*` + number + `)?` + scaled + `$`)
}

// explicitValueValidators rejects caller values a source could not match meaningfully
var explicitValueValidators = map[ConstraintField]func(string) bool{
	FieldVoltage:  voltageValuePattern.MatchString,
	FieldCurrent:  currentValuePattern.MatchString,
	FieldPackage:  packageValuePattern.MatchString,
	FieldCategory: categoryValuePattern.MatchString,
}

// ConstraintParser turns free text into a ConstraintSet by deterministic
// pattern matching. It never fails.
type ConstraintParser struct {
	rules  []ParseRule
	logger *slog.Logger
}

// NewConstraintParser creates a parser using the built-in rule table
func NewConstraintParser(logger *slog.Logger) *ConstraintParser {
	return NewConstraintParserWithRules(defaultParseRules, logger)
}

// NewConstraintParserWithRules creates a parser with a custom ordered rule table
func NewConstraintParserWithRules(rules []ParseRule, logger *slog.Logger) *ConstraintParser {
	if logger == nil {
		logger = slog.Default()
	}
	copied := make([]ParseRule, len(rules))
	copy(copied, rules)
	return &ConstraintParser{rules: copied, logger: logger}
}

// Parse builds a ConstraintSet from query text and optional explicit
// constraints. Explicit values override parsed ones but an empty explicit
// value never erases a parsed one.
func (p *ConstraintParser) Parse(query string, explicit map[string]string) domain.ConstraintSet {
	folded := foldText(query)
	tokens := tokenizeQuery(folded)
	tokenSet := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		tokenSet[t] = true
	}

	set := domain.ConstraintSet{
		Query:          query,
		Keywords:       tokens,
		SearchKeywords: []string{},
	}

	var categoryKeyword string
	for _, rule := range p.rules {
		if fieldValue(&set, rule.Field) != "" {
			continue
		}
		if !rule.matches(folded, tokenSet) {
			continue
		}
		setField(&set, rule.Field, rule.Value)
		if rule.Field == FieldCategory {
			categoryKeyword = rule.Pattern
		}
	}

	parsedCategory := set.CategoryHint
	set.Constraints = p.applyExplicit(&set, explicit)
	if set.CategoryHint != parsedCategory {
		categoryKeyword = ""
	}

	switch {
	case categoryKeyword != "":
		set.SearchKeywords = append(set.SearchKeywords, categoryKeyword)
	case set.CategoryHint != "":
		set.SearchKeywords = append(set.SearchKeywords, set.CategoryHint)
	case set.TargetVoltage != "":
		set.SearchKeywords = append(set.SearchKeywords, set.TargetVoltage)
	case set.TargetCurrent != "":
		set.SearchKeywords = append(set.SearchKeywords, set.TargetCurrent)
	case set.TargetPackage != "":
		set.SearchKeywords = append(set.SearchKeywords, set.TargetPackage)
	}

	return set
}

// applyExplicit merges caller constraints on top of the parsed fields and
// returns the accepted constraints. Blank values are dropped; unknown keys
// and values that do not look like their field are ErrMalformedConstraint.
func (p *ConstraintParser) applyExplicit(set *domain.ConstraintSet, explicit map[string]string) map[string]string {
	if len(explicit) == 0 {
		return nil
	}

	keys := make([]string, 0, len(explicit))
	for k := range explicit {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	accepted := make(map[string]string, len(explicit))
	for _, rawKey := range keys {
		rawValue := explicit[rawKey]
		key := strings.ToLower(strings.TrimSpace(rawKey))
		value := strings.TrimSpace(norm.NFKC.String(rawValue))

		field, known := explicitConstraintFields[key]
		if !known || !isPrintable(value) {
			p.logger.Warn("Ignoring constraint",
				"key", rawKey, "value", rawValue, "error", domain.ErrMalformedConstraint)
			continue
		}
		if value == "" {
			continue
		}
		if !explicitValueValidators[field](value) {
			p.logger.Warn("Ignoring constraint",
				"key", rawKey, "value", rawValue, "error", domain.ErrMalformedConstraint)
			continue
		}
		if field == FieldCategory {
			value = strings.ToLower(value)
		}
		setField(set, field, value)
		accepted[key] = value
	}

	if len(accepted) == 0 {
		return nil
	}
	return accepted
}

func (r ParseRule) matches(folded string, tokens map[string]bool) bool {
	if r.mode == matchSubstring {
		return strings.Contains(folded, r.Pattern)
	}
	return tokens[r.Pattern]
}

// SearchTerm returns the term the aggregator should search with: the seeded
// search keywords first, then the remaining query tokens
func SearchTerm(set domain.ConstraintSet) string {
	seen := make(map[string]bool)
	var terms []string
	add := func(t string) {
		key := strings.ToLower(t)
		if t == "" || seen[key] {
			return
		}
		seen[key] = true
		terms = append(terms, t)
	}
	for _, kw := range set.SearchKeywords {
		add(kw)
	}
	for _, kw := range set.Keywords {
		add(kw)
	}
	return strings.Join(terms, " ")
}

func fieldValue(set *domain.ConstraintSet, field ConstraintField) string {
	switch field {
	case FieldVoltage:
		return set.TargetVoltage
	case FieldCurrent:
		return set.TargetCurrent
	case FieldPackage:
		return set.TargetPackage
	case FieldCategory:
		return set.CategoryHint
	}
	return ""
}

func setField(set *domain.ConstraintSet, field ConstraintField, value string) {
	switch field {
	case FieldVoltage:
		set.TargetVoltage = value
	case FieldCurrent:
		set.TargetCurrent = value
	case FieldPackage:
		set.TargetPackage = value
	case FieldCategory:
		set.CategoryHint = value
	}
}

// foldText applies NFKC normalization and lower-casing so full-width input
// such as "３．３Ｖ" matches the same rules as "3.3v"
func foldText(s string) string {
	return strings.ToLower(norm.NFKC.String(s))
}

// tokenizeQuery splits folded text into unique tokens, keeping order
func tokenizeQuery(folded string) []string {
	fields := strings.FieldsFunc(folded, func(r rune) bool {
		return unicode.IsSpace(r) || r == ',' || r == ';' || r == '/' || r == '、'
	})

	seen := make(map[string]bool, len(fields))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		t := strings.Trim(f, ".:!?()[]{}\"'")
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tokens = append(tokens, t)
	}
	return tokens
}

func isPrintable(s string) bool {
	for _, r := range s {
		if !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}
