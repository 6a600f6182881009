package aiclient

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Pre-compiled regexes for repairing the JSON scoring/review payloads
// models return for groupScoreResponse, BatchedScoreResponse, and
// FinalReviewResponse. Group summaries and dossier snippets routinely
// embed file paths and code, which is what makes Windows-style paths and
// regex literals inside string values the dominant failure mode here.
var (
	// Fix missing comma after value before new key: "value" "key" -> "value", "key"
	missingCommaBeforeKeyRegex = regexp.MustCompile(`(")\s*\n\s*("[\w][^"]*"\s*:)`)

	// Fix missing comma after number/bool/null before quote (new key)
	missingCommaAfterValueRegex = regexp.MustCompile(`(\d|true|false|null)\s*\n\s*("[\w][^"]*"\s*:)`)

	// Fix missing comma after closing brace/bracket before quote
	missingCommaAfterBraceRegex = regexp.MustCompile(`([}\]])\s*\n?\s*("[\w])`)

	// Fix trailing commas before closing brace/bracket
	trailingCommaRegex = regexp.MustCompile(`,\s*([}\]])`)

	// Fix single quotes for object keys: {'key': -> {"key":
	singleQuoteKeyRegex = regexp.MustCompile(`([{,]\s*)'(\w+)'(\s*:)`)

	// Fix single quotes for string values: : 'value' -> : "value"
	singleQuoteValueRegex = regexp.MustCompile(`(:\s*)'((?:[^'\\]|\\.)*)'(\s*[,}\]])`)

	// Fix unquoted string values: {"key": value} -> {"key": "value"}
	unquotedValueRegex = regexp.MustCompile(`(.?)(:\s*)([a-zA-Z][a-zA-Z0-9_-]*)(\s*[,}\]])`)

	// Fix unquoted semver values: {"stack_version": ^1.0.0} -> {"stack_version": "^1.0.0"}
	unquotedSemverRegex = regexp.MustCompile(`(:\s*)((?:>=|<=|[\^~><*])[\d.a-zA-Z_-]*)(\s*[,}\]])`)

	// Fix malformed score literals with a space after the decimal point,
	// e.g. "complexity": 0. 9 -> 0.9, which models emit for axis scores
	// surprisingly often.
	malformedNumericRegex = regexp.MustCompile(`(\d)\.\s+(\d)`)
)

// ExtractAndParseJSON extracts JSON from a scoring/review chat response and
// unmarshals it into T (groupScoreResponse, BatchedScoreResponse,
// FinalReviewResponse, or a caller-supplied map for tests). Uses
// stream-based decoding to ignore trailing commentary models sometimes
// append after the JSON object.
func ExtractAndParseJSON[T any](response string) (T, error) {
	var result T

	cleaned := cleanModelResponse(response)
	if cleaned == "" {
		return result, fmt.Errorf("no JSON found in response")
	}

	idx := strings.IndexAny(cleaned, "{[")
	if idx == -1 {
		var asString string
		if err := json.Unmarshal([]byte(cleaned), &asString); err == nil {
			return ExtractAndParseJSON[T](asString)
		}
		return result, fmt.Errorf("no JSON start ({ or [) found")
	}

	jsonPart := cleaned[idx:]
	decoder := json.NewDecoder(strings.NewReader(jsonPart))
	if err := decoder.Decode(&result); err != nil {
		repaired := repairJSON(jsonPart)
		if repaired != jsonPart {
			dec2 := json.NewDecoder(strings.NewReader(repaired))
			if err2 := dec2.Decode(&result); err2 == nil {
				return result, nil
			}
		}

		if strings.Contains(jsonPart, "\\") {
			unescaped := strings.ReplaceAll(jsonPart, "\\\"", "\"")
			unescaped = strings.ReplaceAll(unescaped, "\\n", "\n")
			dec3 := json.NewDecoder(strings.NewReader(unescaped))
			if err3 := dec3.Decode(&result); err3 == nil {
				return result, nil
			}
			repairedUnescaped := repairJSON(unescaped)
			dec4 := json.NewDecoder(strings.NewReader(repairedUnescaped))
			if err4 := dec4.Decode(&result); err4 == nil {
				return result, nil
			}
		}
		return result, fmt.Errorf("parse JSON: %w", err)
	}

	return result, nil
}

// repairJSON attempts to fix the JSON syntax errors models most commonly
// produce when scoring code chunks: control characters and path/regex
// escapes leaking into group_summary/rationale strings, missing or
// trailing commas between score fields, single-quoted values, and
// space-split decimal axis scores.
func repairJSON(input string) string {
	result := input

	// Must run before the other repairs: raw control characters and
	// invalid escapes (file paths, regex snippets in summaries) break the
	// decoder before comma/quote repairs ever get a chance to apply.
	result = sanitizeControlChars(result)

	// Axis scores occasionally arrive as "0. 9" instead of "0.9".
	result = malformedNumericRegex.ReplaceAllString(result, `$1.$2`)

	result = missingCommaBeforeKeyRegex.ReplaceAllString(result, `$1, $2`)
	result = missingCommaAfterValueRegex.ReplaceAllString(result, `$1, $2`)
	result = missingCommaAfterBraceRegex.ReplaceAllString(result, `$1, $2`)
	result = trailingCommaRegex.ReplaceAllString(result, `$1`)
	result = singleQuoteKeyRegex.ReplaceAllString(result, `$1"$2"$3`)

	result = singleQuoteValueRegex.ReplaceAllStringFunc(result, func(match string) string {
		parts := singleQuoteValueRegex.FindStringSubmatch(match)
		if len(parts) != 4 {
			return match
		}
		value := parts[2]
		value = strings.ReplaceAll(value, `\'`, `'`)
		value = strings.ReplaceAll(value, `"`, `\"`)
		return parts[1] + `"` + value + `"` + parts[3]
	})

	result = unquotedValueRegex.ReplaceAllStringFunc(result, func(match string) string {
		parts := unquotedValueRegex.FindStringSubmatch(match)
		if len(parts) != 5 {
			return match
		}
		precedingChar := parts[1]
		colonPart := parts[2]
		value := parts[3]
		suffix := parts[4]

		if value == "true" || value == "false" || value == "null" {
			return match
		}
		if precedingChar == "\\" || precedingChar == "\"" {
			return match
		}
		return precedingChar + colonPart + `"` + value + `"` + suffix
	})

	result = unquotedSemverRegex.ReplaceAllString(result, `$1"$2"$3`)

	// Last: close out a response truncated mid-string by the provider's
	// max-token cutoff.
	result = fixTruncatedJSON(result)

	return result
}

// sanitizeControlChars escapes literal control characters and invalid
// escape sequences inside JSON strings. Group summaries and dossier
// snippets routinely contain raw tabs/newlines and regex fragments like
// \s, \d, \w, none of which are valid unescaped inside a JSON string.
func sanitizeControlChars(input string) string {
	var result strings.Builder
	result.Grow(len(input))

	inString := false
	escaped := false

	for i := 0; i < len(input); i++ {
		c := input[i]

		if escaped {
			switch c {
			case '"', '\\', '/', 'b', 'f', 'n', 'r', 't':
				result.WriteByte(c)
			case 'u':
				if i+4 < len(input) && isValidHexSequence(input[i+1:i+5]) {
					result.WriteByte(c)
				} else {
					result.WriteByte('\\')
					result.WriteByte(c)
				}
			default:
				result.WriteByte('\\')
				result.WriteByte(c)
			}
			escaped = false
			continue
		}

		if c == '\\' && inString {
			result.WriteByte(c)
			escaped = true
			continue
		}

		if c == '"' {
			inString = !inString
			result.WriteByte(c)
			continue
		}

		if inString {
			switch c {
			case '\t':
				result.WriteString(`\t`)
			case '\n':
				result.WriteString(`\n`)
			case '\r':
				result.WriteString(`\r`)
			case '\b':
				result.WriteString(`\b`)
			case '\f':
				result.WriteString(`\f`)
			default:
				if c < 0x20 {
					result.WriteString(fmt.Sprintf(`\u%04x`, c))
				} else {
					result.WriteByte(c)
				}
			}
		} else {
			result.WriteByte(c)
		}
	}

	return result.String()
}

func isValidHexSequence(s string) bool {
	if len(s) < 4 {
		return false
	}
	for i := 0; i < 4; i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}

// fixTruncatedJSON closes unterminated strings/objects/arrays left by a
// response cut off at the provider's max-token limit.
func fixTruncatedJSON(input string) string {
	quoteCount := 0
	escaped := false
	for _, c := range input {
		if escaped {
			escaped = false
			continue
		}
		if c == '\\' {
			escaped = true
			continue
		}
		if c == '"' {
			quoteCount++
		}
	}

	if quoteCount%2 != 0 {
		input = input + `"`
	}

	openBraces := strings.Count(input, "{") - strings.Count(input, "}")
	openBrackets := strings.Count(input, "[") - strings.Count(input, "]")

	for i := 0; i < openBrackets; i++ {
		input = input + "]"
	}
	for i := 0; i < openBraces; i++ {
		input = input + "}"
	}

	return input
}

// cleanModelResponse strips markdown code fences models wrap JSON in
// despite being asked for JSON-only output.
func cleanModelResponse(response string) string {
	response = strings.TrimSpace(response)

	if strings.HasPrefix(response, "```json") {
		response = strings.TrimPrefix(response, "```json")
	} else if strings.HasPrefix(response, "```") {
		response = strings.TrimPrefix(response, "```")
	}
	response = strings.TrimSuffix(response, "```")

	return strings.TrimSpace(response)
}
