package utils

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

// StripCodeFence removes a surrounding ```json / ``` block that models like to
// wrap structured output in.
func StripCodeFence(input string) string {
	cleaned := strings.TrimSpace(input)
	if !strings.HasPrefix(cleaned, "```") {
		return cleaned
	}
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```JSON")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	return strings.TrimSpace(cleaned)
}

// ExtractJSONObject returns the outermost {...} span of the input, or the input
// unchanged when no braces are present. Models sometimes add prose around the object.
func ExtractJSONObject(input string) string {
	start := strings.Index(input, "{")
	end := strings.LastIndex(input, "}")
	if start < 0 || end <= start {
		return input
	}
	return input[start : end+1]
}

// RepairJSON attempts to fix common JSON errors from LLM outputs
// (unquoted keys, single quotes, trailing commas, unclosed objects).
func RepairJSON(malformedJSON string) (string, error) {
	repaired, err := jsonrepair.RepairJSON(malformedJSON)
	if err != nil {
		return "", fmt.Errorf("JSON_REPAIR_FAILED: %v", err)
	}
	return repaired, nil
}

// ParseHJSON parses Human-friendly JSON (Hjson) and returns standard JSON.
func ParseHJSON(hjsonData string) (string, error) {
	var result interface{}
	if err := hjson.Unmarshal([]byte(hjsonData), &result); err != nil {
		return "", fmt.Errorf("HJSON_PARSE_ERROR: %v", err)
	}

	jsonBytes, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("JSON_MARSHAL_ERROR: %v", err)
	}
	return string(jsonBytes), nil
}

// SmartParse tries multiple parsing strategies to decode an LLM reply into target.
// Order of attempts:
// 1. Standard JSON parse (after fence stripping)
// 2. JSON repair
// 3. Hjson parse (most lenient)
//
// Input with no object delimiters at all is rejected up front; the repair
// library would otherwise happily turn plain prose into a JSON string.
func SmartParse(input string, target interface{}) (string, error) {
	candidate := ExtractJSONObject(StripCodeFence(input))
	if !strings.HasPrefix(candidate, "{") {
		return "", fmt.Errorf("SMART_PARSE_FAILED: no JSON object in input")
	}

	if err := json.Unmarshal([]byte(candidate), target); err == nil {
		return candidate, nil
	}

	if repaired, err := RepairJSON(candidate); err == nil {
		if err := json.Unmarshal([]byte(repaired), target); err == nil {
			return repaired, nil
		}
	}

	if converted, err := ParseHJSON(candidate); err == nil {
		if err := json.Unmarshal([]byte(converted), target); err == nil {
			return converted, nil
		}
	}

	return "", fmt.Errorf("SMART_PARSE_FAILED: all parsing strategies failed for input")
}
