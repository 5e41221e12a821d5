// File: snapconfig/parser.go
package snapconfig

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	json "github.com/goccy/go-json"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// Format names a supported source format.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatINI  Format = "ini"
	FormatEnv  Format = "env"
)

// DetectFormat determines the source format from a filename. Unrecognized
// suffixes default to dotenv, the least structured of the grammars.
func DetectFormat(path string) Format {
	p := strings.ToLower(path)
	switch {
	case strings.HasSuffix(p, ".json"):
		return FormatJSON
	case strings.HasSuffix(p, ".yaml"), strings.HasSuffix(p, ".yml"):
		return FormatYAML
	case strings.HasSuffix(p, ".toml"):
		return FormatTOML
	case strings.HasSuffix(p, ".ini"), strings.HasSuffix(p, ".cfg"), strings.HasSuffix(p, ".conf"):
		return FormatINI
	default:
		return FormatEnv
	}
}

// parseContent dispatches to the adapter for the given format. Every
// adapter produces exactly one tree with a set root and all object
// entries sorted ascending by raw key bytes.
func parseContent(content string, format Format) (*Tree, error) {
	switch Format(strings.ToLower(string(format))) {
	case FormatJSON:
		return parseJSON(content)
	case FormatYAML, "yml":
		return parseYAML(content)
	case FormatTOML:
		return parseTOML(content)
	case FormatINI, "cfg":
		return parseINI(content)
	case FormatEnv:
		return parseEnv(content), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// fromAny appends the generic value v (as produced by the JSON, YAML, and
// TOML decoders) to the tree bottom-up and returns its index.
func fromAny(t *Tree, v any) uint32 {
	switch val := v.(type) {
	case nil:
		return t.Append(nullNode())
	case bool:
		return t.Append(boolNode(val))
	case string:
		return t.Append(stringNode(val))
	case int:
		return t.Append(intNode(int64(val)))
	case int64:
		return t.Append(intNode(val))
	case uint64:
		if val <= uint64(1)<<63-1 {
			return t.Append(intNode(int64(val)))
		}
		return t.Append(floatNode(float64(val)))
	case float64:
		return t.Append(floatNode(val))
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return t.Append(intNode(i))
		}
		if f, err := val.Float64(); err == nil {
			return t.Append(floatNode(f))
		}
		return t.Append(stringNode(val.String()))
	case time.Time:
		return t.Append(stringNode(val.Format(time.RFC3339)))
	case []any:
		elems := make([]uint32, len(val))
		for i, item := range val {
			elems[i] = fromAny(t, item)
		}
		return t.Append(arrayNode(elems))
	case []map[string]any:
		// BurntSushi/toml decodes arrays of tables to this shape.
		elems := make([]uint32, len(val))
		for i, item := range val {
			elems[i] = fromAny(t, item)
		}
		return t.Append(arrayNode(elems))
	case map[string]any:
		// Visit keys in sorted order so identical content always produces
		// an identical tree, not just an equivalent one.
		keys := make([]string, 0, len(val))
		for key := range val {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		pairs := make([]Pair, len(keys))
		for i, key := range keys {
			pairs[i] = Pair{Key: key, Child: fromAny(t, val[key])}
		}
		return t.Append(objectNode(pairs))
	case map[any]any:
		// yaml.v3 decodes a mapping to this shape when it has any
		// non-string key. Keep the string-keyed entries, drop the rest.
		items := make(map[string]any, len(val))
		keys := make([]string, 0, len(val))
		for key, item := range val {
			if s, ok := key.(string); ok {
				items[s] = item
				keys = append(keys, s)
			}
		}
		sort.Strings(keys)
		pairs := make([]Pair, len(keys))
		for i, key := range keys {
			pairs[i] = Pair{Key: key, Child: fromAny(t, items[key])}
		}
		return t.Append(objectNode(pairs))
	default:
		return t.Append(nullNode())
	}
}

func parseJSON(content string) (*Tree, error) {
	decoder := json.NewDecoder(strings.NewReader(content))
	decoder.UseNumber() // Preserve number precision
	var v any
	if err := decoder.Decode(&v); err != nil {
		return nil, fmt.Errorf("failed to parse JSON content: %w", err)
	}
	t := NewTree()
	t.SetRoot(fromAny(t, v))
	return t, nil
}

func parseYAML(content string) (*Tree, error) {
	var v any
	if err := yaml.Unmarshal([]byte(content), &v); err != nil {
		return nil, fmt.Errorf("failed to parse YAML content: %w", err)
	}
	t := NewTree()
	t.SetRoot(fromAny(t, v))
	return t, nil
}

func parseTOML(content string) (*Tree, error) {
	v := make(map[string]any)
	if err := toml.Unmarshal([]byte(content), &v); err != nil {
		return nil, fmt.Errorf("failed to parse TOML content: %w", err)
	}
	t := NewTree()
	t.SetRoot(fromAny(t, v))
	return t, nil
}

func parseINI(content string) (*Tree, error) {
	file, err := ini.Load([]byte(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse INI content: %w", err)
	}

	t := NewTree()
	sections := make([]Pair, 0, len(file.Sections()))
	for _, section := range file.Sections() {
		name := section.Name()
		if name == ini.DefaultSection {
			if len(section.Keys()) == 0 {
				continue
			}
			name = "default"
		}
		pairs := make([]Pair, 0, len(section.Keys()))
		for _, key := range section.Keys() {
			pairs = append(pairs, Pair{Key: key.Name(), Child: coerceScalar(t, key.Value())})
		}
		sortPairs(pairs)
		sections = append(sections, Pair{Key: name, Child: t.Append(objectNode(pairs))})
	}
	sortPairs(sections)
	t.SetRoot(t.Append(objectNode(sections)))
	return t, nil
}

// parseEnv parses dotenv-style content: one KEY=VALUE per line, blank
// lines and # comments skipped, an optional leading "export ", and one
// layer of matching single or double quotes stripped from the value
// before scalar coercion. Lines without '=' are ignored. Never fails.
func parseEnv(content string) *Tree {
	t := NewTree()
	pairs := make([]Pair, 0, 16)

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		eq := strings.Index(line, "=")
		if eq < 0 {
			continue
		}
		key := strings.TrimSpace(line[:eq])
		value := strings.TrimSpace(line[eq+1:])

		if len(value) >= 2 {
			first, last := value[0], value[len(value)-1]
			if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		pairs = append(pairs, Pair{Key: key, Child: coerceScalar(t, value)})
	}

	sortPairs(pairs)
	t.SetRoot(t.Append(objectNode(pairs)))
	return t
}

// coerceScalar appends the typed interpretation of a raw string value
// from an untyped format (INI, dotenv) and returns its index.
func coerceScalar(t *Tree, value string) uint32 {
	switch {
	case value == "":
		return t.Append(stringNode(""))
	case strings.EqualFold(value, "true"):
		return t.Append(boolNode(true))
	case strings.EqualFold(value, "false"):
		return t.Append(boolNode(false))
	case strings.EqualFold(value, "null"), strings.EqualFold(value, "none"), strings.EqualFold(value, "nil"):
		return t.Append(nullNode())
	}
	if i, err := strconv.ParseInt(value, 10, 64); err == nil {
		return t.Append(intNode(i))
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return t.Append(floatNode(f))
	}
	return t.Append(stringNode(value))
}
