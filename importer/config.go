package importer

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"

	"github.com/arloliu/tugraph/types"
)

// Data formats accepted in an import configuration.
const (
	FormatCSV  = "CSV"
	FormatJSON = "JSON"
)

// FileSpec describes one data file to import.
//
// A FileSpec without SrcID and DstID is a vertex file; one with both is an
// edge file.
type FileSpec struct {
	Path    string   `json:"path,omitempty"`
	Format  string   `json:"format"`
	Label   string   `json:"label"`
	Header  int      `json:"header"`
	Columns []string `json:"columns"`
	SrcID   string   `json:"SRC_ID,omitempty"`
	DstID   string   `json:"DST_ID,omitempty"`
}

// IsVertex reports whether the file holds vertices.
func (f FileSpec) IsVertex() bool {
	return f.SrcID == "" && f.DstID == ""
}

// Descriptor returns the base64-ready JSON descriptor the server expects for
// this file: the spec without its path, wrapped in a one-element "files" array.
//
// Parameters:
//   - header: The header line count to advertise for this package
//
// Returns:
//   - []byte: The JSON descriptor
func (f FileSpec) Descriptor(header int) []byte {
	desc := f
	desc.Path = ""
	desc.Header = header

	// FileSpec contains only strings, ints and a string slice.
	data, _ := json.Marshal(struct {
		Files []FileSpec `json:"files"`
	}{Files: []FileSpec{desc}})

	return data
}

// rawFileSpec keeps pointer fields so that missing keys can be told apart
// from zero values.
type rawFileSpec struct {
	Path    *string   `json:"path"`
	Format  *string   `json:"format"`
	Label   *string   `json:"label"`
	Header  int       `json:"header"`
	Columns *[]string `json:"columns"`
	SrcID   *string   `json:"SRC_ID"`
	DstID   *string   `json:"DST_ID"`
}

type rawConfig struct {
	Files *[]rawFileSpec `json:"files"`
}

// LoadConfig reads and parses an import configuration file.
//
// Parameters:
//   - path: Path to the JSON configuration file
//
// Returns:
//   - []FileSpec: One spec per data file, vertex files first
//   - error: InputError if the file is empty, unreadable or invalid
func LoadConfig(path string) ([]FileSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &types.InputError{Reason: "cannot read configuration file " + path, Cause: err}
	}
	if len(data) == 0 {
		return nil, types.NewInputError("illegal configuration file " + path)
	}

	return ParseConfig(data)
}

// ParseConfig parses an import configuration.
//
// Every entry needs "path", "format", "label" and "columns". A path naming a
// directory expands to the regular files inside it, in name order. The result
// is stably ordered with vertex files before edge files.
//
// Parameters:
//   - data: The JSON configuration
//
// Returns:
//   - []FileSpec: One spec per data file
//   - error: InputError describing the first problem found
func ParseConfig(data []byte) ([]FileSpec, error) {
	files, err := decodeFiles(data)
	if err != nil {
		return nil, err
	}

	var specs []FileSpec
	for _, raw := range files {
		if raw.Path == nil {
			return nil, types.NewInputError(`missing "path" or "format" or "label" or "columns" in configuration`)
		}
		base, err := raw.validate()
		if err != nil {
			return nil, err
		}

		paths, err := expandPath(*raw.Path)
		if err != nil {
			return nil, err
		}
		for _, p := range paths {
			spec := base
			spec.Path = p
			specs = append(specs, spec)
		}
	}

	sort.SliceStable(specs, func(i, j int) bool {
		return specs[i].IsVertex() && !specs[j].IsVertex()
	})

	return specs, nil
}

// ValidateDescriptor checks a descriptor supplied together with in-memory
// data. It follows the configuration rules except that "path" is not needed.
//
// Parameters:
//   - desc: The JSON descriptor
//
// Returns:
//   - error: InputError describing the first problem found
func ValidateDescriptor(desc []byte) error {
	files, err := decodeFiles(desc)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return types.NewInputError(`empty "files" in descriptor`)
	}
	for _, raw := range files {
		if _, err := raw.validate(); err != nil {
			return err
		}
	}

	return nil
}

func decodeFiles(data []byte) ([]rawFileSpec, error) {
	var conf rawConfig
	if err := json.Unmarshal(data, &conf); err != nil {
		return nil, &types.InputError{Reason: "illegal configuration", Cause: err}
	}
	if conf.Files == nil {
		return nil, types.NewInputError(`missing "files" in configuration`)
	}

	return *conf.Files, nil
}

func (r rawFileSpec) validate() (FileSpec, error) {
	if r.Format == nil || r.Label == nil || r.Columns == nil {
		return FileSpec{}, types.NewInputError(`missing "path" or "format" or "label" or "columns" in configuration`)
	}
	if *r.Format != FormatCSV && *r.Format != FormatJSON {
		return FileSpec{}, types.NewInputError(`"format" value error: ` + *r.Format + " should be CSV or JSON")
	}
	if (r.SrcID == nil) != (r.DstID == nil) {
		return FileSpec{}, types.NewInputError(`missing "SRC_ID" or "DST_ID"`)
	}
	if r.Header < 0 {
		return FileSpec{}, types.NewInputError(`"header" must not be negative`)
	}

	spec := FileSpec{
		Format: *r.Format,
		Label:  *r.Label,
		Header: r.Header,
	}
	if r.SrcID != nil {
		if *r.SrcID == "" || *r.DstID == "" {
			return FileSpec{}, types.NewInputError(`empty "SRC_ID" or "DST_ID"`)
		}
		spec.SrcID = *r.SrcID
		spec.DstID = *r.DstID
	}

	spec.Columns = make([]string, 0, len(*r.Columns))
	for _, column := range *r.Columns {
		if column == "" {
			return FileSpec{}, types.NewInputError("found empty column for label " + *r.Label)
		}
		spec.Columns = append(spec.Columns, column)
	}

	return spec, nil
}

func expandPath(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, types.NewInputError("path " + path + " does not exist")
		}

		return nil, &types.InputError{Reason: "cannot stat " + path, Cause: err}
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, &types.InputError{Reason: "cannot list " + path, Cause: err}
	}

	// os.ReadDir returns entries sorted by name.
	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			paths = append(paths, filepath.Join(path, entry.Name()))
		}
	}

	return paths, nil
}

// LoadSchema reads a schema file and returns its normalized JSON content.
//
// Parameters:
//   - path: Path to the schema file
//
// Returns:
//   - []byte: JSON of the form {"schema": [...]}
//   - error: InputError if the file is empty, unreadable or has no "schema" key
func LoadSchema(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &types.InputError{Reason: "cannot read schema file " + path, Cause: err}
	}

	return NormalizeSchema(data)
}

// NormalizeSchema validates schema content and re-serializes it with only the
// "schema" key.
func NormalizeSchema(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, types.NewInputError("empty schema")
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &types.InputError{Reason: "illegal schema", Cause: err}
	}

	schema, ok := doc["schema"]
	if !ok {
		return nil, types.NewInputError(`missing "schema" key`)
	}

	out, err := json.Marshal(map[string]json.RawMessage{"schema": schema})
	if err != nil {
		return nil, &types.InputError{Reason: "illegal schema", Cause: err}
	}

	return out, nil
}
