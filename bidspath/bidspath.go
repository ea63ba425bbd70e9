// Package bidspath parses filesystem paths into structured BIDS components.
//
// A parsed path carries an ordered entity map (insertion order preserved),
// the recovered datatype, suffix and extension, and the path segments that
// could not be interpreted as entity-value tokens.
package bidspath

import (
	"path"
	"strings"

	"github.com/hupe1980/bidsgo/entity"
)

// Entity is a single key-value token. Key is the canonical long name when
// the entity is registered in the dictionary, the literal key otherwise.
type Entity struct {
	Key   string
	Value string
}

// ParsedPath is the structured form of one dataset-relative path.
type ParsedPath struct {
	// DatasetID identifies the owning dataset within a layout. It is -1 for
	// paths parsed directly by a Parser, outside any layout.
	DatasetID int

	// Rel is the dataset-relative path, slash-separated.
	Rel string

	// Datatype is the BIDS datatype directory label, if recognized.
	Datatype string

	// Suffix is the trailing token of the filename before the extension.
	Suffix string

	// Extension includes the leading dot. Multipart extensions such as
	// .nii.gz are kept whole.
	Extension string

	// Parts lists segments and tokens that parsed as neither entity-value
	// tokens nor datatype/suffix.
	Parts []string

	entities []Entity
	byKey    map[string]int
}

// Entities returns the entity tokens in insertion order.
func (p *ParsedPath) Entities() []Entity {
	out := make([]Entity, len(p.entities))
	copy(out, p.entities)
	return out
}

// Entity returns the value of the named entity. The name must be canonical
// (long form for dictionary entities).
func (p *ParsedPath) Entity(key string) (string, bool) {
	i, ok := p.byKey[key]
	if !ok {
		return "", false
	}
	return p.entities[i].Value, true
}

// FullEntities returns all queryable attributes of the path: the entity
// tokens plus datatype, suffix and extension when present.
func (p *ParsedPath) FullEntities() map[string]string {
	out := make(map[string]string, len(p.entities)+3)
	for _, e := range p.entities {
		out[e.Key] = e.Value
	}
	if p.Datatype != "" {
		out["datatype"] = p.Datatype
	}
	if p.Suffix != "" {
		out["suffix"] = p.Suffix
	}
	if p.Extension != "" {
		out["extension"] = p.Extension
	}
	return out
}

// Name reconstructs the filename from the parsed components: entity tokens
// in insertion order using short names, then suffix and extension.
func (p *ParsedPath) Name() string {
	var sb strings.Builder
	for _, e := range p.entities {
		key := e.Key
		if short, err := entity.LongToShort(e.Key); err == nil {
			key = short
		}
		if sb.Len() > 0 {
			sb.WriteByte('_')
		}
		sb.WriteString(key)
		sb.WriteByte('-')
		sb.WriteString(e.Value)
	}
	if p.Suffix != "" {
		if sb.Len() > 0 {
			sb.WriteByte('_')
		}
		sb.WriteString(p.Suffix)
	}
	sb.WriteString(p.Extension)
	return sb.String()
}

// Rebuild reconstructs the dataset-relative path from the parsed components:
// directory-permitted entities in insertion order, then the datatype
// directory, then the filename.
func (p *ParsedPath) Rebuild() string {
	var dirs []string
	for _, e := range p.entities {
		spec, ok := entity.Lookup(e.Key)
		if ok && spec.InDirectory {
			dirs = append(dirs, spec.Short+"-"+e.Value)
		}
	}
	if p.Datatype != "" {
		dirs = append(dirs, p.Datatype)
	}
	dirs = append(dirs, p.Name())
	return path.Join(dirs...)
}

// NewParsedPath returns an empty parsed record for rel. Used when
// rehydrating an index from its persisted form.
func NewParsedPath(rel string) *ParsedPath {
	return &ParsedPath{DatasetID: -1, Rel: rel}
}

// AddEntity appends an entity token. The first value for a key wins.
func (p *ParsedPath) AddEntity(key, value string) {
	p.addEntity(key, value)
}

func (p *ParsedPath) addEntity(key, value string) {
	if p.byKey == nil {
		p.byKey = make(map[string]int)
	}
	if _, ok := p.byKey[key]; ok {
		return
	}
	p.byKey[key] = len(p.entities)
	p.entities = append(p.entities, Entity{Key: key, Value: value})
}
