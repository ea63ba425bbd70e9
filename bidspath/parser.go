package bidspath

import (
	"strings"

	"github.com/hupe1980/bidsgo/entity"
)

// Mode selects how unregistered entity keys are treated.
type Mode int

const (
	// ModeStrict recognizes only dictionary entities. Tokens with unknown
	// keys become parts, and structurally invalid names fail parsing.
	ModeStrict Mode = iota

	// ModePermissive accepts any key-value token with a non-empty key and a
	// value free of underscores. Unknown keys keep their literal name.
	// Parsing never fails in this mode.
	ModePermissive
)

// ValidationError indicates a path that does not satisfy the strict BIDS
// naming template. The walker downgrades such files to parts-only records.
type ValidationError struct {
	Path string
}

func (e *ValidationError) Error() string {
	return "'" + e.Path + "' is not a valid bids path"
}

// Parser turns dataset-relative paths into ParsedPath records.
type Parser struct {
	mode Mode
}

// NewParser returns a parser for the given mode.
func NewParser(mode Mode) *Parser {
	return &Parser{mode: mode}
}

// Mode returns the parser's mode.
func (pr *Parser) Mode() Mode { return pr.mode }

// splitToken splits a key-value token at the first dash. A token without a
// dash, or with an empty key, is not a key-value token.
func splitToken(s string) (key, value string, ok bool) {
	i := strings.IndexByte(s, '-')
	if i <= 0 {
		return "", "", false
	}
	return s[:i], s[i+1:], true
}

// PartsOnly returns the degraded record for a path that failed strict
// parsing: every segment becomes a part.
func PartsOnly(rel string) *ParsedPath {
	rel = strings.Trim(rel, "/")
	return &ParsedPath{
		DatasetID: -1,
		Rel:       rel,
		Parts:     strings.Split(rel, "/"),
	}
}

// Parse parses a dataset-relative, slash-separated path.
func (pr *Parser) Parse(rel string) (*ParsedPath, error) {
	rel = strings.Trim(rel, "/")
	p := &ParsedPath{DatasetID: -1, Rel: rel}

	segs := strings.Split(rel, "/")
	name := segs[len(segs)-1]
	dirs := segs[:len(segs)-1]

	dirEnts, err := pr.parseDirs(p, dirs)
	if err != nil {
		return nil, err
	}
	fileEnts, err := pr.parseName(p, name)
	if err != nil {
		return nil, err
	}

	// Directory entities take precedence in insertion order, but their
	// values must agree with any filename counterpart.
	fileVals := make(map[string]string, len(fileEnts))
	for _, e := range fileEnts {
		if _, ok := fileVals[e.Key]; !ok {
			fileVals[e.Key] = e.Value
		}
	}
	for _, e := range dirEnts {
		if fv, ok := fileVals[e.Key]; ok && fv != e.Value {
			if pr.mode == ModeStrict {
				return nil, &InconsistentEntityError{Entity: e.Key, DirValue: e.Value, FileValue: fv}
			}
			// Permissive: the filename wins, the directory token degrades.
			p.Parts = append(p.Parts, e.token)
			continue
		}
		p.addEntity(e.Key, e.Value)
	}
	for _, e := range fileEnts {
		p.addEntity(e.Key, e.Value)
	}
	return p, nil
}

// dirEntity is an entity recovered from a directory segment, keeping the
// literal token for degradation to a part on conflict.
type dirEntity struct {
	Entity
	token string
}

func (pr *Parser) parseDirs(p *ParsedPath, dirs []string) ([]dirEntity, error) {
	var ents []dirEntity
	prevWasEntity := false
	for i, seg := range dirs {
		key, val, isKV := splitToken(seg)
		if isKV {
			switch {
			case val == "" || strings.Contains(val, "_"):
				if pr.mode == ModeStrict {
					return nil, &InvalidEntityValueError{Token: seg}
				}
				p.Parts = append(p.Parts, seg)
				prevWasEntity = false
			default:
				canon, known := entity.Canonical(key)
				if !known {
					if pr.mode == ModeStrict {
						p.Parts = append(p.Parts, seg)
						prevWasEntity = false
						continue
					}
					canon = key
				}
				ents = append(ents, dirEntity{Entity: Entity{Key: canon, Value: val}, token: seg})
				prevWasEntity = true
			}
			continue
		}

		penultimate := i == len(dirs)-1
		switch {
		case penultimate && entity.IsDatatype(seg):
			p.Datatype = seg
		case penultimate && pr.mode == ModePermissive && prevWasEntity:
			// Unregistered datatype directory directly below the entity
			// directories, e.g. sub-01/megacoil/.
			p.Datatype = seg
		default:
			p.Parts = append(p.Parts, seg)
		}
		prevWasEntity = false
	}
	return ents, nil
}

func (pr *Parser) parseName(p *ParsedPath, name string) ([]Entity, error) {
	tokens := strings.Split(name, "_")
	var ents []Entity

	for _, tok := range tokens[:len(tokens)-1] {
		key, val, isKV := splitToken(tok)
		if !isKV {
			p.Parts = append(p.Parts, tok)
			continue
		}
		if val == "" {
			if pr.mode == ModeStrict {
				return nil, &InvalidEntityValueError{Token: tok}
			}
			p.Parts = append(p.Parts, tok)
			continue
		}
		canon, known := entity.Canonical(key)
		if !known {
			if pr.mode == ModeStrict {
				p.Parts = append(p.Parts, tok)
				continue
			}
			canon = key
		}
		ents = append(ents, Entity{Key: canon, Value: val})
	}

	// The extension spans from the first dot of the trailing token to the
	// end of the string, so multipart extensions stay whole.
	last := tokens[len(tokens)-1]
	stem := last
	if i := strings.IndexByte(last, '.'); i >= 0 {
		p.Extension = last[i:]
		stem = last[:i]
	}
	if stem == "" {
		return ents, nil
	}

	if key, val, isKV := splitToken(stem); isKV {
		if pr.mode == ModeStrict {
			// Strict names must end in a suffix.
			return nil, &ValidationError{Path: p.Rel}
		}
		if val == "" {
			p.Parts = append(p.Parts, stem)
			return ents, nil
		}
		canon, known := entity.Canonical(key)
		if !known {
			canon = key
		}
		ents = append(ents, Entity{Key: canon, Value: val})
		return ents, nil
	}
	p.Suffix = stem
	return ents, nil
}
