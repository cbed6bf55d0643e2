package schema

import (
	"github.com/RGU-Computing/clood/internal/expr"
	"github.com/RGU-Computing/clood/internal/model"
	appErr "github.com/RGU-Computing/clood/internal/pkg/errors"
	"github.com/RGU-Computing/clood/internal/similarity"
)

const dateFormats = "dd/MM/yyyy||dd/MM/yyyy'T'HH:mm:ss.SSSZ||dd-MM-yyyy||dd-MM-yyyy HH:mm:ss||" +
	"dd-MM-yyyy'T'HH:mm:ss.SSSZ||yyyy-MM-dd||yyyy-MM-dd HH:mm:ss||yyyy-MM-dd'T'HH:mm:ss.SSSZ||epoch_millis"

const defaultCosineDimension = 512

func typed(t string) map[string]any {
	return map[string]any{"type": t}
}

func knnVector(dim int) map[string]any {
	return map[string]any{"type": "knn_vector", "dimension": dim}
}

// Dimensions resolves the vector size an embedding model produces. A nil
// Dimensions uses each model's default size.
type Dimensions func(model.EmbeddingModel) int

func (d Dimensions) of(em model.EmbeddingModel) int {
	if d != nil {
		if n := d(em); n > 0 {
			return n
		}
	}
	return em.DefaultDimension()
}

// Mapping is the index mapping of a project's casebase.
func Mapping(p *model.Project, dims Dimensions) map[string]any {
	props := make(map[string]any, len(p.Attributes)+1)
	for i := range p.Attributes {
		attr := &p.Attributes[i]
		props[attr.Name] = FieldMapping(attr, dims)
	}
	props[model.HashField] = typed("keyword")
	return map[string]any{"properties": props}
}

// FieldMapping returns the field shape the attribute's measure reads.
func FieldMapping(attr *model.AttributeSpec, dims Dimensions) map[string]any {
	kind := similarity.Parse(attr.Similarity)
	if em, ok := kind.EmbeddingModel(); ok {
		if kind == similarity.KindArraySBERT {
			return map[string]any{"properties": map[string]any{
				"name": typed("keyword"),
				"rep": map[string]any{
					"type":       "nested",
					"properties": map[string]any{"rep": knnVector(dims.of(em))},
				},
			}}
		}
		return map[string]any{"properties": map[string]any{
			"name": typed("keyword"),
			"rep":  knnVector(dims.of(em)),
		}}
	}
	switch attr.Type.Normalize() {
	case model.TypeArray:
		if kind == similarity.KindCosine {
			return knnVector(CosineDimension(attr))
		}
		return typed("keyword")
	case model.TypeString:
		if kind == similarity.KindEqual || kind == similarity.KindEqualIgnoreCase {
			return typed("keyword")
		}
		return typed("text")
	case model.TypeText:
		return typed("text")
	case model.TypeBoolean:
		return typed("boolean")
	case model.TypeInteger:
		return typed("integer")
	case model.TypeFloat:
		return typed("float")
	case model.TypeDate:
		return map[string]any{"type": "date", "format": dateFormats}
	case model.TypeLocation:
		return typed("geo_point")
	case model.TypeObject:
		return map[string]any{"type": "object", "enabled": false}
	}
	return typed("keyword")
}

func CosineDimension(attr *model.AttributeSpec) int {
	if attr.Options != nil && attr.Options.Dimension > 0 {
		return attr.Options.Dimension
	}
	return defaultCosineDimension
}

// Validate checks the stored shape of vectorised and vector-array values.
func Validate(p *model.Project, c model.Case, dims Dimensions) error {
	for i := range p.Attributes {
		attr := &p.Attributes[i]
		v, ok := c[attr.Name]
		if !ok || v == nil {
			continue
		}
		kind := similarity.Parse(attr.Similarity)
		if em, ok := kind.EmbeddingModel(); ok {
			dim := dims.of(em)
			if !validVectorValue(v, dim, kind == similarity.KindArraySBERT) {
				return appErr.InvalidVectorArray(attr.Name, dim)
			}
			continue
		}
		if attr.Type.Normalize() == model.TypeArray && kind == similarity.KindCosine {
			dim := CosineDimension(attr)
			list, ok := v.([]any)
			if !ok || len(list) != dim {
				return appErr.InvalidVectorArray(attr.Name, dim)
			}
			for _, item := range list {
				if _, ok := item.(float64); !ok {
					return appErr.InvalidVectorArray(attr.Name, dim)
				}
			}
		}
	}
	return nil
}

func validVectorValue(v any, dim int, nested bool) bool {
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}
	if _, ok := m["name"]; !ok {
		return false
	}
	if !nested {
		vec, ok := expr.ToVector(m["rep"])
		return ok && len(vec) == dim
	}
	items, ok := m["rep"].([]any)
	if !ok {
		return false
	}
	for _, item := range items {
		im, ok := item.(map[string]any)
		if !ok {
			return false
		}
		vec, ok := expr.ToVector(im["rep"])
		if !ok || len(vec) != dim {
			return false
		}
	}
	return true
}

// Flatten drops the hash and replaces {name, rep} values with their name.
func Flatten(p *model.Project, c model.Case) model.Case {
	out := c.Clone()
	delete(out, model.HashField)
	for i := range p.Attributes {
		attr := &p.Attributes[i]
		if !similarity.Parse(attr.Similarity).Vectorised() {
			continue
		}
		if m, ok := out[attr.Name].(map[string]any); ok {
			if name, ok := m["name"]; ok {
				out[attr.Name] = name
			}
		}
	}
	return out
}
