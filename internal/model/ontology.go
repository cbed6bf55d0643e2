package model

const (
	OntologyMethodWUP = "wup"
	OntologyMethodSAN = "san"

	DefaultRelationType = "rdfs:subClassOf"
)

type OntologySource struct {
	Source string `json:"source"`
	Format string `json:"format"`
}

type OntologyDescriptor struct {
	ID           string           `json:"ontologyId"`
	Sources      []OntologySource `json:"sources"`
	Root         string           `json:"root_node,omitempty"`
	RelationType string           `json:"relation_type,omitempty"`
	Method       string           `json:"similarity_method,omitempty"`
}

// GridRow is one row of an ontology similarity grid.
type GridRow struct {
	Key string             `json:"key"`
	Map map[string]float64 `json:"map"`
}

type GridStatus struct {
	Exists bool `json:"exists"`
	Count  int  `json:"count"`
}

func ontologyMethodOf(attr *AttributeSpec) string {
	if attr.Similarity == "Feature-based" {
		return OntologyMethodSAN
	}
	return OntologyMethodWUP
}

// OntologyGridIDFor names the grid of attr computed with method. The
// attribute's own method uses the plain grid id; the other method gets a
// suffixed one so the two never share rows.
func (p *Project) OntologyGridIDFor(attr *AttributeSpec, method string) string {
	id := p.OntologyGridID(attr)
	if method != ontologyMethodOf(attr) {
		return id + "_" + method
	}
	return id
}

// OntologyGridIDs lists every grid id attr can be backed by.
func (p *Project) OntologyGridIDs(attr *AttributeSpec) []string {
	return []string{
		p.OntologyGridIDFor(attr, ontologyMethodOf(attr)),
		p.OntologyGridIDFor(attr, otherMethod(ontologyMethodOf(attr))),
	}
}

func otherMethod(method string) string {
	if method == OntologyMethodSAN {
		return OntologyMethodWUP
	}
	return OntologyMethodSAN
}

// OntologyDescriptorFor builds the descriptor of an ontology attribute.
func OntologyDescriptorFor(p *Project, attr *AttributeSpec) OntologyDescriptor {
	return OntologyDescriptorWith(p, attr, ontologyMethodOf(attr))
}

// OntologyDescriptorWith builds the descriptor of attr for an explicit method.
func OntologyDescriptorWith(p *Project, attr *AttributeSpec, method string) OntologyDescriptor {
	desc := OntologyDescriptor{ID: p.OntologyGridIDFor(attr, method), Method: method}
	if attr.Options != nil {
		desc.Sources = attr.Options.Sources
		desc.Root = attr.Options.Root
		desc.RelationType = attr.Options.RelationType
	}
	return desc
}
