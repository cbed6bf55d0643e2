package model

type Project struct {
	ID                   string          `json:"id__"`
	Name                 string          `json:"name"`
	Description          string          `json:"description"`
	Casebase             string          `json:"casebase"`
	HasCasebase          bool            `json:"hasCasebase"`
	RetainDuplicateCases bool            `json:"retainDuplicateCases"`
	Attributes           []AttributeSpec `json:"attributes"`
	Ctime                int64           `json:"ctime"`
	Mtime                int64           `json:"mtime"`
}

// Attribute returns the attribute named name, or nil.
func (p *Project) Attribute(name string) *AttributeSpec {
	for i := range p.Attributes {
		if p.Attributes[i].Name == name {
			return &p.Attributes[i]
		}
	}
	return nil
}

// OntologyGridID names the grid that backs an ontology attribute of this project.
func (p *Project) OntologyGridID(attr *AttributeSpec) string {
	name := ""
	if attr.Options != nil {
		name = attr.Options.Name
	}
	return p.ID + "_ontology_" + name
}

func CasebaseName(projectID string) string {
	return projectID + "_casebase"
}
