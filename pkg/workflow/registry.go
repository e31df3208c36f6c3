package workflow

// Definitions returns all sub-workflow definitions keyed by kind
func Definitions() map[string]*Definition {
	defs := []*Definition{
		ProjectMaker(),
		RequirementMaker(),
		TaskMaker(),
		DependencyMaker(),
		ResourceMaker(),
		ResourceAssigner(),
		Analyst(),
	}

	byKind := make(map[string]*Definition, len(defs))
	for _, def := range defs {
		byKind[def.Kind] = def
	}
	return byKind
}
