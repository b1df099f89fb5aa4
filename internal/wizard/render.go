package wizard

// visibleSteps filters steps by their conditions against data.
func visibleSteps(steps []StepDefinition, data map[string]any) []StepDefinition {
	visible := make([]StepDefinition, 0, len(steps))
	for _, step := range steps {
		if step.Condition == nil || step.Condition(data) {
			visible = append(visible, step)
		}
	}
	return visible
}

// renderedSteps picks the visible steps the presentation layer should mount.
func renderedSteps(visible []StepDefinition, current int, cfg Config) []StepDefinition {
	if !cfg.LazyRendering {
		return visible
	}

	rendered := make([]StepDefinition, 0, len(visible))
	for i, step := range visible {
		inWindow := i == current
		if cfg.RenderAdjacent {
			inWindow = i >= current-1 && i <= current+1
		}
		if inWindow || !step.Evictable {
			rendered = append(rendered, step)
		}
	}
	return rendered
}

// indexOf returns the position of id in steps, or -1.
func indexOf(steps []StepDefinition, id string) int {
	for i, step := range steps {
		if step.ID == id {
			return i
		}
	}
	return -1
}
