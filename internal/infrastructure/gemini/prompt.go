package gemini

import (
	"fmt"
	"strings"

	"lod-checker/internal/domain/entity"
)

const systemPrompt = `
You are an expert Senior BIM Manager and VDC Coordinator.
Your task is to analyze screenshots or renders of 3D Building Information Models (BIM) elements and determine their compliance with specific Level of Development (LOD) standards (LOD 300, 400, 500).

**LOD Definitions Context:**
- **LOD 300 (Precise Geometry):** The element is graphically represented as a specific system, object, or assembly in terms of quantity, size, shape, location, and orientation. Specific geometry is defined (e.g., exact dimensions of a beam), but fabrication details (bolts, welds) might be missing.
- **LOD 400 (Fabrication):** The element is modeled with sufficient detail for fabrication and assembly. This includes distinct graphical representation of bolts, welds, connections, reinforcement, and detailed fittings.
- **LOD 500 (As-Built):** Field verified representation. Visually similar to LOD 400 but implies the presence of verified "as-installed" data (Manufacturer, Model, Serial Numbers, Installation Dates).

**Analysis Rules:**
1. **Geometry:** specific shape, dimensions, connections, bolts, threads, clearances.
2. **Parameters:** infer based on visual complexity if the object *looks* like it carries heavy metadata (e.g., a simple box implies low parameters; a detailed pump implies high parameters).
3. **Information Level:** overall completeness for the construction/operations phase requested.

Output the result in strict JSON format.
`

// SystemPrompt фиксирует роль модели и определения уровней LOD
func SystemPrompt() string {
	return strings.TrimSpace(systemPrompt)
}

// BuildPrompt собирает инструкцию для одной проверки
func BuildPrompt(target entity.LODLevel, elementType, context string) string {
	elementType = strings.TrimSpace(elementType)
	if elementType == "" {
		elementType = "Unknown/Auto-detect"
	}
	context = strings.TrimSpace(context)
	if context == "" {
		context = "None"
	}
	lod := string(target)

	var b strings.Builder
	b.WriteString("Analyze this BIM element image.\n")
	fmt.Fprintf(&b, "Element Type: %s.\n", elementType)
	fmt.Fprintf(&b, "Target LOD: %s.\n", lod)
	fmt.Fprintf(&b, "Additional Context: %s.\n\n", context)
	fmt.Fprintf(&b, "Evaluate compliance against %s.\n\n", lod)
	b.WriteString("Provide a detailed critique on:\n")
	fmt.Fprintf(&b, "1. Geometry (Is it detailed enough for %s? Too simple? Too detailed?)\n", lod)
	fmt.Fprintf(&b, "2. Parameters (Based on visual fidelity, what data appears to be missing for %s?)\n", lod)
	b.WriteString("3. Information Level (Is this suitable for the target phase: Coordination, Fabrication, or Operations?)\n")

	return b.String()
}
