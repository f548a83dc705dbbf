package analysis

import (
	"strings"

	"dam-stability/internal/dam"
)

// promptIndent is the leading whitespace the analysis service has always
// received on every line after the first.
const promptIndent = "              "

// BuildPrompt renders the analysis request for ev. Dimensions are quoted as
// the user typed them; weight and water pressure use two decimals.
func BuildPrompt(ev dam.Evaluation) string {
	in := ev.Input
	lines := []string{
		"Analyze this dam's stability with the following parameters:",
		"Height: " + in.Height + "m",
		"Width: " + in.Width + "m",
		"Water Level: " + in.WaterLevel + "m",
		"Material Density: " + in.MaterialDensity + "kg/m³",
		"Dam Weight: " + ev.Quantities.Weight.Fixed() + " kg",
		"Water Pressure: " + ev.Quantities.WaterPressure.Fixed() + " N/m²",
		"Sliding Factor: " + ev.Result.SlidingFactor.String(),
		"Overturning Factor: " + ev.Result.OverturningFactor.String(),
		"",
		"Please provide:",
		"1. A detailed analysis of these calculations",
		"2. Safety implications of these values",
		"3. Specific recommendations based on:",
		"   - Structural integrity",
		"   - Maintenance needs",
		"   - Required monitoring",
		"4. Risk assessment and mitigation strategies",
	}
	return strings.Join(lines, "\n"+promptIndent)
}
