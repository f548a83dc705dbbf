package analysis

import (
	"strings"
	"testing"

	"dam-stability/internal/dam"
)

func TestBuildPromptReferenceScenario(t *testing.T) {
	ev := dam.Evaluate(dam.InputState{Height: "10", Width: "4", WaterLevel: "5", MaterialDensity: "2400"})

	want := "Analyze this dam's stability with the following parameters:\n" +
		"              Height: 10m\n" +
		"              Width: 4m\n" +
		"              Water Level: 5m\n" +
		"              Material Density: 2400kg/m³\n" +
		"              Dam Weight: 96000.00 kg\n" +
		"              Water Pressure: 122625.00 N/m²\n" +
		"              Sliding Factor: 1.5\n" +
		"              Overturning Factor: 2.1\n" +
		"              \n" +
		"              Please provide:\n" +
		"              1. A detailed analysis of these calculations\n" +
		"              2. Safety implications of these values\n" +
		"              3. Specific recommendations based on:\n" +
		"                 - Structural integrity\n" +
		"                 - Maintenance needs\n" +
		"                 - Required monitoring\n" +
		"              4. Risk assessment and mitigation strategies"

	if got := BuildPrompt(ev); got != want {
		t.Fatalf("unexpected prompt:\n%s\nwant:\n%s", got, want)
	}
}

func TestBuildPromptKeepsRawInputAndNonFiniteValues(t *testing.T) {
	ev := dam.Evaluate(dam.InputState{Height: " 12 ", Width: "abc", WaterLevel: "", MaterialDensity: "2.4e3"})
	prompt := BuildPrompt(ev)

	for _, want := range []string{
		"Height:  12 m",
		"Width: abcm",
		"Water Level: m",
		"Material Density: 2.4e3kg/m³",
		"Dam Weight: NaN kg",
		"Water Pressure: 0.00 N/m²",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("expected prompt to contain %q:\n%s", want, prompt)
		}
	}
}

func TestBuildPromptComputedFactors(t *testing.T) {
	ev := dam.NewEvaluator(dam.FactorModeComputed, 0).Evaluate(dam.InputState{
		Height: "10", Width: "4", WaterLevel: "5", MaterialDensity: "2400", FrictionCoefficient: "0.7",
	})
	prompt := BuildPrompt(ev)

	if !strings.Contains(prompt, "Sliding Factor: 5.38\n") || !strings.Contains(prompt, "Overturning Factor: 9.22\n") {
		t.Fatalf("expected computed factors in prompt:\n%s", prompt)
	}
}
