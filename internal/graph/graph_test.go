package graph

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingrea/modgraph/internal/platform"
)

func mod(name string, public ...string) platform.ResolvedModule {
	return platform.ResolvedModule{Name: name, Kind: "engine", Public: public}
}

func mustBuild(t *testing.T, modules ...platform.ResolvedModule) *DependencyGraph {
	t.Helper()
	g, errs := Build(modules, BuildOptions{Platform: "Linux"})
	require.Empty(t, errs)
	return g
}

func TestOrderExample(t *testing.T) {
	g := mustBuild(t, mod("C", "A", "B"), mod("B", "A"), mod("A"))
	order, err := g.TopologicalOrder()
	require.NoError(t, err)
	assert.Equal(t, BuildOrder{"A", "B", "C"}, order)
}

func TestCycleExample(t *testing.T) {
	g := mustBuild(t, mod("X", "Y"), mod("Y", "X"))
	_, err := g.TopologicalOrder()
	var cycle *CyclicDependencyError
	require.True(t, errors.As(err, &cycle), "expected cycle error, got %v", err)
	assert.Equal(t, []string{"X", "Y", "X"}, cycle.Path)
}

func TestCyclePathReturnsToStart(t *testing.T) {
	g := mustBuild(t,
		mod("App", "Engine"),
		mod("Engine", "Renderer"),
		mod("Renderer", "Shaders"),
		mod("Shaders", "Engine"),
	)
	err := g.DetectCycle()
	var cycle *CyclicDependencyError
	require.True(t, errors.As(err, &cycle))
	assert.Equal(t, []string{"Engine", "Renderer", "Shaders", "Engine"}, cycle.Path)
	for i := 0; i < len(cycle.Path)-1; i++ {
		assert.Contains(t, g.DependenciesOf(cycle.Path[i]), cycle.Path[i+1])
	}
}

func TestTieBreakIsLexicographic(t *testing.T) {
	g := mustBuild(t, mod("Zlib"), mod("Json"), mod("Core", "Zlib"), mod("Apex"))
	order, err := g.TopologicalOrder()
	require.NoError(t, err)
	assert.Equal(t, BuildOrder{"Apex", "Json", "Zlib", "Core"}, order)
}

func TestOrderPlacesDependenciesFirstOnRandomDAGs(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 20; round++ {
		var modules []platform.ResolvedModule
		for i := 0; i < 30; i++ {
			var deps []string
			for j := 0; j < i; j++ {
				if rng.Intn(5) == 0 {
					deps = append(deps, fmt.Sprintf("M%02d", j))
				}
			}
			modules = append(modules, mod(fmt.Sprintf("M%02d", i), deps...))
		}
		rng.Shuffle(len(modules), func(i, j int) { modules[i], modules[j] = modules[j], modules[i] })
		g := mustBuild(t, modules...)
		order, err := g.TopologicalOrder()
		require.NoError(t, err)
		require.Len(t, order, 30)
		for _, name := range order {
			for _, dep := range g.DependenciesOf(name) {
				assert.Less(t, order.Index(dep), order.Index(name), "%s must precede %s", dep, name)
			}
		}
		again, err := mustBuild(t, modules...).TopologicalOrder()
		require.NoError(t, err)
		assert.Equal(t, order, again)
	}
}

func TestUnresolvedDependenciesAreCollected(t *testing.T) {
	_, errs := Build([]platform.ResolvedModule{
		mod("Engine", "Core", "Missing"),
		mod("Core", "AlsoMissing"),
	}, BuildOptions{Platform: "Linux"})
	require.Len(t, errs, 2)
	var first, second *UnresolvedDependencyError
	require.True(t, errors.As(errs[0], &first))
	require.True(t, errors.As(errs[1], &second))
	assert.Equal(t, "Core", first.Module)
	assert.Equal(t, "AlsoMissing", first.Dependency)
	assert.Equal(t, "Engine", second.Module)
	assert.Equal(t, "Missing", second.Dependency)
}

func TestExternalsAreRecordedNotGraphed(t *testing.T) {
	g, errs := Build([]platform.ResolvedModule{mod("Net", "ws2_32", "libcurl", "Core"), mod("Core")},
		BuildOptions{Externals: []string{"ws2_*", "libcurl"}})
	require.Empty(t, errs)
	assert.Equal(t, []string{"libcurl", "ws2_32"}, g.Externals("Net"))
	assert.Equal(t, []string{"Core"}, g.DependenciesOf("Net"))
	assert.Equal(t, 2, g.Len())
}

func TestReferenceToExcludedModule(t *testing.T) {
	excluded := platform.ResolvedModule{Name: "D3D12RHI", Excluded: true, ExcludedReason: "not available on Linux"}
	_, errs := Build([]platform.ResolvedModule{mod("Renderer", "D3D12RHI"), excluded}, BuildOptions{Platform: "Linux"})
	require.Len(t, errs, 1)
	var unresolved *UnresolvedDependencyError
	require.True(t, errors.As(errs[0], &unresolved))
	assert.Equal(t, "not available on Linux", unresolved.Reason)
}

func TestFailedModulesAreSkippedSilently(t *testing.T) {
	g, errs := Build([]platform.ResolvedModule{mod("Renderer", "Broken")}, BuildOptions{Failed: []string{"Broken"}})
	require.Empty(t, errs)
	assert.Empty(t, g.DependenciesOf("Renderer"))
}

func TestDynamicEdgesAreAdvisory(t *testing.T) {
	a := mod("A")
	a.Dynamic = []string{"B"}
	b := mod("B", "A")
	g := mustBuild(t, a, b)
	require.NoError(t, g.DetectCycle())
	order, err := g.TopologicalOrder()
	require.NoError(t, err)
	assert.Equal(t, BuildOrder{"A", "B"}, order)
	assert.Equal(t, []string{"B"}, g.AdvisoryOf("A"))
	assert.Equal(t, []string{"B"}, g.DependentsOf("A"))
	assert.Empty(t, g.DependentsOf("B"))

	unknown := mod("C")
	unknown.Dynamic = []string{"Ghost"}
	_, errs := Build([]platform.ResolvedModule{unknown}, BuildOptions{})
	require.Len(t, errs, 1)
	var unresolved *UnresolvedDependencyError
	require.True(t, errors.As(errs[0], &unresolved))
	assert.True(t, unresolved.Advisory)
}

func TestWaves(t *testing.T) {
	g := mustBuild(t, mod("A"), mod("B"), mod("C", "A"), mod("D", "C", "B"), mod("E", "A"))
	waves, err := g.Waves()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"A", "B"}, {"C", "E"}, {"D"}}, waves)
}

func TestPath(t *testing.T) {
	g := mustBuild(t, mod("App", "Engine", "Core"), mod("Engine", "Core"), mod("Core"), mod("Tool"))
	assert.Equal(t, []string{"App", "Core"}, g.Path("App", "Core"))
	assert.Equal(t, []string{"Engine", "Core"}, g.Path("Engine", "Core"))
	assert.Nil(t, g.Path("Core", "App"))
	assert.Nil(t, g.Path("Tool", "Core"))
	assert.Nil(t, g.Path("Nope", "Core"))
}

func TestWriteDOT(t *testing.T) {
	a := mod("App", "Core")
	a.Dynamic = []string{"Plugin"}
	a.Private = []string{"Json"}
	g, errs := Build([]platform.ResolvedModule{a, mod("Core", "zlib"), mod("Plugin"), mod("Json")}, BuildOptions{Externals: []string{"zlib"}})
	require.Empty(t, errs)
	var buf bytes.Buffer
	require.NoError(t, g.WriteDOT(&buf, DOTOptions{Externals: true}))
	out := buf.String()
	assert.Contains(t, out, `digraph "modules" {`)
	assert.Contains(t, out, `"App" -> "Core";`)
	assert.Contains(t, out, `"App" -> "Json" [color=gray40];`)
	assert.Contains(t, out, `"App" -> "Plugin" [style=dashed];`)
	assert.Contains(t, out, `"Core" -> "ext:zlib" [style=dotted];`)
}
