package facts

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubCollector struct {
	packages []Package
	repos    []Repo
	modules  []Module
	err      error
	calls    int
}

func (c *stubCollector) Packages() ([]Package, error) {
	c.calls++
	return c.packages, c.err
}

func (c *stubCollector) EnabledRepos() ([]Repo, error) {
	return c.repos, c.err
}

func (c *stubCollector) Modules() ([]Module, error) {
	return c.modules, c.err
}

func TestProfileAssembledLazilyAndCached(t *testing.T) {
	c := &stubCollector{
		packages: []Package{{Name: "bash", Version: "5.2", Arch: "x86_64"}},
		repos:    []Repo{{ID: "baseos", Name: "BaseOS"}},
	}
	m := NewProfileManager(c, nil)
	assert.Equal(t, 0, c.calls)

	profile, err := m.CombinedProfile()
	assert.NoError(t, err)
	assert.Equal(t, c.packages, profile[ContentTypeRPM])

	_, err = m.CombinedProfile()
	assert.NoError(t, err)
	assert.Equal(t, 1, c.calls)
}

func TestProfileInvalidateRecollects(t *testing.T) {
	c := &stubCollector{packages: []Package{{Name: "bash"}}}
	m := NewProfileManager(c, nil)

	_, err := m.CombinedProfile()
	assert.NoError(t, err)
	m.Invalidate()
	_, err = m.CombinedProfile()
	assert.NoError(t, err)
	assert.Equal(t, 2, c.calls)
}

func TestPayloadPlainRPMWithoutCombinedReporting(t *testing.T) {
	c := &stubCollector{packages: []Package{{Name: "bash"}}}
	m := NewProfileManager(c, func() bool { return false })

	payload, err := m.Payload()
	assert.NoError(t, err)
	assert.Equal(t, c.packages, payload)
}

func TestPayloadCombinedSections(t *testing.T) {
	c := &stubCollector{
		packages: []Package{{Name: "bash"}},
		repos:    []Repo{{ID: "baseos"}},
		modules:  []Module{{Name: "nodejs", Stream: "20"}},
	}
	m := NewProfileManager(c, func() bool { return true })

	payload, err := m.Payload()
	assert.NoError(t, err)

	sections, ok := payload.([]map[string]interface{})
	assert.True(t, ok)
	assert.Len(t, sections, 3)

	byType := map[string]interface{}{}
	for _, s := range sections {
		byType[s["content_type"].(string)] = s["profile"]
	}
	assert.Contains(t, byType, ContentTypeRPM)
	assert.Contains(t, byType, ContentTypeEnabledRepos)
	assert.Contains(t, byType, ContentTypeModulemd)
	assert.Equal(t, c.packages, byType[ContentTypeRPM])
}

func TestProfileCollectorError(t *testing.T) {
	c := &stubCollector{err: errors.New("rpm db locked")}
	m := NewProfileManager(c, nil)

	_, err := m.Payload()
	assert.Error(t, err)
}

type stubDirectory struct {
	products []InstalledProduct
	err      error
}

func (d *stubDirectory) InstalledProducts() ([]InstalledProduct, error) {
	return d.products, d.err
}

func TestInstalledProductsPayload(t *testing.T) {
	d := &stubDirectory{products: []InstalledProduct{
		{ID: "479", Name: "Example Linux", Version: "9.4", Arch: "x86_64",
			ProvidedTags: []string{"example-linux-9", "example-linux"}},
		{ID: "271", Name: "Example AppStream", Version: "9.4", Arch: "x86_64",
			ProvidedTags: []string{"example-linux-9"}},
	}}
	m := NewInstalledProductsManager(d)

	payload, err := m.Payload()
	assert.NoError(t, err)

	shaped, ok := payload.(map[string]interface{})
	assert.True(t, ok)
	byID := shaped["products"].(map[string]InstalledProduct)
	assert.Len(t, byID, 2)
	assert.Equal(t, "Example Linux", byID["479"].Name)
	assert.Equal(t, []string{"example-linux", "example-linux-9"}, shaped["tags"])
}

func TestFormatForServerSortedByID(t *testing.T) {
	d := &stubDirectory{products: []InstalledProduct{
		{ID: "479", Name: "Example Linux"},
		{ID: "271", Name: "Example AppStream"},
	}}
	m := NewInstalledProductsManager(d)

	list, tags, err := m.FormatForServer()
	assert.NoError(t, err)
	assert.Empty(t, tags)
	assert.Equal(t, "271", list[0]["productId"])
	assert.Equal(t, "479", list[1]["productId"])
}

func TestInstalledProductsDirectoryError(t *testing.T) {
	d := &stubDirectory{err: errors.New("unreadable certificate")}
	m := NewInstalledProductsManager(d)

	_, err := m.Payload()
	assert.Error(t, err)
}
