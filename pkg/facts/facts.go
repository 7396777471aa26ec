package facts

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/entsync/entsync/pkg/log"
)

// Package is one installed software package.
type Package struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Release string `json:"release"`
	Arch    string `json:"architecture"`
	Epoch   int    `json:"epoch"`
	Vendor  string `json:"vendor"`
}

// Repo is one enabled package repository.
type Repo struct {
	ID      string `json:"repositoryid"`
	Name    string `json:"name"`
	BaseURL string `json:"baseurl"`
}

// Module is one enabled module stream.
type Module struct {
	Name     string   `json:"name"`
	Stream   string   `json:"stream"`
	Version  string   `json:"version"`
	Context  string   `json:"context"`
	Arch     string   `json:"arch"`
	Profiles []string `json:"profiles"`
	Status   string   `json:"status"`
	Active   bool     `json:"active"`
}

// Collector abstracts OS-level collection of the package profile. Concrete
// collectors query the package manager; tests inject fixed data.
type Collector interface {
	Packages() ([]Package, error)
	EnabledRepos() ([]Repo, error)
	Modules() ([]Module, error)
}

// Profile content type names as the server expects them.
const (
	ContentTypeRPM          = "rpm"
	ContentTypeEnabledRepos = "enabled_repos"
	ContentTypeModulemd     = "modulemd"
)

// ProfileManager assembles the machine's package profile and caches it in
// memory until Invalidate. It implements the push cache facts-source
// contract; the payload shape depends on whether the server understands
// combined profile reporting.
type ProfileManager struct {
	collector Collector
	combined  func() bool
	logger    zerolog.Logger

	mu      sync.Mutex
	profile map[string]interface{}
}

// NewProfileManager creates a manager over the collector. The combined
// probe reports whether the server accepts the multi-content-type payload;
// nil means it does not, and only the rpm profile is reported.
func NewProfileManager(collector Collector, combined func() bool) *ProfileManager {
	return &ProfileManager{
		collector: collector,
		combined:  combined,
		logger:    log.WithComponent("profile"),
	}
}

// CombinedProfile returns the full profile keyed by content type,
// collecting it on first use.
func (m *ProfileManager) CombinedProfile() (map[string]interface{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.assemble()
}

func (m *ProfileManager) assemble() (map[string]interface{}, error) {
	if m.profile != nil {
		return m.profile, nil
	}

	packages, err := m.collector.Packages()
	if err != nil {
		return nil, fmt.Errorf("failed to collect package profile: %w", err)
	}
	repos, err := m.collector.EnabledRepos()
	if err != nil {
		return nil, fmt.Errorf("failed to collect enabled repositories: %w", err)
	}
	modules, err := m.collector.Modules()
	if err != nil {
		return nil, fmt.Errorf("failed to collect module profile: %w", err)
	}

	m.profile = map[string]interface{}{
		ContentTypeRPM:          packages,
		ContentTypeEnabledRepos: map[string]interface{}{"repos": repos},
		ContentTypeModulemd:     modules,
	}
	m.logger.Debug().
		Int("packages", len(packages)).
		Int("repos", len(repos)).
		Int("modules", len(modules)).
		Msg("assembled package profile")
	return m.profile, nil
}

// Payload returns the profile in the shape the server accepts: a list of
// {content_type, profile} sections when combined reporting is available,
// the plain rpm package list otherwise.
func (m *ProfileManager) Payload() (interface{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	profile, err := m.assemble()
	if err != nil {
		return nil, err
	}

	if m.combined == nil || !m.combined() {
		return profile[ContentTypeRPM], nil
	}

	contentTypes := make([]string, 0, len(profile))
	for contentType := range profile {
		contentTypes = append(contentTypes, contentType)
	}
	sort.Strings(contentTypes)

	sections := make([]map[string]interface{}, 0, len(contentTypes))
	for _, contentType := range contentTypes {
		sections = append(sections, map[string]interface{}{
			"content_type": contentType,
			"profile":      profile[contentType],
		})
	}
	return sections, nil
}

// Invalidate drops the cached profile so the next use re-collects it.
// Call after package manager transactions.
func (m *ProfileManager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profile = nil
}

// InstalledProduct is one product certificate's identity.
type InstalledProduct struct {
	ID           string   `json:"productId"`
	Name         string   `json:"productName"`
	Version      string   `json:"version"`
	Arch         string   `json:"arch"`
	ProvidedTags []string `json:"-"`
}

// ProductDirectory enumerates the product certificates installed on the
// machine.
type ProductDirectory interface {
	InstalledProducts() ([]InstalledProduct, error)
}

// InstalledProductsManager tracks which products are installed and the
// union of their provided content tags. It implements the push cache
// facts-source contract.
type InstalledProductsManager struct {
	dir    ProductDirectory
	logger zerolog.Logger
}

// NewInstalledProductsManager creates a manager over the directory.
func NewInstalledProductsManager(dir ProductDirectory) *InstalledProductsManager {
	return &InstalledProductsManager{
		dir:    dir,
		logger: log.WithComponent("installed-products"),
	}
}

// Payload returns the products keyed by ID plus the sorted tag union, the
// shape persisted in the push cache snapshot.
func (m *InstalledProductsManager) Payload() (interface{}, error) {
	products, tags, err := m.collect()
	if err != nil {
		return nil, err
	}

	byID := make(map[string]InstalledProduct, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return map[string]interface{}{
		"products": byID,
		"tags":     tags,
	}, nil
}

// FormatForServer returns the installed product list and tag union in the
// consumer update wire shape.
func (m *InstalledProductsManager) FormatForServer() ([]map[string]interface{}, []string, error) {
	products, tags, err := m.collect()
	if err != nil {
		return nil, nil, err
	}

	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	list := make([]map[string]interface{}, 0, len(products))
	for _, p := range products {
		list = append(list, map[string]interface{}{
			"productId":   p.ID,
			"productName": p.Name,
			"version":     p.Version,
			"arch":        p.Arch,
		})
	}
	return list, tags, nil
}

func (m *InstalledProductsManager) collect() ([]InstalledProduct, []string, error) {
	products, err := m.dir.InstalledProducts()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read installed products: %w", err)
	}

	tagSet := make(map[string]struct{})
	for _, p := range products {
		for _, tag := range p.ProvidedTags {
			tagSet[tag] = struct{}{}
		}
	}
	tags := make([]string, 0, len(tagSet))
	for tag := range tagSet {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return products, tags, nil
}
